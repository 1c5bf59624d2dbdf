package provisioning

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const MinPasswordLength = 8

func validateRegistration(in RegisterInput) *ValidationError {
	fields := map[string]string{}
	if msg := checkEmail(in.Email); msg != "" {
		fields["email"] = msg
	}
	if utf8.RuneCountInString(in.Password) < MinPasswordLength {
		fields["password"] = "Password must be at least 8 characters."
	}
	if strings.TrimSpace(in.FirstName) == "" {
		fields["first_name"] = "First name is required."
	}
	if strings.TrimSpace(in.LastName) == "" {
		fields["last_name"] = "Last name is required."
	}
	checkPersonaFields(fields, in.ResumeText, in.APIKey)
	return asValidationError(fields)
}

func validateCreate(in CreateInput) *ValidationError {
	fields := map[string]string{}
	checkPersonaFields(fields, in.ResumeText, in.APIKey)
	return asValidationError(fields)
}

func validateSignIn(email, password string) *ValidationError {
	fields := map[string]string{}
	if strings.TrimSpace(email) == "" {
		fields["email"] = "Email is required."
	}
	if password == "" {
		fields["password"] = "Password is required."
	}
	return asValidationError(fields)
}

func checkPersonaFields(fields map[string]string, resumeText, apiKey string) {
	if strings.TrimSpace(resumeText) == "" {
		fields["resume_text"] = "Upload a résumé with readable text."
	}
	if strings.TrimSpace(apiKey) == "" {
		fields["api_key"] = "An ElevenLabs API key is required."
	}
}

func checkEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return "Email is required."
	}
	addr, err := mail.ParseAddress(email)
	// reject display-name forms like "Ada <ada@example.com>"
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return "Enter a valid email address."
	}
	return ""
}

func asValidationError(fields map[string]string) *ValidationError {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}
