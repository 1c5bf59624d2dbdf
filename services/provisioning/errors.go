package provisioning

import (
	"fmt"
	"sort"
	"strings"
)

// User-facing messages. The duplicate-account text must stay distinct from
// the generic one.
const (
	MsgDuplicateAccount   = "An account with this email already exists. Please sign in instead."
	MsgAccountFailed      = "Could not create account. Please try again."
	MsgInvalidCredentials = "Invalid email or password."
	MsgNotConfirmed       = "Email not confirmed. Check your inbox for the confirmation link."
	MsgSignInFailed       = "Could not sign in. Please try again."
	MsgSignInAfterCreate  = "Your persona was created. Please sign in to continue."
	MsgNotSignedIn        = "You need to sign in first."
	MsgAgentFailed        = "Could not create your voice agent. Check your API key and try again."
	MsgPersonaExists      = "You already have a persona."
	MsgPersonaSaveFailed  = "Your voice agent was created but the persona could not be saved. Please try again."
	MsgProfileUnavailable = "Could not load your profile. Please try again."
	MsgPersonaNotFound    = "Persona not found."
	MsgPersonaUpdate      = "Could not update your persona. Please try again."
	MsgListingFailed      = "Public personas are unavailable right now."
)

// ValidationError lists every failing field. It is returned before any
// network or store call.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AuthError is an identity creation or sign-in failure.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string { return describe(e.Message, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// ProvisioningError is a voice agent failure. The identity may already exist.
type ProvisioningError struct {
	Message string
	Err     error
}

func (e *ProvisioningError) Error() string { return describe(e.Message, e.Err) }
func (e *ProvisioningError) Unwrap() error { return e.Err }

// PersistenceError is a store write failure after upstream side effects
// were committed.
type PersistenceError struct {
	Message string
	Err     error
}

func (e *PersistenceError) Error() string { return describe(e.Message, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

// FetchError is a read failure. Callers degrade instead of failing.
type FetchError struct {
	Message string
	Err     error
}

func (e *FetchError) Error() string { return describe(e.Message, e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

func describe(msg string, err error) string {
	if err == nil {
		return msg
	}
	return fmt.Sprintf("%s: %v", msg, err)
}
