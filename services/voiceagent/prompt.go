package voiceagent

import (
	"fmt"
	"strings"
)

// maxResumeRunes keeps the system prompt within the provider's limits.
const maxResumeRunes = 20000

// AgentName is the display name of the agent on the provider side.
func AgentName(firstName, lastName string) string {
	return strings.TrimSpace(firstName+" "+lastName) + " (Résumé Persona)"
}

// FirstMessage is what the agent says when a conversation starts.
func FirstMessage(firstName string) string {
	return fmt.Sprintf("Hi, I'm %s. Ask me anything about my background, skills or experience.", strings.TrimSpace(firstName))
}

// SystemPrompt grounds the agent in the résumé text.
func SystemPrompt(firstName, lastName, resumeText string) string {
	name := strings.TrimSpace(firstName + " " + lastName)
	resume := strings.TrimSpace(resumeText)
	if r := []rune(resume); len(r) > maxResumeRunes {
		resume = string(r[:maxResumeRunes])
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, speaking in the first person with people who want to learn about your professional background.\n", name)
	sb.WriteString("Answer only from the résumé below. If something is not covered, say you would be happy to discuss it in a follow-up instead of inventing details.\n")
	sb.WriteString("Keep answers short and conversational; this is a voice conversation.\n\n")
	sb.WriteString("Résumé:\n")
	sb.WriteString(resume)
	return sb.String()
}
