package persona

const (
	conversationLinkPrefix = "https://elevenlabs.io/app/talk-to?agent_id="
	avatarURLPrefix        = "https://api.dicebear.com/7.x/pixel-art/svg?seed="
	avatarURLSuffix        = "&scale=100"
)

// ConversationLink is the public talk-to page of an agent. The id is
// interpolated verbatim, links must match the ones already shared.
func ConversationLink(agentID string) string {
	return conversationLinkPrefix + agentID
}

// AvatarURL is the generated avatar seeded with the owning identity id.
func AvatarURL(identityID string) string {
	return avatarURLPrefix + identityID + avatarURLSuffix
}
