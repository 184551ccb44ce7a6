package constant

const (
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"
)

const (
	PlatformMedium   = "Medium"
	PlatformLinkedIn = "LinkedIn"
)
