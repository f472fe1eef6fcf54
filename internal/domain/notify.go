package domain

// MessageFormat selects how the chat transport renders a message.
type MessageFormat string

const (
	FormatPlain    MessageFormat = ""
	FormatMarkdown MessageFormat = "Markdown"
)
