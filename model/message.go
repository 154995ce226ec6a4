package model

import "time"

// Message roles. Every message in a conversation carries exactly one.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents one turn in a conversation. Messages are immutable
// once appended to a conversation transcript.
type Message struct {
	Role      string
	Content   string
	ToolName  string // set only for tool-result messages
	Timestamp time.Time

	// PreserveInTrim marks a system message that must survive history
	// trimming even when trimming would otherwise remove it first.
	PreserveInTrim bool
}

// NewUserMessage creates a user message with the current timestamp.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, Timestamp: time.Now()}
}

// NewAssistantMessage creates an assistant message with the current timestamp.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content, Timestamp: time.Now()}
}

// NewToolMessage creates a tool-result message attributed to the named tool.
func NewToolMessage(toolName, content string) Message {
	return Message{Role: RoleTool, ToolName: toolName, Content: content, Timestamp: time.Now()}
}

// LastUserIndex returns the index of the most recent user message,
// or -1 if the slice contains none.
func LastUserIndex(messages []Message) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return i
		}
	}
	return -1
}
