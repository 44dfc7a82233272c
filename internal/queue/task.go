package queue

type TaskType string

const (
	// TaskTypeAssistantReply asks the assistant to answer a message that
	// mentioned it.
	TaskTypeAssistantReply TaskType = "assistant_reply"
)

type Task struct {
	TaskType   TaskType
	ProjectID  string
	SenderID   string
	SenderName string
	Prompt     string
	TraceID    string
	Attempt    int
}
