package model

// AssistantID is the sender id used by the code-generation assistant. Its
// messages are the only ones decoded as structured payloads.
const AssistantID = "ai"

type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// IsAutomated reports whether p is the assistant rather than a human.
func (p Participant) IsAutomated() bool {
	return p.ID == AssistantID
}
