package model

// EventProjectMessage is the channel event carrying chat messages.
const EventProjectMessage = "project-message"

// Message is the payload of a project-message event. Body is plain text from
// humans and a JSON document (possibly malformed) from the assistant.
type Message struct {
	Sender Participant `json:"sender"`
	Body   string      `json:"message"`
}
