package dto

import "github.com/Minhal128/CodeX/internal/model"

type SenderRequest struct {
	ID          string `json:"id" binding:"required,max=255"`
	DisplayName string `json:"displayName" binding:"max=255"`
}

// PostMessageRequest mirrors the project-message wire payload.
type PostMessageRequest struct {
	Sender  SenderRequest `json:"sender"`
	Message string        `json:"message" binding:"required"`
}

func (r PostMessageRequest) ToModel() model.Message {
	return model.Message{
		Sender: model.Participant{ID: r.Sender.ID, DisplayName: r.Sender.DisplayName},
		Body:   r.Message,
	}
}
