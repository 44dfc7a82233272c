package model

import "time"

type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Participant returns the chat identity of u.
func (u User) Participant() Participant {
	return Participant{ID: u.ID, DisplayName: u.DisplayName}
}
