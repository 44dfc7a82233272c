package dto

import (
	"time"

	"github.com/Minhal128/CodeX/internal/model"
)

type CreateUserRequest struct {
	DisplayName string `json:"displayName" binding:"required,min=1,max=255"`
	Email       string `json:"email,omitempty" binding:"omitempty,email,max=255"`
}

type UserResponse struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func ToUserResponse(u *model.User) *UserResponse {
	return &UserResponse{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

type ListUsersResponse struct {
	Users []*UserResponse `json:"users"`
}

func ToListUsersResponse(users []model.User) *ListUsersResponse {
	out := make([]*UserResponse, 0, len(users))
	for i := range users {
		out = append(out, ToUserResponse(&users[i]))
	}
	return &ListUsersResponse{Users: out}
}
