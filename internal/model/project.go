package model

import (
	"time"

	"github.com/Minhal128/CodeX/internal/filetree"
)

type Project struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Users     []User        `json:"users"`
	FileTree  filetree.Tree `json:"fileTree"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// HasUser reports whether userID collaborates on p.
func (p Project) HasUser(userID string) bool {
	for _, u := range p.Users {
		if u.ID == userID {
			return true
		}
	}
	return false
}
