package dto

import (
	"time"

	"github.com/Minhal128/CodeX/internal/filetree"
	"github.com/Minhal128/CodeX/internal/model"
)

type CreateProjectRequest struct {
	Name     string         `json:"name" binding:"required,min=1,max=255"`
	OwnerID  string         `json:"ownerId" binding:"required"`
	FileTree *filetree.Tree `json:"fileTree,omitempty"`
}

// SaveFileTreeRequest replaces the stored tree. ProjectID is optional; when
// present it must match the project in the URL.
type SaveFileTreeRequest struct {
	ProjectID string         `json:"projectId"`
	FileTree  *filetree.Tree `json:"fileTree" binding:"required"`
}

type AddCollaboratorsRequest struct {
	ProjectID string   `json:"projectId"`
	Users     []string `json:"users" binding:"required,min=1,dive,required"`
}

type ProjectResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Users     []*UserResponse `json:"users"`
	FileTree  filetree.Tree   `json:"fileTree"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// ProjectEnvelope is the {project: ...} shape clients read project metadata from.
type ProjectEnvelope struct {
	Project *ProjectResponse `json:"project"`
}

func ToProjectEnvelope(p *model.Project) *ProjectEnvelope {
	users := make([]*UserResponse, 0, len(p.Users))
	for i := range p.Users {
		users = append(users, ToUserResponse(&p.Users[i]))
	}
	tree := p.FileTree
	if tree == nil {
		tree = filetree.Tree{}
	}
	return &ProjectEnvelope{Project: &ProjectResponse{
		ID:        p.ID,
		Name:      p.Name,
		Users:     users,
		FileTree:  tree,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}}
}
