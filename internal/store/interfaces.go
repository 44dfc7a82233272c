package store

import (
	"context"
	"errors"

	"github.com/Minhal128/CodeX/internal/filetree"
	"github.com/Minhal128/CodeX/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// UserStore defines the contract for user data access
type UserStore interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Create(ctx context.Context, user *model.User) error
}

// ProjectStore defines the contract for project data access. Projects are
// returned with their collaborators and file tree.
type ProjectStore interface {
	GetByID(ctx context.Context, id string) (*model.Project, error)
	Create(ctx context.Context, project *model.Project) error
	UpdateFileTree(ctx context.Context, id string, tree filetree.Tree) error
	// AddUsers adds collaborators; users already on the project are skipped.
	AddUsers(ctx context.Context, projectID string, userIDs []string) error
}
