package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Minhal128/CodeX/common/id"
	"github.com/Minhal128/CodeX/internal/filetree"
	"github.com/Minhal128/CodeX/internal/model"
	"github.com/Minhal128/CodeX/internal/store"
)

// ProjectService manages project metadata, collaborators and the stored file
// tree. It satisfies workspace.ProjectSource and treesync.Persister so a
// workspace can run directly against the database.
type ProjectService interface {
	GetProject(ctx context.Context, projectID string) (*model.Project, error)
	Create(ctx context.Context, name, ownerID string, tree filetree.Tree) (*model.Project, error)
	SaveFileTree(ctx context.Context, projectID string, tree filetree.Tree) error
	AddCollaborators(ctx context.Context, projectID string, userIDs []string) (*model.Project, error)
}

type projectService struct {
	projectStore store.ProjectStore
	txRunner     TxRunner
}

func NewProjectService(projectStore store.ProjectStore, txRunner TxRunner) ProjectService {
	return &projectService{
		projectStore: projectStore,
		txRunner:     txRunner,
	}
}

func (s *projectService) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	project, err := s.projectStore.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProjectNotFound
		}
		slog.ErrorContext(ctx, "failed to get project", "error", err, "project_id", projectID)
		return nil, fmt.Errorf("getting project: %w", err)
	}
	return project, nil
}

func (s *projectService) Create(ctx context.Context, name, ownerID string, tree filetree.Tree) (*model.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: project name is required", ErrInvalidInput)
	}
	if tree == nil {
		tree = filetree.Tree{}
	}
	if err := filetree.Validate(tree); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTree, err)
	}

	var created *model.Project
	err := s.txRunner.WithTx(ctx, func(stores StoreProvider) error {
		if _, err := stores.Users().GetByID(ctx, ownerID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("getting owner: %w", err)
		}

		project := &model.Project{
			ID:       id.NewString(),
			Name:     name,
			FileTree: tree,
		}
		if err := stores.Projects().Create(ctx, project); err != nil {
			return fmt.Errorf("creating project: %w", err)
		}
		if err := stores.Projects().AddUsers(ctx, project.ID, []string{ownerID}); err != nil {
			return fmt.Errorf("adding owner: %w", err)
		}

		full, err := stores.Projects().GetByID(ctx, project.ID)
		if err != nil {
			return fmt.Errorf("reloading project: %w", err)
		}
		created = full
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create project", "error", err, "owner_id", ownerID)
		return nil, err
	}

	slog.InfoContext(ctx, "project created", "project_id", created.ID, "owner_id", ownerID)
	return created, nil
}

func (s *projectService) SaveFileTree(ctx context.Context, projectID string, tree filetree.Tree) error {
	if tree == nil {
		return fmt.Errorf("%w: tree is required", ErrInvalidTree)
	}
	if err := filetree.Validate(tree); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTree, err)
	}

	if err := s.projectStore.UpdateFileTree(ctx, projectID, tree); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrProjectNotFound
		}
		slog.ErrorContext(ctx, "failed to save file tree", "error", err, "project_id", projectID)
		return fmt.Errorf("saving file tree: %w", err)
	}

	slog.DebugContext(ctx, "file tree saved",
		"project_id", projectID,
		"files", len(filetree.Paths(tree)))
	return nil
}

func (s *projectService) AddCollaborators(ctx context.Context, projectID string, userIDs []string) (*model.Project, error) {
	ids := dedupe(userIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one user is required", ErrInvalidInput)
	}

	var updated *model.Project
	err := s.txRunner.WithTx(ctx, func(stores StoreProvider) error {
		if _, err := stores.Projects().GetByID(ctx, projectID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrProjectNotFound
			}
			return fmt.Errorf("getting project: %w", err)
		}

		// The project exists, so a missing reference can only be a user.
		if err := stores.Projects().AddUsers(ctx, projectID, ids); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: %v", ErrUserNotFound, err)
			}
			return fmt.Errorf("adding collaborators: %w", err)
		}

		project, err := stores.Projects().GetByID(ctx, projectID)
		if err != nil {
			return fmt.Errorf("reloading project: %w", err)
		}
		updated = project
		return nil
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to add collaborators",
			"error", err,
			"project_id", projectID,
			"user_ids", ids)
		return nil, err
	}

	slog.InfoContext(ctx, "collaborators added", "project_id", projectID, "count", len(ids))
	return updated, nil
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
