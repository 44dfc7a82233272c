package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Minhal128/CodeX/core/db"
	"github.com/Minhal128/CodeX/internal/filetree"
	"github.com/Minhal128/CodeX/internal/model"
)

// foreignKeyViolation is the Postgres error code for a missing referenced row.
const foreignKeyViolation = "23503"

type projectStore struct {
	q db.Querier
}

func newProjectStore(q db.Querier) ProjectStore {
	return &projectStore{q: q}
}

func (s *projectStore) GetByID(ctx context.Context, id string) (*model.Project, error) {
	var (
		p       model.Project
		rawTree []byte
	)
	err := s.q.QueryRow(ctx, `
		SELECT id, name, file_tree, created_at, updated_at
		FROM projects
		WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &rawTree, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	tree, err := filetree.Parse(rawTree)
	if err != nil {
		return nil, fmt.Errorf("decoding stored file tree of project %s: %w", id, err)
	}
	p.FileTree = tree

	users, err := s.listUsers(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Users = users

	return &p, nil
}

func (s *projectStore) listUsers(ctx context.Context, projectID string) ([]model.User, error) {
	rows, err := s.q.Query(ctx, `
		SELECT u.id, u.display_name, COALESCE(u.email, ''), u.created_at, u.updated_at
		FROM project_users pu
		JOIN users u ON u.id = pu.user_id
		WHERE pu.project_id = $1
		ORDER BY pu.added_at, u.id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning collaborator: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *projectStore) Create(ctx context.Context, project *model.Project) error {
	tree := project.FileTree
	if tree == nil {
		tree = filetree.Tree{}
	}
	raw, err := tree.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encoding file tree: %w", err)
	}

	return s.q.QueryRow(ctx, `
		INSERT INTO projects (id, name, file_tree)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`,
		project.ID, project.Name, raw,
	).Scan(&project.CreatedAt, &project.UpdatedAt)
}

func (s *projectStore) UpdateFileTree(ctx context.Context, id string, tree filetree.Tree) error {
	raw, err := tree.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encoding file tree: %w", err)
	}

	tag, err := s.q.Exec(ctx, `
		UPDATE projects
		SET file_tree = $2, updated_at = now()
		WHERE id = $1`, id, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *projectStore) AddUsers(ctx context.Context, projectID string, userIDs []string) error {
	for _, userID := range userIDs {
		_, err := s.q.Exec(ctx, `
			INSERT INTO project_users (project_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT (project_id, user_id) DO NOTHING`, projectID, userID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
				return fmt.Errorf("adding user %s: %w", userID, ErrNotFound)
			}
			return fmt.Errorf("adding user %s: %w", userID, err)
		}
	}
	return nil
}
