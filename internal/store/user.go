package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Minhal128/CodeX/core/db"
	"github.com/Minhal128/CodeX/internal/model"
)

type userStore struct {
	q db.Querier
}

func newUserStore(q db.Querier) UserStore {
	return &userStore{q: q}
}

const userColumns = `id, display_name, COALESCE(email, ''), created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.DisplayName, &u.Email, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *userStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(s.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *userStore) List(ctx context.Context) ([]model.User, error) {
	rows, err := s.q.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY display_name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *userStore) Create(ctx context.Context, user *model.User) error {
	var email *string
	if user.Email != "" {
		email = &user.Email
	}
	return s.q.QueryRow(ctx, `
		INSERT INTO users (id, display_name, email)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`,
		user.ID, user.DisplayName, email,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
}
