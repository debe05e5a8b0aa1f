package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
)

var userColumns = []string{
	"id", "name", "email", "COALESCE(phone, '') AS phone", "role", "password_hash",
	"store_ids", "active", "created_at",
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findUser(ctx, squirrel.Eq{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	return s.findUser(ctx, squirrel.Eq{"id": id})
}

func (s *Store) findUser(ctx context.Context, where squirrel.Eq) (*domain.User, error) {
	sql, args, err := builder().Select(userColumns...).From("users").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get user: %w", err)
	}

	var u domain.User
	if err := pgxscan.Get(ctx, s.q(ctx), &u, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", translate(err))
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u domain.User) (*domain.User, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.StoreIDs == nil {
		u.StoreIDs = []string{}
	}
	sql, args, err := builder().Insert("users").
		Columns("id", "name", "email", "phone", "role", "password_hash", "store_ids", "active", "created_at").
		Values(u.ID, u.Name, u.Email, nullIfEmpty(u.Phone), u.Role, u.PasswordHash, u.StoreIDs, u.Active, u.CreatedAt).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert user: %w", err)
	}
	if _, err := s.q(ctx).Exec(ctx, sql, args...); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}
