// Package auth_repo provides the PostgreSQL implementation of the user
// repository.
package auth_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"tabula/internal/core/apperror"
	"tabula/internal/core/id"
	"tabula/internal/domain/auth"
	"tabula/internal/infrastructure/storage/postgres"
)

const usersTable = "sys_users"

var userColumns = postgres.ExtractDBColumns[auth.User]()

// UserRepo implements auth.UserRepository.
type UserRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewUserRepo creates a user repository.
func NewUserRepo(txm *postgres.TxManager) *UserRepo {
	return &UserRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new user.
func (r *UserRepo) Create(ctx context.Context, user *auth.User) error {
	data := postgres.StructToMap(user)
	filtered := make(map[string]any, len(userColumns))
	for _, col := range userColumns {
		filtered[col] = data[col]
	}

	sql, args, err := r.builder.Insert(usersTable).SetMap(filtered).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err = querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves user by ID.
func (r *UserRepo) GetByID(ctx context.Context, userID id.ID) (*auth.User, error) {
	return r.findOne(ctx, squirrel.Eq{"id": userID}, userID.String())
}

// GetByLogin retrieves user by login.
func (r *UserRepo) GetByLogin(ctx context.Context, login string) (*auth.User, error) {
	return r.findOne(ctx, squirrel.Eq{"login": login}, login)
}

func (r *UserRepo) findOne(ctx context.Context, where squirrel.Eq, key string) (*auth.User, error) {
	q := r.builder.Select(userColumns...).
		From(usersTable).
		Where(where).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var user auth.User
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &user, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("user", key)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &user, nil
}

// Update updates user data with optimistic locking.
func (r *UserRepo) Update(ctx context.Context, user *auth.User) error {
	data := postgres.StructToMap(user)
	version, ok := data["version"].(int)
	if !ok {
		return fmt.Errorf("user has no 'version' field or it is not an int")
	}

	filtered := make(map[string]any, len(userColumns))
	for _, col := range userColumns {
		switch col {
		case "id", "created_at", "version", "updated_at":
			continue
		}
		filtered[col] = data[col]
	}

	q := r.builder.Update(usersTable).
		SetMap(filtered).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": user.ID}).
		Where(squirrel.Eq{"version": version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(usersTable, user.ID)
	}

	return nil
}

// Exists checks if login is taken.
func (r *UserRepo) Exists(ctx context.Context, login string) (bool, error) {
	sql := `SELECT EXISTS (SELECT 1 FROM sys_users WHERE login = $1)`

	var exists bool
	querier := r.txm.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, login).Scan(&exists); err != nil {
		return false, fmt.Errorf("check login: %w", err)
	}

	return exists, nil
}

// Ensure interface compliance.
var _ auth.UserRepository = (*UserRepo)(nil)
