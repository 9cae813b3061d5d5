package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-shop-admin/internal/model"
)

const userColumns = `id, COALESCE(handle, ''), email, fullname, phone, address, avatar, password_hash,
	COALESCE(role_id, ''), verified, COALESCE(verification_code, ''), verification_expires_at,
	COALESCE(refresh_token, ''), provider, COALESCE(provider_id, ''), is_active, is_deleted,
	COALESCE(created_by, ''), COALESCE(updated_by, ''), COALESCE(deleted_by, ''),
	created_at, updated_at, deleted_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID, &u.Handle, &u.Email, &u.FullName, &u.Phone, &u.Address, &u.Avatar, &u.PasswordHash,
		&u.RoleID, &u.Verified, &u.VerificationCode, &u.VerificationExpiresAt,
		&u.RefreshToken, &u.Provider, &u.ProviderID, &u.IsActive, &u.IsDeleted,
		&u.CreatedBy, &u.UpdatedBy, &u.DeletedBy,
		&u.CreatedAt, &u.UpdatedAt, &u.DeletedAt,
	)
	return u, err
}

func (r *UserRepository) findOne(ctx context.Context, where string, arg any) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindUserByID(ctx context.Context, id string) (model.User, error) {
	return r.findOne(ctx, `id = $1`, id)
}

func (r *UserRepository) FindUserByEmail(ctx context.Context, email string) (model.User, error) {
	return r.findOne(ctx, `lower(email) = lower($1)`, strings.TrimSpace(email))
}

func (r *UserRepository) FindUserByHandle(ctx context.Context, handle string) (model.User, error) {
	return r.findOne(ctx, `lower(handle) = lower($1)`, strings.TrimSpace(handle))
}

func (r *UserRepository) FindUserByRefreshToken(ctx context.Context, token string) (model.User, error) {
	if token == "" {
		return model.User{}, model.ErrUserNotFound
	}
	return r.findOne(ctx, `refresh_token = $1`, token)
}

func (r *UserRepository) CreateUser(ctx context.Context, u model.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, handle, email, fullname, phone, address, avatar, password_hash,
		                    role_id, verified, verification_code, verification_expires_at,
		                    refresh_token, provider, provider_id, is_active, is_deleted,
		                    created_by, updated_by, deleted_by, created_at, updated_at, deleted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
		         $18, $19, $20, $21, $22, $23)`,
		u.ID, nullable(u.Handle), u.Email, u.FullName, u.Phone, u.Address, u.Avatar, u.PasswordHash,
		nullable(u.RoleID), u.Verified, nullable(u.VerificationCode), u.VerificationExpiresAt,
		nullable(u.RefreshToken), u.Provider, nullable(u.ProviderID), u.IsActive, u.IsDeleted,
		nullable(u.CreatedBy), nullable(u.UpdatedBy), nullable(u.DeletedBy), u.CreatedAt, u.UpdatedAt, u.DeletedAt)
	if isUniqueViolation(err) {
		return model.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateUser writes every column except refresh_token.
func (r *UserRepository) UpdateUser(ctx context.Context, u model.User) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET handle = $2, email = $3, fullname = $4, phone = $5, address = $6, avatar = $7,
		        password_hash = $8, role_id = $9, verified = $10, verification_code = $11,
		        verification_expires_at = $12, provider = $13, provider_id = $14, is_active = $15,
		        is_deleted = $16, created_by = $17, updated_by = $18, deleted_by = $19,
		        updated_at = $20, deleted_at = $21
		 WHERE id = $1`,
		u.ID, nullable(u.Handle), u.Email, u.FullName, u.Phone, u.Address, u.Avatar,
		u.PasswordHash, nullable(u.RoleID), u.Verified, nullable(u.VerificationCode),
		u.VerificationExpiresAt, u.Provider, nullable(u.ProviderID), u.IsActive,
		u.IsDeleted, nullable(u.CreatedBy), nullable(u.UpdatedBy), nullable(u.DeletedBy),
		u.UpdatedAt, u.DeletedAt)
	if isUniqueViolation(err) {
		return model.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) DeleteUser(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) SetRefreshToken(ctx context.Context, userID string, token string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET refresh_token = $2 WHERE id = $1`, userID, nullable(token))
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// RotateRefreshToken is a compare-and-set on the current token. Of two
// concurrent rotations of the same token exactly one matches a row.
func (r *UserRepository) RotateRefreshToken(ctx context.Context, userID string, oldToken string, newToken string) error {
	if oldToken == "" {
		return model.ErrTokenNotFound
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET refresh_token = $3 WHERE id = $1 AND refresh_token = $2`,
		userID, oldToken, newToken)
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrTokenNotFound
	}
	return nil
}

func (r *UserRepository) ClearRefreshToken(ctx context.Context, token string) error {
	if token == "" {
		return model.ErrTokenNotFound
	}

	tag, err := r.pool.Exec(ctx, `UPDATE users SET refresh_token = NULL WHERE refresh_token = $1`, token)
	if err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrTokenNotFound
	}
	return nil
}
