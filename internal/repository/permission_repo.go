package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-shop-admin/internal/model"
)

const permissionColumns = `id, name, module, action, key, description, is_active, is_deleted,
	COALESCE(created_by, ''), COALESCE(updated_by, ''), COALESCE(deleted_by, ''),
	created_at, updated_at, deleted_at`

type PermissionRepository struct {
	pool *pgxpool.Pool
}

func NewPermissionRepository(pool *pgxpool.Pool) *PermissionRepository {
	return &PermissionRepository{pool: pool}
}

func scanPermission(row pgx.Row) (model.Permission, error) {
	var p model.Permission
	err := row.Scan(
		&p.ID, &p.Name, &p.Module, &p.Action, &p.Key, &p.Description, &p.IsActive, &p.IsDeleted,
		&p.CreatedBy, &p.UpdatedBy, &p.DeletedBy,
		&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt,
	)
	return p, err
}

func (r *PermissionRepository) CreatePermission(ctx context.Context, p model.Permission) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO permissions (id, name, module, action, key, description, is_active, is_deleted,
		                          created_by, updated_by, deleted_by, created_at, updated_at, deleted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		p.ID, p.Name, p.Module, p.Action, p.Key, p.Description, p.IsActive, p.IsDeleted,
		nullable(p.CreatedBy), nullable(p.UpdatedBy), nullable(p.DeletedBy), p.CreatedAt, p.UpdatedAt, p.DeletedAt)
	if isUniqueViolation(err) {
		return model.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create permission: %w", err)
	}
	return nil
}

func (r *PermissionRepository) UpdatePermission(ctx context.Context, p model.Permission) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE permissions SET name = $2, module = $3, action = $4, key = $5, description = $6,
		        is_active = $7, is_deleted = $8, updated_by = $9, deleted_by = $10,
		        updated_at = $11, deleted_at = $12
		 WHERE id = $1`,
		p.ID, p.Name, p.Module, p.Action, p.Key, p.Description, p.IsActive, p.IsDeleted,
		nullable(p.UpdatedBy), nullable(p.DeletedBy), p.UpdatedAt, p.DeletedAt)
	if isUniqueViolation(err) {
		return model.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("update permission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrPermissionNotFound
	}
	return nil
}

// DeletePermission removes the row and strips its id from every role in one
// transaction.
func (r *PermissionRepository) DeletePermission(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete permission: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete permission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrPermissionNotFound
	}

	if _, err := tx.Exec(ctx,
		`UPDATE roles SET permission_ids = array_remove(permission_ids, $1) WHERE $1 = ANY(permission_ids)`,
		id); err != nil {
		return fmt.Errorf("revoke deleted permission: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete permission: %w", err)
	}
	return nil
}

func (r *PermissionRepository) FindPermissionByID(ctx context.Context, id string) (model.Permission, error) {
	p, err := scanPermission(r.pool.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Permission{}, model.ErrPermissionNotFound
	}
	if err != nil {
		return model.Permission{}, fmt.Errorf("find permission: %w", err)
	}
	return p, nil
}

func (r *PermissionRepository) FindPermissionByKey(ctx context.Context, key string) (model.Permission, error) {
	p, err := scanPermission(r.pool.QueryRow(ctx,
		`SELECT `+permissionColumns+` FROM permissions WHERE key = $1 AND NOT is_deleted`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Permission{}, model.ErrPermissionNotFound
	}
	if err != nil {
		return model.Permission{}, fmt.Errorf("find permission by key: %w", err)
	}
	return p, nil
}

func (r *PermissionRepository) ListPermissions(ctx context.Context) ([]model.Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+permissionColumns+` FROM permissions ORDER BY key, id`)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	defer rows.Close()

	permissions := make([]model.Permission, 0)
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		permissions = append(permissions, p)
	}
	return permissions, rows.Err()
}
