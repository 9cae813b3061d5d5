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

const roleColumns = `id, name, description, permission_ids, is_active, is_deleted,
	COALESCE(created_by, ''), COALESCE(updated_by, ''), COALESCE(deleted_by, ''),
	created_at, updated_at, deleted_at`

type RoleRepository struct {
	pool *pgxpool.Pool
}

func NewRoleRepository(pool *pgxpool.Pool) *RoleRepository {
	return &RoleRepository{pool: pool}
}

func scanRole(row pgx.Row) (model.Role, error) {
	var role model.Role
	err := row.Scan(
		&role.ID, &role.Name, &role.Description, &role.PermissionIDs, &role.IsActive, &role.IsDeleted,
		&role.CreatedBy, &role.UpdatedBy, &role.DeletedBy,
		&role.CreatedAt, &role.UpdatedAt, &role.DeletedAt,
	)
	if role.PermissionIDs == nil {
		role.PermissionIDs = []string{}
	}
	return role, err
}

func (r *RoleRepository) CreateRole(ctx context.Context, role model.Role) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO roles (id, name, description, permission_ids, is_active, is_deleted,
		                    created_by, updated_by, deleted_by, created_at, updated_at, deleted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		role.ID, role.Name, role.Description, permissionIDs(role.PermissionIDs), role.IsActive, role.IsDeleted,
		nullable(role.CreatedBy), nullable(role.UpdatedBy), nullable(role.DeletedBy),
		role.CreatedAt, role.UpdatedAt, role.DeletedAt)
	if isUniqueViolation(err) {
		return model.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create role: %w", err)
	}
	return nil
}

func (r *RoleRepository) UpdateRole(ctx context.Context, role model.Role) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE roles SET name = $2, description = $3, permission_ids = $4, is_active = $5,
		        is_deleted = $6, updated_by = $7, deleted_by = $8, updated_at = $9, deleted_at = $10
		 WHERE id = $1`,
		role.ID, role.Name, role.Description, permissionIDs(role.PermissionIDs), role.IsActive,
		role.IsDeleted, nullable(role.UpdatedBy), nullable(role.DeletedBy), role.UpdatedAt, role.DeletedAt)
	if isUniqueViolation(err) {
		return model.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrRoleNotFound
	}
	return nil
}

// DeleteRole removes the row. users.role_id is cleared by the foreign key.
func (r *RoleRepository) DeleteRole(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrRoleNotFound
	}
	return nil
}

func (r *RoleRepository) FindRoleByID(ctx context.Context, id string) (model.Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Role{}, model.ErrRoleNotFound
	}
	if err != nil {
		return model.Role{}, fmt.Errorf("find role: %w", err)
	}
	return role, nil
}

func (r *RoleRepository) FindRoleByName(ctx context.Context, name string) (model.Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE lower(name) = lower($1) AND NOT is_deleted`,
		strings.TrimSpace(name)))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Role{}, model.ErrRoleNotFound
	}
	if err != nil {
		return model.Role{}, fmt.Errorf("find role by name: %w", err)
	}
	return role, nil
}

func (r *RoleRepository) ListRoles(ctx context.Context) ([]model.Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY lower(name), id`)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	roles := make([]model.Role, 0)
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// permissionIDs keeps the column NOT NULL for roles without grants.
func permissionIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
