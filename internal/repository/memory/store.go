// Package memory is a process-local implementation of every store interface
// the services depend on. It backs development runs without DATABASE_URL and
// the unit tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"go-shop-admin/internal/model"
)

type Store struct {
	mu          sync.RWMutex
	users       map[string]model.User
	roles       map[string]model.Role
	permissions map[string]model.Permission
	orders      []model.Order
	audit       []model.AuditEntry
}

func New() *Store {
	return &Store{
		users:       map[string]model.User{},
		roles:       map[string]model.Role{},
		permissions: map[string]model.Permission{},
	}
}

// ── users ──────────────────────────────────────────────────────

func (s *Store) CreateUser(_ context.Context, u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.ID]; exists {
		return model.ErrDuplicate
	}
	if s.userConflictLocked(u) {
		return model.ErrDuplicate
	}

	s.users[u.ID] = cloneUser(u)
	return nil
}

// UpdateUser replaces every column except the refresh token, which only the
// dedicated token methods touch.
func (s *Store) UpdateUser(_ context.Context, u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[u.ID]
	if !ok {
		return model.ErrUserNotFound
	}
	if s.userConflictLocked(u) {
		return model.ErrDuplicate
	}

	u.RefreshToken = current.RefreshToken
	s.users[u.ID] = cloneUser(u)
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return model.ErrUserNotFound
	}

	delete(s.users, id)
	return nil
}

func (s *Store) FindUserByID(_ context.Context, id string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (model.User, error) {
	return s.findUser(func(u model.User) bool {
		return strings.EqualFold(u.Email, strings.TrimSpace(email))
	})
}

func (s *Store) FindUserByHandle(_ context.Context, handle string) (model.User, error) {
	return s.findUser(func(u model.User) bool {
		return u.Handle != "" && strings.EqualFold(u.Handle, strings.TrimSpace(handle))
	})
}

func (s *Store) FindUserByRefreshToken(_ context.Context, token string) (model.User, error) {
	if token == "" {
		return model.User{}, model.ErrUserNotFound
	}
	return s.findUser(func(u model.User) bool {
		return u.RefreshToken == token
	})
}

func (s *Store) ListUsers(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) SetRefreshToken(_ context.Context, userID string, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return model.ErrUserNotFound
	}

	u.RefreshToken = token
	s.users[userID] = u
	return nil
}

// RotateRefreshToken swaps the token only while oldToken is still current.
func (s *Store) RotateRefreshToken(_ context.Context, userID string, oldToken string, newToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok || oldToken == "" || u.RefreshToken != oldToken {
		return model.ErrTokenNotFound
	}

	u.RefreshToken = newToken
	s.users[userID] = u
	return nil
}

func (s *Store) ClearRefreshToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token == "" {
		return model.ErrTokenNotFound
	}

	for id, u := range s.users {
		if u.RefreshToken == token {
			u.RefreshToken = ""
			s.users[id] = u
			return nil
		}
	}

	return model.ErrTokenNotFound
}

func (s *Store) findUser(match func(model.User) bool) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (s *Store) userConflictLocked(candidate model.User) bool {
	for id, u := range s.users {
		if id == candidate.ID {
			continue
		}
		if strings.EqualFold(u.Email, candidate.Email) {
			return true
		}
		if candidate.Handle != "" && strings.EqualFold(u.Handle, candidate.Handle) {
			return true
		}
	}
	return false
}

func cloneUser(u model.User) model.User {
	if u.VerificationExpiresAt != nil {
		expires := *u.VerificationExpiresAt
		u.VerificationExpiresAt = &expires
	}
	if u.DeletedAt != nil {
		deleted := *u.DeletedAt
		u.DeletedAt = &deleted
	}
	return u
}

// ── roles ──────────────────────────────────────────────────────

func (s *Store) CreateRole(_ context.Context, r model.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.roles[r.ID]; exists {
		return model.ErrDuplicate
	}
	if s.roleConflictLocked(r) {
		return model.ErrDuplicate
	}

	s.roles[r.ID] = cloneRole(r)
	return nil
}

func (s *Store) UpdateRole(_ context.Context, r model.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[r.ID]; !ok {
		return model.ErrRoleNotFound
	}
	if s.roleConflictLocked(r) {
		return model.ErrDuplicate
	}

	s.roles[r.ID] = cloneRole(r)
	return nil
}

func (s *Store) DeleteRole(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[id]; !ok {
		return model.ErrRoleNotFound
	}

	delete(s.roles, id)
	for userID, u := range s.users {
		if u.RoleID == id {
			u.RoleID = ""
			s.users[userID] = u
		}
	}
	return nil
}

func (s *Store) FindRoleByID(_ context.Context, id string) (model.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.roles[id]
	if !ok {
		return model.Role{}, model.ErrRoleNotFound
	}
	return cloneRole(r), nil
}

// FindRoleByName only considers roles that are not soft-deleted.
func (s *Store) FindRoleByName(_ context.Context, name string) (model.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.roles {
		if !r.IsDeleted && strings.EqualFold(r.Name, strings.TrimSpace(name)) {
			return cloneRole(r), nil
		}
	}
	return model.Role{}, model.ErrRoleNotFound
}

func (s *Store) ListRoles(_ context.Context) ([]model.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, cloneRole(r))
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}

func (s *Store) roleConflictLocked(candidate model.Role) bool {
	if candidate.IsDeleted {
		return false
	}
	for id, r := range s.roles {
		if id != candidate.ID && !r.IsDeleted && strings.EqualFold(r.Name, candidate.Name) {
			return true
		}
	}
	return false
}

func cloneRole(r model.Role) model.Role {
	r.PermissionIDs = slices.Clone(r.PermissionIDs)
	if r.PermissionIDs == nil {
		r.PermissionIDs = []string{}
	}
	if r.DeletedAt != nil {
		deleted := *r.DeletedAt
		r.DeletedAt = &deleted
	}
	return r
}

// ── permissions ────────────────────────────────────────────────

func (s *Store) CreatePermission(_ context.Context, p model.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.permissions[p.ID]; exists {
		return model.ErrDuplicate
	}
	if s.permissionConflictLocked(p) {
		return model.ErrDuplicate
	}

	s.permissions[p.ID] = p
	return nil
}

func (s *Store) UpdatePermission(_ context.Context, p model.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.permissions[p.ID]; !ok {
		return model.ErrPermissionNotFound
	}
	if s.permissionConflictLocked(p) {
		return model.ErrDuplicate
	}

	s.permissions[p.ID] = p
	return nil
}

// DeletePermission removes the permission and strips it from every role.
func (s *Store) DeletePermission(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.permissions[id]; !ok {
		return model.ErrPermissionNotFound
	}

	delete(s.permissions, id)
	for roleID, r := range s.roles {
		if idx := slices.Index(r.PermissionIDs, id); idx >= 0 {
			r.PermissionIDs = slices.Delete(slices.Clone(r.PermissionIDs), idx, idx+1)
			s.roles[roleID] = r
		}
	}
	return nil
}

func (s *Store) FindPermissionByID(_ context.Context, id string) (model.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.permissions[id]
	if !ok {
		return model.Permission{}, model.ErrPermissionNotFound
	}
	return p, nil
}

// FindPermissionByKey only considers permissions that are not soft-deleted.
func (s *Store) FindPermissionByKey(_ context.Context, key string) (model.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.permissions {
		if !p.IsDeleted && p.Key == key {
			return p, nil
		}
	}
	return model.Permission{}, model.ErrPermissionNotFound
}

func (s *Store) ListPermissions(_ context.Context) ([]model.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) permissionConflictLocked(candidate model.Permission) bool {
	if candidate.IsDeleted {
		return false
	}
	for id, p := range s.permissions {
		if id != candidate.ID && !p.IsDeleted && p.Key == candidate.Key {
			return true
		}
	}
	return false
}

// ── orders ─────────────────────────────────────────────────────

func (s *Store) CreateOrder(_ context.Context, o model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o.Items = slices.Clone(o.Items)
	s.orders = append(s.orders, o)
	return nil
}

func (s *Store) ListOrdersByUser(_ context.Context, userID string) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Order, 0)
	for i := len(s.orders) - 1; i >= 0; i-- {
		o := s.orders[i]
		if o.UserID == userID {
			o.Items = slices.Clone(o.Items)
			out = append(out, o)
		}
	}
	return out, nil
}

// ── audit ──────────────────────────────────────────────────────

func (s *Store) Log(_ context.Context, entry model.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audit = append(s.audit, entry)
	return nil
}

// Query expects From and To to be RFC 3339 timestamps or empty.
func (s *Store) Query(_ context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 50
	}

	from, _ := time.Parse(time.RFC3339Nano, strings.TrimSpace(query.From))
	to, _ := time.Parse(time.RFC3339Nano, strings.TrimSpace(query.To))
	action := strings.ToLower(strings.TrimSpace(query.Action))
	status := strings.ToLower(strings.TrimSpace(query.Status))
	actorID := strings.TrimSpace(query.ActorID)
	resource := strings.ToLower(strings.TrimSpace(query.Resource))

	s.mu.RLock()
	items := make([]model.AuditEntry, 0, len(s.audit))
	for _, entry := range s.audit {
		if action != "" && strings.ToLower(entry.Action) != action {
			continue
		}
		if status != "" && strings.ToLower(entry.Status) != status {
			continue
		}
		if actorID != "" && entry.Actor.UserID != actorID {
			continue
		}
		if resource != "" && !strings.Contains(strings.ToLower(entry.Resource), resource) {
			continue
		}
		at, err := time.Parse(time.RFC3339Nano, entry.OccurredAt)
		if err == nil {
			if !from.IsZero() && at.Before(from) {
				continue
			}
			if !to.IsZero() && at.After(to) {
				continue
			}
		}
		items = append(items, entry)
	}
	s.mu.RUnlock()

	sort.SliceStable(items, func(i, j int) bool { return items[i].OccurredAt > items[j].OccurredAt })

	total := len(items)
	start := min((query.Page-1)*query.Limit, total)
	end := min(start+query.Limit, total)

	totalPages := 0
	if total > 0 {
		totalPages = (total + query.Limit - 1) / query.Limit
	}

	meta := model.Meta{Page: query.Page, Limit: query.Limit, Total: total, TotalPages: totalPages}
	return items[start:end], meta, nil
}
