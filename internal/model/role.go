package model

import (
	"strings"
	"time"
)

// WildcardPermission in a role write expands to the active permission catalog.
const WildcardPermission = "*"

type Role struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	PermissionIDs []string   `json:"permissions"`
	IsActive      bool       `json:"isActive"`
	IsDeleted     bool       `json:"isDeleted"`
	CreatedBy     string     `json:"createdBy,omitempty"`
	UpdatedBy     string     `json:"updatedBy,omitempty"`
	DeletedBy     string     `json:"deletedBy,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	DeletedAt     *time.Time `json:"deletedAt,omitempty"`
}

func (r Role) Grants(permissionID string) bool {
	for _, id := range r.PermissionIDs {
		if id == permissionID {
			return true
		}
	}

	return false
}

type Permission struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Module      string     `json:"module"`
	Action      string     `json:"action"`
	Key         string     `json:"key"`
	Description string     `json:"description,omitempty"`
	IsActive    bool       `json:"isActive"`
	IsDeleted   bool       `json:"isDeleted"`
	CreatedBy   string     `json:"createdBy,omitempty"`
	UpdatedBy   string     `json:"updatedBy,omitempty"`
	DeletedBy   string     `json:"deletedBy,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
}

// PermissionKey returns the canonical "module:action" capability name.
func PermissionKey(module string, action string) string {
	return strings.ToLower(strings.TrimSpace(module)) + ":" + strings.ToLower(strings.TrimSpace(action))
}

// ParsePermissionKey splits a capability name into module and action.
func ParsePermissionKey(key string) (string, string, bool) {
	module, action, ok := strings.Cut(strings.TrimSpace(key), ":")
	if !ok {
		return "", "", false
	}

	module = strings.ToLower(strings.TrimSpace(module))
	action = strings.ToLower(strings.TrimSpace(action))
	if module == "" || action == "" || strings.Contains(action, ":") {
		return "", "", false
	}

	return module, action, true
}
