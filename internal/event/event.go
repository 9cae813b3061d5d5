package event

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeUserRegistered      Type = "user.registered"
	TypeUserLoggedIn        Type = "user.logged_in"
	TypeUserLoginFailed     Type = "user.login_failed"
	TypeUserLoggedOut       Type = "user.logged_out"
	TypeUserTokenRefreshed  Type = "user.token_refreshed"
	TypeUserVerified        Type = "user.verified"
	TypeUserResetRequested  Type = "user.password_reset_requested"
	TypeUserPasswordChanged Type = "user.password_changed"
	TypeUserProfileUpdated  Type = "user.profile_updated"
	TypeUserCreated         Type = "user.created"
	TypeUserUpdated         Type = "user.updated"
	TypeUserStatusChanged   Type = "user.status_changed"
	TypeUserDeleted         Type = "user.deleted"
	TypeRoleCreated         Type = "role.created"
	TypeRoleUpdated         Type = "role.updated"
	TypeRoleDeleted         Type = "role.deleted"
	TypePermissionCreated   Type = "permission.created"
	TypePermissionUpdated   Type = "permission.updated"
	TypePermissionDeleted   Type = "permission.deleted"
	TypeOrderCreated        Type = "order.created"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Payload   any    `json:"payload,omitempty"`
	Timestamp string `json:"timestamp"`
	ActorID   string `json:"actor_id,omitempty"` // Who triggered the event
	Resource  string `json:"resource,omitempty"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

func New(t Type, actorID string, resource string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		ActorID:   actorID,
		Resource:  resource,
		Status:    StatusSuccess,
	}
}

func (e Event) WithPayload(payload any) Event {
	e.Payload = payload
	return e
}

func (e Event) Failed(reason string) Event {
	e.Status = StatusFailure
	e.Error = reason
	return e
}

// Domain returns the part of the type before the first dot, e.g. "role".
func (t Type) Domain() string {
	domain, _, _ := strings.Cut(string(t), ".")
	return domain
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}
