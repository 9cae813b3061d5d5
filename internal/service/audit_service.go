package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go-shop-admin/internal/event"
	"go-shop-admin/internal/model"
	"go-shop-admin/pkg/apierror"
)

type AuditService struct {
	store AuditStore
	users UserStore
}

// NewAuditService builds the audit trail. users is optional and only used to
// enrich entries with the actor's handle and role.
func NewAuditService(store AuditStore, users UserStore) *AuditService {
	return &AuditService{store: store, users: users}
}

func (s *AuditService) Record(ctx context.Context, entry model.AuditEntry) {
	if s == nil {
		return
	}
	if entry.OccurredAt == "" {
		entry.OccurredAt = time.Now().UTC().Format(time.RFC3339Nano)
	}

	if err := s.store.Log(ctx, entry); err != nil {
		slog.Error("audit entry not stored", "action", entry.Action, "error", err)
	}
}

// Run records every event published on bus until ctx ends.
func (s *AuditService) Run(ctx context.Context, bus event.Bus) {
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			s.Record(ctx, s.entryFor(ctx, e))
		}
	}
}

func (s *AuditService) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 50
	}
	if query.Limit > 200 {
		query.Limit = 200
	}

	from, err := parseOptionalAuditTime(query.From)
	if err != nil {
		return nil, model.Meta{}, apierror.InvalidInput("invalid 'from' datetime format", query.From)
	}
	to, err := parseOptionalAuditTime(query.To)
	if err != nil {
		return nil, model.Meta{}, apierror.InvalidInput("invalid 'to' datetime format", query.To)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, model.Meta{}, apierror.InvalidInput("'to' must not be before 'from'", "")
	}

	query.From = formatOptionalAuditTime(from)
	query.To = formatOptionalAuditTime(to)

	return s.store.Query(ctx, query)
}

func (s *AuditService) entryFor(ctx context.Context, e event.Event) model.AuditEntry {
	entry := model.AuditEntry{
		Action:     string(e.Type),
		OccurredAt: e.Timestamp,
		Actor:      model.AuditActor{UserID: e.ActorID},
		Status:     e.Status,
		Resource:   e.Resource,
		Error:      e.Error,
	}

	if diff, ok := e.Payload.(map[string]any); ok && diff["before"] != nil {
		entry.Before = diff["before"]
		entry.After = diff["after"]
	} else {
		entry.After = e.Payload
	}

	if s.users != nil && e.ActorID != "" {
		if actor, err := s.users.FindUserByID(ctx, e.ActorID); err == nil {
			entry.Actor.Handle = actor.Handle
			entry.Actor.Role = actor.RoleID
		}
	}

	return entry
}

func parseOptionalAuditTime(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, nil
	}

	return parseAuditTime(trimmed)
}

func parseAuditTime(raw string) (time.Time, error) {
	if value, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return value.UTC(), nil
	}

	value, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, err
	}

	return value.UTC(), nil
}

func formatOptionalAuditTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}
