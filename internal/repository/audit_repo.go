package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"go-shop-admin/internal/model"
)

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// Log stores before and after as JSONB. OccurredAt must be RFC 3339.
func (r *AuditRepository) Log(ctx context.Context, entry model.AuditEntry) error {
	before, err := encodeState(entry.Before)
	if err != nil {
		return fmt.Errorf("marshal before state: %w", err)
	}
	after, err := encodeState(entry.After)
	if err != nil {
		return fmt.Errorf("marshal after state: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO audit_entries
		 (action, occurred_at, actor_id, actor_handle, actor_role, actor_ip,
		  status, resource, before_state, after_state, error)
		 VALUES ($1, $2::timestamptz, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.Action, entry.OccurredAt,
		nullable(entry.Actor.UserID), nullable(entry.Actor.Handle), nullable(entry.Actor.Role), nullable(entry.Actor.IP),
		entry.Status, nullable(entry.Resource), before, after, nullable(entry.Error))
	if err != nil {
		return fmt.Errorf("log audit entry: %w", err)
	}
	return nil
}

func encodeState(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// auditFilter accumulates positional WHERE conditions.
type auditFilter struct {
	conds []string
	args  []any
}

// add appends cond with its argument bound to the next placeholder. cond
// carries a single %d verb for the placeholder number.
func (f *auditFilter) add(cond string, arg any) {
	f.args = append(f.args, arg)
	f.conds = append(f.conds, fmt.Sprintf(cond, len(f.args)))
}

func (f *auditFilter) clause() string {
	if len(f.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(f.conds, " AND ")
}

func newAuditFilter(query model.AuditQuery) *auditFilter {
	f := &auditFilter{}
	if v := strings.TrimSpace(query.Action); v != "" {
		f.add("lower(action) = lower($%d)", v)
	}
	if v := strings.TrimSpace(query.ActorID); v != "" {
		f.add("actor_id = $%d", v)
	}
	if v := strings.TrimSpace(query.Status); v != "" {
		f.add("lower(status) = lower($%d)", v)
	}
	if v := strings.TrimSpace(query.Resource); v != "" {
		f.add("resource ILIKE $%d", "%"+v+"%")
	}
	if v := strings.TrimSpace(query.From); v != "" {
		f.add("occurred_at >= $%d::timestamptz", v)
	}
	if v := strings.TrimSpace(query.To); v != "" {
		f.add("occurred_at <= $%d::timestamptz", v)
	}
	return f
}

// Query pages newest first. Callers clamp Limit; Page below 1 is treated as 1.
func (r *AuditRepository) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	page, limit := max(query.Page, 1), query.Limit
	if limit <= 0 {
		limit = 50
	}

	filter := newAuditFilter(query)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_entries `+filter.clause(), filter.args...).Scan(&total); err != nil {
		return nil, model.Meta{}, fmt.Errorf("count audit entries: %w", err)
	}
	meta := model.Meta{Page: page, Limit: limit, Total: total, TotalPages: (total + limit - 1) / limit}

	n := len(filter.args)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(
		`SELECT action, occurred_at, COALESCE(actor_id, ''), COALESCE(actor_handle, ''),
		        COALESCE(actor_role, ''), COALESCE(actor_ip, ''), status, COALESCE(resource, ''),
		        before_state, after_state, COALESCE(error, '')
		 FROM audit_entries %s
		 ORDER BY occurred_at DESC, id DESC
		 LIMIT $%d OFFSET $%d`, filter.clause(), n+1, n+2),
		append(filter.args, limit, (page-1)*limit)...)
	if err != nil {
		return nil, model.Meta{}, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]model.AuditEntry, 0, limit)
	for rows.Next() {
		var (
			e             model.AuditEntry
			occurredAt    time.Time
			before, after []byte
		)
		if err := rows.Scan(
			&e.Action, &occurredAt,
			&e.Actor.UserID, &e.Actor.Handle, &e.Actor.Role, &e.Actor.IP,
			&e.Status, &e.Resource, &before, &after, &e.Error,
		); err != nil {
			return nil, model.Meta{}, fmt.Errorf("scan audit entry: %w", err)
		}

		e.OccurredAt = occurredAt.UTC().Format(time.RFC3339Nano)
		e.Before = decodeState(before)
		e.After = decodeState(after)
		entries = append(entries, e)
	}

	return entries, meta, rows.Err()
}

// decodeState returns nil for SQL NULL or undecodable JSON.
func decodeState(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}
