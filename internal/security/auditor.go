package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/coregx/quickdao/internal/logger"
)

// AuditLevel selects which statements are audited.
type AuditLevel int

const (
	// AuditNone disables auditing.
	AuditNone AuditLevel = iota
	// AuditWrites audits INSERT, UPDATE and DELETE statements.
	AuditWrites
	// AuditAll audits reads as well.
	AuditAll
)

// AuditEvent is one audited statement execution.
type AuditEvent struct {
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	// Operation is the repository operation (insert, delete_by_criteria, ...).
	Operation string `json:"operation"`
	// Verb is the SQL verb (SELECT, INSERT, UPDATE, DELETE).
	Verb  string `json:"verb"`
	Table string `json:"table"`
	SQL   string `json:"sql"`
	// ParamsHash identifies the bound values without revealing them.
	ParamsHash string        `json:"params_hash,omitempty"`
	Rows       int64         `json:"rows"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

// Auditor writes an audit record per executed statement.
type Auditor struct {
	logger logger.Logger
	level  AuditLevel
}

// NewAuditor creates an Auditor writing to l at the given level.
func NewAuditor(l logger.Logger, level AuditLevel) *Auditor {
	return &Auditor{logger: logger.OrNoop(l), level: level}
}

// Enabled reports whether statements with the given SQL verb are audited.
func (a *Auditor) Enabled(verb string) bool {
	switch a.level {
	case AuditAll:
		return true
	case AuditWrites:
		return verb == "INSERT" || verb == "UPDATE" || verb == "DELETE"
	}
	return false
}

// Record completes ev from ctx and args and logs it: Info on success, Warn on
// failure.
func (a *Auditor) Record(ctx context.Context, ev AuditEvent, args []interface{}, err error) {
	if !a.Enabled(ev.Verb) {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	ev.User = UserFrom(ctx)
	ev.RequestID = RequestIDFrom(ctx)
	ev.ParamsHash = HashParams(args)
	if err != nil {
		ev.Error = err.Error()
	}

	kv := []any{
		"operation", ev.Operation,
		"verb", ev.Verb,
		"table", ev.Table,
		"sql", ev.SQL,
		"rows", ev.Rows,
		"duration_ms", ev.Duration.Milliseconds(),
		"params_hash", ev.ParamsHash,
		"user", ev.User,
		"request_id", ev.RequestID,
	}
	if err != nil {
		a.logger.Warn("audit", append(kv, "error", ev.Error)...)
		return
	}
	a.logger.Info("audit", kv...)
}

// RecordRejected logs a statement refused before execution, e.g. by the
// Validator.
func (a *Auditor) RecordRejected(ctx context.Context, operation, table string, err error) {
	if a.level == AuditNone {
		return
	}
	a.logger.Warn("audit rejected",
		"operation", operation,
		"table", table,
		"user", UserFrom(ctx),
		"request_id", RequestIDFrom(ctx),
		"error", err.Error(),
	)
}

// HashParams returns a SHA-256 over the formatted values, "" for none.
func HashParams(params []interface{}) string {
	if len(params) == 0 {
		return ""
	}
	h := sha256.New()
	for _, p := range params {
		_, _ = fmt.Fprintf(h, "%T:%v\x00", p, p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

type contextKey string

const (
	userKey      contextKey = "quickdao:user"
	requestIDKey contextKey = "quickdao:request_id"
)

// WithUser attaches the acting user to ctx for auditing.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// WithRequestID attaches a request id to ctx for auditing.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// UserFrom returns the user set by WithUser.
func UserFrom(ctx context.Context) string {
	s, _ := ctx.Value(userKey).(string)
	return s
}

// RequestIDFrom returns the id set by WithRequestID.
func RequestIDFrom(ctx context.Context) string {
	s, _ := ctx.Value(requestIDKey).(string)
	return s
}
