package logger

import (
	"context"
	"log/slog"
	"strconv"
	"time"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	ActorID       int64
	TargetID      int64
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogAuthAttempt logs authentication attempts
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	al.log("auth", event)
}

// LogPasswordChange logs password change events. ActorID is the operator,
// TargetID the account whose password changed.
func (al *AuditLogger) LogPasswordChange(event AuditEvent) {
	event.EventType = "password_change"
	al.log("password", event)
}

// LogLookup logs record lookups made by operators
func (al *AuditLogger) LogLookup(actorID int64, lookupKind, sanitizedKey string, found bool) {
	al.log("lookup", AuditEvent{
		EventType: "record_lookup",
		ActorID:   actorID,
		Success:   found,
		Metadata: map[string]string{
			"lookup_kind": lookupKind,
			"lookup_key":  sanitizedKey,
		},
	})
}

func (al *AuditLogger) log(auditType string, event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", auditType),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.ActorID != 0 {
		attrs = append(attrs, slog.String("actor_id", strconv.FormatInt(event.ActorID, 10)))
	}
	if event.TargetID != 0 {
		attrs = append(attrs, slog.String("target_id", strconv.FormatInt(event.TargetID, 10)))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}
