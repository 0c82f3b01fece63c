package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/partsdesk/api/internal/domain"
	"github.com/partsdesk/api/internal/repositories"
)

const auditEntryIDPrefix = "aud_"

// AuditLogger defines the logging contract used by the audit writer service.
type AuditLogger interface {
	Warnf(format string, args ...any)
}

type auditLogService struct {
	repo  repositories.AuditLogRepository
	clock func() time.Time
	newID func() string
	log   AuditLogger
}

// AuditLogServiceDeps bundles constructor inputs for the audit writer service.
type AuditLogServiceDeps struct {
	Repository  repositories.AuditLogRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      AuditLogger
}

// NewAuditLogService creates an audit log writer backed by the supplied repository.
func NewAuditLogService(deps AuditLogServiceDeps) (AuditLogService, error) {
	if deps.Repository == nil {
		return nil, fmt.Errorf("audit log service: repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	log := deps.Logger
	if log == nil {
		log = noopAuditLogger{}
	}

	return &auditLogService{
		repo:  deps.Repository,
		clock: func() time.Time { return clock().UTC() },
		newID: idGen,
		log:   log,
	}, nil
}

// Record persists an audit log entry. Repository failures are logged but do
// not bubble up to callers so the primary mutation flow is never interrupted.
func (s *auditLogService) Record(ctx context.Context, record AuditLogRecord) {
	if s.repo == nil {
		return
	}

	entry := domain.AuditLogEntry{
		ID:         auditEntryIDPrefix + s.newID(),
		Actor:      sanitizeAuditText(record.Actor, 128),
		Action:     sanitizeAuditText(record.Action, 128),
		TargetRef:  sanitizeAuditText(record.TargetRef, 256),
		OccurredAt: s.clock(),
	}
	if entry.Actor == "" {
		entry.Actor = "unknown"
	}
	if entry.Action == "" {
		return
	}
	if len(record.Detail) > 0 {
		entry.Detail = sanitizeAuditDetail(record.Detail)
	}

	if err := s.repo.Append(ctx, entry); err != nil {
		s.log.Warnf("audit log append failed: %v", err)
	}
}

// List delegates to the repository to retrieve paginated audit logs.
func (s *auditLogService) List(ctx context.Context, filter AuditLogFilter) (domain.CursorPage[AuditLogEntry], error) {
	if s.repo == nil {
		return domain.CursorPage[AuditLogEntry]{}, fmt.Errorf("audit log service: repository is required")
	}
	page, err := s.repo.List(ctx, repositories.AuditLogFilter{
		TargetRef:  strings.TrimSpace(filter.TargetRef),
		Actor:      strings.TrimSpace(filter.Actor),
		Action:     strings.TrimSpace(filter.Action),
		DateRange:  domain.RangeQuery[time.Time]{From: filter.From, To: filter.To},
		Pagination: domain.Pagination{PageSize: filter.Pagination.PageSize, PageToken: filter.Pagination.PageToken},
	})
	if err != nil {
		return domain.CursorPage[AuditLogEntry]{}, err
	}
	return domain.CursorPage[AuditLogEntry]{
		Items:         page.Items,
		NextPageToken: page.NextPageToken,
	}, nil
}

type noopAuditLogger struct{}

func (noopAuditLogger) Warnf(string, ...any) {}

func sanitizeAuditText(input string, limit int) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return ' '
		}
		return r
	}, trimmed)
	if limit > 0 && len(cleaned) > limit {
		cleaned = cleaned[:limit]
	}
	return strings.TrimSpace(cleaned)
}

func sanitizeAuditDetail(detail map[string]any) map[string]any {
	result := make(map[string]any, len(detail))
	for key, value := range detail {
		cleanKey := sanitizeAuditText(key, 64)
		if cleanKey == "" {
			continue
		}
		switch v := value.(type) {
		case string:
			result[cleanKey] = sanitizeAuditText(v, 512)
		case nil:
			continue
		default:
			result[cleanKey] = v
		}
	}
	return result
}
