package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/dto"
	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/pkg/database"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
	"github.com/noah-isme/academic-records-api/pkg/middleware/requestid"
)

type auditStore interface {
	Create(ctx context.Context, q database.Querier, log *models.AuditLog) error
	List(ctx context.Context, q database.Querier, filter models.AuditFilter) ([]models.AuditLog, int, error)
}

// AuditTrail records workflow transitions inside the mutating transaction.
type AuditTrail struct {
	repo   auditStore
	logger *zap.Logger
}

// NewAuditTrail constructs the audit trail.
func NewAuditTrail(repo auditStore, logger *zap.Logger) *AuditTrail {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditTrail{repo: repo, logger: logger}
}

// Log appends an entry through q. A failure is returned so the caller's
// transaction rolls back; a transition without its audit entry never commits.
func (a *AuditTrail) Log(ctx context.Context, q database.Querier, actorID, action, entityType, entityID, description string) error {
	if err := requireActor(actorID); err != nil {
		return err
	}
	entry := &models.AuditLog{
		ActorID:     actorID,
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		Description: description,
	}
	if reqID := requestid.FromContext(ctx); reqID != "" {
		entry.RequestID = &reqID
	}
	if err := a.repo.Create(ctx, q, entry); err != nil {
		a.logger.Error("failed to record audit log",
			zap.String("action", action), zap.String("entity_type", entityType), zap.String("entity_id", entityID), zap.Error(err))
		return appErrors.Storage(err, "failed to record audit log")
	}
	return nil
}

// List returns audit entries for admin review.
func (a *AuditTrail) List(ctx context.Context, query dto.AuditQuery) ([]models.AuditLog, *models.Pagination, error) {
	filter := models.AuditFilter{
		EntityType: strings.TrimSpace(query.EntityType),
		EntityID:   strings.TrimSpace(query.EntityID),
		ActorID:    strings.TrimSpace(query.ActorID),
		Page:       query.Page,
		PageSize:   query.PageSize,
	}
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)
	logs, total, err := a.repo.List(ctx, nil, filter)
	if err != nil {
		return nil, nil, appErrors.Storage(err, "failed to list audit logs")
	}
	return logs, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}
