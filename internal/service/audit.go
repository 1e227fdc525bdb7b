package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-noticeboard/internal/models"
)

type auditLogger interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// emitAudit records an audit entry. Failures are logged and never fail the caller.
func emitAudit(ctx context.Context, audit auditLogger, logger *zap.Logger, log *models.AuditLog) {
	if audit == nil || log == nil {
		return
	}
	if log.IPAddress == "" {
		log.IPAddress = "system"
	}
	if err := audit.Create(ctx, log); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", string(log.Action)), zap.Error(err))
	}
}
