package audit

import (
	"context"

	"github.com/npcchatter/backend/internal/domain/models"
	"github.com/npcchatter/backend/internal/domain/service"
	"github.com/npcchatter/backend/pkg/logger"
)

// LogAuditService writes audit events to the structured log. Used when Kafka is disabled.
type LogAuditService struct {
	logger logger.Logger
}

func NewLogAuditService(log logger.Logger) *LogAuditService {
	return &LogAuditService{logger: log.WithComponent("Audit")}
}

func (s *LogAuditService) LogEvent(ctx context.Context, event models.AuditEvent) error {
	s.logger.Info(ctx, "Realtime token decision",
		logger.String("event_id", event.EventID),
		logger.String("subject_id", event.SubjectID),
		logger.String("channel", event.Channel),
		logger.String("outcome", string(event.Outcome)),
		logger.String("code", event.Code),
		logger.String("client_ip", event.ClientIP),
	)
	return nil
}

var _ service.AuditService = (*LogAuditService)(nil)
