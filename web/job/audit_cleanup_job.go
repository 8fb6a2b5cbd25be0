package job

import (
	"time"

	"github.com/gameshub/uvlhub/config"
	"github.com/gameshub/uvlhub/logger"
	"github.com/gameshub/uvlhub/web/service"
)

// AuditCleanupJob removes audit entries older than the retention period.
type AuditCleanupJob struct {
	auditService *service.AuditLogService
	now          func() time.Time
}

func NewAuditCleanupJob(auditService *service.AuditLogService) *AuditCleanupJob {
	return &AuditCleanupJob{
		auditService: auditService,
		now:          time.Now,
	}
}

// Run cleans up old audit logs
func (j *AuditCleanupJob) Run() {
	logger.Debug("Audit cleanup job started")

	retentionDays := config.GetAuditRetentionDays()
	if retentionDays <= 0 {
		logger.Debug("Audit cleanup disabled")
		return
	}

	n, err := j.auditService.CleanOldLogs(retentionDays, j.now())
	if err != nil {
		logger.Warning("Failed to clean old audit logs:", err)
	} else {
		logger.Debugf("Audit cleanup completed (retention: %d days, removed: %d)", retentionDays, n)
	}
}
