package service

import (
	"fmt"
	"time"

	"github.com/gameshub/uvlhub/database/model"
	"github.com/gameshub/uvlhub/logger"

	"github.com/goccy/go-json"
	"gorm.io/gorm"
)

// AuditLogService records state-changing requests made by signed-in users.
type AuditLogService struct {
	db *gorm.DB
}

func NewAuditLogService(db *gorm.DB) *AuditLogService {
	return &AuditLogService{db: db}
}

// AuditEntry describes one action. Details is stored as JSON.
type AuditEntry struct {
	User       *model.User
	Action     string
	Resource   string
	ResourceId int
	IP         string
	UserAgent  string
	Details    map[string]any
}

func (s *AuditLogService) LogAction(entry AuditEntry) error {
	detailsJSON := ""
	if entry.Details != nil {
		data, err := json.Marshal(entry.Details)
		if err != nil {
			logger.Warning("Failed to marshal audit log details:", err)
		} else {
			detailsJSON = string(data)
		}
	}

	log := model.AuditLog{
		Action:     entry.Action,
		Resource:   entry.Resource,
		ResourceId: entry.ResourceId,
		IP:         entry.IP,
		UserAgent:  entry.UserAgent,
		Details:    detailsJSON,
		Timestamp:  time.Now(),
	}
	if entry.User != nil {
		log.UserId = entry.User.Id
		log.Email = entry.User.Email
	}
	if err := s.db.Create(&log).Error; err != nil {
		logger.Warningf("Failed to create audit log: user=%d, action=%s, resource=%s, error=%v", log.UserId, log.Action, log.Resource, err)
		return err
	}
	return nil
}

// GetRecent returns the newest entries first.
func (s *AuditLogService) GetRecent(limit int) ([]model.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []model.AuditLog
	err := s.db.Order("timestamp DESC").Order("id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

// CleanOldLogs removes entries older than days before now.
func (s *AuditLogService) CleanOldLogs(days int, now time.Time) (int64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("days must be greater than 0")
	}
	cutoff := now.AddDate(0, 0, -days)
	result := s.db.Where("timestamp < ?", cutoff).Delete(&model.AuditLog{})
	if result.Error != nil {
		return 0, result.Error
	}
	logger.Infof("Cleaned %d old audit logs (older than %d days)", result.RowsAffected, days)
	return result.RowsAffected, nil
}
