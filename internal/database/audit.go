package database

import "isp-crm/internal/models"

// CreateAuditLog records a mutation in the audit journal. Best effort: a
// failed audit write never fails the request that caused it.
func CreateAuditLog(userID uint, entity string, entityID uint, action, details, requestID string) {
	if DB == nil {
		return
	}
	record := models.AuditLog{
		UserID:    userID,
		Entity:    entity,
		EntityID:  entityID,
		Action:    action,
		Details:   details,
		RequestID: requestID,
	}
	_ = DB.Create(&record).Error
}
