package handlers

import (
	"net/http"

	"isp-crm/internal/database"
	"isp-crm/internal/models"

	"github.com/gin-gonic/gin"
)

func ListAuditLogs(c *gin.Context) {
	q := database.DB.Model(&models.AuditLog{}).Preload("User")

	if entity := c.Query("entity"); entity != "" {
		q = q.Where("entity = ?", entity)
	}
	if action := c.Query("action"); action != "" {
		q = q.Where("action = ?", action)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}

	page, perPage := pagination(c)
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}

	var logs []models.AuditLog
	if err := q.Order("created_at desc").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&logs).Error; err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": logs, "meta": listMeta(page, perPage, total)})
}
