package handlers

import (
	"net/http"

	"isp-crm/internal/database"
	"isp-crm/internal/models"

	"github.com/gin-gonic/gin"
)

// Dashboard aggregates the pipeline overview. Sales users see their own slice.
func Dashboard(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}

	leadQ := database.DB.Model(&models.Lead{})
	projectQ := database.DB.Model(&models.Project{})
	if user.Role == models.RoleSales {
		leadQ = leadQ.Where("assigned_to = ?", user.ID)
		projectQ = projectQ.Where("assigned_to = ?", user.ID)
	}

	var totalLeads, totalProjects, totalCustomers, pendingApprovals int64
	if err := leadQ.Count(&totalLeads).Error; err != nil {
		respondError(c, err)
		return
	}
	if err := projectQ.Count(&totalProjects).Error; err != nil {
		respondError(c, err)
		return
	}
	if err := database.DB.Model(&models.Customer{}).Count(&totalCustomers).Error; err != nil {
		respondError(c, err)
		return
	}
	if err := database.DB.Model(&models.Project{}).
		Where("status = ?", models.ProjectPending).
		Count(&pendingApprovals).Error; err != nil {
		respondError(c, err)
		return
	}

	recentLeadQ := database.DB.Preload("Assignee").Order("created_at desc").Limit(5)
	recentProjectQ := database.DB.Preload("Lead").Preload("Assignee").Order("created_at desc").Limit(5)
	if user.Role == models.RoleSales {
		recentLeadQ = recentLeadQ.Where("assigned_to = ?", user.ID)
		recentProjectQ = recentProjectQ.Where("assigned_to = ?", user.ID)
	}

	var recentLeads []models.Lead
	if err := recentLeadQ.Find(&recentLeads).Error; err != nil {
		respondError(c, err)
		return
	}
	var recentProjects []models.Project
	if err := recentProjectQ.Find(&recentProjects).Error; err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_leads":       totalLeads,
		"total_projects":    totalProjects,
		"total_customers":   totalCustomers,
		"pending_approvals": pendingApprovals,
		"recent_leads":      recentLeads,
		"recent_projects":   recentProjects,
	})
}
