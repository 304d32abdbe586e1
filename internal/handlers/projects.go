package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"isp-crm/internal/models"
	"isp-crm/internal/pipeline"

	"github.com/gin-gonic/gin"
)

type ProjectHandler struct {
	engine *pipeline.Engine
}

func NewProjectHandler(engine *pipeline.Engine) *ProjectHandler {
	return &ProjectHandler{engine: engine}
}

type projectRequest struct {
	Name       string               `json:"name" binding:"required"`
	LeadID     uint                 `json:"lead_id"`
	AssignedTo *uint                `json:"assigned_to"`
	Notes      string               `json:"notes"`
	Lines      []pipeline.LineInput `json:"lines" binding:"required"`
}

func (h *ProjectHandler) List(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}

	leadID, _ := strconv.Atoi(c.Query("lead_id"))
	page, perPage := pagination(c)
	projects, total, err := h.engine.ListProjects(user, pipeline.ListFilter{
		Search:  c.Query("search"),
		Status:  models.ProjectStatus(c.Query("status")),
		LeadID:  uint(leadID),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": projects, "meta": listMeta(page, perPage, total)})
}

func (h *ProjectHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	project, err := h.engine.GetProject(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"project":     project,
		"total_price": project.TotalPrice(),
	})
}

func (h *ProjectHandler) Create(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project payload"})
		return
	}

	project, err := h.engine.CreateProject(user, pipeline.CreateInput{
		Name:       req.Name,
		LeadID:     req.LeadID,
		AssignedTo: req.AssignedTo,
		Notes:      req.Notes,
		Lines:      req.Lines,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	audit(c, user, "project", project.ID, "create", fmt.Sprintf("project %q opened for lead %d", project.Name, project.LeadID))
	c.JSON(http.StatusCreated, project)
}

func (h *ProjectHandler) Update(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project payload"})
		return
	}

	project, err := h.engine.UpdateProject(user, id, pipeline.UpdateInput{
		Name:       req.Name,
		AssignedTo: req.AssignedTo,
		Notes:      req.Notes,
		Lines:      req.Lines,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	audit(c, user, "project", project.ID, "update", fmt.Sprintf("project %q updated", project.Name))
	c.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) Delete(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.engine.DeleteProject(user, id); err != nil {
		respondError(c, err)
		return
	}

	audit(c, user, "project", id, "delete", "project deleted")
	c.JSON(http.StatusOK, gin.H{"message": "project deleted"})
}

func (h *ProjectHandler) Approve(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	project, err := h.engine.Approve(user, id)
	if err != nil {
		respondError(c, err)
		return
	}

	audit(c, user, "project", project.ID, "approve", fmt.Sprintf("project %q approved", project.Name))
	c.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) Reject(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	project, err := h.engine.Reject(user, id)
	if err != nil {
		respondError(c, err)
		return
	}

	audit(c, user, "project", project.ID, "reject", fmt.Sprintf("project %q rejected", project.Name))
	c.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) Convert(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	customer, err := h.engine.Convert(user, id)
	if err != nil {
		respondError(c, err)
		return
	}

	audit(c, user, "project", id, "convert", fmt.Sprintf("project %d converted to customer %s", id, customer.AccountCode))
	c.JSON(http.StatusCreated, customer)
}
