package handlers

import (
	"fmt"
	"net/http"

	"isp-crm/internal/leads"
	"isp-crm/internal/models"

	"github.com/gin-gonic/gin"
)

type LeadHandler struct {
	registry *leads.Registry
}

func NewLeadHandler(registry *leads.Registry) *LeadHandler {
	return &LeadHandler{registry: registry}
}

type leadRequest struct {
	Name        string `json:"name" binding:"required"`
	CompanyName string `json:"company_name"`
	Email       string `json:"email" binding:"required,email"`
	Phone       string `json:"phone" binding:"required"`
	Address     string `json:"address" binding:"required"`
	Notes       string `json:"notes"`
	Status      string `json:"status"`
	AssignedTo  *uint  `json:"assigned_to"`
}

func (h *LeadHandler) List(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}

	page, perPage := pagination(c)
	list, total, err := h.registry.List(user, leads.ListFilter{
		Search:  c.Query("search"),
		Status:  models.LeadStatus(c.Query("status")),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": list, "meta": listMeta(page, perPage, total)})
}

func (h *LeadHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	lead, err := h.registry.Get(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

func (h *LeadHandler) Create(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	var req leadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lead payload"})
		return
	}

	lead, err := h.registry.Create(user, leads.CreateInput{
		Name:        req.Name,
		CompanyName: req.CompanyName,
		Email:       req.Email,
		Phone:       req.Phone,
		Address:     req.Address,
		Notes:       req.Notes,
		AssignedTo:  req.AssignedTo,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	audit(c, user, "lead", lead.ID, "create", fmt.Sprintf("lead %q created", lead.Name))
	c.JSON(http.StatusCreated, lead)
}

func (h *LeadHandler) Update(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req leadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lead payload"})
		return
	}

	lead, err := h.registry.Update(user, id, leads.UpdateInput{
		Name:        req.Name,
		CompanyName: req.CompanyName,
		Email:       req.Email,
		Phone:       req.Phone,
		Address:     req.Address,
		Notes:       req.Notes,
		Status:      models.LeadStatus(req.Status),
		AssignedTo:  req.AssignedTo,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	audit(c, user, "lead", lead.ID, "update", fmt.Sprintf("lead %q updated (status=%s)", lead.Name, lead.Status))
	c.JSON(http.StatusOK, lead)
}

func (h *LeadHandler) Delete(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.registry.Delete(user, id); err != nil {
		respondError(c, err)
		return
	}

	audit(c, user, "lead", id, "delete", "lead deleted")
	c.JSON(http.StatusOK, gin.H{"message": "lead deleted"})
}
