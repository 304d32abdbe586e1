package handlers

import (
	"fmt"
	"net/http"
	"time"

	"isp-crm/internal/accounts"
	"isp-crm/internal/models"

	"github.com/gin-gonic/gin"
)

type CustomerHandler struct {
	store *accounts.Store
}

func NewCustomerHandler(store *accounts.Store) *CustomerHandler {
	return &CustomerHandler{store: store}
}

const dateLayout = "2006-01-02"

type serviceRequest struct {
	ProductID uint    `json:"product_id" binding:"required"`
	Price     float64 `json:"price"`
	StartDate string  `json:"start_date" binding:"required"`
	EndDate   string  `json:"end_date"`
	Status    string  `json:"status"`
}

func (r serviceRequest) toInput() (accounts.ServiceInput, error) {
	start, err := time.Parse(dateLayout, r.StartDate)
	if err != nil {
		return accounts.ServiceInput{}, fmt.Errorf("invalid start_date %q", r.StartDate)
	}
	var end *time.Time
	if r.EndDate != "" {
		parsed, err := time.Parse(dateLayout, r.EndDate)
		if err != nil {
			return accounts.ServiceInput{}, fmt.Errorf("invalid end_date %q", r.EndDate)
		}
		end = &parsed
	}
	return accounts.ServiceInput{
		ProductID: r.ProductID,
		Price:     r.Price,
		StartDate: start,
		EndDate:   end,
		Status:    models.ServiceStatus(r.Status),
	}, nil
}

func (h *CustomerHandler) List(c *gin.Context) {
	if _, ok := actor(c); !ok {
		return
	}

	var active *bool
	switch c.Query("status") {
	case "active":
		v := true
		active = &v
	case "inactive":
		v := false
		active = &v
	}

	page, perPage := pagination(c)
	customers, counts, total, err := h.store.ListCustomers(accounts.ListFilter{
		Search:  c.Query("search"),
		Active:  active,
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	data := make([]gin.H, 0, len(customers))
	for _, cust := range customers {
		data = append(data, gin.H{
			"customer":       cust,
			"services_count": counts[cust.ID],
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": data, "meta": listMeta(page, perPage, total)})
}

func (h *CustomerHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	customer, err := h.store.GetCustomer(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

type customerRequest struct {
	Name        string `json:"name" binding:"required"`
	CompanyName string `json:"company_name"`
	Email       string `json:"email" binding:"required,email"`
	Phone       string `json:"phone" binding:"required"`
	Address     string `json:"address" binding:"required"`
	IsActive    *bool  `json:"is_active"`
}

func (h *CustomerHandler) Update(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req customerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer payload"})
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	customer, err := h.store.UpdateCustomer(user, id, accounts.CustomerInput{
		Name:        req.Name,
		CompanyName: req.CompanyName,
		Email:       req.Email,
		Phone:       req.Phone,
		Address:     req.Address,
		IsActive:    active,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	audit(c, user, "customer", customer.ID, "update", fmt.Sprintf("customer %s updated", customer.AccountCode))
	c.JSON(http.StatusOK, customer)
}

func (h *CustomerHandler) AddService(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req serviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid service payload"})
		return
	}
	in, err := req.toInput()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	service, err := h.store.AddService(user, id, in)
	if err != nil {
		respondError(c, err)
		return
	}

	audit(c, user, "customer", id, "service_add", fmt.Sprintf("service for product %d added", service.ProductID))
	c.JSON(http.StatusCreated, service)
}

func (h *CustomerHandler) UpdateService(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	serviceID, ok := parseID(c, "serviceID")
	if !ok {
		return
	}
	var req serviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid service payload"})
		return
	}
	in, err := req.toInput()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	service, err := h.store.UpdateService(user, id, serviceID, in)
	if err != nil {
		respondError(c, err)
		return
	}

	audit(c, user, "customer", id, "service_update", fmt.Sprintf("service %d updated (status=%s)", service.ID, service.Status))
	c.JSON(http.StatusOK, service)
}

func (h *CustomerHandler) RemoveService(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	serviceID, ok := parseID(c, "serviceID")
	if !ok {
		return
	}
	if err := h.store.RemoveService(user, id, serviceID); err != nil {
		respondError(c, err)
		return
	}

	audit(c, user, "customer", id, "service_remove", fmt.Sprintf("service %d removed", serviceID))
	c.JSON(http.StatusOK, gin.H{"message": "service removed"})
}

type syncServicesRequest struct {
	Services []serviceRequest `json:"services"`
}

func (h *CustomerHandler) SyncServices(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req syncServicesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid services payload"})
		return
	}

	desired := make([]accounts.ServiceInput, 0, len(req.Services))
	for _, svc := range req.Services {
		in, err := svc.toInput()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		desired = append(desired, in)
	}

	customer, err := h.store.SyncServices(user, id, desired)
	if err != nil {
		respondError(c, err)
		return
	}

	audit(c, user, "customer", id, "service_sync", fmt.Sprintf("service set replaced (%d services)", len(desired)))
	c.JSON(http.StatusOK, customer)
}
