package handlers

import (
	"fmt"
	"net/http"

	"isp-crm/internal/catalog"
	"isp-crm/internal/models"

	"github.com/gin-gonic/gin"
)

type ProductHandler struct {
	store *catalog.Store
}

func NewProductHandler(store *catalog.Store) *ProductHandler {
	return &ProductHandler{store: store}
}

type productRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Speed       string  `json:"speed"`
	Type        string  `json:"type" binding:"required"`
	IsActive    *bool   `json:"is_active"`
}

func (r productRequest) toInput() catalog.ProductInput {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return catalog.ProductInput{
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Speed:       r.Speed,
		Type:        models.ProductType(r.Type),
		IsActive:    active,
	}
}

func (h *ProductHandler) List(c *gin.Context) {
	products, err := h.store.List(catalog.ListFilter{
		Search: c.Query("search"),
		Type:   models.ProductType(c.Query("type")),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": products})
}

func (h *ProductHandler) ListActive(c *gin.Context) {
	products, err := h.store.ListActive()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": products})
}

func (h *ProductHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	product, err := h.store.Get(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) Create(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product payload"})
		return
	}

	product, err := h.store.Create(user, req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}

	audit(c, user, "product", product.ID, "create", fmt.Sprintf("product %q created", product.Name))
	c.JSON(http.StatusCreated, product)
}

func (h *ProductHandler) Update(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product payload"})
		return
	}

	product, err := h.store.Update(user, id, req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}

	audit(c, user, "product", product.ID, "update", fmt.Sprintf("product %q updated", product.Name))
	c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) Delete(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.store.Delete(user, id); err != nil {
		respondError(c, err)
		return
	}

	audit(c, user, "product", id, "delete", "product deleted")
	c.JSON(http.StatusOK, gin.H{"message": "product deleted"})
}
