package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Kelvyn2012/e-commerce-API/internal/auth"
	"github.com/Kelvyn2012/e-commerce-API/internal/category"
	"github.com/Kelvyn2012/e-commerce-API/internal/product"
)

// CreateProductRequest is the product creation payload.
// swagger:model CreateProductRequest
type CreateProductRequest struct {
	Name          string `json:"name" example:"Mechanical Keyboard"`
	Description   string `json:"description" example:"RGB 60%"`
	Price         string `json:"price" example:"199.90"`
	StockQuantity int    `json:"stock_quantity" example:"10"`
	ImageURL      string `json:"image_url"`
	CategoryID    string `json:"category_id"`
}

// UpdateProductRequest is the partial update payload; empty fields keep
// their current value, price only changes when supplied.
type UpdateProductRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Price         string `json:"price"`
	StockQuantity *int   `json:"stock_quantity"`
	ImageURL      string `json:"image_url"`
}

func validPrice(s string) bool {
	d, err := decimal.NewFromString(s)
	return err == nil && d.GreaterThan(decimal.Zero)
}

func listProductsHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		q := product.Query{
			Q:            c.Query("q"),
			CategorySlug: c.Query("category"),
			MinPrice:     c.Query("min_price"),
			MaxPrice:     c.Query("max_price"),
			OrderBy:      c.Query("ordering"),
			Limit:        limit,
			Offset:       offset,
		}
		for _, p := range []string{q.MinPrice, q.MaxPrice} {
			if p != "" && !validPrice(p) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "price filters must be positive decimals"})
				return
			}
		}
		items, err := repo.List(c.Request.Context(), q)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list error"})
			return
		}
		if items == nil {
			items = []product.Product{}
		}
		c.JSON(http.StatusOK, product.ListResponse{Q: q.Q, Limit: limit, Offset: offset, Items: items})
	}
}

func lowStockHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		threshold, err := strconv.Atoi(c.DefaultQuery("threshold", "10"))
		if err != nil || threshold < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "threshold must be a non-negative number"})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		items, err := repo.LowStock(c.Request.Context(), threshold, limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list error"})
			return
		}
		if items == nil {
			items = []product.Product{}
		}
		c.JSON(http.StatusOK, gin.H{"threshold": threshold, "items": items, "limit": limit, "offset": offset})
	}
}

func outOfStockHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		items, err := repo.OutOfStock(c.Request.Context(), limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list error"})
			return
		}
		if items == nil {
			items = []product.Product{}
		}
		c.JSON(http.StatusOK, gin.H{"items": items, "limit": limit, "offset": offset})
	}
}

func getProductHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// checkAvailabilityHandler is advisory: it reads stock without a lock,
// so the answer can be stale by order time. The authoritative check
// happens under the row lock inside the order transaction.
func checkAvailabilityHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Quantity int `json:"quantity"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be a valid number"})
			return
		}
		if req.Quantity <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be greater than 0"})
			return
		}
		p, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		available := p.StockQuantity >= req.Quantity
		msg := "Available"
		if !available {
			msg = "Insufficient stock"
		}
		c.JSON(http.StatusOK, gin.H{
			"product":            p.Name,
			"requested_quantity": req.Quantity,
			"available_stock":    p.StockQuantity,
			"is_available":       available,
			"message":            msg,
		})
	}
}

func createProductHandler(repo product.Repository, categories category.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := auth.FromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}
		var req CreateProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		if req.Name == "" || req.CategoryID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name and category_id are required"})
			return
		}
		if !validPrice(req.Price) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "price must be greater than 0"})
			return
		}
		if req.StockQuantity < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "stock quantity cannot be negative"})
			return
		}
		if _, err := categories.GetByID(c.Request.Context(), req.CategoryID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category"})
			return
		}
		p := &product.Product{
			ID:            uuid.NewString(),
			Name:          req.Name,
			Description:   req.Description,
			Price:         req.Price,
			StockQuantity: req.StockQuantity,
			ImageURL:      req.ImageURL,
			CategoryID:    req.CategoryID,
			OwnerID:       id.UserID,
		}
		if err := repo.Create(c.Request.Context(), p); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create error"})
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}

func updateProductHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := auth.FromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}
		cur, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		if cur.OwnerID != id.UserID {
			c.JSON(http.StatusForbidden, gin.H{"error": "only the owner may modify this product"})
			return
		}
		var req UpdateProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		updatePrice := req.Price != ""
		if updatePrice && !validPrice(req.Price) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "price must be greater than 0"})
			return
		}
		stock := cur.StockQuantity
		if req.StockQuantity != nil {
			stock = *req.StockQuantity
		}
		if stock < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "stock quantity cannot be negative"})
			return
		}
		p := &product.Product{
			ID:            cur.ID,
			Name:          req.Name,
			Description:   req.Description,
			Price:         req.Price,
			StockQuantity: stock,
			ImageURL:      req.ImageURL,
		}
		if err := repo.Update(c.Request.Context(), p, updatePrice); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update error"})
			return
		}
		out, err := repo.GetByID(c.Request.Context(), cur.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "refetch error"})
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func deleteProductHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := auth.FromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}
		cur, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		if cur.OwnerID != id.UserID {
			c.JSON(http.StatusForbidden, gin.H{"error": "only the owner may delete this product"})
			return
		}
		ok, err = repo.Delete(c.Request.Context(), cur.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "delete error"})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}
