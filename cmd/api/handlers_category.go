package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Kelvyn2012/e-commerce-API/internal/category"
)

type categoryRequest struct {
	Name string `json:"name"`
}

func listCategoriesHandler(repo category.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := repo.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list error"})
			return
		}
		if out == nil {
			out = []category.Category{}
		}
		c.JSON(http.StatusOK, out)
	}
}

func getCategoryHandler(repo category.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		cat, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusOK, cat)
	}
}

func createCategoryHandler(repo category.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req categoryRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}
		cat := &category.Category{
			ID:   uuid.NewString(),
			Name: req.Name,
			Slug: category.Slugify(req.Name),
		}
		if cat.Slug == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name must contain letters or digits"})
			return
		}
		if err := repo.Create(c.Request.Context(), cat); err != nil {
			if errors.Is(err, category.ErrAlreadyExist) {
				c.JSON(http.StatusConflict, gin.H{"error": "category already exists"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create error"})
			return
		}
		c.JSON(http.StatusCreated, cat)
	}
}

func updateCategoryHandler(repo category.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req categoryRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}
		cat := &category.Category{
			ID:   c.Param("id"),
			Name: req.Name,
			Slug: category.Slugify(req.Name),
		}
		if err := repo.Update(c.Request.Context(), cat); err != nil {
			switch {
			case errors.Is(err, category.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			case errors.Is(err, category.ErrAlreadyExist):
				c.JSON(http.StatusConflict, gin.H{"error": "category already exists"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "update error"})
			}
			return
		}
		c.JSON(http.StatusOK, cat)
	}
}

func deleteCategoryHandler(repo category.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := repo.Delete(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, category.ErrInUse) {
				c.JSON(http.StatusConflict, gin.H{"error": "category still has products"})
				return
			}
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
