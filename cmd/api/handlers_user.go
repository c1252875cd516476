package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Kelvyn2012/e-commerce-API/internal/auth"
	"github.com/Kelvyn2012/e-commerce-API/internal/user"
)

type updateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type changePasswordRequest struct {
	OldPassword        string `json:"old_password"`
	NewPassword        string `json:"new_password"`
	NewPasswordConfirm string `json:"new_password_confirm"`
}

// canAccessUser: users manage their own record, staff manage anyone.
func canAccessUser(c *gin.Context, targetID string) bool {
	id, ok := auth.FromContext(c)
	return ok && (id.Staff || id.UserID == targetID)
}

func listUsersHandler(repo user.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		out, err := repo.List(c.Request.Context(), limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list error"})
			return
		}
		if out == nil {
			out = []user.User{}
		}
		c.JSON(http.StatusOK, gin.H{"items": out, "limit": limit, "offset": offset})
	}
}

func getUserHandler(repo user.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		targetID := c.Param("id")
		if !canAccessUser(c, targetID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		u, err := repo.GetByID(c.Request.Context(), targetID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

func updateUserHandler(repo user.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		targetID := c.Param("id")
		if !canAccessUser(c, targetID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		var req updateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		req.Username = strings.TrimSpace(req.Username)
		req.Email = strings.ToLower(strings.TrimSpace(req.Email))
		if req.Username == "" && req.Email == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
			return
		}
		if req.Username != "" && len(req.Username) < 3 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username must be at least 3 characters"})
			return
		}
		if req.Email != "" && !strings.Contains(req.Email, "@") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "a valid email is required"})
			return
		}

		u := &user.User{ID: targetID, Username: req.Username, Email: req.Email}
		if err := repo.Update(c.Request.Context(), u); err != nil {
			switch {
			case errors.Is(err, user.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			case errors.Is(err, user.ErrAlreadyExist):
				c.JSON(http.StatusConflict, gin.H{"error": "username or email already taken"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "update error"})
			}
			return
		}
		updated, err := repo.GetByID(c.Request.Context(), targetID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update error"})
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

func changePasswordHandler(repo user.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		targetID := c.Param("id")
		if !canAccessUser(c, targetID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		var req changePasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		switch {
		case len(req.NewPassword) < 8:
			c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 8 characters"})
			return
		case req.NewPassword != req.NewPasswordConfirm:
			c.JSON(http.StatusBadRequest, gin.H{"error": "passwords do not match"})
			return
		case req.NewPassword == req.OldPassword:
			c.JSON(http.StatusBadRequest, gin.H{"error": "new password must differ from the old one"})
			return
		}

		u, err := repo.GetByID(c.Request.Context(), targetID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		if !auth.CheckPassword(u.PasswordHash, req.OldPassword) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "old password is incorrect"})
			return
		}
		hash, err := auth.HashPassword(req.NewPassword)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "change password error"})
			return
		}
		if err := repo.UpdatePassword(c.Request.Context(), targetID, hash); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "change password error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
	}
}

func deleteUserHandler(repo user.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		targetID := c.Param("id")
		if !canAccessUser(c, targetID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		ok, err := repo.Delete(c.Request.Context(), targetID)
		if err != nil {
			if errors.Is(err, user.ErrInUse) {
				c.JSON(http.StatusConflict, gin.H{"error": "user owns products with existing orders"})
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
