package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Kelvyn2012/e-commerce-API/internal/auth"
	"github.com/Kelvyn2012/e-commerce-API/internal/metrics"
	"github.com/Kelvyn2012/e-commerce-API/internal/order"
)

// CreateOrderItem is one cart line of an order payload.
// swagger:model CreateOrderItem
type CreateOrderItem struct {
	Product  string `json:"product" example:"4e7d4e5c-5cb9-4a3f-9f21-7e1a4f9f2b2a"`
	Quantity int    `json:"quantity" example:"2"`
}

// CreateOrderRequest is the order creation payload.
// swagger:model CreateOrderRequest
type CreateOrderRequest struct {
	CustomerEmail string            `json:"customer_email" example:"buyer@example.com"`
	Items         []CreateOrderItem `json:"items"`
}

// UpdateOrderRequest only supports the customer email; items are
// immutable after creation.
type UpdateOrderRequest struct {
	CustomerEmail string            `json:"customer_email"`
	Items         []CreateOrderItem `json:"items"`
}

func actorFrom(c *gin.Context) (order.Actor, bool) {
	id, ok := auth.FromContext(c)
	if !ok {
		return order.Actor{}, false
	}
	return order.Actor{Email: id.Email, Staff: id.Staff}, true
}

// orderError maps the order error taxonomy onto HTTP statuses.
func orderError(c *gin.Context, err error) {
	var verr *order.ValidationError
	var stockErr *order.InsufficientStockError
	var trErr *order.InvalidTransitionError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Reason})
	case errors.As(err, &stockErr):
		metrics.StockConflicts.Inc()
		c.JSON(http.StatusConflict, gin.H{
			"error":     "insufficient stock",
			"product":   stockErr.ProductName,
			"requested": stockErr.Requested,
			"available": stockErr.Available,
		})
	case errors.As(err, &trErr):
		c.JSON(http.StatusConflict, gin.H{"error": trErr.Error()})
	case errors.Is(err, order.ErrItemsImmutable):
		c.JSON(http.StatusBadRequest, gin.H{"error": order.ErrItemsImmutable.Error()})
	case errors.Is(err, order.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, order.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func createOrderHandler(svc order.API) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		lines := make([]order.CartLine, 0, len(req.Items))
		for _, it := range req.Items {
			lines = append(lines, order.CartLine{ProductID: it.Product, Quantity: it.Quantity})
		}
		o, err := svc.Create(c.Request.Context(), req.CustomerEmail, lines)
		if err != nil {
			orderError(c, err)
			return
		}
		metrics.OrdersCreated.Inc()
		c.JSON(http.StatusCreated, gin.H{"order": o, "message": "Order created successfully"})
	}
}

func getOrderHandler(svc order.API) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}
		o, err := svc.Get(c.Request.Context(), c.Param("id"), actor)
		if err != nil {
			orderError(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

func listOrdersHandler(svc order.API) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		status := c.Query("status")
		if status != "" && !order.ValidStatus(status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
			return
		}
		out, err := svc.List(c.Request.Context(), order.ListQuery{
			Status: status,
			Limit:  limit,
			Offset: offset,
		}, actor)
		if err != nil {
			orderError(c, err)
			return
		}
		if out == nil {
			out = []order.Order{}
		}
		c.JSON(http.StatusOK, gin.H{"items": out, "limit": limit, "offset": offset})
	}
}

func updateOrderHandler(svc order.API) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}
		var req UpdateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		if req.Items != nil {
			orderError(c, order.ErrItemsImmutable)
			return
		}
		o, err := svc.UpdateEmail(c.Request.Context(), c.Param("id"), actor, req.CustomerEmail)
		if err != nil {
			orderError(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

func cancelOrderHandler(svc order.API) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}
		o, err := svc.Cancel(c.Request.Context(), c.Param("id"), actor)
		if err != nil {
			orderError(c, err)
			return
		}
		metrics.OrdersCancelled.Inc()
		c.JSON(http.StatusOK, gin.H{"order": o, "message": "Order cancelled successfully and stock restored"})
	}
}

func completeOrderHandler(svc order.API) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}
		o, err := svc.Complete(c.Request.Context(), c.Param("id"), actor)
		if err != nil {
			orderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"order": o, "message": "Order marked as completed"})
	}
}

func markProcessingHandler(svc order.API) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}
		o, err := svc.MarkProcessing(c.Request.Context(), c.Param("id"), actor)
		if err != nil {
			orderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"order": o, "message": "Order marked as processing"})
	}
}

func orderStatsHandler(svc order.API) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}
		s, err := svc.Stats(c.Request.Context(), actor)
		if err != nil {
			orderError(c, err)
			return
		}
		c.JSON(http.StatusOK, s)
	}
}
