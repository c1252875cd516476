package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/Kelvyn2012/e-commerce-API/docs"
	"github.com/Kelvyn2012/e-commerce-API/internal/auth"
	"github.com/Kelvyn2012/e-commerce-API/internal/category"
	"github.com/Kelvyn2012/e-commerce-API/internal/config"
	"github.com/Kelvyn2012/e-commerce-API/internal/httpx"
	"github.com/Kelvyn2012/e-commerce-API/internal/metrics"
	"github.com/Kelvyn2012/e-commerce-API/internal/order"
	"github.com/Kelvyn2012/e-commerce-API/internal/product"
	"github.com/Kelvyn2012/e-commerce-API/internal/user"
)

// @title Storefront API
// @version 1.0
// @description Catalog, cart checkout and order lifecycle backend.
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("[main] pgxpool: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("[main] postgres ping: %v", err)
	}
	log.Printf("[main] connected to postgres")

	users := user.NewPGRepo(pool)
	categories := category.NewPGRepo(pool)
	products := product.NewPGRepo(pool)
	orders := order.NewPGRepo(pool)
	orderSvc := order.NewService(pool, orders, products)

	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.Logger(), metrics.Middleware())

	r.GET("/healthz", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api")

	// public surface
	api.POST("/auth/register", registerHandler(users))
	api.POST("/auth/login", loginHandler(users, cfg.JWTSecret, cfg.TokenTTL))
	api.GET("/categories", listCategoriesHandler(categories))
	api.GET("/categories/:id", getCategoryHandler(categories))
	api.GET("/products", listProductsHandler(products))
	api.GET("/products/low_stock", lowStockHandler(products))
	api.GET("/products/out_of_stock", outOfStockHandler(products))
	api.GET("/products/:id", getProductHandler(products))
	api.POST("/products/:id/check_availability", checkAvailabilityHandler(products))

	authed := api.Group("", auth.Required(cfg.JWTSecret))

	authed.POST("/categories", createCategoryHandler(categories))
	authed.PUT("/categories/:id", updateCategoryHandler(categories))
	authed.DELETE("/categories/:id", deleteCategoryHandler(categories))

	authed.POST("/products", createProductHandler(products, categories))
	authed.PUT("/products/:id", updateProductHandler(products))
	authed.DELETE("/products/:id", deleteProductHandler(products))

	authed.POST("/orders", createOrderHandler(orderSvc))
	authed.GET("/orders", listOrdersHandler(orderSvc))
	authed.GET("/orders/:id", getOrderHandler(orderSvc))
	authed.PUT("/orders/:id", updateOrderHandler(orderSvc))
	authed.POST("/orders/:id/cancel", cancelOrderHandler(orderSvc))

	authed.GET("/users/:id", getUserHandler(users))
	authed.PUT("/users/:id", updateUserHandler(users))
	authed.POST("/users/:id/change_password", changePasswordHandler(users))
	authed.DELETE("/users/:id", deleteUserHandler(users))

	staff := authed.Group("", auth.StaffOnly())
	staff.GET("/orders/statistics", orderStatsHandler(orderSvc))
	staff.POST("/orders/:id/mark_completed", completeOrderHandler(orderSvc))
	staff.POST("/orders/:id/mark_processing", markProcessingHandler(orderSvc))
	staff.GET("/users", listUsersHandler(users))

	log.Printf("[main] listening on %s", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("[main] server: %v", err)
	}
}
