// Dashboard HTTP handlers.
//
// This file exposes the restaurant-facing REST endpoints:
//   - GET   /dashboard/orders              (list, paginated, status filter)
//   - PATCH /dashboard/orders/{id}/status  (update order status)
//
// All routes sit behind DashboardAuth, so every request is already scoped to
// one restaurant. Handlers are transport-thin: they validate input, call
// application services, and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/swaadx/go-order-backend/internal/domain"
	"github.com/swaadx/go-order-backend/internal/http/middleware"
	"github.com/swaadx/go-order-backend/internal/services"
	"github.com/swaadx/go-order-backend/internal/utils"
)

// OrderBoard defines the dashboard operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type OrderBoard interface {
	// ListPage returns a page of the restaurant's orders and the total count,
	// optionally filtered by status.
	ListPage(ctx context.Context, restaurantID, status string, page, pageSize int) ([]domain.Order, int64, error)
	// UpdateStatus moves one of the restaurant's orders to a new status.
	UpdateStatus(ctx context.Context, restaurantID, orderID, status string) error
}

// DashboardHandlers groups the restaurant dashboard endpoints.
type DashboardHandlers struct {
	board OrderBoard
}

// NewDashboard constructs DashboardHandlers bound to the given service.
func NewDashboard(board OrderBoard) *DashboardHandlers {
	return &DashboardHandlers{board: board}
}

//
// DTOs
//

// UpdateOrderStatusRequest is the JSON payload for updating an order status.
type UpdateOrderStatusRequest struct {
	// Status is the new order status (NEW, PREPARING, READY, DELIVERED, CANCELLED).
	Status string `json:"status" binding:"required" example:"PREPARING"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListOrdersResponse wraps a page of orders and pagination information.
type ListOrdersResponse struct {
	Orders     []domain.Order `json:"orders"`
	Pagination Pagination     `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// restaurantID returns the restaurant id stored by DashboardAuth. Routes in
// this file are always registered behind that middleware, so an empty value
// indicates a wiring bug rather than a client error.
func restaurantID(c *gin.Context) (string, bool) {
	return middleware.RestaurantID(c)
}

//
// Handlers
//

// ListOrders godoc
// @ID          listOrders
// @Summary     List orders (paginated)
// @Description Returns a page of the authenticated restaurant's orders, newest first. Supports filtering by status.
// @Tags        Dashboard
// @Produce     json
//
// @Param       X-Dashboard-Token  header  string  true   "Restaurant dashboard token"
// @Param       status             query   string  false  "Filter by status"  Enums(NEW, PREPARING, READY, DELIVERED, CANCELLED)
// @Param       page               query   int     false  "Page number"       minimum(1) default(1)
// @Param       page_size          query   int     false  "Items per page"    minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListOrdersResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid status filter"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing token"
// @Failure     403  {object}  handlers.ErrorResponse  "Invalid token"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /dashboard/orders [get]
func (h *DashboardHandlers) ListOrders(c *gin.Context) {
	rid, okAuth := restaurantID(c)
	if !okAuth {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	status := strings.ToUpper(strings.TrimSpace(c.Query("status")))
	page, pageSize := clampPagination(c)

	items, total, err := h.board.ListPage(c.Request.Context(), rid, status, page, pageSize)
	if err != nil {
		if errors.Is(err, services.ErrInvalidStatus) {
			fail(c, http.StatusBadRequest, ErrCodeInvalidStatus, "unknown status filter")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	resp := ListOrdersResponse{
		Orders: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	}
	ok(c, http.StatusOK, resp)
}

// UpdateOrderStatus godoc
// @ID          updateOrderStatus
// @Summary     Update an order's status
// @Description Moves one of the authenticated restaurant's orders to a new status. Orders belonging to other restaurants behave as not found.
// @Tags        Dashboard
// @Accept      json
// @Produce     json
//
// @Param       X-Dashboard-Token  header  string  true  "Restaurant dashboard token"
// @Param       id                 path    string  true  "Order ID (UUID)"  format(uuid)
// @Param       body               body    handlers.UpdateOrderStatusRequest  true  "New status"
//
// @Success     200  {object}  map[string]string
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Order not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /dashboard/orders/{id}/status [patch]
func (h *DashboardHandlers) UpdateOrderStatus(c *gin.Context) {
	rid, okAuth := restaurantID(c)
	if !okAuth {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	orderID := c.Param("id")
	if _, err := uuid.Parse(orderID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "order id must be a UUID")
		return
	}

	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Status) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status required")
		return
	}
	status := strings.ToUpper(strings.TrimSpace(req.Status))

	if err := h.board.UpdateStatus(c.Request.Context(), rid, orderID, status); err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidStatus):
			fail(c, http.StatusBadRequest, ErrCodeInvalidStatus, "unknown status")
		case errors.Is(err, services.ErrOrderNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "order not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, err.Error())
		}
		return
	}

	ok(c, http.StatusOK, gin.H{"id": orderID, "status": status})
}
