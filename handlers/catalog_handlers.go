package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shopdemo/api/models"
	"shopdemo/api/store"
)

type GameStore interface {
	ListGames(ctx context.Context) ([]models.Game, error)
	GetGame(ctx context.Context, id int64) (*models.Game, error)
	CreateGame(ctx context.Context, req models.CreateGameRequest) (*models.Game, error)
	UpdateGame(ctx context.Context, id int64, req models.UpdateGameRequest) (*models.Game, error)
	DeleteGame(ctx context.Context, id int64) error
}

type OrderStore interface {
	ListOrders(ctx context.Context) ([]models.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error)
	UpdateOrder(ctx context.Context, id int64, req models.UpdateOrderRequest) (*models.Order, error)
}

type GameHandlers struct {
	store  GameStore
	logger *zap.Logger
}

func NewGameHandlers(s GameStore, logger *zap.Logger) *GameHandlers {
	return &GameHandlers{store: s, logger: logger}
}

func (h *GameHandlers) Register(r gin.IRouter) {
	g := r.Group("/games")
	g.GET("", h.ListGames)
	g.POST("", h.CreateGame)
	g.GET("/:id", h.GetGame)
	g.PUT("/:id", h.UpdateGame)
	g.DELETE("/:id", h.DeleteGame)
}

func (h *GameHandlers) ListGames(c *gin.Context) {
	games, err := h.store.ListGames(c.Request.Context())
	if err != nil {
		h.failed(c, "Error listing games", err)
		return
	}
	c.JSON(http.StatusOK, games)
}

func (h *GameHandlers) GetGame(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	game, err := h.store.GetGame(c.Request.Context(), id)
	if err != nil {
		h.failed(c, "Error getting game", err)
		return
	}
	c.JSON(http.StatusOK, game)
}

func (h *GameHandlers) CreateGame(c *gin.Context) {
	var req models.CreateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	game, err := h.store.CreateGame(c.Request.Context(), req)
	if err != nil {
		h.failed(c, "Error creating game", err)
		return
	}
	c.JSON(http.StatusCreated, game)
}

func (h *GameHandlers) UpdateGame(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req models.UpdateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	game, err := h.store.UpdateGame(c.Request.Context(), id, req)
	if err != nil {
		h.failed(c, "Error updating game", err)
		return
	}
	c.JSON(http.StatusOK, game)
}

func (h *GameHandlers) DeleteGame(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.store.DeleteGame(c.Request.Context(), id); err != nil {
		h.failed(c, "Error deleting game", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *GameHandlers) failed(c *gin.Context, msg string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusNotFound, "Game not found")
		return
	}
	h.logger.Error(msg, zap.Error(err))
	respondError(c, http.StatusInternalServerError, err.Error())
}

type OrderHandlers struct {
	store  OrderStore
	logger *zap.Logger
}

func NewOrderHandlers(s OrderStore, logger *zap.Logger) *OrderHandlers {
	return &OrderHandlers{store: s, logger: logger}
}

func (h *OrderHandlers) Register(r gin.IRouter) {
	g := r.Group("/orders")
	g.GET("", h.ListOrders)
	g.POST("", h.CreateOrder)
	g.GET("/:id", h.GetOrder)
	g.PUT("/:id", h.UpdateOrder)
	g.GET("/user/:userId", h.ListOrdersByUser)
}

func (h *OrderHandlers) ListOrders(c *gin.Context) {
	orders, err := h.store.ListOrders(c.Request.Context())
	if err != nil {
		h.failed(c, "Error listing orders", err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandlers) ListOrdersByUser(c *gin.Context) {
	orders, err := h.store.ListOrdersByUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.failed(c, "Error listing orders for user", err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandlers) GetOrder(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	order, err := h.store.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.failed(c, "Error getting order", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandlers) CreateOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.store.CreateOrder(c.Request.Context(), req)
	if err != nil {
		h.failed(c, "Error creating order", err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *OrderHandlers) UpdateOrder(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req models.UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.store.UpdateOrder(c.Request.Context(), id, req)
	if err != nil {
		h.failed(c, "Error updating order", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandlers) failed(c *gin.Context, msg string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusNotFound, "Order not found")
		return
	}
	h.logger.Error(msg, zap.Error(err))
	respondError(c, http.StatusInternalServerError, err.Error())
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}
