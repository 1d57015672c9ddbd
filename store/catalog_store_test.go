package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shopdemo/api/models"
)

func TestCatalogStoresIntegration(t *testing.T) {
	ctx := context.Background()
	db := startPostgres(ctx, t)

	games := NewGameStore(db, zap.NewNop())
	orders := NewOrderStore(db, zap.NewNop())
	require.NoError(t, games.EnsureSchema(ctx))
	require.NoError(t, games.EnsureSchema(ctx))
	require.NoError(t, orders.EnsureSchema(ctx))
	require.NoError(t, orders.EnsureSchema(ctx))

	t.Run("games", func(t *testing.T) {
		price := 24.99
		created, err := games.CreateGame(ctx, models.CreateGameRequest{
			Name:        "Hades",
			Category:    "roguelike",
			ReleaseDate: models.Date{Time: time.Date(2020, 9, 17, 0, 0, 0, 0, time.UTC)},
			Price:       &price,
		})
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.False(t, created.CreatedAt.IsZero())

		got, err := games.GetGame(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Hades", got.Name)
		assert.True(t, got.ReleaseDate.Equal(created.ReleaseDate))

		newPrice := 19.99
		updated, err := games.UpdateGame(ctx, created.ID, models.UpdateGameRequest{Price: &newPrice})
		require.NoError(t, err)
		assert.Equal(t, 19.99, updated.Price)
		assert.Equal(t, "roguelike", updated.Category)

		list, err := games.ListGames(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 1)

		require.NoError(t, games.DeleteGame(ctx, created.ID))
		_, err = games.GetGame(ctx, created.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, games.DeleteGame(ctx, created.ID), ErrNotFound)
		_, err = games.UpdateGame(ctx, created.ID, models.UpdateGameRequest{Price: &newPrice})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("orders", func(t *testing.T) {
		total := 49.98
		created, err := orders.CreateOrder(ctx, models.CreateOrderRequest{
			UserID:     "u-1",
			Items:      types.JSONText(`[{"gameId":1,"quantity":2}]`),
			TotalPrice: &total,
		})
		require.NoError(t, err)
		assert.Equal(t, models.DefaultOrderStatus, created.Status)

		var items []map[string]int
		require.NoError(t, json.Unmarshal(created.Items, &items))
		assert.Equal(t, []map[string]int{{"gameId": 1, "quantity": 2}}, items)

		_, err = orders.CreateOrder(ctx, models.CreateOrderRequest{
			UserID:     "u-2",
			Items:      types.JSONText(`[]`),
			TotalPrice: &total,
			Status:     "paid",
		})
		require.NoError(t, err)

		status := "shipped"
		updated, err := orders.UpdateOrder(ctx, created.ID, models.UpdateOrderRequest{Status: &status})
		require.NoError(t, err)
		assert.Equal(t, "shipped", updated.Status)
		assert.Equal(t, "u-1", updated.UserID)

		byUser, err := orders.ListOrdersByUser(ctx, "u-1")
		require.NoError(t, err)
		require.Len(t, byUser, 1)
		assert.Equal(t, created.ID, byUser[0].ID)

		all, err := orders.ListOrders(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		_, err = orders.GetOrder(ctx, 9999)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
