package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// DefaultOrderStatus is assigned to orders created without a status.
const DefaultOrderStatus = "pending"

type Game struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Category    string    `db:"category" json:"category"`
	ReleaseDate time.Time `db:"release_date" json:"releaseDate"`
	Price       float64   `db:"price" json:"price"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

type CreateGameRequest struct {
	Name        string   `json:"name" binding:"required"`
	Category    string   `json:"category" binding:"required"`
	ReleaseDate Date     `json:"releaseDate"`
	Price       *float64 `json:"price" binding:"required"`
}

func (r CreateGameRequest) Validate() error {
	if r.ReleaseDate.IsZero() {
		return errors.New("releaseDate is required")
	}
	return nil
}

// UpdateGameRequest carries a partial update; nil fields keep their value.
type UpdateGameRequest struct {
	Name        *string  `json:"name"`
	Category    *string  `json:"category"`
	ReleaseDate *Date    `json:"releaseDate"`
	Price       *float64 `json:"price"`
}

func (r UpdateGameRequest) Validate() error {
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return errors.New("name cannot be empty")
	}
	if r.Category != nil && strings.TrimSpace(*r.Category) == "" {
		return errors.New("category cannot be empty")
	}
	return nil
}

type Order struct {
	ID         int64          `db:"id" json:"id"`
	UserID     string         `db:"user_id" json:"userId"`
	Items      types.JSONText `db:"items" json:"items"`
	TotalPrice float64        `db:"total_price" json:"totalPrice"`
	Status     string         `db:"status" json:"status"`
	CreatedAt  time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updatedAt"`
}

type CreateOrderRequest struct {
	UserID     string         `json:"userId" binding:"required"`
	Items      types.JSONText `json:"items" binding:"required"`
	TotalPrice *float64       `json:"totalPrice" binding:"required"`
	Status     string         `json:"status"`
}

func (r CreateOrderRequest) Validate() error {
	return validateItems(r.Items)
}

type UpdateOrderRequest struct {
	UserID     *string         `json:"userId"`
	Items      *types.JSONText `json:"items"`
	TotalPrice *float64        `json:"totalPrice"`
	Status     *string         `json:"status"`
}

func (r UpdateOrderRequest) Validate() error {
	if r.UserID != nil && strings.TrimSpace(*r.UserID) == "" {
		return errors.New("userId cannot be empty")
	}
	if r.Items != nil {
		return validateItems(*r.Items)
	}
	return nil
}

// validateItems accepts a JSON array or object.
func validateItems(items types.JSONText) error {
	trimmed := strings.TrimSpace(string(items))
	if trimmed == "" || trimmed == "null" {
		return errors.New("items is required")
	}
	if !json.Valid([]byte(trimmed)) || (trimmed[0] != '[' && trimmed[0] != '{') {
		return errors.New("items must be a JSON array or object")
	}
	return nil
}

// Date accepts either a calendar date (2006-01-02) or an RFC 3339 timestamp.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC 3339", s)
	}
	d.Time = t
	return nil
}
