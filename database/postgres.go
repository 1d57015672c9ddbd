package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

type DBClient struct {
	DB     *sqlx.DB
	name   string
	logger *zap.Logger
}

// NewPostgresDB connects to the database behind dbURL. name labels the
// connection in logs ("games", "orders").
func NewPostgresDB(name, dbURL string, logger *zap.Logger) (*DBClient, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("database URL for %s is not set", name)
	}

	db, err := sqlx.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("error opening database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database (ping failed): %w", err)
	}

	logger.Info("Connected to PostgreSQL", zap.String("db", name), zap.String("host", redactedHost(dbURL)))
	return &DBClient{DB: db, name: name, logger: logger}, nil
}

func (c *DBClient) Close() {
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.logger.Error("Error closing database connection", zap.String("db", c.name), zap.Error(err))
			return
		}
		c.logger.Info("PostgreSQL database connection closed", zap.String("db", c.name))
	}
}

// redactedHost keeps credentials out of the logs.
func redactedHost(dbURL string) string {
	u, err := url.Parse(dbURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}
