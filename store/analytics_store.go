// api/store/analytics_store.go
package store

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"

	"shopdemo/api/models"
	"shopdemo/api/utils"
)

// SummaryDays is the number of calendar dates returned by PageViewSummary by default.
const SummaryDays = 30

// Table definitions. Every statement is create-if-not-exists so bootstrap can
// run on each start.
var analyticsTables = []struct {
	name string
	ddl  string
}{
	{"page_views", `
		CREATE TABLE IF NOT EXISTS page_views (
			session_id String,
			user_id Nullable(String),
			page_url String,
			timestamp DateTime,
			time_spent UInt32,
			scroll_depth Float32,
			device String,
			browser String,
			os String,
			country String,
			city String
		) ENGINE = MergeTree()
		ORDER BY (timestamp, page_url)
	`},
	{"clicks", `
		CREATE TABLE IF NOT EXISTS clicks (
			session_id String,
			user_id Nullable(String),
			element_id String,
			page_url String,
			timestamp DateTime,
			text_content String,
			x_position UInt32,
			y_position UInt32
		) ENGINE = MergeTree()
		ORDER BY (timestamp, element_id)
	`},
	{"sessions", `
		CREATE TABLE IF NOT EXISTS sessions (
			session_id String,
			user_id Nullable(String),
			start_time DateTime,
			end_time DateTime,
			duration UInt32,
			device String,
			browser String,
			os String,
			country String,
			city String,
			pages_visited UInt32,
			is_bounce UInt8
		) ENGINE = MergeTree()
		ORDER BY (start_time, session_id)
	`},
}

type AnalyticsStore struct {
	conn   clickhouse.Conn
	logger *zap.Logger
}

func NewAnalyticsStore(conn clickhouse.Conn, logger *zap.Logger) *AnalyticsStore {
	return &AnalyticsStore{
		conn:   conn,
		logger: logger,
	}
}

// EnsureSchema creates the page_views, clicks and sessions tables when missing.
func (s *AnalyticsStore) EnsureSchema(ctx context.Context) error {
	for _, table := range analyticsTables {
		if err := s.conn.Exec(ctx, table.ddl); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table.name, err)
		}
	}
	s.logger.Info("ClickHouse tables initialized")
	return nil
}

func (s *AnalyticsStore) InsertPageView(ctx context.Context, row models.PageViewRow) error {
	return s.insert(ctx, "page_views", `
		INSERT INTO page_views (
			session_id, user_id, page_url, timestamp, time_spent, scroll_depth,
			device, browser, os, country, city
		)`,
		row.SessionID,
		row.UserID,
		row.PageURL,
		row.Timestamp,
		row.TimeSpent,
		row.ScrollDepth,
		row.Device,
		row.Browser,
		row.OS,
		row.Country,
		row.City,
	)
}

func (s *AnalyticsStore) InsertClick(ctx context.Context, row models.ClickRow) error {
	return s.insert(ctx, "clicks", `
		INSERT INTO clicks (
			session_id, user_id, element_id, page_url, timestamp, text_content, x_position, y_position
		)`,
		row.SessionID,
		row.UserID,
		row.ElementID,
		row.PageURL,
		row.Timestamp,
		row.TextContent,
		row.XPosition,
		row.YPosition,
	)
}

func (s *AnalyticsStore) InsertSession(ctx context.Context, row models.SessionRow) error {
	return s.insert(ctx, "sessions", `
		INSERT INTO sessions (
			session_id, user_id, start_time, end_time, duration,
			device, browser, os, country, city, pages_visited, is_bounce
		)`,
		row.SessionID,
		row.UserID,
		row.StartTime,
		row.EndTime,
		row.Duration,
		row.Device,
		row.Browser,
		row.OS,
		row.Country,
		row.City,
		row.PagesVisited,
		row.IsBounce,
	)
}

// insert appends a single row through a one-row batch. Column order in query
// must match values.
func (s *AnalyticsStore) insert(ctx context.Context, table, query string, values ...any) error {
	batch, err := s.conn.PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert into %s: %w", table, err)
	}
	if err := batch.Append(values...); err != nil {
		_ = batch.Abort()
		return fmt.Errorf("failed to append row to %s: %w", table, err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	s.logger.Debug("Inserted analytics row", zap.String("table", table))
	return nil
}

// PageViewSummary aggregates page views per calendar date, newest first.
func (s *AnalyticsStore) PageViewSummary(ctx context.Context, days int) ([]models.DailySummary, error) {
	if days <= 0 {
		days = SummaryDays
	}

	query := `
		SELECT
			toDate(timestamp) AS date,
			count() AS page_views,
			avg(time_spent) AS avg_time_spent,
			avg(scroll_depth) AS avg_scroll_depth
		FROM page_views
		GROUP BY date
		ORDER BY date DESC
		LIMIT ?
	`
	rows, err := s.conn.Query(ctx, query, uint64(days))
	if err != nil {
		return nil, fmt.Errorf("failed to query page view summary: %w", err)
	}
	defer rows.Close()

	results := make([]models.DailySummary, 0, days)
	for rows.Next() {
		var (
			date           time.Time
			pageViews      uint64
			avgTimeSpent   float64
			avgScrollDepth float64
		)
		if err := rows.Scan(&date, &pageViews, &avgTimeSpent, &avgScrollDepth); err != nil {
			return nil, fmt.Errorf("failed to scan page view summary row: %w", err)
		}
		results = append(results, models.DailySummary{
			Date:           date.Format(time.DateOnly),
			PageViews:      pageViews,
			AvgTimeSpent:   finite(avgTimeSpent),
			AvgScrollDepth: finite(avgScrollDepth),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during page view summary query: %w", err)
	}
	return results, nil
}

// TopPages returns the most viewed page URLs between start and end.
func (s *AnalyticsStore) TopPages(ctx context.Context, start, end time.Time, limit uint64) ([]models.TopPathResult, error) {
	if limit == 0 {
		limit = 10
	}

	query := `
		SELECT page_url, count() AS view_count
		FROM page_views
		WHERE timestamp >= ? AND timestamp <= ?
		GROUP BY page_url
		ORDER BY view_count DESC, page_url ASC
		LIMIT ?
	`
	rows, err := s.conn.Query(ctx, query, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top pages: %w", err)
	}
	defer rows.Close()

	results := []models.TopPathResult{}
	for rows.Next() {
		var r models.TopPathResult
		if err := rows.Scan(&r.PageURL, &r.Count); err != nil {
			return nil, fmt.Errorf("failed to scan top pages row: %w", err)
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for top pages: %w", err)
	}
	return results, nil
}

// UniqueSessionsOverTime counts distinct sessions that started in each
// interval bucket.
func (s *AnalyticsStore) UniqueSessionsOverTime(ctx context.Context, interval string, start, end time.Time) ([]models.TimeBucketCount, error) {
	if !utils.IsValidInterval(interval) {
		return nil, fmt.Errorf("invalid interval: %s", interval)
	}

	query := fmt.Sprintf(`
		SELECT toDateTime(toStartOf%s(start_time)) AS time_bucket, uniqExact(session_id) AS unique_sessions
		FROM sessions
		WHERE start_time >= ? AND start_time <= ?
		GROUP BY time_bucket
		ORDER BY time_bucket ASC
	`, interval)

	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query unique sessions over time: %w", err)
	}
	defer rows.Close()

	results := []models.TimeBucketCount{}
	for rows.Next() {
		var r models.TimeBucketCount
		if err := rows.Scan(&r.Time, &r.Count); err != nil {
			return nil, fmt.Errorf("failed to scan unique sessions row: %w", err)
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for unique sessions: %w", err)
	}
	return results, nil
}

// finite maps the NaN that ClickHouse avg() yields on empty input to 0, since
// encoding/json cannot marshal NaN.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
