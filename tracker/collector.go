// Package tracker records page views, clicks and sessions for one browsing
// session and hands them to an Emitter. The host (a browser bridge, a test or
// the simulate command) feeds it scroll, click, navigation and unload input.
package tracker

import (
	"math"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"shopdemo/api/models"
	"shopdemo/api/utils"
)

type Config struct {
	// PageURL is the path of the page the session starts on.
	PageURL   string
	UserAgent string
	// Emitter receives every event. A nil Emitter discards them.
	Emitter Emitter
}

type Option func(*Collector)

func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// WithIDGenerator replaces the session identifier source.
func WithIDGenerator(next func() string) Option {
	return func(c *Collector) { c.newID = next }
}

func WithLocator(l Locator, timeout time.Duration) Option {
	return func(c *Collector) {
		c.locator = l
		c.locateTimeout = timeout
	}
}

func WithStorage(s Storage) Option {
	return func(c *Collector) { c.storage = s }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Collector) { c.logger = l }
}

// ScrollMetrics is a sample of the document's scroll position, in pixels.
type ScrollMetrics struct {
	ScrollTop    float64
	ClientHeight float64
	ScrollHeight float64
}

type Rect struct {
	Top  float64
	Left float64
}

// Element describes a click target.
type Element struct {
	ID      string
	Classes []string
	TagName string
	Text    string
	Rect    Rect
}

type pageState struct {
	url         string
	loadedAt    time.Time
	scrollDepth float64
}

// Collector tracks a single session. Its methods are safe for concurrent use
// and never panic on host input. After Unload every call is a no-op.
type Collector struct {
	emitter       Emitter
	logger        *zap.Logger
	now           func() time.Time
	newID         func() string
	locator       Locator
	locateTimeout time.Duration
	storage       Storage

	sessionID string
	userID    *string
	start     time.Time
	device    DeviceInfo
	location  *locationState

	mu           sync.Mutex
	page         pageState
	pagesVisited int
	ended        bool
	unloadOnce   sync.Once
}

// New starts a session and emits the initial page view.
func New(cfg Config, opts ...Option) *Collector {
	c := &Collector{
		emitter: cfg.Emitter,
		logger:  zap.NewNop(),
		now:     time.Now,
		newID:   utils.GenerateSessionID,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.emitter == nil {
		c.emitter = discard{}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = utils.GenerateSessionID
	}

	c.sessionID = c.newID()
	c.start = c.now()
	c.userID = storedUserID(c.storage)
	c.device = Classify(cfg.UserAgent)
	c.location = startLocating(c.locator, c.locateTimeout, c.logger)

	c.page = pageState{url: cfg.PageURL, loadedAt: c.start}
	c.pagesVisited = 1
	c.emitPageView(c.page.url, 0, 0)

	c.logger.Debug("Analytics session started",
		zap.String("session_id", c.sessionID),
		zap.String("device", c.device.Device),
		zap.String("browser", c.device.Browser),
		zap.String("os", c.device.OS),
	)
	return c
}

func (c *Collector) SessionID() string { return c.sessionID }

func (c *Collector) Device() DeviceInfo { return c.device }

// Location returns the resolved location and whether the lookup has finished.
func (c *Collector) Location() (Location, bool) { return c.location.get() }

// LocationResolved is closed once the location lookup has finished.
func (c *Collector) LocationResolved() <-chan struct{} { return c.location.done }

// Scroll records a scroll sample. The page's depth only ever grows.
func (c *Collector) Scroll(m ScrollMetrics) {
	if m.ScrollHeight <= 0 || math.IsNaN(m.ScrollHeight) {
		return
	}
	depth := (m.ScrollTop + m.ClientHeight) / m.ScrollHeight
	if math.IsNaN(depth) || depth <= 0 {
		return
	}
	depth = math.Min(depth, 1)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ended && depth > c.page.scrollDepth {
		c.page.scrollDepth = depth
	}
}

// Click emits a click event for el on the current page.
func (c *Collector) Click(el Element) {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return
	}
	url := c.page.url
	c.mu.Unlock()

	c.emit(models.KindClick, models.ClickRequest{
		SessionID:   c.sessionID,
		UserID:      c.userID,
		ElementID:   elementIdentity(el),
		PageURL:     url,
		TextContent: utils.Truncate(strings.TrimSpace(el.Text), models.MaxTextContent),
		XPosition:   pixel(el.Rect.Left),
		YPosition:   pixel(el.Rect.Top),
		Enrichment:  c.enrichment(),
	})
}

// Navigate closes the current page view and opens one for url.
func (c *Collector) Navigate(url string) {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return
	}
	closing := c.page
	now := c.now()
	c.page = pageState{url: url, loadedAt: now}
	c.pagesVisited++
	c.mu.Unlock()

	c.emitPageView(closing.url, wholeSeconds(now.Sub(closing.loadedAt)), closing.scrollDepth)
	c.emitPageView(url, 0, 0)
}

// Unload emits the final page view and the session record. Only the first
// call has an effect.
func (c *Collector) Unload() {
	c.unloadOnce.Do(func() {
		c.mu.Lock()
		c.ended = true
		page := c.page
		pages := c.pagesVisited
		c.mu.Unlock()

		end := c.now()
		c.location.stop()

		c.emitPageView(page.url, wholeSeconds(end.Sub(page.loadedAt)), page.scrollDepth)
		c.emit(models.KindSession, models.SessionRequest{
			SessionID:    c.sessionID,
			UserID:       c.userID,
			StartTime:    c.start.UTC(),
			EndTime:      end.UTC(),
			Duration:     wholeSeconds(end.Sub(c.start)),
			PagesVisited: float64(pages),
			IsBounce:     models.Flag(pages == 1),
			Enrichment:   c.enrichment(),
		})
		c.logger.Debug("Analytics session ended",
			zap.String("session_id", c.sessionID),
			zap.Int("pages_visited", pages),
		)
	})
}

func (c *Collector) emitPageView(url string, timeSpent, scrollDepth float64) {
	c.emit(models.KindPageView, models.PageViewRequest{
		SessionID:   c.sessionID,
		UserID:      c.userID,
		PageURL:     url,
		TimeSpent:   timeSpent,
		ScrollDepth: scrollDepth,
		Enrichment:  c.enrichment(),
	})
}

func (c *Collector) emit(kind models.EventKind, body any) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Error sending analytics", zap.String("kind", string(kind)), zap.Any("panic", r))
		}
	}()
	c.emitter.Emit(Message{Kind: kind, Body: body})
}

func (c *Collector) enrichment() models.Enrichment {
	e := models.Enrichment{
		Device:  c.device.Device,
		Browser: c.device.Browser,
		OS:      c.device.OS,
	}
	if loc, ok := c.location.get(); ok {
		e.Country = loc.Country
		e.City = loc.City
	}
	return e
}

// elementIdentity prefers the id, then the class list, then the tag name.
func elementIdentity(el Element) string {
	if el.ID != "" {
		return el.ID
	}
	if classes := strings.Join(el.Classes, " "); classes != "" {
		return classes
	}
	return el.TagName
}

func pixel(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0
	}
	return math.Floor(v)
}

func wholeSeconds(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return math.Floor(d.Seconds())
}

type discard struct{}

func (discard) Emit(Message) bool { return true }
