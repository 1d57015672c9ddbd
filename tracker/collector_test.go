package tracker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopdemo/api/models"
)

const iphoneUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"

type recordingEmitter struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recordingEmitter) Emit(msg Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return true
}

func (r *recordingEmitter) messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCollector(t *testing.T, opts ...Option) (*Collector, *recordingEmitter, *fakeClock) {
	t.Helper()
	rec := &recordingEmitter{}
	clock := newFakeClock()
	opts = append([]Option{
		WithClock(clock.Now),
		WithIDGenerator(func() string { return "0b7c3a52-9a1e-4c2d-8f00-6d1e2a3b4c5d" }),
	}, opts...)
	c := New(Config{PageURL: "/", UserAgent: iphoneUA, Emitter: rec}, opts...)
	return c, rec, clock
}

func pageView(t *testing.T, msg Message) models.PageViewRequest {
	t.Helper()
	require.Equal(t, models.KindPageView, msg.Kind)
	pv, ok := msg.Body.(models.PageViewRequest)
	require.True(t, ok, "body is %T", msg.Body)
	return pv
}

func session(t *testing.T, msg Message) models.SessionRequest {
	t.Helper()
	require.Equal(t, models.KindSession, msg.Kind)
	s, ok := msg.Body.(models.SessionRequest)
	require.True(t, ok, "body is %T", msg.Body)
	return s
}

func click(t *testing.T, msg Message) models.ClickRequest {
	t.Helper()
	require.Equal(t, models.KindClick, msg.Kind)
	cl, ok := msg.Body.(models.ClickRequest)
	require.True(t, ok, "body is %T", msg.Body)
	return cl
}

func TestNewEmitsLoadPageView(t *testing.T) {
	c, rec, _ := newTestCollector(t, WithStorage(MapStorage{UserIDKey: "user-42"}))

	msgs := rec.messages()
	require.Len(t, msgs, 1)
	pv := pageView(t, msgs[0])
	assert.Equal(t, c.SessionID(), pv.SessionID)
	assert.Equal(t, "/", pv.PageURL)
	assert.Zero(t, pv.TimeSpent)
	assert.Zero(t, pv.ScrollDepth)
	require.NotNil(t, pv.UserID)
	assert.Equal(t, "user-42", *pv.UserID)
	assert.Equal(t, "Mobile", pv.Device)
	assert.Equal(t, "Safari", pv.Browser)
	assert.Equal(t, "iOS", pv.OS)
	assert.Equal(t, UnknownLocation, pv.Country)
	assert.Equal(t, UnknownLocation, pv.City)
}

func TestMissingUserIDIsNull(t *testing.T) {
	for _, storage := range []Storage{nil, MapStorage{}, MapStorage{UserIDKey: ""}} {
		_, rec, _ := newTestCollector(t, WithStorage(storage))
		assert.Nil(t, pageView(t, rec.messages()[0]).UserID)
	}
}

func TestScrollDepthIsMonotonic(t *testing.T) {
	c, rec, clock := newTestCollector(t)

	c.Scroll(ScrollMetrics{ScrollTop: 0, ClientHeight: 500, ScrollHeight: 1000})
	c.Scroll(ScrollMetrics{ScrollTop: 250, ClientHeight: 500, ScrollHeight: 1000})
	c.Scroll(ScrollMetrics{ScrollTop: 0, ClientHeight: 500, ScrollHeight: 1000})
	c.Scroll(ScrollMetrics{ScrollTop: 100, ClientHeight: 500, ScrollHeight: 0})
	c.Scroll(ScrollMetrics{ScrollTop: 100, ClientHeight: 500, ScrollHeight: -1})
	clock.advance(12*time.Second + 900*time.Millisecond)
	c.Unload()

	msgs := rec.messages()
	require.Len(t, msgs, 3)
	final := pageView(t, msgs[1])
	assert.Equal(t, 0.75, final.ScrollDepth)
	assert.Equal(t, float64(12), final.TimeSpent)
}

func TestScrollDepthCapsAtOne(t *testing.T) {
	c, rec, _ := newTestCollector(t)

	c.Scroll(ScrollMetrics{ScrollTop: 900, ClientHeight: 500, ScrollHeight: 1000})
	c.Unload()

	assert.Equal(t, 1.0, pageView(t, rec.messages()[1]).ScrollDepth)
}

func TestClickIdentity(t *testing.T) {
	tests := []struct {
		name string
		el   Element
		want models.ClickRequest
	}{
		{
			name: "id wins",
			el:   Element{ID: "buy", Classes: []string{"btn", "primary"}, TagName: "BUTTON", Text: "  Buy now \n", Rect: Rect{Top: 10.9, Left: 20.2}},
			want: models.ClickRequest{ElementID: "buy", TextContent: "Buy now", XPosition: 20, YPosition: 10},
		},
		{
			name: "classes joined",
			el:   Element{Classes: []string{"btn", "primary"}, TagName: "BUTTON"},
			want: models.ClickRequest{ElementID: "btn primary"},
		},
		{
			name: "tag name",
			el:   Element{TagName: "DIV", Rect: Rect{Top: -4.5, Left: -0.1}},
			want: models.ClickRequest{ElementID: "DIV"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec, _ := newTestCollector(t)
			c.Click(tt.el)

			msgs := rec.messages()
			require.Len(t, msgs, 2)
			got := click(t, msgs[1])
			assert.Equal(t, tt.want.ElementID, got.ElementID)
			assert.Equal(t, tt.want.TextContent, got.TextContent)
			assert.Equal(t, tt.want.XPosition, got.XPosition)
			assert.Equal(t, tt.want.YPosition, got.YPosition)
			assert.Equal(t, "/", got.PageURL)
			assert.Equal(t, c.SessionID(), got.SessionID)
		})
	}
}

func TestClickTextIsTruncated(t *testing.T) {
	c, rec, _ := newTestCollector(t)
	c.Click(Element{ID: "desc", Text: strings.Repeat("é", 150)})

	got := click(t, rec.messages()[1])
	assert.Equal(t, strings.Repeat("é", models.MaxTextContent), got.TextContent)
}

func TestSinglePageSessionIsBounce(t *testing.T) {
	c, rec, clock := newTestCollector(t)
	clock.advance(65*time.Second + 700*time.Millisecond)
	c.Unload()

	msgs := rec.messages()
	require.Len(t, msgs, 3)
	s := session(t, msgs[2])
	assert.Equal(t, c.SessionID(), s.SessionID)
	assert.Equal(t, float64(65), s.Duration)
	assert.Equal(t, float64(1), s.PagesVisited)
	assert.True(t, bool(s.IsBounce))
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), s.StartTime)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 1, 5, 700000000, time.UTC), s.EndTime)
}

func TestNavigateCountsPages(t *testing.T) {
	c, rec, clock := newTestCollector(t)

	c.Scroll(ScrollMetrics{ScrollTop: 500, ClientHeight: 500, ScrollHeight: 1000})
	clock.advance(3 * time.Second)
	c.Navigate("/games")
	clock.advance(5 * time.Second)
	c.Click(Element{ID: "add-to-cart"})
	c.Unload()

	msgs := rec.messages()
	require.Len(t, msgs, 6)

	closed := pageView(t, msgs[1])
	assert.Equal(t, "/", closed.PageURL)
	assert.Equal(t, float64(3), closed.TimeSpent)
	assert.Equal(t, 1.0, closed.ScrollDepth)

	opened := pageView(t, msgs[2])
	assert.Equal(t, "/games", opened.PageURL)
	assert.Zero(t, opened.TimeSpent)
	assert.Zero(t, opened.ScrollDepth)

	assert.Equal(t, "/games", click(t, msgs[3]).PageURL)

	last := pageView(t, msgs[4])
	assert.Equal(t, "/games", last.PageURL)
	assert.Equal(t, float64(5), last.TimeSpent)

	s := session(t, msgs[5])
	assert.Equal(t, float64(2), s.PagesVisited)
	assert.False(t, bool(s.IsBounce))
	assert.Equal(t, float64(8), s.Duration)
}

func TestUnloadIsIdempotent(t *testing.T) {
	c, rec, _ := newTestCollector(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Unload()
		}()
	}
	wg.Wait()

	c.Click(Element{ID: "late"})
	c.Navigate("/late")
	c.Scroll(ScrollMetrics{ScrollTop: 1, ClientHeight: 1, ScrollHeight: 2})
	c.Unload()

	sessions := 0
	for _, msg := range rec.messages() {
		if msg.Kind == models.KindSession {
			sessions++
		}
	}
	assert.Equal(t, 1, sessions)
	assert.Len(t, rec.messages(), 3)
}

func TestLocationLookup(t *testing.T) {
	t.Run("success keeps country unknown", func(t *testing.T) {
		locator := LocatorFunc(func(context.Context) (Coordinates, error) {
			return Coordinates{Latitude: 52.52, Longitude: 13.40}, nil
		})
		c, _, _ := newTestCollector(t, WithLocator(locator, time.Second))
		<-c.LocationResolved()

		loc, ok := c.Location()
		require.True(t, ok)
		assert.Equal(t, UnknownLocation, loc.Country)
		assert.Equal(t, UnknownLocation, loc.City)
		require.NotNil(t, loc.Coordinates)
		assert.Equal(t, 52.52, loc.Coordinates.Latitude)
	})

	t.Run("denied", func(t *testing.T) {
		locator := LocatorFunc(func(context.Context) (Coordinates, error) {
			return Coordinates{}, errors.New("user denied geolocation")
		})
		c, rec, _ := newTestCollector(t, WithLocator(locator, time.Second))
		<-c.LocationResolved()
		c.Click(Element{ID: "x"})

		loc, ok := c.Location()
		require.True(t, ok)
		assert.Nil(t, loc.Coordinates)
		assert.Equal(t, UnknownLocation, click(t, rec.messages()[1]).Country)
	})

	t.Run("slow lookup does not block", func(t *testing.T) {
		locator := LocatorFunc(func(ctx context.Context) (Coordinates, error) {
			<-ctx.Done()
			return Coordinates{}, ctx.Err()
		})
		c, rec, _ := newTestCollector(t, WithLocator(locator, 20*time.Millisecond))

		first := pageView(t, rec.messages()[0])
		assert.Empty(t, first.Country)
		assert.Empty(t, first.City)

		<-c.LocationResolved()
		loc, ok := c.Location()
		require.True(t, ok)
		assert.Equal(t, UnknownLocation, loc.Country)
	})

	t.Run("panicking locator", func(t *testing.T) {
		locator := LocatorFunc(func(context.Context) (Coordinates, error) {
			panic("geolocation bridge gone")
		})
		c, _, _ := newTestCollector(t, WithLocator(locator, time.Second))
		<-c.LocationResolved()

		loc, ok := c.Location()
		require.True(t, ok)
		assert.Equal(t, UnknownLocation, loc.City)
	})
}

type panickingEmitter struct{}

func (panickingEmitter) Emit(Message) bool { panic("transport exploded") }

func TestCollectorNeverPanics(t *testing.T) {
	assert.NotPanics(t, func() {
		c := New(Config{PageURL: "/", Emitter: panickingEmitter{}})
		c.Click(Element{})
		c.Scroll(ScrollMetrics{})
		c.Navigate("")
		c.Unload()
	})

	assert.NotPanics(t, func() {
		c := New(Config{}, WithLogger(nil), WithClock(nil), WithIDGenerator(nil))
		c.Unload()
	})
}
