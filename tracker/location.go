package tracker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// UnknownLocation fills country and city. Reverse geocoding is not done, so a
// successful lookup still reports it.
const UnknownLocation = "Unknown"

const defaultLocateTimeout = 5 * time.Second

type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Locator is the host's position source, e.g. a browser geolocation bridge.
type Locator interface {
	Locate(ctx context.Context) (Coordinates, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context) (Coordinates, error)

func (f LocatorFunc) Locate(ctx context.Context) (Coordinates, error) {
	return f(ctx)
}

// Location is the resolved place of a session. Coordinates is nil when the
// lookup failed or no locator was configured.
type Location struct {
	Country     string
	City        string
	Coordinates *Coordinates
}

func unknownLocation() Location {
	return Location{Country: UnknownLocation, City: UnknownLocation}
}

// locationState holds the outcome of a background lookup. Until the lookup
// finishes the location is empty and events go out without country and city.
type locationState struct {
	mu       sync.RWMutex
	location Location
	resolved bool
	done     chan struct{}
	cancel   context.CancelFunc
}

func resolvedLocation() *locationState {
	s := &locationState{location: unknownLocation(), resolved: true, done: make(chan struct{}), cancel: func() {}}
	close(s.done)
	return s
}

func startLocating(locator Locator, timeout time.Duration, logger *zap.Logger) *locationState {
	if locator == nil {
		return resolvedLocation()
	}
	if timeout <= 0 {
		timeout = defaultLocateTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	s := &locationState{done: make(chan struct{}), cancel: cancel}
	go func() {
		defer close(s.done)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				logger.Warn("Geolocation lookup panicked", zap.Any("panic", r))
				s.set(unknownLocation())
			}
		}()

		coords, err := locator.Locate(ctx)
		loc := unknownLocation()
		if err != nil {
			logger.Debug("Geolocation error", zap.Error(err))
		} else {
			loc.Coordinates = &coords
		}
		s.set(loc)
	}()
	return s
}

func (s *locationState) set(loc Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.location = loc
	s.resolved = true
}

func (s *locationState) get() (Location, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.location, s.resolved
}

func (s *locationState) stop() {
	s.cancel()
}
