// Package geocode turns placeholder report locations into readable place
// names through Google Maps reverse geocoding.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"googlemaps.github.io/maps"
)

// DefaultTimeout bounds a single lookup.
const DefaultTimeout = 3 * time.Second

// ReverseGeocoder is the subset of *maps.Client used by the resolver.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// NewMapsClient creates a Google Maps client for apiKey.
func NewMapsClient(apiKey string) (*maps.Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("maps api key is required")
	}
	c, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating maps client: %w", err)
	}
	return c, nil
}

// IsPlaceholder reports whether a location was generated from coordinates
// rather than typed by a reporter.
func IsPlaceholder(location string) bool {
	return strings.Contains(location, "Report") || strings.Contains(location, "(")
}

type cacheKey struct {
	lat, lng int64
}

func keyFor(lat, lng float64) cacheKey {
	// 4 decimals matches the placeholder precision.
	return cacheKey{lat: int64(lat * 1e4), lng: int64(lng * 1e4)}
}

// Resolver resolves and caches display names for coordinates.
// A nil Resolver returns locations unchanged.
type Resolver struct {
	client  ReverseGeocoder
	timeout time.Duration
	logger  *slog.Logger

	mu    sync.Mutex
	cache map[cacheKey]string
}

// NewResolver creates a resolver backed by client.
func NewResolver(client ReverseGeocoder, timeout time.Duration, logger *slog.Logger) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		client:  client,
		timeout: timeout,
		logger:  logger,
		cache:   make(map[cacheKey]string),
	}
}

// DisplayLocation returns a readable name for a location. Real names pass
// through; placeholders are reverse geocoded. Any lookup failure falls back
// to the raw location.
func (r *Resolver) DisplayLocation(ctx context.Context, location string, lat, lng float64) string {
	if r == nil || r.client == nil || !IsPlaceholder(location) {
		return location
	}

	key := keyFor(lat, lng)
	r.mu.Lock()
	name, ok := r.cache[key]
	r.mu.Unlock()
	if ok {
		return name
	}

	name, err := r.lookup(ctx, lat, lng)
	if err != nil {
		r.logger.Debug("reverse geocoding failed", "lat", lat, "lng", lng, "error", err)
		return location
	}

	r.mu.Lock()
	r.cache[key] = name
	r.mu.Unlock()
	return name
}

func (r *Resolver) lookup(ctx context.Context, lat, lng float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	results, err := r.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: lat, Lng: lng},
	})
	if err != nil {
		return "", fmt.Errorf("reverse geocoding: %w", err)
	}
	for _, res := range results {
		if name := placeName(res.AddressComponents); name != "" {
			return name, nil
		}
	}
	return "", errors.New("no locality in results")
}

// placeName prefers city, then town, then district, followed by the state.
func placeName(components []maps.AddressComponent) string {
	find := func(types ...string) string {
		for _, t := range types {
			for _, c := range components {
				for _, ct := range c.Types {
					if ct == t {
						return c.LongName
					}
				}
			}
		}
		return ""
	}

	city := find("locality", "postal_town", "sublocality", "administrative_area_level_3", "administrative_area_level_2")
	if city == "" {
		return ""
	}
	if state := find("administrative_area_level_1"); state != "" && state != city {
		return city + ", " + state
	}
	return city
}
