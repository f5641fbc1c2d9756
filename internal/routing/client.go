// Package routing calculates truck routes and geocodes addresses using the
// openrouteservice and Nominatim HTTP APIs, falling back to great-circle
// estimates when the providers are unavailable.
package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sony/gobreaker"

	"github.com/lohun/driverlog/internal/config"
	"github.com/lohun/driverlog/internal/hos"
)

// ErrNoResult is returned when the geocoder finds nothing for an address.
var ErrNoResult = errors.New("no geocoding result")

// Route is a calculated route between the current position, pickup, and dropoff.
type Route struct {
	Coordinates   []hos.Coordinate `json:"coordinates"`
	DistanceMiles float64          `json:"distance_miles"`
	DurationHours float64          `json:"duration_hours"`
	Instructions  []string         `json:"instructions"`
}

// Client calls the routing providers with a circuit breaker around every
// outbound request. No HTTP call is made at construction time.
type Client struct {
	directionsURL string
	apiKey        string
	geocodeURL    string
	userAgent     string
	avgSpeedMPH   float64
	cb            *gobreaker.CircuitBreaker
	httpDo        func(req *http.Request) (*http.Response, error)
}

// NewClient constructs a Client from cfg. The breaker trips independently of
// any other dependency's breaker.
func NewClient(cfg config.RoutingConfig, cb *gobreaker.CircuitBreaker) *Client {
	return &Client{
		directionsURL: cfg.DirectionsURL,
		apiKey:        cfg.APIKey,
		geocodeURL:    cfg.GeocodeURL,
		userAgent:     cfg.UserAgent,
		avgSpeedMPH:   cfg.AvgSpeedMPH,
		cb:            cb,
		httpDo:        http.DefaultClient.Do,
	}
}

// directionsResponse is the subset of the openrouteservice GeoJSON response
// the client consumes.
type directionsResponse struct {
	Features []struct {
		Geometry struct {
			// Coordinates are [lng, lat] or [lng, lat, ele] triples.
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Segments []struct {
				Distance float64 `json:"distance"`
				Duration float64 `json:"duration"`
				Steps    []struct {
					Distance    float64 `json:"distance"`
					Instruction string  `json:"instruction"`
				} `json:"steps"`
			} `json:"segments"`
		} `json:"properties"`
	} `json:"features"`
}

// Directions calculates a driving-hgv route through current → pickup →
// dropoff. Any provider failure falls back to a straight-line estimate at the
// configured average truck speed, so the returned route is never nil.
func (c *Client) Directions(ctx context.Context, current, pickup, dropoff hos.Location) *Route {
	route, err := c.providerDirections(ctx, current, pickup, dropoff)
	if err != nil {
		slog.WarnContext(ctx, "directions provider failed, using fallback route", "err", err)
		return c.fallbackRoute(current, pickup, dropoff)
	}
	return route
}

func (c *Client) providerDirections(ctx context.Context, current, pickup, dropoff hos.Location) (*Route, error) {
	res, err := c.cb.Execute(func() (any, error) {
		body, err := json.Marshal(map[string]any{
			"coordinates": [][]float64{
				{current.Lng, current.Lat},
				{pickup.Lng, pickup.Lat},
				{dropoff.Lng, dropoff.Lat},
			},
			"units":        "mi",
			"instructions": true,
		})
		if err != nil {
			return nil, fmt.Errorf("encoding directions request: %w", err)
		}

		endpoint := fmt.Sprintf("%s/directions/driving-hgv/geojson", c.directionsURL)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("building directions request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", c.apiKey)

		resp, err := c.httpDo(req)
		if err != nil {
			return nil, fmt.Errorf("directions request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("directions returned HTTP %d", resp.StatusCode)
		}

		var parsed directionsResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return nil, fmt.Errorf("decoding directions response: %w", err)
		}
		if len(parsed.Features) == 0 || len(parsed.Features[0].Properties.Segments) == 0 {
			return nil, errors.New("directions response has no route")
		}

		feature := parsed.Features[0]

		coords := make([]hos.Coordinate, 0, len(feature.Geometry.Coordinates))
		for _, c := range feature.Geometry.Coordinates {
			if len(c) < 2 {
				continue
			}
			// Provider emits [lng, lat]; clients consume [lat, lng].
			coords = append(coords, hos.Coordinate{c[1], c[0]})
		}

		var distance, durationSecs float64
		var instructions []string
		for _, seg := range feature.Properties.Segments {
			distance += seg.Distance
			durationSecs += seg.Duration
			for _, step := range seg.Steps {
				if step.Instruction != "" {
					instructions = append(instructions,
						fmt.Sprintf("%s (%.1f miles)", step.Instruction, step.Distance))
				}
			}
		}

		return &Route{
			Coordinates:   coords,
			DistanceMiles: distance,
			DurationHours: durationSecs / 3600,
			Instructions:  instructions,
		}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return nil, fmt.Errorf("circuit open: %w", err)
		}
		return nil, err
	}
	return res.(*Route), nil
}

// fallbackRoute estimates the route as two great-circle legs driven at the
// configured average speed.
func (c *Client) fallbackRoute(current, pickup, dropoff hos.Location) *Route {
	toPickup := haversineMiles(current, pickup)
	toDropoff := haversineMiles(pickup, dropoff)
	total := toPickup + toDropoff

	speed := c.avgSpeedMPH
	if speed <= 0 {
		speed = 55
	}

	return &Route{
		Coordinates: []hos.Coordinate{
			{current.Lat, current.Lng},
			{pickup.Lat, pickup.Lng},
			{dropoff.Lat, dropoff.Lng},
		},
		DistanceMiles: total,
		DurationHours: total / speed,
		Instructions: []string{
			fmt.Sprintf("Drive %.1f miles to pickup location", toPickup),
			fmt.Sprintf("Drive %.1f miles to dropoff location", toDropoff),
		},
	}
}

// nominatimResult is one entry of a Nominatim search response.
type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode resolves an address to coordinates via the Nominatim search API.
func (c *Client) Geocode(ctx context.Context, address string) (hos.Location, error) {
	res, err := c.cb.Execute(func() (any, error) {
		endpoint := fmt.Sprintf("%s/search?q=%s&format=json&limit=1",
			c.geocodeURL, url.QueryEscape(address))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("building geocode request: %w", err)
		}
		// Nominatim's usage policy requires an identifying User-Agent.
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpDo(req)
		if err != nil {
			return nil, fmt.Errorf("geocode request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("geocode returned HTTP %d", resp.StatusCode)
		}

		var results []nominatimResult
		if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
			return nil, fmt.Errorf("decoding geocode response: %w", err)
		}
		if len(results) == 0 {
			return nil, ErrNoResult
		}

		lat, err := strconv.ParseFloat(results[0].Lat, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing latitude %q: %w", results[0].Lat, err)
		}
		lng, err := strconv.ParseFloat(results[0].Lon, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing longitude %q: %w", results[0].Lon, err)
		}

		return hos.Location{Lat: lat, Lng: lng, Address: results[0].DisplayName}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return hos.Location{}, fmt.Errorf("circuit open: %w", err)
		}
		return hos.Location{}, err
	}
	return res.(hos.Location), nil
}

// Healthy checks that the directions provider is reachable. The response body
// is drained and discarded; only the status code matters.
func (c *Client) Healthy(ctx context.Context) error {
	_, err := c.cb.Execute(func() (any, error) {
		endpoint := fmt.Sprintf("%s/health", c.directionsURL)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("building health request: %w", err)
		}

		resp, err := c.httpDo(req)
		if err != nil {
			return nil, fmt.Errorf("health request: %w", err)
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body) //nolint:errcheck

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("health returned HTTP %d", resp.StatusCode)
		}
		return nil, nil
	})
	if err != nil && errors.Is(err, gobreaker.ErrOpenState) {
		return errors.New("circuit open")
	}
	return err
}
