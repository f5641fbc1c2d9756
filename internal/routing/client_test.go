package routing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lohun/driverlog/internal/config"
	"github.com/lohun/driverlog/internal/hos"
)

var (
	chicago = hos.Location{Lat: 41.8781, Lng: -87.6298}
	omaha   = hos.Location{Lat: 41.2565, Lng: -95.9345}
	denver  = hos.Location{Lat: 39.7392, Lng: -104.9903}
)

func newBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "test"})
}

// makeClient returns a Client whose httpDo is stubbed with fn.
func makeClient(fn func(req *http.Request) (*http.Response, error)) *Client {
	c := NewClient(config.RoutingConfig{
		DirectionsURL: "https://ors.example/v2",
		APIKey:        "test-key",
		GeocodeURL:    "https://nominatim.example",
		UserAgent:     "driverlog-test",
		AvgSpeedMPH:   55,
	}, newBreaker())
	c.httpDo = fn
	return c
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

const directionsBody = `{
  "features": [{
    "geometry": {"coordinates": [[-87.6298, 41.8781, 180.0], [-95.9345, 41.2565, 300.0], [-104.9903, 39.7392, 1600.0]]},
    "properties": {"segments": [
      {"distance": 470.5, "duration": 30600, "steps": [{"distance": 470.5, "instruction": "Head west on I-80"}]},
      {"distance": 537.2, "duration": 34200, "steps": [{"distance": 537.2, "instruction": "Continue on I-76"}]}
    ]}
  }]
}`

func TestDirections_ParsesProviderResponse(t *testing.T) {
	t.Parallel()

	var gotAuth string
	c := makeClient(func(req *http.Request) (*http.Response, error) {
		gotAuth = req.Header.Get("Authorization")
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Contains(t, req.URL.Path, "driving-hgv")
		return jsonResponse(http.StatusOK, directionsBody), nil
	})

	route := c.Directions(context.Background(), chicago, omaha, denver)
	require.NotNil(t, route)

	assert.Equal(t, "test-key", gotAuth)
	// Coordinates flipped from [lng,lat,ele] to [lat,lng].
	require.Len(t, route.Coordinates, 3)
	assert.Equal(t, hos.Coordinate{41.8781, -87.6298}, route.Coordinates[0])
	assert.InDelta(t, 1007.7, route.DistanceMiles, 0.01)
	// 64800 seconds = 18 hours.
	assert.InDelta(t, 18.0, route.DurationHours, 0.01)
	require.Len(t, route.Instructions, 2)
	assert.Equal(t, "Head west on I-80 (470.5 miles)", route.Instructions[0])
}

func TestDirections_FallsBackOnProviderError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		do   func(req *http.Request) (*http.Response, error)
	}{
		{
			name: "transport error",
			do: func(_ *http.Request) (*http.Response, error) {
				return nil, errors.New("connection refused")
			},
		},
		{
			name: "provider 500",
			do: func(_ *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusInternalServerError, `{}`), nil
			},
		},
		{
			name: "empty feature list",
			do: func(_ *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `{"features": []}`), nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := makeClient(tt.do)
			route := c.Directions(context.Background(), chicago, omaha, denver)
			require.NotNil(t, route)

			// Fallback: three-point route, haversine legs at 55 mph.
			require.Len(t, route.Coordinates, 3)
			assert.Equal(t, hos.Coordinate{chicago.Lat, chicago.Lng}, route.Coordinates[0])
			assert.Greater(t, route.DistanceMiles, 800.0)
			assert.Less(t, route.DistanceMiles, 1100.0)
			assert.InDelta(t, route.DistanceMiles/55, route.DurationHours, 0.001)
			require.Len(t, route.Instructions, 2)
			assert.Contains(t, route.Instructions[0], "pickup location")
		})
	}
}

func TestGeocode(t *testing.T) {
	t.Parallel()

	c := makeClient(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "driverlog-test", req.Header.Get("User-Agent"))
		assert.Equal(t, "Chicago, IL", req.URL.Query().Get("q"))
		return jsonResponse(http.StatusOK,
			`[{"lat": "41.8781", "lon": "-87.6298", "display_name": "Chicago, Cook County, Illinois"}]`), nil
	})

	loc, err := c.Geocode(context.Background(), "Chicago, IL")
	require.NoError(t, err)
	assert.Equal(t, 41.8781, loc.Lat)
	assert.Equal(t, -87.6298, loc.Lng)
	assert.Equal(t, "Chicago, Cook County, Illinois", loc.Address)
}

func TestGeocode_NoResult(t *testing.T) {
	t.Parallel()

	c := makeClient(func(_ *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `[]`), nil
	})

	_, err := c.Geocode(context.Background(), "nowhere at all")
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestGeocode_CircuitOpens(t *testing.T) {
	t.Parallel()

	c := makeClient(func(_ *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})

	// gobreaker trips after 5 consecutive failures by default.
	for i := 0; i < 6; i++ {
		_, _ = c.Geocode(context.Background(), "Chicago, IL")
	}

	_, err := c.Geocode(context.Background(), "Chicago, IL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit open")
}

func TestHealthy(t *testing.T) {
	t.Parallel()

	c := makeClient(func(req *http.Request) (*http.Response, error) {
		assert.True(t, strings.HasSuffix(req.URL.Path, "/health"))
		return jsonResponse(http.StatusOK, `{"status":"ready"}`), nil
	})
	assert.NoError(t, c.Healthy(context.Background()))

	c = makeClient(func(_ *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusServiceUnavailable, `{}`), nil
	})
	assert.Error(t, c.Healthy(context.Background()))
}

func TestHaversineMiles(t *testing.T) {
	t.Parallel()

	// Chicago–Denver is roughly 920 miles great-circle.
	d := haversineMiles(chicago, denver)
	assert.InDelta(t, 920, d, 20)

	assert.Zero(t, haversineMiles(chicago, chicago))
}
