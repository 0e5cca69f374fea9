package directions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"courier-track/internal/domain/geo"
	"courier-track/internal/general/logger"
)

// ErrRouteProvider wraps every failure mode of the external directions API.
// Callers are expected to fall back to a straight-line route rather than
// surface this error.
var ErrRouteProvider = errors.New("route provider unavailable")

// Client talks to an OSRM-compatible routing API and returns encoded
// polylines for courier routes.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *logger.Logger
}

// NewClient builds a directions client. timeout bounds every request.
func NewClient(baseURL string, timeout time.Duration, logger *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// routeResponse is the subset of the OSRM /route answer we care about.
// geometries=polyline makes Geometry an encoded polyline string.
type routeResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Geometry string `json:"geometry"`
	} `json:"routes"`
}

// FetchRoute requests a driving route and returns its encoded polyline.
// Any failure (network, non-200, bad body, empty route set) wraps
// ErrRouteProvider.
func (c *Client) FetchRoute(ctx context.Context, origin, destination geo.Coordinate) (string, error) {
	// OSRM wants lon,lat ordering
	url := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=polyline",
		c.baseURL, origin.Longitude, origin.Latitude, destination.Longitude, destination.Latitude)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrRouteProvider, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error(ctx, "route_fetch_failed", "Directions request failed", err, nil)
		return "", fmt.Errorf("%w: %v", ErrRouteProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error(ctx, "route_fetch_failed", "Directions API returned non-200", nil, map[string]any{
			"status_code": resp.StatusCode,
		})
		return "", fmt.Errorf("%w: status %d", ErrRouteProvider, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrRouteProvider, err)
	}

	var parsed routeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode body: %v", ErrRouteProvider, err)
	}

	if parsed.Code != "" && parsed.Code != "Ok" {
		return "", fmt.Errorf("%w: api code %s", ErrRouteProvider, parsed.Code)
	}
	if len(parsed.Routes) == 0 || parsed.Routes[0].Geometry == "" {
		return "", fmt.Errorf("%w: empty route set", ErrRouteProvider)
	}

	return parsed.Routes[0].Geometry, nil
}
