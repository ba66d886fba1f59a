// Package geocode resolves postal addresses to coordinates.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"places-backend/internal/apperror"
	"places-backend/internal/metrics"
	"places-backend/internal/models"

	"golang.org/x/time/rate"
)

const (
	DefaultGoogleBaseURL = "https://maps.googleapis.com"

	notFoundMessage = "Could not find location for the specified address."
	failedMessage   = "Could not resolve the address, please try again later."
)

// Geocoder resolves an address to coordinates
type Geocoder interface {
	Resolve(ctx context.Context, address string) (models.Location, error)
}

// GoogleConfig configures the Google Geocoding API client
type GoogleConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	// RPS and Burst throttle outgoing requests; RPS <= 0 disables throttling.
	RPS   float64
	Burst int
}

// GoogleGeocoder queries the Google Geocoding API
type GoogleGeocoder struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewGoogleGeocoder creates a Google Geocoding API client
func NewGoogleGeocoder(cfg GoogleConfig) *GoogleGeocoder {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultGoogleBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	return &GoogleGeocoder{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
	}
}

type googleResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		Geometry struct {
			Location models.Location `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Resolve looks up the coordinates of address
func (g *GoogleGeocoder) Resolve(ctx context.Context, address string) (models.Location, error) {
	loc, err := g.resolve(ctx, address)
	metrics.GeocodeRequests.WithLabelValues("google", outcome(err)).Inc()
	return loc, err
}

func (g *GoogleGeocoder) resolve(ctx context.Context, address string) (models.Location, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return models.Location{}, apperror.Geocode(failedMessage, http.StatusInternalServerError, err)
	}

	query := url.Values{}
	query.Set("address", address)
	query.Set("key", g.apiKey)
	endpoint := g.baseURL + "/maps/api/geocode/json?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.Location{}, apperror.Geocode(failedMessage, http.StatusInternalServerError, err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return models.Location{}, apperror.Geocode(failedMessage, http.StatusInternalServerError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Location{}, apperror.Geocode(failedMessage, http.StatusInternalServerError,
			fmt.Errorf("geocoding api returned status %d", resp.StatusCode))
	}

	var body googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.Location{}, apperror.Geocode(failedMessage, http.StatusInternalServerError,
			fmt.Errorf("failed to decode geocoding response: %w", err))
	}

	switch {
	case body.Status == "ZERO_RESULTS", body.Status == "OK" && len(body.Results) == 0:
		return models.Location{}, apperror.Geocode(notFoundMessage, http.StatusUnprocessableEntity, nil)
	case body.Status != "OK":
		return models.Location{}, apperror.Geocode(failedMessage, http.StatusInternalServerError,
			fmt.Errorf("geocoding api status %s: %s", body.Status, body.ErrorMessage))
	}

	return body.Results[0].Geometry.Location, nil
}

// StaticGeocoder resolves every address to the same coordinates
type StaticGeocoder struct {
	Location models.Location
}

// Resolve returns the configured location
func (g StaticGeocoder) Resolve(ctx context.Context, _ string) (models.Location, error) {
	if err := ctx.Err(); err != nil {
		return models.Location{}, apperror.Geocode(failedMessage, http.StatusInternalServerError, err)
	}
	metrics.GeocodeRequests.WithLabelValues("static", "ok").Inc()
	return g.Location, nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if apperror.StatusOf(err) == http.StatusUnprocessableEntity {
		return "not_found"
	}
	return "error"
}
