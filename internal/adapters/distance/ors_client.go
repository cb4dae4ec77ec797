package distance

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ORSClient implements RoutingService and Geocoder using OpenRouteService.
//
// It coordinates:
//   - Matrix requests (one origin row per call or a full block)
//   - Geocoding of administrative place names
//   - A shared request rate limit and retry/backoff on transient failures
//
// The client is safe for concurrent use; the limiter serialises bursts from
// the provider's worker pool.
type ORSClient struct {
	session *http.Client
	apiKey  string
	baseURL string
	profile string
	country string
	limiter *rate.Limiter
}

type ORSOption func(*ORSClient)

func WithBaseURL(u string) ORSOption {
	return func(o *ORSClient) { o.baseURL = strings.TrimRight(u, "/") }
}

func WithProfile(p string) ORSOption {
	return func(o *ORSClient) { o.profile = p }
}

func WithCountry(c string) ORSOption {
	return func(o *ORSClient) { o.country = c }
}

// WithRateLimit caps requests per second across all callers. Zero or less disables the limit.
func WithRateLimit(perSecond float64) ORSOption {
	return func(o *ORSClient) {
		if perSecond <= 0 {
			o.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		o.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

func WithHTTPClient(c *http.Client) ORSOption {
	return func(o *ORSClient) { o.session = c }
}

func NewORSClient(apiKey string, opts ...ORSOption) (*ORSClient, error) {
	if apiKey == "" {
		return nil, errors.New("ORS api key is empty")
	}

	client := &ORSClient{
		session: &http.Client{Timeout: 30 * time.Second},
		apiKey:  apiKey,
		baseURL: "https://api.openrouteservice.org",
		profile: "driving-hgv",
		limiter: rate.NewLimiter(rate.Limit(0.6), 1),
	}
	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// normalize collapses whitespace in free-text queries.
func (o *ORSClient) normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
