// Package who wraps the WHO ICD-11 API. It is an optional enrichment
// source: callers treat every failure as "unvalidated" and continue, so
// outages never reach the translate/validate path.
package who

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const (
	entityCacheTTL = 24 * time.Hour
	searchCacheTTL = 6 * time.Hour
)

// ExternalServiceError indicates the WHO API was unreachable or returned an
// unexpected response. Callers degrade rather than propagate it.
type ExternalServiceError struct {
	Op  string
	Err error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("who api %s: %v", e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// Entity is the subset of a WHO ICD-11 entity the service uses.
type Entity struct {
	ID         string `json:"@id"`
	Code       string `json:"code"`
	Title      string `json:"title"`
	Definition string `json:"definition"`
}

// SearchHit is a single result from the ICD-11 search endpoint.
type SearchHit struct {
	ID    string  `json:"id"`
	Code  string  `json:"theCode"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// Verification is the outcome of a best-effort code check against the WHO
// API. Status is "validated", "not-found" or "unvalidated" (API unavailable).
type Verification struct {
	Code   string `json:"code"`
	Status string `json:"status"`
	Title  string `json:"title,omitempty"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type searchResponse struct {
	DestinationEntities []SearchHit `json:"destinationEntities"`
}

// Client calls the WHO ICD-11 API with OAuth2 client-credentials auth and
// per-operation TTL caches.
type Client struct {
	http         *resty.Client
	tokenURL     string
	clientID     string
	clientSecret string
	logger       zerolog.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time

	entityCache *ttlCache
	searchCache *ttlCache
}

// NewClient creates a WHO API client. timeout bounds every request so a slow
// WHO endpoint cannot stall callers.
func NewClient(baseURL, tokenURL, clientID, clientSecret string, timeout time.Duration, logger zerolog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Accept-Language", "en").
		SetHeader("API-Version", "v2")

	return &Client{
		http:         httpClient,
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		logger:       logger,
		entityCache:  newTTLCache(entityCacheTTL),
		searchCache:  newTTLCache(searchCacheTTL),
	}
}

// token returns a valid access token, fetching a fresh one when the cached
// token is absent or about to expire.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-30*time.Second)) {
		return c.accessToken, nil
	}

	var tok tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type":    "client_credentials",
			"client_id":     c.clientID,
			"client_secret": c.clientSecret,
			"scope":         "icdapi_access",
		}).
		SetResult(&tok).
		Post(c.tokenURL)
	if err != nil {
		return "", &ExternalServiceError{Op: "token", Err: err}
	}
	if resp.IsError() {
		return "", &ExternalServiceError{Op: "token", Err: fmt.Errorf("status %d", resp.StatusCode())}
	}
	if tok.AccessToken == "" {
		return "", &ExternalServiceError{Op: "token", Err: fmt.Errorf("empty access token")}
	}

	c.accessToken = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

// GetEntity fetches an ICD-11 entity by id. Results are cached for 24h.
func (c *Client) GetEntity(ctx context.Context, entityID string) (*Entity, error) {
	if cached, ok := c.entityCache.Get(entityID); ok {
		return cached.(*Entity), nil
	}

	tok, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	var entity Entity
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(tok).
		SetResult(&entity).
		Get("/entity/" + entityID)
	if err != nil {
		return nil, &ExternalServiceError{Op: "entity", Err: err}
	}
	if resp.IsError() {
		return nil, &ExternalServiceError{Op: "entity", Err: fmt.Errorf("status %d", resp.StatusCode())}
	}

	c.entityCache.Set(entityID, &entity)
	return &entity, nil
}

// Search runs a free-text search against ICD-11 MMS. Results are cached for 6h.
func (c *Client) Search(ctx context.Context, term string) ([]SearchHit, error) {
	if cached, ok := c.searchCache.Get(term); ok {
		return cached.([]SearchHit), nil
	}

	tok, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	var result searchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(tok).
		SetQueryParam("q", term).
		SetQueryParam("flatResults", "true").
		SetResult(&result).
		Get("/release/11/2024-01/mms/search")
	if err != nil {
		return nil, &ExternalServiceError{Op: "search", Err: err}
	}
	if resp.IsError() {
		return nil, &ExternalServiceError{Op: "search", Err: fmt.Errorf("status %d", resp.StatusCode())}
	}

	c.searchCache.Set(term, result.DestinationEntities)
	return result.DestinationEntities, nil
}

// VerifyCode checks whether an ICD-11 code resolves via the WHO API. A
// matching hit is followed up with an entity fetch for the canonical title;
// any API failure degrades to status "unvalidated" instead of returning an
// error.
func (c *Client) VerifyCode(ctx context.Context, code, title string) Verification {
	hits, err := c.Search(ctx, code)
	if err != nil {
		c.logger.Warn().Err(err).Str("code", code).Msg("who verification unavailable")
		return Verification{Code: code, Status: "unvalidated"}
	}
	for _, hit := range hits {
		if hit.Code != code {
			continue
		}
		verifiedTitle := hit.Title
		if entity, err := c.GetEntity(ctx, hit.ID); err == nil && entity.Title != "" {
			verifiedTitle = entity.Title
		}
		return Verification{Code: code, Status: "validated", Title: verifiedTitle}
	}
	return Verification{Code: code, Status: "not-found", Title: title}
}
