package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/skypies/geo"

	"github.com/yash/flightvectors/internal/metrics"
	"github.com/yash/flightvectors/pkg/models"
)

const (
	defaultBaseURL = "https://opensky-network.org/api"

	// OpenSky OAuth2 token endpoint
	defaultTokenURL = "https://auth.opensky-network.org/auth/realms/opensky-network/protocol/openid-connect/token"

	// Refresh tokens this long before they actually expire
	tokenRefreshBuffer = 2 * time.Minute

	// Connection pool settings
	maxIdleConns        = 10
	maxConnsPerHost     = 5
	idleConnTimeout     = 90 * time.Second
	tlsHandshakeTimeout = 10 * time.Second

	// Columns in a /states/all row up to and including position_source
	stateColumns = 17
)

// ErrAircraftNotFound is returned when the metadata database has no entry
// for an icao24 address.
var ErrAircraftNotFound = errors.New("aircraft not found")

// ---------------------------------------------------------------------------
// OAuth2 Token Management
// ---------------------------------------------------------------------------

// tokenResponse mirrors the JSON from the OpenSky token endpoint.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"` // seconds
	TokenType   string `json:"token_type"`
}

// TokenManager handles the OAuth2 client-credentials token lifecycle.
type TokenManager struct {
	clientID     string
	clientSecret string
	tokenURL     string
	httpClient   *http.Client

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

// NewTokenManager creates a token manager for the client credentials flow.
func NewTokenManager(clientID, clientSecret string) *TokenManager {
	return &TokenManager{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     defaultTokenURL,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
	}
}

// WithTokenURL overrides the token endpoint (useful for testing).
func (tm *TokenManager) WithTokenURL(u string) *TokenManager {
	tm.tokenURL = u
	return tm
}

// Token returns a valid access token, refreshing if needed.
func (tm *TokenManager) Token(ctx context.Context) (string, error) {
	tm.mu.RLock()
	if tm.token != "" && time.Now().Before(tm.expiresAt) {
		tok := tm.token
		tm.mu.RUnlock()
		return tok, nil
	}
	tm.mu.RUnlock()

	return tm.refresh(ctx)
}

func (tm *TokenManager) refresh(ctx context.Context) (string, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	if tm.token != "" && time.Now().Before(tm.expiresAt) {
		return tm.token, nil
	}

	data := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {tm.clientID},
		"client_secret": {tm.clientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tm.tokenURL,
		strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := tm.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token request failed (status %d): %s", resp.StatusCode, string(body))
	}

	var tokResp tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokResp); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}

	tm.token = tokResp.AccessToken
	tm.expiresAt = time.Now().Add(time.Duration(tokResp.ExpiresIn)*time.Second - tokenRefreshBuffer)

	return tm.token, nil
}

// Credentials holds OAuth2 client credentials loaded from credentials.json.
type Credentials struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

// LoadCredentials reads OAuth2 credentials from a JSON file.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing credentials file: %w", err)
	}

	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("credentials file missing clientId or clientSecret")
	}

	return &creds, nil
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL sets the API base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithCredentials sets Basic Auth credentials (legacy accounts).
func WithCredentials(username, password string) ClientOption {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithClientCredentials sets OAuth2 client credentials for token-based auth.
func WithClientCredentials(clientID, clientSecret string) ClientOption {
	return func(c *Client) {
		c.tokenManager = NewTokenManager(clientID, clientSecret)
	}
}

// WithTokenManager sets a custom token manager (useful for testing).
func WithTokenManager(tm *TokenManager) ClientOption {
	return func(c *Client) { c.tokenManager = tm }
}

// Client talks to the OpenSky Network REST API. It makes exactly one request
// per call; callers decide what to do on failure.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	username     string
	password     string
	tokenManager *TokenManager
}

// NewClient creates an OpenSky API client with connection pooling.
func NewClient(opts ...ClientOption) *Client {
	transport := &http.Transport{
		MaxIdleConns:        maxIdleConns,
		MaxConnsPerHost:     maxConnsPerHost,
		IdleConnTimeout:     idleConnTimeout,
		TLSHandshakeTimeout: tlsHandshakeTimeout,
	}

	c := &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) newRequest(ctx context.Context, endpoint string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	// Prefer OAuth2 bearer tokens, fall back to Basic Auth
	if c.tokenManager != nil {
		token, err := c.tokenManager.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("obtaining access token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	} else if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

// statesResponse mirrors the JSON shape returned by /states/all.
type statesResponse struct {
	Time   int64           `json:"time"`
	States [][]interface{} `json:"states"`
}

// FetchStates retrieves the current state vectors inside box.
func (c *Client) FetchStates(ctx context.Context, box geo.LatlongBox) ([]models.StateVector, error) {
	start := time.Now()
	metrics.FetchRequests.Inc()
	defer metrics.FetchLatency.Since(start)

	q := url.Values{}
	q.Set("lamin", formatCoord(box.SW.Lat))
	q.Set("lomin", formatCoord(box.SW.Long))
	q.Set("lamax", formatCoord(box.NE.Lat))
	q.Set("lomax", formatCoord(box.NE.Long))

	vectors, err := c.fetchStates(ctx, "/states/all?"+q.Encode())
	if err != nil {
		metrics.FetchErrors.Inc()
		return nil, err
	}
	metrics.RecordsReceived.Add(int64(len(vectors)))
	return vectors, nil
}

func (c *Client) fetchStates(ctx context.Context, endpoint string) ([]models.StateVector, error) {
	req, err := c.newRequest(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var raw statesResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	return parseStates(raw), nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// parseStates decodes positional rows, keeping nulls as nil pointers.
func parseStates(raw statesResponse) []models.StateVector {
	vectors := make([]models.StateVector, 0, len(raw.States))
	for _, s := range raw.States {
		if len(s) < stateColumns {
			continue
		}
		sv := models.StateVector{
			ICAO24:        stringVal(s[0]),
			Callsign:      stringPtr(s[1]),
			OriginCountry: stringVal(s[2]),
			Longitude:     floatPtr(s[5]),
			Latitude:      floatPtr(s[6]),
			BaroAltitude:  floatPtr(s[7]),
			OnGround:      boolVal(s[8]),
			Velocity:      floatPtr(s[9]),
			TrueTrack:     floatPtr(s[10]),
			VerticalRate:  floatPtr(s[11]),
			GeoAltitude:   floatPtr(s[13]),
		}
		if v, ok := s[4].(float64); ok {
			sv.LastContact = int64(v)
		}
		vectors = append(vectors, sv)
	}
	return vectors
}

func stringVal(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func stringPtr(v interface{}) *string {
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}

func floatPtr(v interface{}) *float64 {
	if f, ok := v.(float64); ok {
		return &f
	}
	return nil
}

func boolVal(v interface{}) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return false
}

// ---------------------------------------------------------------------------
// Aircraft Metadata
// ---------------------------------------------------------------------------

// aircraftResponse is the subset of /metadata/aircraft/icao/{icao24} we use.
type aircraftResponse struct {
	ICAO24           string `json:"icao24"`
	Registration     string `json:"registration"`
	ManufacturerName string `json:"manufacturerName"`
	Model            string `json:"model"`
	Typecode         string `json:"typecode"`
	Owner            string `json:"owner"`
}

// FetchAircraft looks up registry metadata for one icao24 address. Empty
// fields in the response are reported as "unknown".
func (c *Client) FetchAircraft(ctx context.Context, icao24 string) (models.AircraftInfo, error) {
	icao24 = strings.ToLower(strings.TrimSpace(icao24))
	if icao24 == "" {
		return models.AircraftInfo{}, ErrAircraftNotFound
	}

	req, err := c.newRequest(ctx, "/metadata/aircraft/icao/"+url.PathEscape(icao24))
	if err != nil {
		return models.AircraftInfo{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.AircraftInfo{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return models.AircraftInfo{}, fmt.Errorf("%s: %w", icao24, ErrAircraftNotFound)
	default:
		return models.AircraftInfo{}, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var raw aircraftResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return models.AircraftInfo{}, fmt.Errorf("parsing response: %w", err)
	}

	model := raw.Model
	if model == "" {
		model = raw.Typecode
	}
	return models.AircraftInfo{
		Manufacturer:     orUnknown(raw.ManufacturerName),
		Type:             orUnknown(model),
		RegisteredOwners: orUnknown(raw.Owner),
	}, nil
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return models.Unknown
	}
	return s
}
