// Package restclient fronts the upstream wedding REST API: it attaches
// bearer credentials, serves cached GET responses transparently, normalizes
// every failure to one error shape and reacts globally to authentication
// loss.
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/evermore-app/evermore/backend/internal/offlinecache"
	"github.com/evermore-app/evermore/backend/internal/requestcache"
	"go.uber.org/zap"
)

const (
	defaultTimeout       = 15 * time.Second
	defaultUploadTimeout = 90 * time.Second
)

var errMissingBaseURL = errors.New("restclient: base url is required")

// Notifier receives a fire-and-forget event for every normalized error, on
// top of the error returned to the caller. Both always happen.
type Notifier interface {
	Notify(eventType, message string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(eventType, message string)

// Notify implements Notifier.
func (f NotifierFunc) Notify(eventType, message string) {
	f(eventType, message)
}

// Config wires the client's collaborators. Credentials, Requests, Offline,
// Notifier and OnSessionExpired are all optional.
type Config struct {
	BaseURL          string
	HTTPClient       *http.Client
	Credentials      CredentialStore
	Requests         *requestcache.Cache
	Offline          *offlinecache.Cache
	Notifier         Notifier
	OnSessionExpired func()
	Timeout          time.Duration
	UploadTimeout    time.Duration
	Logger           *zap.Logger
}

// Client issues calls against the upstream REST API.
type Client struct {
	baseURL          string
	httpClient       *http.Client
	credentials      CredentialStore
	requests         *requestcache.Cache
	offline          *offlinecache.Cache
	notifier         Notifier
	onSessionExpired func()
	timeout          time.Duration
	uploadTimeout    time.Duration
	logger           *zap.Logger
	online           atomic.Bool
}

// NewClient constructs a REST client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errMissingBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	uploadTimeout := cfg.UploadTimeout
	if uploadTimeout <= 0 {
		uploadTimeout = defaultUploadTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	client := &Client{
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:       httpClient,
		credentials:      cfg.Credentials,
		requests:         cfg.Requests,
		offline:          cfg.Offline,
		notifier:         cfg.Notifier,
		onSessionExpired: cfg.OnSessionExpired,
		timeout:          timeout,
		uploadTimeout:    uploadTimeout,
		logger:           logger,
	}
	client.online.Store(true)
	return client, nil
}

// Online reports whether the last transport attempt succeeded.
func (c *Client) Online() bool {
	return c.online.Load()
}

// Get issues a cached, de-duplicated read. A request-cache hit skips the
// network entirely and returns through the same success path as a live
// response. Transport failures fall back to the offline cache when the
// client believes itself offline.
func (c *Client) Get(ctx context.Context, endpoint string, params map[string]string, out any) error {
	if c.requests != nil {
		if cached, ok := c.requests.Get(endpoint, params); ok {
			if body, ok := cached.([]byte); ok {
				return decodeInto(body, out)
			}
		}
	}

	key := requestcache.Key(endpoint, params)
	factory := func() (any, error) {
		return c.do(ctx, http.MethodGet, endpoint, params, nil, "", c.timeout)
	}

	var result any
	var err error
	if c.requests != nil {
		result, err = c.requests.Deduplicate(key, factory)
	} else {
		result, err = factory()
	}
	if err != nil {
		if c.offlineFallbackEligible(err) {
			var stored json.RawMessage
			if c.offline.Get(offlineKey(endpoint, params), &stored) {
				return decodeInto(stored, out)
			}
		}
		return err
	}

	body, _ := result.([]byte)
	if c.requests != nil {
		c.requests.Set(http.MethodGet, endpoint, params, body, 0)
	}
	if c.offline != nil {
		bucket := bucketForEndpoint(endpoint)
		c.offline.Set(offlineKey(endpoint, params), json.RawMessage(body), offlinecache.DefaultTTL(bucket))
	}
	return decodeInto(body, out)
}

// Post issues a JSON mutation. Mutations never enter any cache tier.
func (c *Client) Post(ctx context.Context, endpoint string, payload any, out any) error {
	return c.mutate(ctx, http.MethodPost, endpoint, payload, out)
}

// Put issues a JSON mutation.
func (c *Client) Put(ctx context.Context, endpoint string, payload any, out any) error {
	return c.mutate(ctx, http.MethodPut, endpoint, payload, out)
}

// Delete issues a deletion.
func (c *Client) Delete(ctx context.Context, endpoint string, out any) error {
	return c.mutate(ctx, http.MethodDelete, endpoint, nil, out)
}

// Upload sends a multipart form with the extended upload timeout.
func (c *Client) Upload(ctx context.Context, endpoint, fileField, fileName string, file io.Reader, fields map[string]string, out any) error {
	var buffer bytes.Buffer
	writer := multipart.NewWriter(&buffer)
	part, err := writer.CreateFormFile(fileField, fileName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	for field, value := range fields {
		if err := writer.WriteField(field, value); err != nil {
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}

	body, err := c.do(ctx, http.MethodPost, endpoint, nil, &buffer, writer.FormDataContentType(), c.uploadTimeout)
	if err != nil {
		return err
	}
	return decodeInto(body, out)
}

// Forward relays a request verbatim, bearer attached, bypassing every cache
// tier. Used by the gateway's mutation proxy.
func (c *Client) Forward(ctx context.Context, method, endpoint, contentType string, body io.Reader) ([]byte, error) {
	return c.do(ctx, method, endpoint, nil, body, contentType, c.timeout)
}

func (c *Client) mutate(ctx context.Context, method, endpoint string, payload any, out any) error {
	var body io.Reader
	contentType := ""
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
		contentType = "application/json"
	}
	responseBody, err := c.do(ctx, method, endpoint, nil, body, contentType, c.timeout)
	if err != nil {
		return err
	}
	return decodeInto(responseBody, out)
}

func (c *Client) do(ctx context.Context, method, endpoint string, params map[string]string, body io.Reader, contentType string, timeout time.Duration) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	requestCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(requestCtx, method, c.requestURL(endpoint, params), body)
	if err != nil {
		return nil, c.fail(normalizeTransport(err))
	}
	if contentType != "" {
		request.Header.Set("Content-Type", contentType)
	}
	if c.credentials != nil {
		if token, ok := c.credentials.Token(); ok {
			request.Header.Set("Authorization", "Bearer "+token)
		}
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		c.online.Store(false)
		return nil, c.fail(normalizeTransport(err))
	}
	defer response.Body.Close()
	c.online.Store(true)

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, c.fail(normalizeTransport(err))
	}

	if response.StatusCode >= http.StatusBadRequest {
		apiError := normalizeStatus(response.StatusCode, responseBody)
		if response.StatusCode == http.StatusUnauthorized {
			c.handleSessionExpired()
		}
		return nil, c.fail(apiError)
	}
	return responseBody, nil
}

// handleSessionExpired treats a 401 as a global session fault: credentials
// and the whole request cache go, then the redirect hook fires. The
// triggering call still fails; other in-flight requests are left to settle
// harmlessly.
func (c *Client) handleSessionExpired() {
	if c.credentials != nil {
		c.credentials.Clear()
	}
	if c.requests != nil {
		c.requests.Clear()
	}
	if c.onSessionExpired != nil {
		c.onSessionExpired()
	}
	c.logger.Warn("session expired, credentials cleared")
}

func (c *Client) fail(apiError *APIError) error {
	if c.notifier != nil {
		c.notifier.Notify("error", apiError.Message)
	}
	return apiError
}

func (c *Client) offlineFallbackEligible(err error) bool {
	if c.offline == nil || c.online.Load() {
		return false
	}
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.StatusCode == 0
}

func (c *Client) requestURL(endpoint string, params map[string]string) string {
	full := c.baseURL + endpoint
	if len(params) == 0 {
		return full
	}
	query := url.Values{}
	for name, value := range params {
		query.Set(name, value)
	}
	return full + "?" + query.Encode()
}

func decodeInto(body []byte, out any) error {
	if out == nil || len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// offlineKey buckets durable entries by resource family so invalidation can
// clear a family with one prefix sweep.
func offlineKey(endpoint string, params any) string {
	return bucketForEndpoint(endpoint) + ":" + requestcache.Key(endpoint, params)
}

func bucketForEndpoint(endpoint string) string {
	trimmed := strings.TrimPrefix(endpoint, "/")
	if slash := strings.IndexByte(trimmed, '/'); slash >= 0 {
		trimmed = trimmed[:slash]
	}
	switch trimmed {
	case offlinecache.BucketAlbums, offlinecache.BucketInvitations, offlinecache.BucketRSVP, offlinecache.BucketStats:
		return trimmed
	default:
		return offlinecache.BucketStats
	}
}
