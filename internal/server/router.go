// Package server exposes the sync core to browsers: snapshot streams over
// SSE and a mutation proxy that forwards writes upstream and fires cache
// invalidation on success.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/evermore-app/evermore/backend/internal/binding"
	"github.com/evermore-app/evermore/backend/internal/invalidation"
	"github.com/evermore-app/evermore/backend/internal/restclient"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	errMissingBinder = errors.New("binder dependency required")
	errMissingClient = errors.New("rest client dependency required")
	errMissingBus    = errors.New("invalidation bus dependency required")
)

// Dependencies wires the HTTP layer to the core.
type Dependencies struct {
	Binder *binding.Binder
	Client *restclient.Client
	Bus    *invalidation.Bus
	Logger *zap.Logger
}

// NewHTTPHandler builds the gin router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Binder == nil {
		return nil, errMissingBinder
	}
	if deps.Client == nil {
		return nil, errMissingClient
	}
	if deps.Bus == nil {
		return nil, errMissingBus
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		binder: deps.Binder,
		client: deps.Client,
		bus:    deps.Bus,
		logger: logger,
	}

	router.GET("/healthz", handler.handleHealth)

	watch := router.Group("/watch")
	watch.GET("/invitations", handler.handleWatchInvitations)
	watch.GET("/invitations/qr/:code", handler.handleWatchInvitationByCode)
	watch.GET("/albums", handler.handleWatchAlbums)
	watch.GET("/albums/qr/:code", handler.handleWatchAlbumByCode)
	watch.GET("/albums/:albumID/media", handler.handleWatchAlbumMedia)
	watch.GET("/media", handler.handleWatchAllMedia)
	watch.GET("/media/pending", handler.handleWatchPendingMedia)
	watch.GET("/rsvps", handler.handleWatchRSVPs)
	watch.GET("/rsvp/qr/:code", handler.handleWatchRSVPByCode)
	watch.GET("/stats", handler.handleWatchStats)

	api := router.Group("/api")
	api.GET("/*upstream", handler.handleProxyRead)
	api.POST("/*upstream", handler.handleProxyMutation)
	api.PUT("/*upstream", handler.handleProxyMutation)
	api.PATCH("/*upstream", handler.handleProxyMutation)
	api.DELETE("/*upstream", handler.handleProxyMutation)

	return router, nil
}

type httpHandler struct {
	binder *binding.Binder
	client *restclient.Client
	bus    *invalidation.Bus
	logger *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleProxyRead serves reads through the cached REST client path.
func (h *httpHandler) handleProxyRead(c *gin.Context) {
	endpoint := c.Param("upstream")
	params := make(map[string]string)
	for name, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			params[name] = values[0]
		}
	}

	var payload json.RawMessage
	if err := h.client.Get(c.Request.Context(), endpoint, params, &payload); err != nil {
		h.writeAPIError(c, err)
		return
	}
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	c.Data(http.StatusOK, "application/json", payload)
}

// handleProxyMutation forwards a write upstream and, on success,
// invalidates the affected resource family plus the derived stats.
func (h *httpHandler) handleProxyMutation(c *gin.Context) {
	endpoint := c.Param("upstream")
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	responseBody, err := h.client.Forward(c.Request.Context(), c.Request.Method, endpoint, c.ContentType(), bytes.NewReader(body))
	if err != nil {
		h.writeAPIError(c, err)
		return
	}

	resourceKey := resourceKeyFor(endpoint)
	h.bus.Invalidate(resourceKey, "mutation")
	if resourceKey != invalidation.ResourceStats {
		h.bus.Invalidate(invalidation.ResourceStats, "mutation")
	}

	if len(responseBody) == 0 {
		responseBody = []byte("null")
	}
	c.Data(http.StatusOK, "application/json", responseBody)
}

func (h *httpHandler) writeAPIError(c *gin.Context, err error) {
	var apiError *restclient.APIError
	if errors.As(err, &apiError) {
		status := apiError.StatusCode
		if status == 0 {
			status = http.StatusBadGateway
		}
		c.JSON(status, apiError)
		return
	}
	h.logger.Error("proxy request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "proxy_failed"})
}

// resourceKeyFor maps an upstream path to its invalidation resource family.
func resourceKeyFor(endpoint string) string {
	trimmed := strings.TrimPrefix(endpoint, "/")
	if slash := strings.IndexByte(trimmed, '/'); slash >= 0 {
		trimmed = trimmed[:slash]
	}
	switch trimmed {
	case "media":
		// Media writes surface through album listings.
		return invalidation.ResourceAlbums
	case "invitations", "albums", "rsvp", "stats":
		return "/" + trimmed
	default:
		return "/" + trimmed
	}
}
