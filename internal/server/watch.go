package server

import (
	"io"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// watchSource is the untyped surface every binding watcher exposes.
type watchSource interface {
	Snapshot() (any, bool, error)
	Updates() <-chan struct{}
	Close()
}

type watchState struct {
	Data    any    `json:"data"`
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

func (h *httpHandler) handleWatchInvitations(c *gin.Context) {
	watcher, err := h.binder.Invitations()
	h.streamWatcher(c, watcher, err)
}

func (h *httpHandler) handleWatchInvitationByCode(c *gin.Context) {
	watcher, err := h.binder.InvitationByCode(c.Param("code"))
	h.streamWatcher(c, watcher, err)
}

func (h *httpHandler) handleWatchAlbums(c *gin.Context) {
	watcher, err := h.binder.Albums()
	h.streamWatcher(c, watcher, err)
}

func (h *httpHandler) handleWatchAlbumByCode(c *gin.Context) {
	watcher, err := h.binder.AlbumByCode(c.Param("code"))
	h.streamWatcher(c, watcher, err)
}

func (h *httpHandler) handleWatchAlbumMedia(c *gin.Context) {
	watcher, err := h.binder.AlbumMedia(c.Param("albumID"))
	h.streamWatcher(c, watcher, err)
}

func (h *httpHandler) handleWatchAllMedia(c *gin.Context) {
	watcher, err := h.binder.AllMedia()
	h.streamWatcher(c, watcher, err)
}

func (h *httpHandler) handleWatchPendingMedia(c *gin.Context) {
	watcher, err := h.binder.PendingMedia()
	h.streamWatcher(c, watcher, err)
}

func (h *httpHandler) handleWatchRSVPs(c *gin.Context) {
	watcher, err := h.binder.RSVPs()
	h.streamWatcher(c, watcher, err)
}

func (h *httpHandler) handleWatchRSVPByCode(c *gin.Context) {
	watcher, err := h.binder.RSVPByCode(c.Param("code"))
	h.streamWatcher(c, watcher, err)
}

func (h *httpHandler) handleWatchStats(c *gin.Context) {
	watcher, err := h.binder.Stats()
	h.streamWatcher(c, watcher, err)
}

// streamWatcher pushes the watcher's state over SSE until the client
// disconnects. The watcher is always closed on exit; a setup failure still
// delivers one terminal {loading:false, error} event.
func (h *httpHandler) streamWatcher(c *gin.Context, source watchSource, setupErr error) {
	defer source.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.SSEvent("snapshot", currentState(source))
	c.Writer.Flush()

	if setupErr != nil {
		h.logger.Warn("watch stream ended at setup", zap.Error(setupErr))
		return
	}

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case <-source.Updates():
			c.SSEvent("snapshot", currentState(source))
			return true
		}
	})
}

func currentState(source watchSource) watchState {
	data, loading, err := source.Snapshot()
	state := watchState{Data: data, Loading: loading}
	if err != nil {
		state.Error = err.Error()
	}
	return state
}
