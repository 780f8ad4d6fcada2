package handlers

import (
	"errors"
	"image"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/roomgate/internal/capture"
	"github.com/your-org/roomgate/internal/recognition"
)

const snapshotQuality = 85

type AttemptStarter interface {
	Start(room string) (<-chan recognition.Outcome, error)
}

type PresenceReader interface {
	Snapshot() recognition.PresenceSnapshot
}

type FrameSnapshotter interface {
	Snapshot() (image.Image, bool)
}

// TerminalHandler serves the local API of one terminal. attempt is nil in
// continuous mode and presence is nil in attempt mode.
type TerminalHandler struct {
	room     string
	attempt  AttemptStarter
	presence PresenceReader
	camera   FrameSnapshotter
	wait     time.Duration
}

// NewTerminalHandler builds the handler. wait bounds how long a trigger
// request blocks for its outcome; it should exceed the attempt timeout.
func NewTerminalHandler(room string, attempt AttemptStarter, presence PresenceReader, camera FrameSnapshotter, wait time.Duration) *TerminalHandler {
	return &TerminalHandler{room: room, attempt: attempt, presence: presence, camera: camera, wait: wait}
}

// StartAttempt begins an attempt at the terminal's room and answers with its
// outcome. Denials are still 200: the request itself succeeded.
func (h *TerminalHandler) StartAttempt(c *gin.Context) {
	if h.attempt == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "terminal runs in continuous mode"})
		return
	}

	result, err := h.attempt.Start(h.room)
	if err != nil {
		if errors.Is(err, recognition.ErrAttemptInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	timer := time.NewTimer(h.wait)
	defer timer.Stop()

	select {
	case o := <-result:
		c.JSON(http.StatusOK, o)
	case <-timer.C:
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "no outcome in time"})
	case <-c.Request.Context().Done():
	}
}

func (h *TerminalHandler) Presence(c *gin.Context) {
	if h.presence == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "terminal runs in attempt mode"})
		return
	}
	c.JSON(http.StatusOK, h.presence.Snapshot())
}

// Snapshot returns the latest camera frame as JPEG.
func (h *TerminalHandler) Snapshot(c *gin.Context) {
	img, ok := h.camera.Snapshot()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no frame captured yet"})
		return
	}
	data, err := capture.EncodeJPEG(img, snapshotQuality)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/jpeg", data)
}
