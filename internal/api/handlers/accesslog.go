package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/roomgate/internal/models"
	"github.com/your-org/roomgate/pkg/dto"
)

type AccessLogStore interface {
	QueryAccessLog(ctx context.Context, f models.AccessLogFilter) ([]models.AccessLogEntry, int, error)
}

type AccessLogHandler struct {
	db AccessLogStore
}

func NewAccessLogHandler(db AccessLogStore) *AccessLogHandler {
	return &AccessLogHandler{db: db}
}

// List pages through the audit log, newest first. Query parameters: room,
// person_id, from, to (RFC 3339), limit, offset.
func (h *AccessLogHandler) List(c *gin.Context) {
	f := models.AccessLogFilter{
		RoomName: c.Query("room"),
		PersonID: c.Query("person_id"),
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		v := c.Query(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + p.name + " timestamp"})
			return
		}
		*p.dst = &t
	}

	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &f.Limit}, {"offset", &f.Offset}} {
		v := c.Query(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + p.name})
			return
		}
		*p.dst = n
	}

	entries, total, err := h.db.QueryAccessLog(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.AccessLogResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, dto.AccessLogResponse{
			ID:        e.ID,
			Timestamp: e.Timestamp.UTC().Format(timeLayout),
			PersonID:  e.PersonID,
			RoomName:  e.RoomName,
			Result:    string(e.Result),
			Reason:    e.Reason,
			Distance:  e.Distance,
		})
	}
	c.JSON(http.StatusOK, gin.H{"entries": resp, "total": total})
}
