package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/roomgate/internal/models"
	"github.com/your-org/roomgate/pkg/dto"
)

type RoomStore interface {
	ListRooms(ctx context.Context) ([]models.Room, error)
	UpsertRoom(ctx context.Context, r models.Room) error
}

type RoomHandler struct {
	db RoomStore
}

func NewRoomHandler(db RoomStore) *RoomHandler {
	return &RoomHandler{db: db}
}

func (h *RoomHandler) List(c *gin.Context) {
	rooms, err := h.db.ListRooms(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.RoomResponse, 0, len(rooms))
	for _, r := range rooms {
		resp = append(resp, dto.RoomResponse{Name: r.Name, MinAccessLevel: r.MinAccessLevel})
	}
	c.JSON(http.StatusOK, gin.H{"rooms": resp, "total": len(resp)})
}

// Put creates the room named in the path or changes its minimum level.
func (h *RoomHandler) Put(c *gin.Context) {
	var req dto.RoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room := models.Room{Name: c.Param("name"), MinAccessLevel: req.MinAccessLevel}
	if err := h.db.UpsertRoom(c.Request.Context(), room); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.RoomResponse{Name: room.Name, MinAccessLevel: room.MinAccessLevel})
}
