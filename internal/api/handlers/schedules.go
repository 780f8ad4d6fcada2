package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/your-org/roomgate/internal/access"
	"github.com/your-org/roomgate/internal/models"
	"github.com/your-org/roomgate/internal/schedule"
	"github.com/your-org/roomgate/pkg/dto"
)

type ScheduleHandler struct {
	svc *schedule.Service
	dir access.Directory
}

func NewScheduleHandler(svc *schedule.Service, dir access.Directory) *ScheduleHandler {
	return &ScheduleHandler{svc: svc, dir: dir}
}

func entryResponse(e models.ScheduleEntry) dto.ScheduleEntryResponse {
	resp := dto.ScheduleEntryResponse{
		ID:        e.ID,
		PersonID:  e.PersonID,
		RoomName:  e.RoomName,
		DayOfWeek: e.DayOfWeek,
		Start:     e.Start.String(),
		End:       e.End.String(),
	}
	if e.DayOfWeek >= 0 && e.DayOfWeek < len(models.DayNames) {
		resp.Day = models.DayNames[e.DayOfWeek]
	}
	return resp
}

func scheduleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, schedule.ErrEntryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, schedule.ErrOvernightWindow),
		errors.Is(err, schedule.ErrInvalidDay),
		errors.Is(err, schedule.ErrInvalidTime),
		errors.Is(err, schedule.ErrNoDays),
		errors.Is(err, schedule.ErrMissingSubject):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func parseWindow(start, end string) (models.TimeOfDay, models.TimeOfDay, error) {
	s, err := models.ParseTimeOfDay(start)
	if err != nil {
		return 0, 0, err
	}
	e, err := models.ParseTimeOfDay(end)
	if err != nil {
		return 0, 0, err
	}
	return s, e, nil
}

// ensureSubjects answers 404 when the person or room does not exist.
func (h *ScheduleHandler) ensureSubjects(c *gin.Context, personID, roomName string) bool {
	ctx := c.Request.Context()
	person, err := h.dir.GetPerson(ctx, personID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return false
	}
	if person == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
		return false
	}
	room, err := h.dir.GetRoom(ctx, roomName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return false
	}
	if room == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return false
	}
	return true
}

func (h *ScheduleHandler) List(c *gin.Context) {
	entries, err := h.svc.ListForPerson(c.Request.Context(), c.Param("id"))
	if err != nil {
		scheduleError(c, err)
		return
	}

	resp := make([]dto.ScheduleEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, entryResponse(e))
	}
	c.JSON(http.StatusOK, gin.H{"entries": resp, "total": len(resp)})
}

// BulkAdd grants the person one window on each requested weekday.
func (h *ScheduleHandler) BulkAdd(c *gin.Context) {
	var req dto.BulkScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, end, err := parseWindow(req.Start, req.End)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	personID := c.Param("id")
	if !h.ensureSubjects(c, personID, req.RoomName) {
		return
	}

	created, err := h.svc.BulkAdd(c.Request.Context(), personID, req.RoomName, start, end, req.Days)
	if err != nil {
		scheduleError(c, err)
		return
	}

	resp := make([]dto.ScheduleEntryResponse, 0, len(created))
	for _, e := range created {
		resp = append(resp, entryResponse(e))
	}
	c.JSON(http.StatusCreated, gin.H{"entries": resp, "total": len(resp)})
}

func entryID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("entryId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule entry id"})
		return 0, false
	}
	return id, true
}

func (h *ScheduleHandler) Edit(c *gin.Context) {
	id, ok := entryID(c)
	if !ok {
		return
	}
	var req dto.EditScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, end, err := parseWindow(req.Start, req.End)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.ensureSubjects(c, req.PersonID, req.RoomName) {
		return
	}

	e := models.ScheduleEntry{
		ID:        id,
		PersonID:  req.PersonID,
		RoomName:  req.RoomName,
		DayOfWeek: *req.DayOfWeek,
		Start:     start,
		End:       end,
	}
	if err := h.svc.Edit(c.Request.Context(), e); err != nil {
		scheduleError(c, err)
		return
	}
	c.JSON(http.StatusOK, entryResponse(e))
}

func (h *ScheduleHandler) Delete(c *gin.Context) {
	id, ok := entryID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		scheduleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
