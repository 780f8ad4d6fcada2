package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/roomgate/internal/access"
	"github.com/your-org/roomgate/internal/api/handlers"
	"github.com/your-org/roomgate/internal/api/ws"
	"github.com/your-org/roomgate/internal/auth"
	"github.com/your-org/roomgate/internal/schedule"
)

// Store is everything the admin API needs from the relational store.
type Store interface {
	handlers.PersonStore
	handlers.RoomStore
	handlers.AccessLogStore
	access.Directory
}

type RouterConfig struct {
	APIKey   string
	Admin    auth.Checker
	DB       Store
	Objects  handlers.ObjectStore
	Schedule *schedule.Service
	Embedder handlers.FaceEmbedder // nil disables face enrollment
	Hub      *ws.Hub
	Checks   []handlers.Check
}

func base() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware())
	return r
}

// NewRouter builds the admin API: enrollment, rooms, schedules, the access
// log and the live event feed.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := base()
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Checks...)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))
	admin := auth.AdminMiddleware(cfg.Admin)

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Persons & Faces
	personH := handlers.NewPersonHandler(cfg.DB, cfg.Objects, cfg.Embedder)
	v1.GET("/persons", personH.List)
	v1.GET("/persons/:id", personH.Get)
	v1.GET("/persons/:id/faces", personH.ListFaces)
	v1.POST("/persons", admin, personH.Create)
	v1.PATCH("/persons/:id", admin, personH.Update)
	v1.DELETE("/persons/:id", admin, personH.Delete)
	v1.POST("/persons/:id/faces", admin, personH.AddFace)
	v1.PUT("/persons/:id/sample", admin, personH.UploadSample)

	// Rooms
	roomH := handlers.NewRoomHandler(cfg.DB)
	v1.GET("/rooms", roomH.List)
	v1.PUT("/rooms/:name", admin, roomH.Put)

	// Schedules
	schedH := handlers.NewScheduleHandler(cfg.Schedule, cfg.DB)
	v1.GET("/persons/:id/schedule", schedH.List)
	v1.POST("/persons/:id/schedule", admin, schedH.BulkAdd)
	v1.PUT("/schedule/:entryId", admin, schedH.Edit)
	v1.DELETE("/schedule/:entryId", admin, schedH.Delete)

	// Access log
	logH := handlers.NewAccessLogHandler(cfg.DB)
	v1.GET("/access-log", logH.List)

	return r
}

type TerminalRouterConfig struct {
	APIKey   string
	Room     string
	Attempt  handlers.AttemptStarter // nil in continuous mode
	Presence handlers.PresenceReader // nil in attempt mode
	Camera   handlers.FrameSnapshotter
	Wait     time.Duration
}

// NewTerminalRouter builds the local API of one terminal.
func NewTerminalRouter(cfg TerminalRouterConfig) *gin.Engine {
	r := base()

	systemH := handlers.NewSystemHandler()
	r.GET("/healthz", systemH.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	termH := handlers.NewTerminalHandler(cfg.Room, cfg.Attempt, cfg.Presence, cfg.Camera, cfg.Wait)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))
	v1.POST("/attempts", termH.StartAttempt)
	v1.GET("/presence", termH.Presence)
	v1.GET("/snapshot", termH.Snapshot)

	return r
}
