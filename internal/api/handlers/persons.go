package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/roomgate/internal/models"
	"github.com/your-org/roomgate/internal/storage"
	"github.com/your-org/roomgate/pkg/dto"
)

const (
	timeLayout     = time.RFC3339
	maxUploadBytes = 10 << 20
)

// PersonStore is the part of the relational store used for enrollment.
type PersonStore interface {
	CreatePerson(ctx context.Context, name string, accessLevel int) (*models.Person, error)
	GetPerson(ctx context.Context, id string) (*models.Person, error)
	ListPersons(ctx context.Context) ([]models.Person, error)
	UpdatePerson(ctx context.Context, id string, name *string, accessLevel *int) (*models.Person, error)
	DeletePerson(ctx context.Context, id string) error
	AddFaceEmbedding(ctx context.Context, personID string, embedding []float32, quality float32, sourceKey string) (*models.FaceEmbedding, error)
	ListFaceEmbeddings(ctx context.Context, personID string) ([]models.FaceEmbedding, error)
	CountFaces(ctx context.Context, personID string) (int, error)
}

// ObjectStore holds uploaded images and the .npy gallery.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	PutEmbedding(ctx context.Context, personID, name string, vec []float32) (string, error)
	RemoveObjects(ctx context.Context, keys ...string) error
	RemovePerson(ctx context.Context, personID string) error
}

// FaceEmbedder turns an uploaded image into the embedding of its best face.
type FaceEmbedder interface {
	EmbedImage(data []byte) (*models.Face, error)
}

type PersonHandler struct {
	db       PersonStore
	objects  ObjectStore
	embedder FaceEmbedder
}

// NewPersonHandler wires enrollment. embedder may be nil when no models are
// available; face uploads then fail with 503.
func NewPersonHandler(db PersonStore, objects ObjectStore, embedder FaceEmbedder) *PersonHandler {
	return &PersonHandler{db: db, objects: objects, embedder: embedder}
}

func personResponse(p *models.Person, faceCount int) dto.PersonResponse {
	resp := dto.PersonResponse{
		ID:          p.ID,
		Name:        p.Name,
		AccessLevel: p.AccessLevel,
		FaceCount:   faceCount,
		CreatedAt:   p.CreatedAt.UTC().Format(timeLayout),
	}
	if p.LastAttendance != nil {
		s := p.LastAttendance.UTC().Format(timeLayout)
		resp.LastAttendance = &s
	}
	return resp
}

func (h *PersonHandler) Create(c *gin.Context) {
	var req dto.CreatePersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	person, err := h.db.CreatePerson(c.Request.Context(), req.Name, req.AccessLevel)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	slog.Info("person created", "person", person.ID, "level", person.AccessLevel)
	c.JSON(http.StatusCreated, personResponse(person, 0))
}

func (h *PersonHandler) List(c *gin.Context) {
	persons, err := h.db.ListPersons(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.PersonResponse, 0, len(persons))
	for i := range persons {
		faceCount, _ := h.db.CountFaces(c.Request.Context(), persons[i].ID)
		resp = append(resp, personResponse(&persons[i], faceCount))
	}

	c.JSON(http.StatusOK, gin.H{"persons": resp, "total": len(resp)})
}

// lookup resolves :id, writing the error response itself when it fails.
func (h *PersonHandler) lookup(c *gin.Context) (*models.Person, bool) {
	person, err := h.db.GetPerson(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	if person == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
		return nil, false
	}
	return person, true
}

func (h *PersonHandler) Get(c *gin.Context) {
	person, ok := h.lookup(c)
	if !ok {
		return
	}
	faceCount, _ := h.db.CountFaces(c.Request.Context(), person.ID)
	c.JSON(http.StatusOK, personResponse(person, faceCount))
}

func (h *PersonHandler) Update(c *gin.Context) {
	var req dto.UpdatePersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	person, err := h.db.UpdatePerson(c.Request.Context(), c.Param("id"), req.Name, req.AccessLevel)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if person == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
		return
	}

	faceCount, _ := h.db.CountFaces(c.Request.Context(), person.ID)
	c.JSON(http.StatusOK, personResponse(person, faceCount))
}

// Delete removes the person with their schedule and embeddings, then their
// stored objects.
func (h *PersonHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.db.DeletePerson(c.Request.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.objects.RemovePerson(c.Request.Context(), id); err != nil {
		slog.Warn("remove person objects", "person", id, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func readUpload(c *gin.Context, field string) ([]byte, string, bool) {
	file, header, err := c.Request.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": field + " file required"})
		return nil, "", false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read upload failed"})
		return nil, "", false
	}
	if len(data) > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
		return nil, "", false
	}
	return data, header.Header.Get("Content-Type"), true
}

// AddFace accepts a multipart image upload, embeds its best face and stores
// the image, the .npy vector and the pgvector row. The face is matchable
// after the next terminal restart.
func (h *PersonHandler) AddFace(c *gin.Context) {
	person, ok := h.lookup(c)
	if !ok {
		return
	}
	if h.embedder == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "face analyzer not initialized"})
		return
	}

	data, contentType, ok := readUpload(c, "image")
	if !ok {
		return
	}

	face, err := h.embedder.EmbedImage(data)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "failed to extract face: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	name := uuid.NewString()
	sourceKey := storage.FaceImageKey(person.ID, name)
	if err := h.objects.PutObject(ctx, sourceKey, data, contentType); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store image failed"})
		return
	}
	npyKey, err := h.objects.PutEmbedding(ctx, person.ID, name, face.Embedding)
	if err != nil {
		h.discard(ctx, sourceKey)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store embedding failed"})
		return
	}

	fe, err := h.db.AddFaceEmbedding(ctx, person.ID, face.Embedding, face.Confidence, sourceKey)
	if err != nil {
		// the object gallery source would otherwise load a face the database never saw
		h.discard(ctx, sourceKey, npyKey)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	slog.Info("face enrolled", "person", person.ID, "face", fe.ID, "confidence", face.Confidence)
	c.JSON(http.StatusCreated, dto.FaceEmbeddingResponse{
		ID:        fe.ID,
		PersonID:  fe.PersonID,
		Quality:   fe.Quality,
		SourceKey: fe.SourceKey,
		NPYKey:    npyKey,
		CreatedAt: fe.CreatedAt.UTC().Format(timeLayout),
	})
}

func (h *PersonHandler) discard(ctx context.Context, keys ...string) {
	if err := h.objects.RemoveObjects(ctx, keys...); err != nil {
		slog.Error("remove orphaned objects", "error", err, "keys", keys)
	}
}

func (h *PersonHandler) ListFaces(c *gin.Context) {
	person, ok := h.lookup(c)
	if !ok {
		return
	}

	faces, err := h.db.ListFaceEmbeddings(c.Request.Context(), person.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.FaceEmbeddingResponse, 0, len(faces))
	for _, f := range faces {
		resp = append(resp, dto.FaceEmbeddingResponse{
			ID:        f.ID,
			PersonID:  f.PersonID,
			Quality:   f.Quality,
			SourceKey: f.SourceKey,
			CreatedAt: f.CreatedAt.UTC().Format(timeLayout),
		})
	}

	c.JSON(http.StatusOK, gin.H{"faces": resp, "total": len(resp)})
}

// UploadSample stores the person's main sample photo, replacing any
// previous one.
func (h *PersonHandler) UploadSample(c *gin.Context) {
	person, ok := h.lookup(c)
	if !ok {
		return
	}
	data, contentType, ok := readUpload(c, "image")
	if !ok {
		return
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}

	key := storage.SampleKey(person.ID)
	if err := h.objects.PutObject(c.Request.Context(), key, data, contentType); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store sample failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"key": key, "size": len(data)})
}
