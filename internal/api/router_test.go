package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/your-org/roomgate/internal/api/ws"
	"github.com/your-org/roomgate/internal/auth"
	"github.com/your-org/roomgate/internal/models"
)

// emptyStore answers every read with nothing and every write with success.
type emptyStore struct{}

func (emptyStore) CreatePerson(_ context.Context, name string, level int) (*models.Person, error) {
	return &models.Person{ID: "p1", Name: name, AccessLevel: level}, nil
}
func (emptyStore) GetPerson(context.Context, string) (*models.Person, error) { return nil, nil }
func (emptyStore) ListPersons(context.Context) ([]models.Person, error) { return nil, nil }
func (emptyStore) DeletePerson(context.Context, string) error { return nil }
func (emptyStore) CountFaces(context.Context, string) (int, error) { return 0, nil }
func (emptyStore) GetRoom(context.Context, string) (*models.Room, error) { return nil, nil }
func (emptyStore) ListRooms(context.Context) ([]models.Room, error) { return nil, nil }
func (emptyStore) UpsertRoom(context.Context, models.Room) error { return nil }
func (emptyStore) ListFaceEmbeddings(context.Context, string) ([]models.FaceEmbedding, error) {
	return nil, nil
}
func (emptyStore) UpdatePerson(context.Context, string, *string, *int) (*models.Person, error) {
	return nil, nil
}
func (emptyStore) AddFaceEmbedding(context.Context, string, []float32, float32, string) (*models.FaceEmbedding, error) {
	return nil, nil
}
func (emptyStore) QueryAccessLog(context.Context, models.AccessLogFilter) ([]models.AccessLogEntry, int, error) {
	return nil, 0, nil
}

func TestRouter_Auth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(RouterConfig{
		APIKey: "key",
		Admin:  auth.SharedSecret("admin"),
		DB:     emptyStore{},
		Hub:    ws.NewHub(),
	})

	tests := []struct {
		name   string
		method string
		path   string
		apiKey string
		admin  string
		want   int
	}{
		{"healthz is open", http.MethodGet, "/healthz", "", "", http.StatusOK},
		{"metrics is open", http.MethodGet, "/metrics", "", "", http.StatusOK},
		{"api key required", http.MethodGet, "/v1/rooms", "", "", http.StatusUnauthorized},
		{"read with api key", http.MethodGet, "/v1/rooms", "key", "", http.StatusOK},
		{"read log with api key", http.MethodGet, "/v1/access-log", "key", "", http.StatusOK},
		{"edit needs admin", http.MethodPost, "/v1/persons", "key", "", http.StatusUnauthorized},
		{"edit wrong admin", http.MethodPost, "/v1/persons", "key", "nope", http.StatusForbidden},
		{"edit as admin", http.MethodPost, "/v1/persons", "key", "admin", http.StatusCreated},
		{"schedule delete needs admin", http.MethodDelete, "/v1/schedule/1", "key", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(`{"name":"Dana","access_level":1}`))
			req.Header.Set("Content-Type", "application/json")
			if tt.apiKey != "" {
				req.Header.Set(auth.APIKeyHeader, tt.apiKey)
			}
			if tt.admin != "" {
				req.Header.Set(auth.AdminHeader, tt.admin)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestTerminalRouter_Routes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewTerminalRouter(TerminalRouterConfig{Room: "R1"})

	for path, want := range map[string]int{
		"/healthz":     http.StatusOK,
		"/v1/presence": http.StatusConflict,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, w.Code, path)
	}
}
