package gallery

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/your-org/roomgate/internal/models"
	"github.com/your-org/roomgate/internal/observability"
)

// Source yields the persisted embedding sets of all enrolled persons.
type Source interface {
	Load(ctx context.Context, b *Builder) error
}

// Load builds a gallery of dimension dim from src. Unreadable or malformed
// vectors are skipped with a warning so one bad sample cannot block startup.
func Load(ctx context.Context, src Source, dim int) (*Gallery, error) {
	b := NewBuilder(dim)
	if err := src.Load(ctx, b); err != nil {
		return nil, err
	}
	g := b.Build()
	observability.GalleryPersons.Set(float64(g.Persons()))
	observability.GalleryVectors.Set(float64(g.Vectors()))
	slog.Info("gallery loaded", "persons", g.Persons(), "vectors", g.Vectors(), "dim", dim)
	return g, nil
}

func addLogged(b *Builder, personID, origin string, vec []float32) {
	if err := b.Add(personID, vec); err != nil {
		slog.Warn("skip embedding", "person", personID, "source", origin, "error", err)
	}
}

// --- Directory ---

// DirSource reads <dir>/<person id>/*.npy.
type DirSource struct {
	Dir string
}

func (s DirSource) Load(ctx context.Context, b *Builder) error {
	persons, err := os.ReadDir(s.Dir)
	if err != nil {
		return fmt.Errorf("read gallery dir: %w", err)
	}
	for _, pd := range persons {
		if !pd.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		personID := pd.Name()
		b.Ensure(personID)

		files, err := filepath.Glob(filepath.Join(s.Dir, personID, "*.npy"))
		if err != nil {
			return fmt.Errorf("glob embeddings for %s: %w", personID, err)
		}
		for _, f := range files {
			data, err := os.ReadFile(f)
			if err != nil {
				slog.Warn("skip embedding file", "path", f, "error", err)
				continue
			}
			vec, err := DecodeNPY(data)
			if err != nil {
				slog.Warn("skip embedding file", "path", f, "error", err)
				continue
			}
			addLogged(b, personID, f, vec)
		}
	}
	return nil
}

// --- Object store ---

// ObjectStore is the subset of the object storage client used for galleries.
type ObjectStore interface {
	ListObjects(ctx context.Context, prefix string) ([]string, error)
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// EmbeddingsPrefix is the object key prefix under which enrollment vectors live.
const EmbeddingsPrefix = "embeddings/"

// ObjectKey returns the object key of one enrollment vector.
func ObjectKey(personID, name string) string {
	return EmbeddingsPrefix + personID + "/" + name + ".npy"
}

// ObjectSource reads embeddings/<person id>/*.npy from an object store.
type ObjectSource struct {
	Store ObjectStore
}

func (s ObjectSource) Load(ctx context.Context, b *Builder) error {
	keys, err := s.Store.ListObjects(ctx, EmbeddingsPrefix)
	if err != nil {
		return fmt.Errorf("list gallery objects: %w", err)
	}
	for _, key := range keys {
		rel := strings.TrimPrefix(key, EmbeddingsPrefix)
		personID, _, ok := strings.Cut(rel, "/")
		if !ok || personID == "" || path.Ext(key) != ".npy" {
			continue
		}
		b.Ensure(personID)

		data, err := s.Store.GetObject(ctx, key)
		if err != nil {
			return fmt.Errorf("fetch gallery object: %w", err)
		}
		vec, err := DecodeNPY(data)
		if err != nil {
			slog.Warn("skip embedding object", "key", key, "error", err)
			continue
		}
		addLogged(b, personID, key, vec)
	}
	return nil
}

// --- Relational store ---

// EmbeddingLister returns every stored enrollment vector.
type EmbeddingLister interface {
	ListAllEmbeddings(ctx context.Context) ([]models.FaceEmbedding, error)
}

// DBSource reads enrollment vectors from the relational store.
type DBSource struct {
	Store EmbeddingLister
}

func (s DBSource) Load(ctx context.Context, b *Builder) error {
	faces, err := s.Store.ListAllEmbeddings(ctx)
	if err != nil {
		return fmt.Errorf("list gallery embeddings: %w", err)
	}
	for _, f := range faces {
		b.Ensure(f.PersonID)
		addLogged(b, f.PersonID, fmt.Sprintf("face_embeddings/%d", f.ID), f.Embedding)
	}
	return nil
}
