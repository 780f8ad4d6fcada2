// Package vision finds faces in images and turns them into embeddings with
// ONNX Runtime models.
package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/roomgate/internal/config"
	"github.com/your-org/roomgate/internal/models"
	"github.com/your-org/roomgate/internal/observability"
)

// ErrNoFace is returned by EmbedImage when the image contains no face.
var ErrNoFace = errors.New("no face detected in image")

// InitRuntime loads the ONNX Runtime shared library. The returned func
// releases it.
func InitRuntime() (func(), error) {
	ort.SetSharedLibraryPath(sharedLibraryPath())
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("init onnx runtime: %w", err)
	}
	return func() { _ = ort.DestroyEnvironment() }, nil
}

func sharedLibraryPath() string {
	switch runtime.GOOS {
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}

// Analyzer detects the most confident face in an image and embeds it.
// Calls are serialized because ONNX sessions hold shared tensors.
type Analyzer struct {
	mu  sync.Mutex
	det *Detector
	emb *Embedder
}

func NewAnalyzer(cfg config.VisionConfig) (*Analyzer, error) {
	detPath := filepath.Join(cfg.ModelsDir, detectorFileName)
	slog.Info("loading detection model", "path", detPath)
	det, err := NewDetector(detPath, float32(cfg.DetectionThreshold))
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}

	embPath := filepath.Join(cfg.ModelsDir, embedderFileName)
	slog.Info("loading embedding model", "path", embPath, "dim", cfg.EmbeddingDim)
	emb, err := NewEmbedder(embPath, cfg.EmbeddingDim)
	if err != nil {
		det.Close()
		return nil, fmt.Errorf("load embedder: %w", err)
	}

	slog.Info("face analyzer ready")
	return &Analyzer{det: det, emb: emb}, nil
}

// DetectAndEmbed returns the most confident face in img, or nil when there
// is none.
func (a *Analyzer) DetectAndEmbed(img image.Image) (*models.Face, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	b := img.Bounds()
	start := time.Now()
	dets, err := a.det.Detect(toCHW(img, detInputSize, detInputSize, detMean, detStd), b.Dx(), b.Dy())
	observability.InferenceDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	if len(dets) == 0 {
		return nil, nil
	}

	best := dets[0]
	crop := cropFace(img, best.BBox)
	if crop == nil {
		return nil, nil
	}

	start = time.Now()
	vec, err := a.emb.Extract(toCHW(crop, embedInputSize, embedInputSize, embedMean, embedStd))
	observability.InferenceDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	return &models.Face{BBox: best.BBox, Confidence: best.Confidence, Embedding: vec}, nil
}

// EmbedImage decodes an uploaded JPEG or PNG and embeds its best face.
func (a *Analyzer) EmbedImage(data []byte) (*models.Face, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	face, err := a.DetectAndEmbed(img)
	if err != nil {
		return nil, err
	}
	if face == nil {
		return nil, ErrNoFace
	}
	return face, nil
}

// Dim is the embedding dimension produced by the model.
func (a *Analyzer) Dim() int { return a.emb.Dim() }

func (a *Analyzer) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.det.Close()
	a.emb.Close()
}
