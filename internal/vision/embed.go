package vision

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/roomgate/internal/gallery"
)

const (
	embedInputSize   = 112
	embedInputName   = "input.1"
	embedOutputName  = "683"
	embedderFileName = "w600k_r50.onnx"
	defaultEmbedDim  = 512
)

// Embedder extracts ArcFace embeddings from aligned face crops. An Embedder
// is not safe for concurrent use.
type Embedder struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	dim     int
}

func NewEmbedder(modelPath string, dim int) (*Embedder, error) {
	if dim <= 0 {
		dim = defaultEmbedDim
	}
	e := &Embedder{dim: dim}

	var err error
	e.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 3, embedInputSize, embedInputSize))
	if err != nil {
		return nil, fmt.Errorf("create embedder input: %w", err)
	}
	e.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(dim)))
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("create embedder output: %w", err)
	}

	e.session, err = ort.NewAdvancedSession(modelPath,
		[]string{embedInputName}, []string{embedOutputName},
		[]ort.Value{e.input}, []ort.Value{e.output},
		nil,
	)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("create embedder session: %w", err)
	}
	return e, nil
}

// Extract returns the unit-length embedding of a CHW face crop of
// embedInputSize squared.
func (e *Embedder) Extract(chw []float32) ([]float32, error) {
	copy(e.input.GetData(), chw)
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("run embedding: %w", err)
	}

	raw := e.output.GetData()
	vec, ok := gallery.Normalize(raw[:e.dim])
	if !ok {
		return nil, fmt.Errorf("embedding has zero norm")
	}
	return vec, nil
}

func (e *Embedder) Dim() int { return e.dim }

func (e *Embedder) Close() {
	if e.session != nil {
		e.session.Destroy()
	}
	if e.input != nil {
		e.input.Destroy()
	}
	if e.output != nil {
		e.output.Destroy()
	}
}
