package match

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/roomgate/internal/gallery"
)

const dim = 8

func basis(i int) []float32 {
	v := make([]float32, dim)
	v[i] = 1
	return v
}

func buildGallery(t *testing.T, sets map[string][][]float32) *gallery.Gallery {
	t.Helper()
	b := gallery.NewBuilder(dim)
	for id, vecs := range sets {
		b.Ensure(id)
		for _, v := range vecs {
			require.NoError(t, b.Add(id, v))
		}
	}
	return b.Build()
}

func TestMatch_SelfMatchIsExact(t *testing.T) {
	g := buildGallery(t, map[string][][]float32{
		"p1": {basis(0), basis(1)},
		"p2": {basis(2)},
	})
	m := NewMatcher(g, 1.07)

	for _, e := range g.Entries() {
		for _, v := range e.Vectors {
			got, err := m.Match(v)
			require.NoError(t, err)
			assert.Equal(t, Matched, got.Kind)
			assert.Equal(t, e.PersonID, got.PersonID)
			assert.Equal(t, 0.0, got.Distance)
		}
	}
}

func TestMatch_SelfMatchRandomVectors(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	sets := map[string][][]float32{}
	for _, id := range []string{"a", "b", "c", "d"} {
		for range 3 {
			v := make([]float32, dim)
			for i := range v {
				v[i] = float32(rng.NormFloat64())
			}
			sets[id] = append(sets[id], v)
		}
	}
	g := buildGallery(t, sets)
	m := NewMatcher(g, 0.5)

	for _, e := range g.Entries() {
		for _, v := range e.Vectors {
			got, err := m.Match(v)
			require.NoError(t, err)
			assert.Equal(t, Matched, got.Kind)
			assert.Equal(t, e.PersonID, got.PersonID)
			assert.InDelta(t, 0, got.Distance, 1e-6)
		}
	}
}

func TestMatch_NearUnitQuery(t *testing.T) {
	g := buildGallery(t, map[string][][]float32{"P1": {basis(0)}})
	m := NewMatcher(g, 0.1)

	q := make([]float32, dim)
	q[0], q[1] = 0.99, 0.01

	got, err := m.Match(q)
	require.NoError(t, err)
	assert.Equal(t, Matched, got.Kind)
	assert.Equal(t, "P1", got.PersonID)
	assert.Greater(t, got.Distance, 0.0)
	assert.Less(t, got.Distance, 0.015)
}

func TestMatch_BeyondThresholdIsAmbiguous(t *testing.T) {
	g := buildGallery(t, map[string][][]float32{
		"p1": {basis(0)},
		"p2": {basis(1)},
	})
	m := NewMatcher(g, 1.0)

	// orthogonal to every gallery vector: distance sqrt(2) to each
	got, err := m.Match(basis(5))
	require.NoError(t, err)
	assert.Equal(t, Ambiguous, got.Kind)
	assert.True(t, got.HasCandidate())
	assert.InDelta(t, math.Sqrt2, got.Distance, 1e-9)
}

func TestMatch_ReportsNearestRejectedCandidate(t *testing.T) {
	g := buildGallery(t, map[string][][]float32{
		"far":  {basis(3)},
		"near": {{1, 1, 0, 0, 0, 0, 0, 0}},
	})
	m := NewMatcher(g, 0.1)

	got, err := m.Match(basis(0))
	require.NoError(t, err)
	assert.Equal(t, Ambiguous, got.Kind)
	assert.Equal(t, "near", got.PersonID)
}

func TestMatch_BoundaryInclusive(t *testing.T) {
	g := buildGallery(t, map[string][][]float32{"p": {basis(0)}})

	got, err := NewMatcher(g, math.Sqrt2).Match(basis(1))
	require.NoError(t, err)
	assert.Equal(t, Matched, got.Kind)
}

func TestMatch_EmptyGallery(t *testing.T) {
	tests := []struct {
		name string
		sets map[string][][]float32
	}{
		{"no persons", map[string][][]float32{}},
		{"persons without vectors", map[string][][]float32{"p1": nil, "p2": nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher(buildGallery(t, tt.sets), 1.07)
			got, err := m.Match(basis(0))
			require.NoError(t, err)
			assert.Equal(t, Ambiguous, got.Kind)
			assert.False(t, got.HasCandidate())
		})
	}
}

func TestMatch_ZeroQuery(t *testing.T) {
	g := buildGallery(t, map[string][][]float32{"p": {basis(0)}})
	got, err := NewMatcher(g, 2).Match(make([]float32, dim))
	require.NoError(t, err)
	assert.Equal(t, Ambiguous, got.Kind)
	assert.False(t, got.HasCandidate())
}

func TestMatch_DimensionMismatch(t *testing.T) {
	g := buildGallery(t, map[string][][]float32{"p": {basis(0)}})
	_, err := NewMatcher(g, 1).Match([]float32{1, 0})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = NewMatcher(g, 1).Match(nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestMatch_TieGoesToLowestID(t *testing.T) {
	g := buildGallery(t, map[string][][]float32{
		"bravo": {basis(0)},
		"alpha": {basis(0)},
		"delta": {basis(0)},
	})
	for range 10 {
		got, err := NewMatcher(g, 1).Match(basis(0))
		require.NoError(t, err)
		assert.Equal(t, "alpha", got.PersonID)
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "no-face", NoFace.String())
	assert.Equal(t, "match", Matched.String())
	assert.Equal(t, "ambiguous", Ambiguous.String())
	assert.Equal(t, NoFace, NoFaceVerdict().Kind)
}
