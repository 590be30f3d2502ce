package distance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDot(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Simple", []float32{1, 2, 3}, []float32{4, 5, 6}, 32},
		{"Zero", []float32{0, 0, 0}, []float32{0, 0, 0}, 0},
		{"Mixed", []float32{1, -1, 2}, []float32{1, 1, -2}, -4},
		{"Empty", []float32{}, []float32{}, 0},
		{"Single", []float32{2}, []float32{3}, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Dot(tt.a, tt.b)
			assert.InDelta(t, tt.expected, got, 1e-5)
		})
	}
}

func TestSquaredL2(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Simple", []float32{1, 2, 3}, []float32{4, 5, 6}, 27},
		{"Zero", []float32{0, 0, 0}, []float32{0, 0, 0}, 0},
		{"Identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"Mixed", []float32{1, -1}, []float32{-1, 1}, 8},
		{"Empty", []float32{}, []float32{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SquaredL2(tt.a, tt.b)
			assert.InDelta(t, tt.expected, got, 1e-5)
		})
	}
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Identical", []float32{1, 0}, []float32{1, 0}, 0},
		{"Orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"Opposite", []float32{1, 0}, []float32{-1, 0}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineDistance(tt.a, tt.b)
			assert.InDelta(t, tt.expected, got, 1e-5)
		})
	}
}

func TestNormalizeL2(t *testing.T) {
	t.Run("InPlace", func(t *testing.T) {
		v := []float32{3, 4}
		ok := NormalizeL2InPlace(v)
		assert.True(t, ok)
		assert.InDelta(t, float32(0.6), v[0], 1e-5)
		assert.InDelta(t, float32(0.8), v[1], 1e-5)
	})

	t.Run("InPlaceZero", func(t *testing.T) {
		v := []float32{0, 0, 0}
		ok := NormalizeL2InPlace(v)
		assert.False(t, ok)
	})

	t.Run("InPlaceEmpty", func(t *testing.T) {
		ok := NormalizeL2InPlace(nil)
		assert.False(t, ok)
	})

	t.Run("Copy", func(t *testing.T) {
		src := []float32{3, 4}
		dst, ok := NormalizeL2Copy(src)
		require.True(t, ok)
		assert.Equal(t, []float32{3, 4}, src, "source must not change")
		assert.InDelta(t, float32(0.6), dst[0], 1e-5)
		assert.InDelta(t, float32(0.8), dst[1], 1e-5)
	})

	t.Run("CopyZero", func(t *testing.T) {
		dst, ok := NormalizeL2Copy([]float32{0, 0})
		assert.False(t, ok)
		assert.Nil(t, dst)
	})
}

func TestForMetric(t *testing.T) {
	tests := []struct {
		name      string
		metric    Metric
		a, b      []float32
		expected  float32
		normalize bool
	}{
		{"L2", MetricL2, []float32{1, 2}, []float32{4, 6}, 25, false},
		{"Cosine", MetricCosine, []float32{1, 0}, []float32{0, 1}, 1, true},
		{"Dot", MetricDot, []float32{1, 2}, []float32{3, 4}, -11, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, err := ForMetric(tt.metric)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, fn(tt.a, tt.b), 1e-5)
			assert.Equal(t, tt.normalize, NeedsNormalization(tt.metric))
		})
	}

	t.Run("Unsupported", func(t *testing.T) {
		_, err := ForMetric(Metric(99))
		require.Error(t, err)
	})
}

func TestMetricString(t *testing.T) {
	assert.Equal(t, "L2", MetricL2.String())
	assert.Equal(t, "Cosine", MetricCosine.String())
	assert.Equal(t, "Dot", MetricDot.String())
	assert.Equal(t, "Unknown(42)", Metric(42).String())
}
