package labels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/freshness-go/internal/detection"
	"github.com/tphakala/freshness-go/internal/errors"
)

func TestDecodeRoundTripsEveryLabel(t *testing.T) {
	t.Parallel()

	table := NewTable(DefaultLabels, DefaultThreshold)

	for i, label := range DefaultLabels {
		for _, conf := range []float64{DefaultThreshold, 0.51, 0.99, 1.0} {
			c, ok, err := table.Decode(detection.RawDetection{ClassIndex: i, Confidence: conf, BBox: detection.BBox{1, 2, 3, 4}})
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, label, Encode(c.Product, c.Freshness))
			assert.Equal(t, label, c.Label())
			assert.Equal(t, detection.BBox{1, 2, 3, 4}, c.BBox)
			assert.InDelta(t, conf, c.Confidence, 1e-12)
		}
	}
}

func TestDecodeDropsBelowThreshold(t *testing.T) {
	t.Parallel()

	table := NewTable(DefaultLabels, DefaultThreshold)

	for _, conf := range []float64{0, 0.1, 0.4999} {
		c, ok, err := table.Decode(detection.RawDetection{ClassIndex: 0, Confidence: conf})
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, detection.Classified{}, c)
	}
}

func TestDecodeInvalidIndex(t *testing.T) {
	t.Parallel()

	table := NewTable(DefaultLabels, DefaultThreshold)

	for _, idx := range []int{99, 8, -1} {
		_, ok, err := table.Decode(detection.RawDetection{ClassIndex: idx, Confidence: 0.9})
		require.Error(t, err)
		assert.False(t, ok)
		require.ErrorIs(t, err, ErrInvalidLabelIndex)
		assert.True(t, errors.IsCategory(err, errors.CategoryLabel))
	}
}

func TestDecodeMalformedLabel(t *testing.T) {
	t.Parallel()

	table := NewTable([]string{"apple", "green_apple_fresh", "kiwi_rotten", "_fresh", "kiwi_fresh"}, DefaultThreshold)

	for idx := range 4 {
		_, _, err := table.Decode(detection.RawDetection{ClassIndex: idx, Confidence: 0.9})
		require.ErrorIs(t, err, ErrInvalidLabelIndex, "index %d", idx)
	}

	c, ok, err := table.Decode(detection.RawDetection{ClassIndex: 4, Confidence: 0.9})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "kiwi", c.Product)
	assert.Equal(t, detection.Fresh, c.Freshness)
}

func TestDecodeGateRunsBeforeIndexCheck(t *testing.T) {
	t.Parallel()

	table := NewTable(DefaultLabels, DefaultThreshold)

	_, ok, err := table.Decode(detection.RawDetection{ClassIndex: 99, Confidence: 0.2})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProducts(t *testing.T) {
	t.Parallel()

	table := NewTable(DefaultLabels, DefaultThreshold)
	assert.Equal(t, []string{"apple", "onion", "carrot", "tomato"}, table.Products())
	assert.Equal(t, 8, table.Len())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, NewTable(DefaultLabels, DefaultThreshold).Validate())

	err := NewTable(nil, DefaultThreshold).Validate()
	require.Error(t, err)

	err = NewTable([]string{"apple_fresh", "apple_fresh", "pear"}, DefaultThreshold).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index 1 duplicates index 0")
	assert.Contains(t, err.Error(), "index 2")
}

func TestNewTableCopiesLabels(t *testing.T) {
	t.Parallel()

	src := []string{"apple_fresh"}
	table := NewTable(src, DefaultThreshold)
	src[0] = "pear_fresh"

	label, ok := table.Label(0)
	require.True(t, ok)
	assert.Equal(t, "apple_fresh", label)
}
