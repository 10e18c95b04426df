package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSentinel = NewStd("sentinel")

func TestBuildDefaults(t *testing.T) {
	t.Parallel()

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.NotEmpty(t, ee.GetComponent())
	assert.False(t, ee.Timestamp.IsZero())
}

func TestBuildKeepsExplicitValues(t *testing.T) {
	t.Parallel()

	ee := Newf("store %s missing", "ledger.csv").
		Component("datastore").
		Category(CategoryNotFound).
		Context("operation", "export").
		Build()

	assert.Equal(t, "datastore", ee.GetComponent())
	assert.Equal(t, "not-found", ee.GetCategory())
	assert.Equal(t, "export", ee.GetContext()["operation"])
	assert.True(t, IsNotFound(ee))
}

func TestSentinelSurvivesWrapping(t *testing.T) {
	t.Parallel()

	ee := New(fmt.Errorf("%w: row 3", errSentinel)).
		Category(CategoryFileParsing).
		Build()
	wrapped := fmt.Errorf("loading ledger: %w", ee)

	require.ErrorIs(t, wrapped, errSentinel)
	assert.True(t, IsCategory(wrapped, CategoryFileParsing))
	assert.False(t, IsCategory(wrapped, CategoryDatabase))
}

func TestCategoryInheritedFromWrappedError(t *testing.T) {
	t.Parallel()

	inner := New(errSentinel).Category(CategoryPersist).Build()
	outer := New(fmt.Errorf("batch failed: %w", inner)).Build()

	assert.Equal(t, CategoryPersist, outer.Category)
}

func TestGetContextReturnsCopy(t *testing.T) {
	t.Parallel()

	ee := New(errSentinel).Context("rows", 3).Build()
	ctx := ee.GetContext()
	ctx["rows"] = 99

	assert.Equal(t, 3, ee.GetContext()["rows"])
}

func TestValidationError(t *testing.T) {
	t.Parallel()

	ee := ValidationError("threshold out of range")
	assert.Equal(t, CategoryValidation, ee.Category)
	assert.True(t, IsCategory(ee, CategoryValidation))
	assert.False(t, IsNotFound(ee))
}
