package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v int64) *int64 { return &v }

func TestExpandRequirementsMultipliesKitComponents(t *testing.T) {
	bom := map[int64][]BOMEntry{
		100: {{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: 3}},
	}
	got, err := ExpandRequirements([]Line{{KitID: ptr(100), Quantity: 2}}, bom)
	require.NoError(t, err)
	assert.Equal(t, []Requirement{{ProductID: 1, Quantity: 4}, {ProductID: 2, Quantity: 6}}, got)
}

func TestExpandRequirementsAggregatesSharedProducts(t *testing.T) {
	bom := map[int64][]BOMEntry{
		100: {{ProductID: 1, Quantity: 2}},
		200: {{ProductID: 1, Quantity: 1}, {ProductID: 3, Quantity: 5}},
	}
	lines := []Line{
		{KitID: ptr(100), Quantity: 1},
		{ProductID: ptr(1), Quantity: 3},
		{KitID: ptr(200), Quantity: 2},
	}
	got, err := ExpandRequirements(lines, bom)
	require.NoError(t, err)
	assert.Equal(t, []Requirement{{ProductID: 1, Quantity: 7}, {ProductID: 3, Quantity: 10}}, got)
}

func TestExpandRequirementsRejectsInvalidLines(t *testing.T) {
	bom := map[int64][]BOMEntry{100: {{ProductID: 1, Quantity: 1}}}

	_, err := ExpandRequirements(nil, bom)
	assert.ErrorIs(t, err, ErrEmptyDocument)

	_, err = ExpandRequirements([]Line{{ProductID: ptr(1), Quantity: 0}}, bom)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = ExpandRequirements([]Line{{ProductID: ptr(1), KitID: ptr(100), Quantity: 1}}, bom)
	assert.ErrorIs(t, err, ErrInvalidLine)

	_, err = ExpandRequirements([]Line{{Quantity: 1}}, bom)
	assert.ErrorIs(t, err, ErrInvalidLine)

	_, err = ExpandRequirements([]Line{{KitID: ptr(300), Quantity: 1}}, bom)
	assert.ErrorIs(t, err, ErrKitWithoutComponents)
}

func TestExpandRequirementsRejectsBadComponentQuantity(t *testing.T) {
	bom := map[int64][]BOMEntry{100: {{ProductID: 1, Quantity: 0}}}
	_, err := ExpandRequirements([]Line{{KitID: ptr(100), Quantity: 1}}, bom)
	assert.ErrorIs(t, err, ErrInvalidComponentQuantity)
}

func TestExpandRequirementsDetectsOverflow(t *testing.T) {
	bom := map[int64][]BOMEntry{100: {{ProductID: 1, Quantity: 2}}}
	_, err := ExpandRequirements([]Line{{KitID: ptr(100), Quantity: math.MaxInt64/2 + 1}}, bom)
	assert.ErrorIs(t, err, ErrQuantityOverflow)

	_, err = ExpandRequirements([]Line{
		{ProductID: ptr(1), Quantity: math.MaxInt64},
		{ProductID: ptr(1), Quantity: 1},
	}, bom)
	assert.ErrorIs(t, err, ErrQuantityOverflow)
}

func TestKitIDsDeduplicatesAndSorts(t *testing.T) {
	got := KitIDs([]Line{
		{KitID: ptr(30), Quantity: 1},
		{ProductID: ptr(1), Quantity: 1},
		{KitID: ptr(10), Quantity: 1},
		{KitID: ptr(30), Quantity: 2},
	})
	assert.Equal(t, []int64{10, 30}, got)
}
