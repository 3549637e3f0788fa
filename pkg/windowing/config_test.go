package windowing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePositive(t *testing.T) {
	assert.NoError(t, ValidatePositive("frameLength", 1))
	assert.Error(t, ValidatePositive("frameLength", 0))
	assert.Error(t, ValidatePositive("frameLength", -1))
}

func TestValidateAtLeastOne(t *testing.T) {
	assert.NoError(t, ValidateAtLeastOne("framesPerWindow", 1))
	assert.Error(t, ValidateAtLeastOne("framesPerWindow", 0))
}

func TestValidateNonNegative(t *testing.T) {
	assert.NoError(t, ValidateNonNegative("maxGap", 0))
	assert.Error(t, ValidateNonNegative("maxGap", -1))
}

func TestCombine_AggregatesAllErrors(t *testing.T) {
	err := Combine(nil, ValidatePositive("frameLength", 0), ValidateAtLeastOne("framesPerWindow", 0))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "frameLength")
	assert.Contains(t, err.Error(), "framesPerWindow")
}

func TestCombine_AllNilReturnsNil(t *testing.T) {
	assert.NoError(t, Combine(nil, nil))
}
