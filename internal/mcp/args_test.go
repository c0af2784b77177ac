package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for argument parsing:
// - Required strings reject missing, empty and non-string values
// - Integers default when absent and clamp to their range
// - Booleans default when absent, pointer form distinguishes absence
// - String slices skip non-string items

func TestParseStringArg(t *testing.T) {
	t.Parallel()

	args := map[string]interface{}{"name": "Circle", "empty": "", "num": 3.0}

	v, err := parseStringArg(args, "name", true)
	require.NoError(t, err)
	assert.Equal(t, "Circle", v)

	_, err = parseStringArg(args, "missing", true)
	assert.EqualError(t, err, "missing parameter is required")

	_, err = parseStringArg(args, "empty", true)
	assert.EqualError(t, err, "empty cannot be empty")

	_, err = parseStringArg(args, "num", false)
	assert.EqualError(t, err, "num must be a string")

	v, err = parseStringArg(args, "missing", false)
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestParseIntArg(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args map[string]interface{}
		want int
	}{
		{"absent", map[string]interface{}{}, 3},
		{"in range", map[string]interface{}{"n": 7.0}, 7},
		{"below", map[string]interface{}{"n": -2.0}, 0},
		{"above", map[string]interface{}{"n": 99.0}, 20},
		{"wrong type", map[string]interface{}{"n": "7"}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseIntArg(tt.args, "n", 3, 0, 20))
		})
	}
}

func TestParseBoolArg(t *testing.T) {
	t.Parallel()

	args := map[string]interface{}{"on": false}
	assert.False(t, parseBoolArg(args, "on", true))
	assert.True(t, parseBoolArg(args, "missing", true))

	assert.Nil(t, parseBoolArgPtr(args, "missing"))
	ptr := parseBoolArgPtr(args, "on")
	require.NotNil(t, ptr)
	assert.False(t, *ptr)
}

func TestParseStringSliceArg(t *testing.T) {
	t.Parallel()

	args := map[string]interface{}{"kinds": []interface{}{"Composition", 1.0, "TypedBinding"}}
	assert.Equal(t, []string{"Composition", "TypedBinding"}, parseStringSliceArg(args, "kinds"))
	assert.Nil(t, parseStringSliceArg(args, "missing"))
}
