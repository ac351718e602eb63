package version_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cchexcode/qop/internal/version"
)

func TestSpec_RangeSatisfies(t *testing.T) {
	s, err := version.ParseSpec(">=1.0.0,<2.0.0")
	require.NoError(t, err)

	assert.True(t, s.Satisfies("1.0.0"))
	assert.True(t, s.Satisfies("1.9.9"))
	assert.False(t, s.Satisfies("2.0.0"))
	assert.False(t, s.Satisfies("0.9.0"))
}

func TestSpec_Caret(t *testing.T) {
	s, err := version.ParseSpec("^1.2.0")
	require.NoError(t, err)

	assert.True(t, s.Satisfies("1.2.0"))
	assert.True(t, s.Satisfies("1.9.0"))
	assert.False(t, s.Satisfies("2.0.0"))
	assert.False(t, s.Satisfies("1.1.9"))
}

func TestSpec_Tilde(t *testing.T) {
	s, err := version.ParseSpec("~=1.2.3")
	require.NoError(t, err)

	assert.True(t, s.Satisfies("1.2.3"))
	assert.True(t, s.Satisfies("1.2.9"))
	assert.False(t, s.Satisfies("1.3.0"))
}

func TestSpec_Exact(t *testing.T) {
	s, err := version.ParseSpec("1.4.0")
	require.NoError(t, err)

	assert.True(t, s.Satisfies("1.4.0"))
	assert.False(t, s.Satisfies("1.4.1"))
}

func TestParseSpec_Invalid(t *testing.T) {
	_, err := version.ParseSpec("")
	assert.Error(t, err)

	_, err = version.ParseSpec(">=not-a-version")
	assert.Error(t, err)
}

func TestCheckEngineCompatibility(t *testing.T) {
	err := version.CheckEngineCompatibility(">=0.0.1,<99.0.0")
	assert.NoError(t, err)

	err = version.CheckEngineCompatibility(">=99.0.0")
	assert.Error(t, err)
}
