package matchspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamba-org/solvecore/internal/version"
)

func TestParseBasic(t *testing.T) {
	ms, err := Parse("conda-forge::numpy[version='>=1.20,<2',build_number=0]")
	require.NoError(t, err)
	assert.Equal(t, "conda-forge", ms.Channel)
	assert.Equal(t, "numpy", ms.Name)
	require.NotNil(t, ms.BuildNumber)
	assert.True(t, ms.Version.Matches(version.MustParse("1.23.0")))
	assert.False(t, ms.Version.Matches(version.MustParse("2.0.0")))
}

func TestParseNameOnly(t *testing.T) {
	ms, err := Parse("python")
	require.NoError(t, err)
	assert.Equal(t, "python", ms.Name)
	assert.True(t, ms.Version.Empty())
}

func TestParseSubdirAndBuild(t *testing.T) {
	ms, err := Parse("linux-64/numpy 1.23.0 py39h1")
	require.NoError(t, err)
	assert.Equal(t, "linux-64", ms.Subdir)
	assert.Equal(t, "numpy", ms.Name)
	assert.True(t, ms.MatchesBuild("py39h1"))
	assert.False(t, ms.MatchesBuild("py38h1"))
}

func TestCanonicalEquality(t *testing.T) {
	a, err := Parse("NumPy[version=1.2.3]")
	require.NoError(t, err)
	b, err := Parse("numpy[version=1.2.3]")
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
}

func TestParseRejectsUnknownBracketKey(t *testing.T) {
	_, err := Parse("foo[bogus=1]")
	assert.Error(t, err)
}

func TestParseRejectsEmpty(t *testing.T) {
	_, err := Parse("")
	assert.Error(t, err)
}

func TestVersionExprDNF(t *testing.T) {
	expr, err := parseVersionExpr(">=1.0,<2.0|>=3.0")
	require.NoError(t, err)
	assert.True(t, expr.Matches(version.MustParse("1.5")))
	assert.True(t, expr.Matches(version.MustParse("3.1")))
	assert.False(t, expr.Matches(version.MustParse("2.5")))
}
