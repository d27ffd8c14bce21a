package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareTotalOrder(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "1.0.1", -1},
		{"1.0.1", "1.0.0", 1},
		{"1.0", "1.0.0", 0}, // missing segment compares as zero atom
		{"2.0", "1.9", 1},
		{"1.0dev", "1.0", -1},   // "dev" < ""
		{"1.0", "1.0post", -1},  // "" < "post"
		{"1.0post", "1.0dev", 1},
		{"1.0a", "1.0b", -1},
		{"1!1.0", "2.0", 1}, // epoch dominates
		{"1.0+local1", "1.0+local2", -1},
		{"1.0", "1.0+local1", 1}, // missing local atom {0,""} outranks literal "local"
	}

	for _, c := range cases {
		va, err := Parse(c.a)
		require.NoError(t, err)
		vb, err := Parse(c.b)
		require.NoError(t, err)

		got := va.Compare(vb)
		switch {
		case c.want < 0:
			assert.Negative(t, got, "%s vs %s", c.a, c.b)
		case c.want > 0:
			assert.Positive(t, got, "%s vs %s", c.a, c.b)
		default:
			assert.Zero(t, got, "%s vs %s", c.a, c.b)
		}

		// antisymmetry
		assert.Equal(t, -got, vb.Compare(va))
	}
}

func TestCompareTransitivity(t *testing.T) {
	vs := []string{"1.0.0", "1.0.1", "1.1.0", "2.0.0", "2.0.0post1", "1!0.1"}
	parsed := make([]Version, len(vs))
	for i, s := range vs {
		v, err := Parse(s)
		require.NoError(t, err)
		parsed[i] = v
	}
	for i := range parsed {
		for j := range parsed {
			for k := range parsed {
				if parsed[i].Less(parsed[j]) && parsed[j].Less(parsed[k]) {
					assert.True(t, parsed[i].Less(parsed[k]), "transitivity violated for %s < %s < %s", vs[i], vs[j], vs[k])
				}
			}
		}
	}
}

func TestParseRejectsEmpty(t *testing.T) {
	_, err := Parse("")
	assert.Error(t, err)
}

func TestParseRoundTrip(t *testing.T) {
	for _, s := range []string{"1.0.0", "1!2.3.4", "1.0.0+build1", "2021.05.1post1"} {
		v, err := Parse(s)
		require.NoError(t, err)
		assert.Equal(t, s, v.String())
	}
}
