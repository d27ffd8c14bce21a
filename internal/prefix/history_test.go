package prefix

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndReadHistoryRoundTrips(t *testing.T) {
	dir := t.TempDir()

	err := AppendHistory(dir, HistoryEntry{
		Timestamp:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Command:     "conda install numpy",
		Linked:      []string{"numpy-1.26.0-py311h0"},
		UpdateSpecs: []string{"numpy>=1.20"},
	})
	require.NoError(t, err)

	err = AppendHistory(dir, HistoryEntry{
		Timestamp:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Command:     "conda remove numpy",
		Unlinked:    []string{"numpy-1.26.0-py311h0"},
		RemoveSpecs: []string{"numpy"},
	})
	require.NoError(t, err)

	entries, err := ReadHistory(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, []string{"numpy-1.26.0-py311h0"}, entries[0].Linked)
	assert.Equal(t, []string{"numpy>=1.20"}, entries[0].UpdateSpecs)
	assert.Equal(t, []string{"numpy-1.26.0-py311h0"}, entries[1].Unlinked)

	specs := RequestedSpecsMap(entries)
	_, stillRequested := specs["numpy"]
	assert.False(t, stillRequested)
}

func TestRequestedSpecsMapIsLastWriterWins(t *testing.T) {
	entries := []HistoryEntry{
		{UpdateSpecs: []string{"numpy>=1.20"}},
		{UpdateSpecs: []string{"numpy>=1.24"}},
	}
	specs := RequestedSpecsMap(entries)
	assert.Equal(t, "numpy>=1.24", specs["numpy"])
}

func TestWriteReadRemoveRecord(t *testing.T) {
	dir := t.TempDir()
	r := PrefixRecord{Name: "numpy", Version: "1.26.0", Build: "py311h0", BuildNumber: 0}

	require.NoError(t, WriteRecord(dir, r))
	got, err := ReadRecord(dir, r.Dist())
	require.NoError(t, err)
	assert.Equal(t, r.Name, got.Name)

	recs, err := ListRecords(dir)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	require.NoError(t, RemoveRecord(dir, r.Dist()))
	_, err = ReadRecord(dir, r.Dist())
	assert.Error(t, err)
}
