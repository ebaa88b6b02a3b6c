package plotfile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMarker(t *testing.T) {
	root := "/mnt/farm"
	path := "/mnt/farm/042/.plot-k32-2021-05-31-21-15-abc123def.plot.xk9Q2"

	fields, ok := ParseMarker(path, root)
	require.True(t, ok)

	assert.Equal(t, 42, fields.DiskIndex)
	assert.Equal(t, 32, fields.K)
	assert.Equal(t, "abc123def", fields.PlotID)
	assert.Equal(t, "xk9Q2", fields.JobID)
	assert.Equal(t, time.Date(2021, 5, 31, 21, 15, 0, 0, time.Local), fields.CreatedAt)
}

func TestParseMarker_RootHandling(t *testing.T) {
	path := "/mnt/farm/001/.plot-k32-2021-05-31-21-15-aa.plot.bb"

	t.Run("trailing slash optional", func(t *testing.T) {
		_, ok := ParseMarker(path, "/mnt/farm/")
		assert.True(t, ok)
		_, ok = ParseMarker(path, "/mnt/farm")
		assert.True(t, ok)
	})

	t.Run("root is literal not pattern", func(t *testing.T) {
		// A dot in the root must not match arbitrary characters.
		got := "/mntXfarm/001/.plot-k32-2021-05-31-21-15-aa.plot.bb"
		_, ok := ParseMarker(got, "/mnt.farm")
		assert.False(t, ok)

		dotted := "/mnt.farm/001/.plot-k32-2021-05-31-21-15-aa.plot.bb"
		_, ok = ParseMarker(dotted, "/mnt.farm")
		assert.True(t, ok)
	})

	t.Run("wrong root", func(t *testing.T) {
		_, ok := ParseMarker(path, "/other")
		assert.False(t, ok)
	})
}

func TestParseMarker_NoMatch(t *testing.T) {
	root := "/mnt/farm"

	tests := []struct {
		name string
		path string
	}{
		{"disk index too short", "/mnt/farm/42/.plot-k32-2021-05-31-21-15-aa.plot.bb"},
		{"disk index too long", "/mnt/farm/0042/.plot-k32-2021-05-31-21-15-aa.plot.bb"},
		{"missing dot prefix", "/mnt/farm/042/plot-k32-2021-05-31-21-15-aa.plot.bb"},
		{"k too wide", "/mnt/farm/042/.plot-k320-2021-05-31-21-15-aa.plot.bb"},
		{"two digit year", "/mnt/farm/042/.plot-k32-21-05-31-21-15-aa.plot.bb"},
		{"missing job tag", "/mnt/farm/042/.plot-k32-2021-05-31-21-15-aa.plot"},
		{"extra path segment", "/mnt/farm/042/sub/.plot-k32-2021-05-31-21-15-aa.plot.bb"},
		{"month out of range", "/mnt/farm/042/.plot-k32-2021-13-31-21-15-aa.plot.bb"},
		{"hour out of range", "/mnt/farm/042/.plot-k32-2021-05-31-25-15-aa.plot.bb"},
		{"non alnum plot id", "/mnt/farm/042/.plot-k32-2021-05-31-21-15-a_a.plot.bb"},
		{"unrelated file", "/mnt/farm/042/lost+found"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ParseMarker(tt.path, root)
			assert.False(t, ok)
		})
	}
}

func TestParsePlot(t *testing.T) {
	fields, ok := ParsePlot("/scratch/plots/plot-k32-2021-05-31-21-15-abc123def.plot")
	require.True(t, ok)
	assert.Equal(t, 32, fields.K)
	assert.Equal(t, "abc123def", fields.PlotID)
	assert.Equal(t, time.Date(2021, 5, 31, 21, 15, 0, 0, time.Local), fields.CreatedAt)

	// Bare basename also parses.
	_, ok = ParsePlot("plot-k32-2021-05-31-21-15-abc123def.plot")
	assert.True(t, ok)

	// Marker files (job tag suffix) are not source plots.
	_, ok = ParsePlot("/mnt/farm/042/.plot-k32-2021-05-31-21-15-aa.plot.bb")
	assert.False(t, ok)

	_, ok = ParsePlot("/scratch/plots/other.plot")
	assert.False(t, ok)
}

func TestExpectedSizeBytes(t *testing.T) {
	size, ok := ExpectedSizeBytes(32)
	require.True(t, ok)
	assert.Equal(t, int64(108_900_000_000), size)

	_, ok = ExpectedSizeBytes(99)
	assert.False(t, ok)
}
