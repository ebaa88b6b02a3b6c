// Package plotfile parses the on-disk naming grammar for plot files and
// in-flight archival marker files.
//
// Two shapes exist:
//   - Marker files: partially written destination files named
//     <root>/<disk:3>/.plot-k<kk>-<YYYY>-<MM>-<DD>-<HH>-<mm>-<plotid>.plot.<jobid>
//   - Source plots: the same grammar minus the leading dot, the disk
//     prefix requirement, and the trailing job tag.
//
// Parsing is pure and returns ok=false for anything that deviates from
// the grammar. During a directory scan most candidates are unrelated
// files, so a non-match is an expected outcome, not an error.
package plotfile

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MarkerFields are the typed fields decoded from a marker file path.
type MarkerFields struct {
	// DiskIndex is the numbered storage slot the file lives under.
	DiskIndex int

	// K is the plot size class.
	K int

	// CreatedAt is the plot creation time embedded in the filename,
	// minute resolution, interpreted in the local timezone.
	CreatedAt time.Time

	// PlotID identifies the underlying plot content. An ingress marker
	// and an egress transfer of the same plot share this value.
	PlotID string

	// JobID is the per-transfer identity token appended by the copy
	// tool. Assumed unique among concurrently in-flight jobs.
	JobID string
}

// PlotFields are the typed fields decoded from a source plot path.
type PlotFields struct {
	K         int
	CreatedAt time.Time
	PlotID    string
}

// markerPattern matches everything after the root prefix. Digit widths
// are fixed, so numeric conversion cannot overflow or fail.
var markerPattern = regexp.MustCompile(
	`^(\d{3})/\.plot-k(\d{2})-(\d{4})-(\d{2})-(\d{2})-(\d{2})-(\d{2})-([A-Za-z0-9]+)\.plot\.([A-Za-z0-9]+)$`)

// plotPattern matches a source plot basename (no disk prefix, no job tag).
var plotPattern = regexp.MustCompile(
	`(?:^|/)plot-k(\d{2})-(\d{4})-(\d{2})-(\d{2})-(\d{2})-(\d{2})-([A-Za-z0-9]+)\.plot$`)

// ParseMarker decodes a marker file path anchored at root.
//
// The root is a literal prefix, never a pattern fragment: special
// characters in the farm path must not change what matches. A trailing
// slash on root is optional.
func ParseMarker(path string, root string) (MarkerFields, bool) {
	root = normalizeRoot(root)
	if root == "" || !strings.HasPrefix(path, root) {
		return MarkerFields{}, false
	}

	m := markerPattern.FindStringSubmatch(path[len(root):])
	if m == nil {
		return MarkerFields{}, false
	}

	disk, ok := fixedInt(m[1])
	if !ok {
		return MarkerFields{}, false
	}
	k, created, ok := decodeStamp(m[2:8])
	if !ok {
		return MarkerFields{}, false
	}

	return MarkerFields{
		DiskIndex: disk,
		K:         k,
		CreatedAt: created,
		PlotID:    m[8],
		JobID:     m[9],
	}, true
}

// ParsePlot decodes a source plot path by its basename. The leading
// directories are ignored; only the final grammar segment matters.
func ParsePlot(path string) (PlotFields, bool) {
	m := plotPattern.FindStringSubmatch(path)
	if m == nil {
		return PlotFields{}, false
	}
	k, created, ok := decodeStamp(m[1:7])
	if !ok {
		return PlotFields{}, false
	}
	return PlotFields{K: k, CreatedAt: created, PlotID: m[7]}, true
}

// decodeStamp converts the six fixed-width fields (k, year, month, day,
// hour, minute) into a size class and timestamp. The date fields are
// validated by round-tripping through time.Date so that e.g. month 13
// is rejected rather than normalized.
func decodeStamp(fields []string) (int, time.Time, bool) {
	nums := make([]int, len(fields))
	for i, f := range fields {
		n, ok := fixedInt(f)
		if !ok {
			return 0, time.Time{}, false
		}
		nums[i] = n
	}

	k := nums[0]
	created := time.Date(nums[1], time.Month(nums[2]), nums[3], nums[4], nums[5], 0, 0, time.Local)
	if created.Year() != nums[1] || int(created.Month()) != nums[2] ||
		created.Day() != nums[3] || created.Hour() != nums[4] || created.Minute() != nums[5] {
		return 0, time.Time{}, false
	}
	return k, created, true
}

// fixedInt converts a fixed-width digit field. The pattern guarantees
// digits only; the error branch is defensive and maps to no-match.
func fixedInt(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func normalizeRoot(root string) string {
	root = strings.TrimSpace(root)
	if root == "" {
		return ""
	}
	if !strings.HasSuffix(root, "/") {
		root += "/"
	}
	return root
}
