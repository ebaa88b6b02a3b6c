package plotfile

// expectedSizes maps a plot size class to the expected final byte count
// of the transferred file. Values are fixed estimates, never measured.
var expectedSizes = map[int]int64{
	25: 672_000_000,
	32: 108_900_000_000,
	33: 224_200_000_000,
	34: 461_500_000_000,
	35: 949_300_000_000,
}

// ExpectedSizeBytes returns the expected total size for a size class.
// ok is false for classes outside the table.
func ExpectedSizeBytes(k int) (int64, bool) {
	size, ok := expectedSizes[k]
	return size, ok
}
