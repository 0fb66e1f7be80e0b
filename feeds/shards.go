package feeds

// Partition splits feeds into n contiguous shards whose sizes differ by at most one. The first
// len(feeds) % n shards hold the extra feed. Shards may be empty when there are fewer feeds
// than shards.
func Partition(feeds []string, n int) [][]string {
	if n < 1 {
		n = 1
	}

	base := len(feeds) / n
	extra := len(feeds) % n

	shards := make([][]string, n)
	start := 0
	for i := 0; i < n; i++ {
		size := base
		if i < extra {
			size++
		}
		end := start + size
		shards[i] = feeds[start:end:end]
		start = end
	}
	return shards
}
