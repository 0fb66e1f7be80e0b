package feeds_test

import (
	"feedrelay/feeds"
	"fmt"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeFeeds(n int) []string {
	return lo.Times(n, func(i int) string {
		return fmt.Sprintf("https://example.com/feed/%d", i)
	})
}

func TestPartition(t *testing.T) {
	tests := []struct {
		name     string
		feeds    int
		shards   int
		expected []int
	}{
		{name: "even split", feeds: 12, shards: 4, expected: []int{3, 3, 3, 3}},
		{name: "remainder goes to first shards", feeds: 10, shards: 4, expected: []int{3, 3, 2, 2}},
		{name: "more shards than feeds", feeds: 2, shards: 4, expected: []int{1, 1, 0, 0}},
		{name: "no feeds", feeds: 0, shards: 3, expected: []int{0, 0, 0}},
		{name: "single shard", feeds: 5, shards: 1, expected: []int{5}},
		{name: "non positive shard count", feeds: 5, shards: 0, expected: []int{5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := makeFeeds(tt.feeds)
			shards := feeds.Partition(input, tt.shards)

			sizes := lo.Map(shards, func(s []string, _ int) int { return len(s) })
			assert.Equal(t, tt.expected, sizes)

			// Contiguous, in order, every feed exactly once
			assert.Equal(t, input, append([]string{}, lo.Flatten(shards)...))
		})
	}
}

func TestPartitionBalance(t *testing.T) {
	for total := 0; total < 40; total++ {
		for n := 1; n <= 9; n++ {
			shards := feeds.Partition(makeFeeds(total), n)
			require.Len(t, shards, n)

			sizes := lo.Map(shards, func(s []string, _ int) int { return len(s) })
			assert.LessOrEqual(t, lo.Max(sizes)-lo.Min(sizes), 1, "feeds=%d shards=%d", total, n)
		}
	}
}

func TestPartitionShardsDoNotAlias(t *testing.T) {
	shards := feeds.Partition(makeFeeds(4), 2)
	shards[0] = append(shards[0], "https://example.com/extra")
	assert.Equal(t, "https://example.com/feed/2", shards[1][0])
}
