package batch

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupeKeepsDistinctIDs(t *testing.T) {
	in := []string{"a", "b", "a", " c ", "", "b", "c"}
	out := Dedupe(in)

	assert.ElementsMatch(t, []string{"a", "b", "c"}, out)
}

func TestDedupeEmpty(t *testing.T) {
	assert.Empty(t, Dedupe(nil))
	assert.Empty(t, Dedupe([]string{"", "  "}))
}

func TestSplitBatchCountAndUnion(t *testing.T) {
	for _, tc := range []struct {
		n, size, want int
	}{
		{n: 1, size: 50, want: 1},
		{n: 50, size: 50, want: 1},
		{n: 51, size: 50, want: 2},
		{n: 120, size: 50, want: 3},
		{n: 7, size: 3, want: 3},
		{n: 7, size: 1, want: 7},
	} {
		t.Run(fmt.Sprintf("%d_by_%d", tc.n, tc.size), func(t *testing.T) {
			ids := make([]string, 0, tc.n*2)
			for i := 0; i < tc.n; i++ {
				id := fmt.Sprintf("vid-%d", i)
				ids = append(ids, id, id)
			}
			unique := Dedupe(ids)
			require.Len(t, unique, tc.n)

			batches := Split(unique, tc.size)
			require.Len(t, batches, tc.want)

			var union []string
			for i, b := range batches {
				assert.LessOrEqual(t, len(b), tc.size)
				if i < len(batches)-1 {
					assert.Len(t, b, tc.size)
				}
				union = append(union, b...)
			}
			assert.ElementsMatch(t, unique, union)
		})
	}
}

func TestSplitEmptyAndNonPositiveSize(t *testing.T) {
	assert.Nil(t, Split(nil, 50))
	assert.Equal(t, [][]string{{"a", "b"}}, Split([]string{"a", "b"}, 0))
}

func TestSplitBatchesDoNotAlias(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	batches := Split(ids, 2)
	batches[0] = append(batches[0], "x")

	assert.Equal(t, "c", ids[2], "appending to a batch must not clobber the next one")
}
