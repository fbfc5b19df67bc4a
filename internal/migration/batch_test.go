package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartition(t *testing.T) {
	tests := map[string]struct {
		ids  []string
		size int
		want [][]string
	}{
		"exact":     {ids: []string{"1", "2", "3", "4"}, size: 2, want: [][]string{{"1", "2"}, {"3", "4"}}},
		"remainder": {ids: []string{"1", "2", "3"}, size: 2, want: [][]string{{"1", "2"}, {"3"}}},
		"one batch": {ids: []string{"1", "2"}, size: 10, want: [][]string{{"1", "2"}}},
		"size one":  {ids: []string{"1", "2"}, size: 1, want: [][]string{{"1"}, {"2"}}},
		"empty":     {ids: nil, size: 3, want: nil},
		"bad size":  {ids: []string{"1"}, size: 0, want: nil},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, Partition(tt.ids, tt.size))
		})
	}
}

func TestPartitionBatchesDoNotOverlap(t *testing.T) {
	ids := []string{"1", "2", "3", "4", "5"}
	batches := Partition(ids, 2)

	// appending to a batch must not clobber the next one
	_ = append(batches[0], "x")
	assert.Equal(t, []string{"3", "4"}, batches[1])
}
