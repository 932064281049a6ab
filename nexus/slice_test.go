package nexus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-nexus/internal/h5"
)

func TestSliceSelection(t *testing.T) {
	tests := []struct {
		name  string
		slice Slice
		shape []int
		sel   *h5.Selection
		out   []int
	}{
		{"all", All, []int{3, 4}, &h5.Selection{Start: []uint64{0, 0}, Count: []uint64{3, 4}}, []int{3, 4}},
		{"scalar", All, []int{}, nil, []int{}},
		{
			"start only", Slice{Start: []int{1, 2}}, []int{3, 4},
			&h5.Selection{Start: []uint64{1, 2}, Count: []uint64{2, 2}}, []int{2, 2},
		},
		{
			"stepped", Slice{Step: []int{2, 3}}, []int{5, 4},
			&h5.Selection{Start: []uint64{0, 0}, Count: []uint64{3, 2}, Stride: []uint64{2, 3}}, []int{3, 2},
		},
		{
			"explicit", Slice{Start: []int{1}, Count: []int{2}, Step: []int{2}}, []int{5},
			&h5.Selection{Start: []uint64{1}, Count: []uint64{2}, Stride: []uint64{2}}, []int{2},
		},
		{"empty at end", Slice{Start: []int{4}}, []int{4}, &h5.Selection{Start: []uint64{4}, Count: []uint64{0}}, []int{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, out, err := tt.slice.selection(tt.shape)
			require.NoError(t, err)
			assert.Equal(t, tt.sel, sel)
			assert.Equal(t, tt.out, out)
		})
	}
}

func TestSliceSelectionErrors(t *testing.T) {
	tests := []struct {
		name  string
		slice Slice
		shape []int
	}{
		{"rank", Slice{Start: []int{0}}, []int{2, 2}},
		{"scalar with start", Slice{Start: []int{0}}, []int{}},
		{"negative start", Slice{Start: []int{-1}}, []int{3}},
		{"zero step", Slice{Step: []int{0}}, []int{3}},
		{"negative count", Slice{Count: []int{-1}}, []int{3}},
		{"past end", Slice{Start: []int{1}, Count: []int{3}}, []int{3}},
		{"stride past end", Slice{Count: []int{2}, Step: []int{3}}, []int{3}},
		{"start beyond extent", Slice{Start: []int{5}, Count: []int{0}}, []int{3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := tt.slice.selection(tt.shape)
			assert.Error(t, err)
		})
	}
}
