package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaginate(t *testing.T) {
	items := make([]int, 50)
	for i := range items {
		items[i] = i
	}

	tests := []struct {
		name      string
		page      int
		wantLen   int
		wantFirst int
		wantPage  int
	}{
		{"first page", 1, 24, 0, 1},
		{"middle page", 2, 24, 24, 2},
		{"last partial page", 3, 2, 48, 3},
		{"zero clamps to first", 0, 24, 0, 1},
		{"negative clamps to first", -4, 24, 0, 1},
		{"past the end", 4, 0, 0, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Paginate(items, tt.page, 24)
			assert.Equal(t, 3, p.TotalPages)
			assert.Equal(t, 50, p.TotalItems)
			assert.Equal(t, tt.wantPage, p.Number)
			assert.Len(t, p.Items, tt.wantLen)
			if tt.wantLen > 0 {
				assert.Equal(t, tt.wantFirst, p.Items[0])
			}
		})
	}
}

func TestPaginateEmpty(t *testing.T) {
	p := Paginate([]string{}, 1, 24)
	assert.Zero(t, p.TotalPages)
	assert.Empty(t, p.Items)
}

func TestPaginateExactMultiple(t *testing.T) {
	p := Paginate(make([]int, 48), 2, 24)
	assert.Equal(t, 2, p.TotalPages)
	assert.Len(t, p.Items, 24)
}
