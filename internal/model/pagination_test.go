package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPagination(t *testing.T) {
	tests := []struct {
		name                string
		total, page, limit  int
		wantOffset          int
		wantPages           int
		wantHasMore         bool
	}{
		{name: "empty", total: 0, page: 1, limit: 10, wantOffset: 0, wantPages: 0, wantHasMore: false},
		{name: "first of two", total: 15, page: 1, limit: 10, wantOffset: 0, wantPages: 2, wantHasMore: true},
		{name: "last of two", total: 15, page: 2, limit: 10, wantOffset: 10, wantPages: 2, wantHasMore: false},
		{name: "exact fit", total: 20, page: 2, limit: 10, wantOffset: 10, wantPages: 2, wantHasMore: false},
		{name: "exact fit first page", total: 20, page: 1, limit: 10, wantOffset: 0, wantPages: 2, wantHasMore: true},
		{name: "single item", total: 1, page: 1, limit: 1, wantOffset: 0, wantPages: 1, wantHasMore: false},
		{name: "past the end", total: 5, page: 3, limit: 10, wantOffset: 20, wantPages: 1, wantHasMore: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPagination(tt.total, tt.page, tt.limit)
			assert.Equal(t, tt.wantOffset, p.Offset)
			assert.Equal(t, tt.wantPages, p.TotalPages)
			assert.Equal(t, tt.wantHasMore, p.HasMore)
		})
	}
}

func TestPaginationFormulasHoldAcrossRange(t *testing.T) {
	for total := 0; total <= 40; total++ {
		for limit := 1; limit <= 7; limit++ {
			for page := 1; page <= 8; page++ {
				p := NewPagination(total, page, limit)
				assert.Equal(t, (page-1)*limit, p.Offset)
				assert.Equal(t, page*limit < total, p.HasMore)

				wantPages := total / limit
				if total%limit != 0 {
					wantPages++
				}
				assert.Equal(t, wantPages, p.TotalPages)
			}
		}
	}
}
