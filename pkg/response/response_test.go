package response

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPageEmptyResultReportsOnePage(t *testing.T) {
	page := NewPage([]string{}, 1, 20, 0)
	assert.Equal(t, 1, page.TotalPages)
	assert.Equal(t, 0, page.TotalItems)
	assert.False(t, page.HasNext)
}

func TestNewPageRoundsUpTotalPages(t *testing.T) {
	page := NewPage([]string{"a"}, 1, 20, 41)
	assert.Equal(t, 3, page.TotalPages)
	assert.True(t, page.HasNext)

	page = NewPage([]string{"a"}, 3, 20, 41)
	assert.False(t, page.HasNext)

	page = NewPage([]string{"a"}, 1, 20, 40)
	assert.Equal(t, 2, page.TotalPages)
}
