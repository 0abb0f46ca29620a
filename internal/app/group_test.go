package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/ytnote/internal/domain"
)

func TestGroupByVideo_MergeSameVideo(t *testing.T) {
	inputs := []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=10s",
		"https://youtu.be/9bZkp7q19f0",
		"https://m.youtube.com/embed/dQw4w9WgXcQ",
		"dQw4w9WgXcQ",
	}

	items, unmatched := GroupByVideo(inputs)
	assert.Empty(t, unmatched)
	require.Len(t, items, 2)

	// 按 VideoID 字典序：9bZ... < dQw...
	assert.Equal(t, domain.VideoID("9bZkp7q19f0"), items[0].VideoID)
	assert.Equal(t, []int{1}, items[0].InputIdx)
	assert.Equal(t, domain.VideoID("dQw4w9WgXcQ"), items[1].VideoID)
	assert.Equal(t, []int{0, 2, 3}, items[1].InputIdx)
}

func TestGroupByVideo_Unmatched(t *testing.T) {
	inputs := []string{
		"https://vimeo.com/123456789",
		"   ",
		"dQw4w9WgXcQ",
		"not a video",
	}

	items, unmatched := GroupByVideo(inputs)
	require.Len(t, items, 1)
	assert.Equal(t, []domain.Unmatched{
		{Input: "https://vimeo.com/123456789", Index: 0},
		{Input: "not a video", Index: 3},
	}, unmatched)
}

func TestGroupByVideo_Empty(t *testing.T) {
	items, unmatched := GroupByVideo(nil)
	assert.Empty(t, items)
	assert.Empty(t, unmatched)
}
