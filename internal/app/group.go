// Package app 放置 run 之前的纯编排步骤（输入分组等）。
package app

import (
	"sort"
	"strings"

	"github.com/John-Robertt/ytnote/internal/domain"
	"github.com/John-Robertt/ytnote/internal/videoid"
)

// GroupByVideo 对每条输入做 videoid.Extract，并按视频 ID 分组为 WorkItem（只存输入下标）。
//
// - 纯空白输入直接忽略（既不是 item 也不是 unmatched）
// - items 稳定排序：按 VideoID 字典序
// - item 内 InputIdx 保持输入顺序
// - unmatched 保持输入顺序
func GroupByVideo(inputs []string) (items []domain.WorkItem, unmatched []domain.Unmatched) {
	index := make(map[domain.VideoID]int, len(inputs))
	items = make([]domain.WorkItem, 0, len(inputs))
	unmatched = make([]domain.Unmatched, 0, 4)

	for i, in := range inputs {
		if strings.TrimSpace(in) == "" {
			continue
		}
		id, ok := videoid.Extract(in)
		if !ok {
			unmatched = append(unmatched, domain.Unmatched{Input: in, Index: i})
			continue
		}

		if idx, ok := index[id]; ok {
			items[idx].InputIdx = append(items[idx].InputIdx, i)
			continue
		}
		index[id] = len(items)
		items = append(items, domain.WorkItem{
			VideoID:  id,
			InputIdx: []int{i},
		})
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].VideoID < items[j].VideoID })
	return items, unmatched
}
