package inmemdb

import (
	"sort"
	"strings"
	"time"

	"github.com/trezcool/aula/core"
)

// sortBy orders items by the orderings known to fields, then by creation time.
func sortBy[T any](items []T, ordering []core.DBOrdering, fields map[string]func(T) string, createdAt func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		for _, ord := range ordering {
			field, ok := fields[ord.Field]
			if !ok {
				continue
			}
			a, b := strings.ToLower(field(items[i])), strings.ToLower(field(items[j]))
			if a == b {
				continue
			}
			if ord.Ascending {
				return a < b
			}
			return a > b
		}
		return createdAt(items[i]).Before(createdAt(items[j]))
	})
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
