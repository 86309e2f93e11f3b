package registry

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
)

const (
	listLogPrefix    = "registry:list"
	listDefaultLimit = 20
	listMaxLimit     = 500
)

// List returns configured channels matching an optional case-insensitive
// substring filter, in declaration order.
func (r *Registry) List(input *ListInput) *ListOutput {
	if input == nil {
		input = &ListInput{}
	}
	slog.Debug(fmt.Sprintf("%s - query=%s page=%d", listLogPrefix, input.Query, input.Page))

	page := input.Page
	if page < 1 {
		page = 1
	}
	limit := input.Limit
	if limit < 1 {
		limit = listDefaultLimit
	}
	if limit > listMaxLimit {
		limit = listMaxLimit
	}

	query := strings.ToLower(input.Query)
	matched := make([]ChannelSummary, 0, len(r.ordered))
	for _, c := range r.ordered {
		if query != "" && !strings.Contains(strings.ToLower(c.Name), query) {
			continue
		}
		matched = append(matched, ChannelSummary{
			Channel:    c.Name,
			Wildcard:   IsWildcard(c.Name),
			GetterType: TypeOf(c.Getter),
			SetterType: TypeOf(c.Setter),
		})
	}

	total := len(matched)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return &ListOutput{
		Channels: matched[start:end],
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: int(math.Ceil(float64(total) / float64(limit))),
		},
	}
}
