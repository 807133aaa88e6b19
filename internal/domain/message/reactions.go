package message

import (
	"sort"
)

// Reactions maps an emoji to the identifiers of the principals who applied it.
// Each identifier list is kept sorted and free of duplicates.
type Reactions map[string][]string

func (r Reactions) Clone() Reactions {
	out := make(Reactions, len(r))
	for emoji, ids := range r {
		out[emoji] = append([]string(nil), ids...)
	}
	return out
}

func (r Reactions) Has(emoji, who string) bool {
	ids := r[emoji]
	i := sort.SearchStrings(ids, who)
	return i < len(ids) && ids[i] == who
}

// Normalize sorts and deduplicates every identifier list and drops empty keys.
func (r Reactions) Normalize() Reactions {
	out := make(Reactions, len(r))
	for emoji, ids := range r {
		if len(ids) == 0 {
			continue
		}
		sorted := append([]string(nil), ids...)
		sort.Strings(sorted)
		uniq := sorted[:1]
		for _, id := range sorted[1:] {
			if id != uniq[len(uniq)-1] {
				uniq = append(uniq, id)
			}
		}
		out[emoji] = uniq
	}
	return out
}
