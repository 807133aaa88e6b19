// Package reactions aggregates per-message emoji reactions.
package reactions

import (
	"sort"

	"chatcore/internal/domain/message"
)

// Toggle adds who to the emoji's set, or removes them if already present.
// An emoji whose set becomes empty is dropped. The input is not modified and
// may come unsorted from other writers of the column.
func Toggle(r message.Reactions, emoji, who string) message.Reactions {
	out := r.Normalize()
	ids := out[emoji]
	i := sort.SearchStrings(ids, who)
	if i < len(ids) && ids[i] == who {
		ids = append(ids[:i], ids[i+1:]...)
		if len(ids) == 0 {
			delete(out, emoji)
		} else {
			out[emoji] = ids
		}
		return out
	}
	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = who
	out[emoji] = ids
	return out
}

// Count is one emoji with how many principals applied it.
type Count struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
	Mine  bool   `json:"mine"`
}

// Counts flattens r for display, most used first, then by emoji.
func Counts(r message.Reactions, self string) []Count {
	r = r.Normalize()
	out := make([]Count, 0, len(r))
	for emoji, ids := range r {
		if len(ids) == 0 {
			continue
		}
		out = append(out, Count{Emoji: emoji, Count: len(ids), Mine: r.Has(emoji, self)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Emoji < out[j].Emoji
	})
	return out
}
