package conversation

import "sort"

// Warnings is the deduplicated set of user-visible degradation notes
// accumulated while building a history.
type Warnings map[string]struct{}

func NewWarnings() Warnings {
	return make(Warnings)
}

func (w Warnings) Add(msg string) {
	w[msg] = struct{}{}
}

// Sorted returns the warnings in deterministic display order.
func (w Warnings) Sorted() []string {
	out := make([]string, 0, len(w))
	for msg := range w {
		out = append(out, msg)
	}
	sort.Strings(out)
	return out
}
