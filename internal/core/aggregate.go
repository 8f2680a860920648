package core

import (
	"strconv"

	"github.com/vovakirdan/livepoll-server/internal/store"
)

// Result is one displayed respondent answer.
type Result struct {
	Name   string
	Answer string
}

// Results maps display names to answers, in first-arrival order.
type Results []Result

// Aggregate projects a session's responses onto display names.
// Repeated names get a " (n)" suffix so no answer is lost in the mapping.
func Aggregate(s *PollSession) Results {
	out := make(Results, 0, len(s.responses))
	used := make(map[string]struct{}, len(s.responses))
	for _, resp := range s.responses {
		base := resp.name
		if base == "" {
			base = resp.studentID
		}
		name := base
		for n := 2; ; n++ {
			if _, taken := used[name]; !taken {
				break
			}
			name = base + " (" + strconv.Itoa(n) + ")"
		}
		used[name] = struct{}{}
		out = append(out, Result{Name: name, Answer: resp.answer})
	}
	return out
}

// Tally counts answers per option, in option order.
// A repeated option label is counted at its first position only, so the
// counts always sum to the number of results.
func Tally(options []string, results Results) []store.OptionCount {
	counts := make(map[string]int, len(options))
	for _, res := range results {
		counts[res.Answer]++
	}
	out := make([]store.OptionCount, 0, len(options))
	for _, opt := range options {
		out = append(out, store.OptionCount{Option: opt, Count: counts[opt]})
		counts[opt] = 0
	}
	return out
}

// Responses converts results into their stored form.
func (r Results) Responses() []store.Response {
	out := make([]store.Response, 0, len(r))
	for _, res := range r {
		out = append(out, store.Response{Name: res.Name, Answer: res.Answer})
	}
	return out
}
