package proto

import "github.com/vovakirdan/livepoll-server/internal/store"

// HistoryEntryFromRecord converts a stored poll into its wire form.
func HistoryEntryFromRecord(rec *store.PollRecord) HistoryEntry {
	entry := HistoryEntry{
		ID:        rec.ID,
		Question:  rec.Question,
		Options:   append([]string{}, rec.Options...),
		Responses: make(Responses, 0, len(rec.Responses)),
		Tally:     make([]TallyEntry, 0, len(rec.Tally)),
		Reason:    string(rec.Reason),
		OpenedAt:  rec.OpenedAt.UnixMilli(),
		ClosedAt:  rec.ClosedAt.UnixMilli(),
	}
	for _, r := range rec.Responses {
		entry.Responses = append(entry.Responses, ResponseEntry{Name: r.Name, Answer: r.Answer})
	}
	for _, c := range rec.Tally {
		entry.Tally = append(entry.Tally, TallyEntry{Option: c.Option, Count: c.Count})
	}
	return entry
}

// HistoryEntries converts records, keeping their order. The result is never nil.
func HistoryEntries(records []*store.PollRecord) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(records))
	for _, rec := range records {
		out = append(out, HistoryEntryFromRecord(rec))
	}
	return out
}
