package wire

import (
	"sort"

	"go.uber.org/zap"

	"graphsync/domain/core/aggregates"
	"graphsync/domain/core/valueobjects"
	"graphsync/domain/diff"
	"graphsync/domain/events"
)

// Decoder turns received knowledge events into per-author snapshots. A
// payload that fails to decode is logged and treated as if the event had
// never arrived.
type Decoder struct {
	logger *zap.Logger
}

// NewDecoder creates a decoder
func NewDecoder(logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{logger: logger}
}

// ParseEvents decodes every knowledge diff event, keyed by event id. Other
// kinds are ignored.
func (d *Decoder) ParseEvents(evts []events.KnowledgeEvent) map[string]diff.Diff {
	out := make(map[string]diff.Diff, len(evts))
	for _, e := range evts {
		if !e.IsKnowledgeDiff() {
			continue
		}
		if _, done := out[e.ID]; done {
			continue
		}
		decoded, err := Decode([]byte(e.Payload), e.Author)
		if err != nil {
			d.logger.Warn("Discarding undecodable knowledge event",
				zap.String("event_id", e.ID),
				zap.String("author", e.Author.String()),
				zap.Error(err))
			continue
		}
		out[e.ID] = decoded
	}
	return out
}

// Reconstruct rebuilds each author's snapshot by folding their diffs in
// transport timestamp order. Duplicate event ids are applied once and ties
// on the timestamp are broken by event id.
func (d *Decoder) Reconstruct(evts []events.KnowledgeEvent) map[valueobjects.AuthorID]aggregates.KnowledgeData {
	diffs := d.ParseEvents(evts)

	seen := make(map[string]struct{}, len(evts))
	byAuthor := make(map[valueobjects.AuthorID][]events.KnowledgeEvent)
	for _, e := range evts {
		if _, ok := diffs[e.ID]; !ok {
			continue
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		byAuthor[e.Author] = append(byAuthor[e.Author], e)
	}

	out := make(map[valueobjects.AuthorID]aggregates.KnowledgeData, len(byAuthor))
	for author, authored := range byAuthor {
		sort.Slice(authored, func(i, j int) bool {
			if !authored[i].Timestamp.Equal(authored[j].Timestamp) {
				return authored[i].Timestamp.Before(authored[j].Timestamp)
			}
			return authored[i].ID < authored[j].ID
		})

		snapshot := aggregates.NewKnowledgeData()
		for _, e := range authored {
			snapshot = diff.Apply(snapshot, diffs[e.ID])
		}
		out[author] = snapshot
		d.logger.Debug("Reconstructed author snapshot",
			zap.String("author", author.String()),
			zap.Int("events", len(authored)),
			zap.Int("repositories", len(snapshot.Repositories)))
	}
	return out
}
