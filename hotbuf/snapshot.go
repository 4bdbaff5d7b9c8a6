package hotbuf

import (
	"fmt"

	"github.com/wkalt/newsledger/index"
	"github.com/wkalt/newsledger/news"
)

// State is the serializable state of a buffer. The content index is not part
// of it; Restore rebuilds the index from the records.
type State struct {
	Lowest   uint64        `json:"lowest"`
	Next     uint64        `json:"next"`
	LastTime uint64        `json:"lastTime"`
	Records  []news.Record `json:"records"`
}

// Snapshot captures the buffer's state. Appends and evictions are blocked for
// the duration of the capture.
func (b *Buffer) Snapshot() State {
	b.mtx.RLock()
	defer b.mtx.RUnlock()
	records := make([]news.Record, len(b.records))
	copy(records, b.records)
	return State{
		Lowest:   b.lowest,
		Next:     b.next(),
		LastTime: b.lastTime,
		Records:  records,
	}
}

// Restore replaces the buffer's contents with the supplied state. It is
// idempotent: restoring the same state twice yields the same buffer.
func (b *Buffer) Restore(state State) error {
	if err := state.validate(); err != nil {
		return err
	}
	records := make([]news.Record, len(state.Records))
	copy(records, state.Records)
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.records = records
	b.lowest = state.Lowest
	b.lastTime = state.LastTime
	b.ix = index.Build(records)
	residentRecords.Set(float64(len(records)))
	return nil
}

func (s State) validate() error {
	if s.Next != s.Lowest+uint64(len(s.Records)) {
		return fmt.Errorf("invalid buffer state: range [%d, %d) holds %d records", s.Lowest, s.Next, len(s.Records))
	}
	var prevTime uint64
	for i, r := range s.Records {
		if r.Index != s.Lowest+uint64(i) {
			return fmt.Errorf("invalid buffer state: record at position %d has index %d", i, r.Index)
		}
		if r.CreatedAt < prevTime {
			return fmt.Errorf("invalid buffer state: record %d created before its predecessor", r.Index)
		}
		prevTime = r.CreatedAt
	}
	if len(s.Records) > 0 && s.LastTime < prevTime {
		return fmt.Errorf("invalid buffer state: last time %d precedes newest record", s.LastTime)
	}
	return nil
}
