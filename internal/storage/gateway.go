package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrDuplicate is returned when a write violates a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate key")

// EventType is the kind of write a ChangeEvent describes.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// ChangeEvent is pushed to subscribers after every successful write.
// Record holds the full row for inserts, the patch plus "id" for updates, and
// just {"id"} for deletes.
type ChangeEvent struct {
	Type       EventType       `json:"type"`
	Table      string          `json:"table"`
	Record     json.RawMessage `json:"record"`
	CommitTime time.Time       `json:"commit_time"`
}

// Decode unmarshals the record into v.
func (e ChangeEvent) Decode(v any) error {
	return json.Unmarshal(e.Record, v)
}

// Fields decodes the record into a generic map for filter evaluation.
func (e ChangeEvent) Fields() (map[string]any, error) {
	fields := map[string]any{}
	if err := json.Unmarshal(e.Record, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// OrderBy is one ORDER BY term.
type OrderBy struct {
	Column string
	Desc   bool
}

// Query describes a Select. A nil Filter selects every row.
type Query struct {
	Filter Filter
	Order  []OrderBy
	Limit  int
}

// Subscription selects which change events a handler receives. An empty
// Events list means every event type; a nil Filter means every row.
type Subscription struct {
	Table  string
	Events []EventType
	Filter Filter
}

// Accepts reports whether ev should be delivered to this subscription.
func (s Subscription) Accepts(ev ChangeEvent) bool {
	if ev.Table != s.Table {
		return false
	}
	if len(s.Events) > 0 {
		found := false
		for _, t := range s.Events {
			if t == ev.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if s.Filter == nil {
		return true
	}
	fields, err := ev.Fields()
	if err != nil {
		return false
	}
	return s.Filter.Matches(fields)
}

// Handler receives change events. Handlers of one subscription are invoked
// sequentially in delivery order.
type Handler func(ctx context.Context, ev ChangeEvent)

// Unsubscribe tears a subscription down. It is safe to call more than once.
type Unsubscribe func()

// Broker fans change events out to subscribers.
type Broker interface {
	Publish(ctx context.Context, ev ChangeEvent) error
	Subscribe(ctx context.Context, sub Subscription, handler Handler) (Unsubscribe, error)
}

// Gateway is the remote data gateway: table queries and mutations plus a push
// subscription over the same tables.
type Gateway interface {
	// Select loads the rows matching q into dest, a pointer to a slice of models.
	Select(ctx context.Context, table string, q Query, dest any) error
	// Insert creates row, a model pointer. Generated fields are filled on return.
	Insert(ctx context.Context, table string, row any) error
	// Update applies patch to every row matching filter and returns the number of rows changed.
	Update(ctx context.Context, table string, filter Filter, patch map[string]any) (int64, error)
	// Upsert inserts row, or on a conflict over conflictKey updates only the
	// columns present in row. Columns absent from row keep their stored values.
	Upsert(ctx context.Context, table string, row map[string]any, conflictKey []string) error
	// Delete removes every row matching filter.
	Delete(ctx context.Context, table string, filter Filter) (int64, error)
	Subscribe(ctx context.Context, sub Subscription, handler Handler) (Unsubscribe, error)
}
