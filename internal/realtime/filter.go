package realtime

import (
	"fmt"
)

// Filter selects changes by table, event kind and an optional
// column = value predicate
type Filter struct {
	Table  string    `json:"table"`
	Event  EventType `json:"event,omitempty"`
	Column string    `json:"column,omitempty"`
	Value  string    `json:"value,omitempty"`
}

// Eq is shorthand for a filter on any event where column equals value
func Eq(table, col, value string) Filter {
	return Filter{Table: table, Event: EventAny, Column: col, Value: value}
}

// Table is shorthand for a filter on every change to a table
func Table(table string) Filter {
	return Filter{Table: table, Event: EventAny}
}

// Matches reports whether ch passes the filter. Updates match when
// either row image satisfies the predicate, so rows moving out of a
// scope are still delivered.
func (f Filter) Matches(ch Change) bool {
	if f.Table != ch.Table {
		return false
	}
	if f.Event != "" && f.Event != EventAny && f.Event != ch.Type {
		return false
	}
	if f.Column == "" {
		return true
	}
	if v, ok := column(ch.New, f.Column); ok && v == f.Value {
		return true
	}
	if v, ok := column(ch.Old, f.Column); ok && v == f.Value {
		return true
	}
	return false
}

// Validate rejects filters that cannot match anything
func (f Filter) Validate() error {
	if f.Table == "" {
		return fmt.Errorf("filter table is required")
	}
	switch f.Event {
	case "", EventAny, EventInsert, EventUpdate, EventDelete:
	default:
		return fmt.Errorf("unknown event type %q", f.Event)
	}
	return nil
}

func (f Filter) String() string {
	if f.Column == "" {
		return fmt.Sprintf("%s:%s", f.Table, f.eventOrAny())
	}
	return fmt.Sprintf("%s:%s:%s=eq.%s", f.Table, f.eventOrAny(), f.Column, f.Value)
}

func (f Filter) eventOrAny() EventType {
	if f.Event == "" {
		return EventAny
	}
	return f.Event
}
