// Package realtime carries row-change notifications from the data store
// to subscribers filtered by table and an equality predicate.
package realtime

import (
	"fmt"
	"time"

	"github.com/vibecampus/vibehub/internal/models"
)

// EventType is the kind of row change
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
	// EventAny matches every kind in a Filter
	EventAny EventType = "*"
)

// Change is one row-level notification. New may be partial; Old is
// only set for updates and deletes.
type Change struct {
	Table string                 `json:"table"`
	Type  EventType              `json:"type"`
	New   map[string]interface{} `json:"new,omitempty"`
	Old   map[string]interface{} `json:"old,omitempty"`
	At    time.Time              `json:"at"`
}

// NewChange builds a change from model values. Either record may be nil.
func NewChange(table string, typ EventType, newRec, oldRec interface{}) (Change, error) {
	ch := Change{Table: table, Type: typ, At: time.Now().UTC()}
	if newRec != nil {
		row, err := models.ToRow(newRec)
		if err != nil {
			return Change{}, err
		}
		ch.New = row
	}
	if oldRec != nil {
		row, err := models.ToRow(oldRec)
		if err != nil {
			return Change{}, err
		}
		ch.Old = row
	}
	return ch, nil
}

// Row returns the most recent image of the row
func (c Change) Row() map[string]interface{} {
	if c.New != nil {
		return c.New
	}
	return c.Old
}

// RecordID returns the primary key of the changed row. Tables keyed by
// user fall back to user_id.
func (c Change) RecordID() string {
	for _, row := range []map[string]interface{}{c.New, c.Old} {
		if row == nil {
			continue
		}
		if v, ok := row["id"]; ok && v != nil {
			return fmt.Sprint(v)
		}
		if v, ok := row["user_id"]; ok && v != nil {
			return fmt.Sprint(v)
		}
	}
	return ""
}

// Column returns the string form of a column of the most recent row image
func (c Change) Column(name string) (string, bool) {
	return column(c.Row(), name)
}

func column(row map[string]interface{}, name string) (string, bool) {
	if row == nil {
		return "", false
	}
	v, ok := row[name]
	if !ok || v == nil {
		return "", false
	}
	return fmt.Sprint(v), true
}
