package models

import (
	"encoding/json"
	"fmt"
)

// All lists every model, in migration order
func All() []interface{} {
	return []interface{}{
		&Account{},
		&Profile{},
		&Follow{},
		&Community{},
		&Post{},
		&Event{},
		&EventAttendee{},
		&CollabPost{},
		&CollabApplication{},
		&CollabDeliverable{},
		&CollabMessage{},
		&CollegeMessage{},
		&Wallet{},
		&WalletTransaction{},
		&Escrow{},
		&Payment{},
		&Subscription{},
		&Complaint{},
		&Notification{},
	}
}

// ToRow flattens a model into the column map carried by change events.
// Preloaded relationships are dropped.
func ToRow(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal row: %w", err)
	}
	var row map[string]interface{}
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("failed to unmarshal row: %w", err)
	}
	for _, rel := range []string{"author", "creator", "poster", "helper", "applicant", "sender"} {
		if _, ok := row[rel].(map[string]interface{}); ok {
			delete(row, rel)
		}
	}
	return row, nil
}

// FromRow decodes a change-event column map into a model
func FromRow(row map[string]interface{}, out interface{}) error {
	raw, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal row: %w", err)
	}
	return json.Unmarshal(raw, out)
}
