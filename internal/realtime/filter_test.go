package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterMatches(t *testing.T) {
	insert := Change{Table: "collab_messages", Type: EventInsert, New: map[string]interface{}{"id": "m1", "post_id": "p1"}}
	moved := Change{
		Table: "posts",
		Type:  EventUpdate,
		New:   map[string]interface{}{"id": "x", "community_id": "c2"},
		Old:   map[string]interface{}{"id": "x", "community_id": "c1"},
	}
	deleted := Change{Table: "posts", Type: EventDelete, Old: map[string]interface{}{"id": "x", "community_id": "c1"}}

	tests := []struct {
		name   string
		filter Filter
		change Change
		want   bool
	}{
		{"table only", Table("collab_messages"), insert, true},
		{"other table", Table("posts"), insert, false},
		{"column match", Eq("collab_messages", "post_id", "p1"), insert, true},
		{"column mismatch", Eq("collab_messages", "post_id", "p2"), insert, false},
		{"event mismatch", Filter{Table: "collab_messages", Event: EventDelete}, insert, false},
		{"event match", Filter{Table: "collab_messages", Event: EventInsert}, insert, true},
		{"update moving out still matches old scope", Eq("posts", "community_id", "c1"), moved, true},
		{"update moving in matches new scope", Eq("posts", "community_id", "c2"), moved, true},
		{"delete matches old image", Eq("posts", "community_id", "c1"), deleted, true},
		{"missing column", Eq("posts", "author_id", "u1"), deleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(tt.change))
		})
	}
}

func TestFilterValidateAndString(t *testing.T) {
	assert.Error(t, Filter{}.Validate())
	assert.Error(t, Filter{Table: "posts", Event: "TRUNCATE"}.Validate())
	assert.NoError(t, Eq("posts", "author_id", "u1").Validate())
	assert.Equal(t, "posts:*:author_id=eq.u1", Eq("posts", "author_id", "u1").String())
	assert.Equal(t, "wallets:*", Filter{Table: "wallets"}.String())
}

func TestChangeRecordID(t *testing.T) {
	assert.Equal(t, "p1", Change{New: map[string]interface{}{"id": "p1"}}.RecordID())
	assert.Equal(t, "p1", Change{Old: map[string]interface{}{"id": "p1"}}.RecordID())
	assert.Equal(t, "u1", Change{New: map[string]interface{}{"user_id": "u1", "balance": 10.0}}.RecordID())
	assert.Equal(t, "", Change{}.RecordID())
}
