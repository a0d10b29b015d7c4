package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strp(s string) *string { return &s }

func TestPostFilterMatch(t *testing.T) {
	open := Post{ID: "1", AuthorID: "u1", Content: "Study group tonight"}
	inHub := Post{ID: "2", AuthorID: "u1", CommunityID: strp("c1"), Content: "Hub news"}

	tests := []struct {
		name   string
		filter PostFilter
		post   Post
		want   bool
	}{
		{"open feed takes open post", PostFilter{}, open, true},
		{"open feed skips community post", PostFilter{}, inHub, false},
		{"community feed", PostFilter{CommunityID: "c1"}, inHub, true},
		{"community feed skips open post", PostFilter{CommunityID: "c1"}, open, false},
		{"author sees every post", PostFilter{AuthorID: "u1"}, inHub, true},
		{"author mismatch", PostFilter{AuthorID: "u2"}, open, false},
		{"search case-insensitive", PostFilter{Search: "STUDY"}, open, true},
		{"search miss", PostFilter{Search: "party"}, open, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(tt.post))
		})
	}
}

func TestEventFilterMatch(t *testing.T) {
	global := Event{Title: "Hackathon", Status: EventApproved}
	local := Event{Title: "Open mic", College: strp("MIT"), Status: EventApproved}
	pending := Event{Title: "Bake sale", College: strp("MIT"), Status: EventPending}

	assert.True(t, EventFilter{}.Match(global))
	assert.False(t, EventFilter{}.Match(local))
	assert.True(t, EventFilter{College: "MIT"}.Match(local))
	assert.False(t, EventFilter{College: "MIT"}.Match(global))
	assert.True(t, EventFilter{College: "MIT", IncludeGlobal: true}.Match(global))
	assert.False(t, EventFilter{College: "Yale"}.Match(local))
	assert.False(t, EventFilter{College: "MIT", Status: EventApproved}.Match(pending))
	assert.True(t, EventFilter{College: "MIT", Search: "mic"}.Match(local))
}

func TestCollegeMessageFilterDefaultsRoom(t *testing.T) {
	f := CollegeMessageFilter{College: "MIT"}
	assert.True(t, f.Match(CollegeMessage{College: "MIT", Room: RoomCommon}))
	assert.False(t, f.Match(CollegeMessage{College: "MIT", Room: RoomFaculty}))
}
