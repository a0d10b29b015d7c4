package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToRowDropsRelations(t *testing.T) {
	community := "c1"
	post := Post{
		ID:          "p1",
		AuthorID:    "u1",
		CommunityID: &community,
		Content:     "hello",
		CreatedAt:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Author:      &Profile{ID: "u1", Name: "Ada"},
	}

	row, err := ToRow(post)
	require.NoError(t, err)
	assert.Equal(t, "p1", row["id"])
	assert.Equal(t, "c1", row["community_id"])
	assert.NotContains(t, row, "author")

	var back Post
	require.NoError(t, FromRow(row, &back))
	assert.Equal(t, post.ID, back.ID)
	assert.Equal(t, post.CreatedAt, back.CreatedAt)
	assert.Nil(t, back.Author)
}

func TestEventFull(t *testing.T) {
	assert.False(t, Event{RSVPLimit: 0, AttendeeCount: 500}.Full())
	assert.False(t, Event{RSVPLimit: 3, AttendeeCount: 2}.Full())
	assert.True(t, Event{RSVPLimit: 3, AttendeeCount: 3}.Full())
}

func TestNextComplaintStatus(t *testing.T) {
	assert.Equal(t, ComplaintInReview, NextComplaintStatus(ComplaintSubmitted))
	assert.Equal(t, ComplaintResolved, NextComplaintStatus(ComplaintInReview))
	assert.Equal(t, "", NextComplaintStatus(ComplaintResolved))
}
