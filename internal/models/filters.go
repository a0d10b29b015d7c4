package models

import (
	"strings"
)

// Query filters shared by repositories, the JSON-RPC surface and the
// sync client. Each Match mirrors the repository WHERE clause so a
// changed row can be checked against a list without refetching it.

// ProfileFilter selects profiles
type ProfileFilter struct {
	College string `json:"college,omitempty"`
	Search  string `json:"search,omitempty"`
}

func (f ProfileFilter) Match(p Profile) bool {
	if f.College != "" && p.CollegeName() != f.College {
		return false
	}
	username := ""
	if p.Username != nil {
		username = *p.Username
	}
	return containsFold(p.Name, f.Search) || containsFold(username, f.Search)
}

// PostFilter selects posts. With no community and no author it is the
// open feed: posts that belong to no community.
type PostFilter struct {
	CommunityID string `json:"community_id,omitempty"`
	AuthorID    string `json:"author_id,omitempty"`
	Search      string `json:"search,omitempty"`
}

func (f PostFilter) Match(p Post) bool {
	if f.AuthorID != "" && p.AuthorID != f.AuthorID {
		return false
	}
	if f.CommunityID != "" {
		if p.CommunityID == nil || *p.CommunityID != f.CommunityID {
			return false
		}
	} else if f.AuthorID == "" && p.CommunityID != nil {
		return false
	}
	return containsFold(p.Content, f.Search)
}

// EventFilter selects events. An empty College selects global events.
type EventFilter struct {
	College       string `json:"college,omitempty"`
	IncludeGlobal bool   `json:"include_global,omitempty"`
	Status        string `json:"status,omitempty"`
	Search        string `json:"search,omitempty"`
}

func (f EventFilter) Match(e Event) bool {
	switch {
	case f.College == "":
		if e.College != nil {
			return false
		}
	case e.College == nil:
		if !f.IncludeGlobal {
			return false
		}
	case *e.College != f.College:
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	return containsFold(e.Title, f.Search) || containsFold(e.Description, f.Search)
}

// CollabFilter selects tasks
type CollabFilter struct {
	Status   string `json:"status,omitempty"`
	PosterID string `json:"poster_id,omitempty"`
	HelperID string `json:"helper_id,omitempty"`
	Search   string `json:"search,omitempty"`
}

func (f CollabFilter) Match(p CollabPost) bool {
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.PosterID != "" && p.PosterID != f.PosterID {
		return false
	}
	if f.HelperID != "" && (p.HelperID == nil || *p.HelperID != f.HelperID) {
		return false
	}
	return containsFold(p.Title, f.Search) || containsFold(p.Description, f.Search)
}

// ApplicationFilter selects task applications
type ApplicationFilter struct {
	PostID      string `json:"post_id,omitempty"`
	ApplicantID string `json:"applicant_id,omitempty"`
}

func (f ApplicationFilter) Match(a CollabApplication) bool {
	return (f.PostID == "" || a.PostID == f.PostID) &&
		(f.ApplicantID == "" || a.ApplicantID == f.ApplicantID)
}

// DeliverableFilter selects a task's deliverables
type DeliverableFilter struct {
	PostID string `json:"post_id"`
}

func (f DeliverableFilter) Match(d CollabDeliverable) bool {
	return d.PostID == f.PostID
}

// CollabMessageFilter selects one task's conversation
type CollabMessageFilter struct {
	PostID string `json:"post_id"`
}

func (f CollabMessageFilter) Match(m CollabMessage) bool {
	return m.PostID == f.PostID
}

// CollegeMessageFilter selects one college room
type CollegeMessageFilter struct {
	College string `json:"college"`
	Room    string `json:"room,omitempty"`
}

// RoomOrDefault returns the room, defaulting to the common room
func (f CollegeMessageFilter) RoomOrDefault() string {
	if f.Room == "" {
		return RoomCommon
	}
	return f.Room
}

func (f CollegeMessageFilter) Match(m CollegeMessage) bool {
	return m.College == f.College && m.Room == f.RoomOrDefault()
}

// ComplaintFilter selects complaints raised by a user or with a college
type ComplaintFilter struct {
	UserID  string `json:"user_id,omitempty"`
	College string `json:"college,omitempty"`
	Status  string `json:"status,omitempty"`
}

func (f ComplaintFilter) Match(c Complaint) bool {
	return (f.UserID == "" || c.UserID == f.UserID) &&
		(f.College == "" || c.College == f.College) &&
		(f.Status == "" || c.Status == f.Status)
}

// NotificationFilter selects a user's inbox
type NotificationFilter struct {
	UserID     string `json:"user_id"`
	UnreadOnly bool   `json:"unread_only,omitempty"`
}

func (f NotificationFilter) Match(n Notification) bool {
	return n.UserID == f.UserID && (!f.UnreadOnly || !n.Read)
}

// CommunityFilter selects communities
type CommunityFilter struct {
	College string `json:"college,omitempty"`
	Search  string `json:"search,omitempty"`
}

func (f CommunityFilter) Match(c Community) bool {
	if f.College != "" && (c.College == nil || *c.College != f.College) {
		return false
	}
	return containsFold(c.Name, f.Search)
}

func containsFold(s, term string) bool {
	term = strings.TrimSpace(term)
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(term))
}
