package views

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/internal/feed"
	"github.com/vibecampus/vibehub/internal/models"
	"github.com/vibecampus/vibehub/internal/realtime"
)

// chatPageSize is larger than a feed page; conversations load in one go
const chatPageSize = 50

// Room is one college chat room
type Room struct {
	*list[models.CollegeMessage, models.CollegeMessageFilter]
	room string
}

// CommonRoom is the college-wide chat of the signed-in user's college
func CommonRoom(vc *Context) *Room {
	return newRoom(vc, models.RoomCommon)
}

// HubAnnouncements is the college hub's announcement channel. Everyone
// reads it; moderators post.
func HubAnnouncements(vc *Context) *Room {
	return newRoom(vc, models.RoomAnnouncements)
}

// FacultyRoom is the faculty-only chat
func FacultyRoom(vc *Context) *Room {
	return newRoom(vc, models.RoomFaculty)
}

func newRoom(vc *Context, room string) *Room {
	college := ""
	if p := vc.profile(); p != nil {
		college = p.CollegeName()
	}
	filter := models.CollegeMessageFilter{College: college, Room: room}
	return &Room{
		room: room,
		list: newList(vc, vc.sources.CollegeMessages, filter, feed.Options[models.CollegeMessage, models.CollegeMessageFilter]{
			Scope:    "room-" + room,
			PageSize: chatPageSize,
			Less:     oldestRoomMessageFirst,
			Match:    func(f models.CollegeMessageFilter, m models.CollegeMessage) bool { return f.Match(m) },
			Realtime: func(f models.CollegeMessageFilter) []realtime.Filter {
				return []realtime.Filter{realtime.Eq("college_messages", "college", f.College)}
			},
		}),
	}
}

func oldestRoomMessageFirst(a, b models.CollegeMessage) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Mount checks room access locally before loading
func (v *Room) Mount(ctx context.Context) error {
	p := v.vc.profile()
	if p == nil {
		return apperr.Unauthorized("Sign in to continue")
	}
	if v.Filter().College == "" {
		return apperr.FailedPrecondition("Add your college to your profile first")
	}
	if v.room == models.RoomFaculty && !p.IsFaculty() && !p.IsStaff() {
		return apperr.Forbidden("The faculty room is for faculty members")
	}
	return v.list.Mount(ctx)
}

// CanPost reports whether the signed-in user may write here
func (v *Room) CanPost() bool {
	p := v.vc.profile()
	if p == nil {
		return false
	}
	return v.room != models.RoomAnnouncements || p.IsStaff()
}

// Send posts a message, showing it before the server confirms
func (v *Room) Send(ctx context.Context, content, fileURL string) error {
	user := v.vc.userID()
	if user == "" {
		return apperr.Unauthorized("Sign in to continue")
	}
	if !v.CanPost() {
		return apperr.Forbidden("Only moderators can post announcements")
	}
	content = strings.TrimSpace(content)
	if content == "" && fileURL == "" {
		return apperr.InvalidField("content", "Message is empty")
	}
	f := v.Filter()
	msg := models.CollegeMessage{
		ID:        uuid.NewString(),
		College:   f.College,
		Room:      f.RoomOrDefault(),
		SenderID:  user,
		Content:   content,
		FileURL:   fileURL,
		CreatedAt: time.Now().UTC(),
		Sender:    v.vc.profile(),
	}
	return v.ctl.Create(ctx, msg, v.vc.sources.CollegeMessages.Create)
}

// Chat is the private conversation between a task's owner and helper
type Chat struct {
	*list[models.CollabMessage, models.CollabMessageFilter]
}

// CollabChat opens the conversation of task postID
func CollabChat(vc *Context, postID string) *Chat {
	return &Chat{list: newList(vc, vc.sources.CollabMessages, models.CollabMessageFilter{PostID: postID}, feed.Options[models.CollabMessage, models.CollabMessageFilter]{
		Scope:    "collab-chat",
		PageSize: chatPageSize,
		Less:     oldestTaskMessageFirst,
		Match:    func(f models.CollabMessageFilter, m models.CollabMessage) bool { return f.Match(m) },
		Realtime: func(f models.CollabMessageFilter) []realtime.Filter {
			return []realtime.Filter{realtime.Eq("collab_messages", "post_id", f.PostID)}
		},
	})}
}

func oldestTaskMessageFirst(a, b models.CollabMessage) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Send posts a message to the task conversation
func (v *Chat) Send(ctx context.Context, content, fileURL string) error {
	user := v.vc.userID()
	if user == "" {
		return apperr.Unauthorized("Sign in to continue")
	}
	content = strings.TrimSpace(content)
	if content == "" && fileURL == "" {
		return apperr.InvalidField("content", "Message is empty")
	}
	msg := models.CollabMessage{
		ID:        uuid.NewString(),
		PostID:    v.Filter().PostID,
		SenderID:  user,
		Content:   content,
		FileURL:   fileURL,
		CreatedAt: time.Now().UTC(),
		Sender:    v.vc.profile(),
	}
	return v.ctl.Create(ctx, msg, v.vc.sources.CollabMessages.Create)
}
