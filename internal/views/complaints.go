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

// ComplaintDesk lists help-desk tickets: the user's own, or a college's
// for moderators
type ComplaintDesk struct {
	*list[models.Complaint, models.ComplaintFilter]
}

// Complaints lists tickets newest first. Students see their own tickets,
// moderators their college's.
func Complaints(vc *Context, filter models.ComplaintFilter) *ComplaintDesk {
	if p := vc.profile(); p != nil && filter.UserID == "" && filter.College == "" {
		if p.IsStaff() {
			filter.College = p.CollegeName()
		} else {
			filter.UserID = p.ID
		}
	}
	return &ComplaintDesk{list: newList(vc, vc.sources.Complaints, filter, feed.Options[models.Complaint, models.ComplaintFilter]{
		Scope: "complaints",
		Less:  newestComplaintFirst,
		Match: func(f models.ComplaintFilter, c models.Complaint) bool { return f.Match(c) },
		Realtime: func(f models.ComplaintFilter) []realtime.Filter {
			if f.UserID != "" {
				return []realtime.Filter{realtime.Eq("complaints", "user_id", f.UserID)}
			}
			if f.College != "" {
				return []realtime.Filter{realtime.Eq("complaints", "college", f.College)}
			}
			return []realtime.Filter{realtime.Table("complaints")}
		},
	})}
}

func newestComplaintFirst(a, b models.Complaint) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// Submit files a new ticket, showing it before the server confirms
func (v *ComplaintDesk) Submit(ctx context.Context, subject, body string) error {
	p := v.vc.profile()
	if p == nil {
		return apperr.Unauthorized("Sign in to continue")
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return apperr.InvalidField("subject", "Subject is required")
	}
	c := models.Complaint{
		ID:        uuid.NewString(),
		UserID:    p.ID,
		College:   p.CollegeName(),
		Subject:   subject,
		Body:      strings.TrimSpace(body),
		Status:    models.ComplaintSubmitted,
		CreatedAt: time.Now().UTC(),
	}
	return v.ctl.Create(ctx, c, v.vc.sources.Complaints.Create)
}

// Advance moves a ticket to its next status
func (v *ComplaintDesk) Advance(ctx context.Context, c models.Complaint) error {
	_, err := v.vc.gateway.AdvanceComplaint(ctx, c)
	return err
}
