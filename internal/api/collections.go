package api

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/internal/models"
)

// ListParams selects one page of a collection
type ListParams struct {
	Filter json.RawMessage `json:"filter,omitempty"`
	Offset int             `json:"offset"`
	Limit  int             `json:"limit"`
}

// IDParams names a single record
type IDParams struct {
	ID string `json:"id"`
}

// collection describes the list/get/create/delete methods of one table.
// Nil functions are not exposed. Access rules live in the functions.
type collection[T any, F any] struct {
	name   string
	list   func(ctx context.Context, caller string, f F, offset, limit int) ([]T, error)
	get    func(ctx context.Context, caller, id string) (*T, error)
	create func(ctx context.Context, caller string, rec *T) (*T, error)
	remove func(ctx context.Context, caller, id string) error
}

func registerCollection[T any, F any](h *JSONRPCHandler, col collection[T, F]) {
	if col.list != nil {
		h.RegisterMethod(col.name+".list", func(c *gin.Context, params json.RawMessage) (interface{}, error) {
			var p ListParams
			if err := bind(params, &p); err != nil {
				return nil, err
			}
			var f F
			if err := bind(p.Filter, &f); err != nil {
				return nil, err
			}
			rows, err := col.list(c.Request.Context(), Caller(c), f, p.Offset, p.Limit)
			if err != nil {
				return nil, err
			}
			if rows == nil {
				rows = []T{}
			}
			return rows, nil
		})
	}
	if col.get != nil {
		h.RegisterMethod(col.name+".get", func(c *gin.Context, params json.RawMessage) (interface{}, error) {
			var p IDParams
			if err := bind(params, &p); err != nil {
				return nil, err
			}
			if p.ID == "" {
				return nil, apperr.InvalidField("id", "id is required")
			}
			return col.get(c.Request.Context(), Caller(c), p.ID)
		})
	}
	if col.create != nil {
		h.RegisterMethod(col.name+".create", func(c *gin.Context, params json.RawMessage) (interface{}, error) {
			caller, err := requireCaller(c)
			if err != nil {
				return nil, err
			}
			var rec T
			if err := bind(params, &rec); err != nil {
				return nil, err
			}
			return col.create(c.Request.Context(), caller, &rec)
		})
	}
	if col.remove != nil {
		h.RegisterMethod(col.name+".delete", func(c *gin.Context, params json.RawMessage) (interface{}, error) {
			caller, err := requireCaller(c)
			if err != nil {
				return nil, err
			}
			var p IDParams
			if err := bind(params, &p); err != nil {
				return nil, err
			}
			if err := col.remove(c.Request.Context(), caller, p.ID); err != nil {
				return nil, err
			}
			return gin.H{"deleted": true}, nil
		})
	}
}

func (r *Router) registerCollections() {
	registerCollection(r.handler, collection[models.Profile, models.ProfileFilter]{
		name: "profiles",
		list: func(ctx context.Context, _ string, f models.ProfileFilter, offset, limit int) ([]models.Profile, error) {
			return r.profiles.List(ctx, f, offset, limit)
		},
		get: func(ctx context.Context, _ string, id string) (*models.Profile, error) {
			return r.profile(ctx, id)
		},
	})

	registerCollection(r.handler, collection[models.Community, models.CommunityFilter]{
		name: "communities",
		list: func(ctx context.Context, _ string, f models.CommunityFilter, offset, limit int) ([]models.Community, error) {
			return r.communities.List(ctx, f, offset, limit)
		},
		get: func(ctx context.Context, _ string, id string) (*models.Community, error) {
			return r.communities.GetByID(ctx, id)
		},
		create: r.createCommunity,
	})

	registerCollection(r.handler, collection[models.Post, models.PostFilter]{
		name: "posts",
		list: func(ctx context.Context, _ string, f models.PostFilter, offset, limit int) ([]models.Post, error) {
			return r.posts.List(ctx, f, offset, limit)
		},
		get: func(ctx context.Context, _ string, id string) (*models.Post, error) {
			return r.posts.GetByID(ctx, id)
		},
		create: r.createPost,
		remove: func(ctx context.Context, caller, id string) error {
			return r.posts.Delete(ctx, id, caller)
		},
	})

	registerCollection(r.handler, collection[models.Event, models.EventFilter]{
		name: "events",
		list: r.listEvents,
		get: func(ctx context.Context, caller, id string) (*models.Event, error) {
			e, err := r.events.GetByID(ctx, id)
			if err != nil || e == nil {
				return e, err
			}
			if e.Status != models.EventApproved && e.CreatorID != caller && !r.isStaff(ctx, caller) {
				return nil, nil
			}
			return e, nil
		},
		create: r.createEvent,
		remove: func(ctx context.Context, caller, id string) error {
			return r.events.Delete(ctx, id, caller)
		},
	})

	registerCollection(r.handler, collection[models.CollabPost, models.CollabFilter]{
		name: "collab_posts",
		list: func(ctx context.Context, _ string, f models.CollabFilter, offset, limit int) ([]models.CollabPost, error) {
			return r.tasks.List(ctx, f, offset, limit)
		},
		get: func(ctx context.Context, _ string, id string) (*models.CollabPost, error) {
			return r.tasks.GetByID(ctx, id)
		},
	})

	registerCollection(r.handler, collection[models.CollabApplication, models.ApplicationFilter]{
		name: "collab_applications",
		list: r.listApplications,
		get: func(ctx context.Context, caller, id string) (*models.CollabApplication, error) {
			a, err := r.applications.GetByID(ctx, id)
			if err != nil || a == nil {
				return a, err
			}
			if a.ApplicantID == caller {
				return a, nil
			}
			if ok, err := r.isPoster(ctx, caller, a.PostID); err != nil || !ok {
				return nil, err
			}
			return a, nil
		},
	})

	registerCollection(r.handler, collection[models.CollabDeliverable, models.DeliverableFilter]{
		name: "collab_deliverables",
		list: func(ctx context.Context, caller string, f models.DeliverableFilter, offset, limit int) ([]models.CollabDeliverable, error) {
			if err := r.requireParticipant(ctx, caller, f.PostID); err != nil {
				return nil, err
			}
			return r.deliverables.List(ctx, f, offset, limit)
		},
		get: func(ctx context.Context, caller, id string) (*models.CollabDeliverable, error) {
			d, err := r.deliverables.GetByID(ctx, id)
			if err != nil || d == nil {
				return d, err
			}
			if err := r.requireParticipant(ctx, caller, d.PostID); err != nil {
				return nil, nil
			}
			return d, nil
		},
	})

	registerCollection(r.handler, collection[models.CollabMessage, models.CollabMessageFilter]{
		name: "collab_messages",
		list: func(ctx context.Context, caller string, f models.CollabMessageFilter, offset, limit int) ([]models.CollabMessage, error) {
			if err := r.requireParticipant(ctx, caller, f.PostID); err != nil {
				return nil, err
			}
			return r.taskMessages.List(ctx, f, offset, limit)
		},
		get: func(ctx context.Context, caller, id string) (*models.CollabMessage, error) {
			m, err := r.taskMessages.GetByID(ctx, id)
			if err != nil || m == nil {
				return m, err
			}
			if err := r.requireParticipant(ctx, caller, m.PostID); err != nil {
				return nil, nil
			}
			return m, nil
		},
		create: r.createTaskMessage,
		remove: func(ctx context.Context, caller, id string) error {
			return r.taskMessages.Delete(ctx, id, caller)
		},
	})

	registerCollection(r.handler, collection[models.CollegeMessage, models.CollegeMessageFilter]{
		name: "college_messages",
		list: func(ctx context.Context, caller string, f models.CollegeMessageFilter, offset, limit int) ([]models.CollegeMessage, error) {
			if err := r.requireRoom(ctx, caller, f.College, f.RoomOrDefault(), false); err != nil {
				return nil, err
			}
			return r.roomMessages.List(ctx, f, offset, limit)
		},
		get: func(ctx context.Context, caller, id string) (*models.CollegeMessage, error) {
			m, err := r.roomMessages.GetByID(ctx, id)
			if err != nil || m == nil {
				return m, err
			}
			if err := r.requireRoom(ctx, caller, m.College, m.Room, false); err != nil {
				return nil, nil
			}
			return m, nil
		},
		create: r.createRoomMessage,
		remove: func(ctx context.Context, caller, id string) error {
			return r.roomMessages.Delete(ctx, id, caller)
		},
	})

	registerCollection(r.handler, collection[models.Complaint, models.ComplaintFilter]{
		name: "complaints",
		list: r.listComplaints,
		get: func(ctx context.Context, caller, id string) (*models.Complaint, error) {
			c, err := r.complaints.GetByID(ctx, id)
			if err != nil || c == nil {
				return c, err
			}
			if c.UserID == caller {
				return c, nil
			}
			p, err := r.profile(ctx, caller)
			if err != nil || p == nil || !canSeeCollegeComplaints(*p, c.College) {
				return nil, err
			}
			return c, nil
		},
		create: r.createComplaint,
	})

	registerCollection(r.handler, collection[models.Notification, models.NotificationFilter]{
		name: "notifications",
		list: func(ctx context.Context, caller string, f models.NotificationFilter, offset, limit int) ([]models.Notification, error) {
			if caller == "" {
				return nil, apperr.Unauthorized("Sign in to continue")
			}
			f.UserID = caller
			return r.notifications.List(ctx, f, offset, limit)
		},
		get: func(ctx context.Context, caller, id string) (*models.Notification, error) {
			n, err := r.notifications.GetByID(ctx, id)
			if err != nil || n == nil || n.UserID != caller {
				return nil, err
			}
			return n, nil
		},
	})
}

// prepareCreate assigns an id and rejects reuse of someone else's id.
// owner returns the owner column of an existing row.
func prepareCreate(id *string, existingOwner func(id string) (string, bool, error), caller string) error {
	if *id == "" {
		*id = uuid.NewString()
		return nil
	}
	if _, err := uuid.Parse(*id); err != nil {
		return apperr.InvalidField("id", "id must be a UUID")
	}
	owner, found, err := existingOwner(*id)
	if err != nil {
		return err
	}
	if found && owner != caller {
		return apperr.Forbidden("You can only edit your own posts")
	}
	return nil
}

func (r *Router) createPost(ctx context.Context, caller string, p *models.Post) (*models.Post, error) {
	p.Content = strings.TrimSpace(p.Content)
	if p.Content == "" && p.ImageURL == "" {
		return nil, apperr.InvalidField("content", "Write something or add a photo")
	}
	err := prepareCreate(&p.ID, func(id string) (string, bool, error) {
		existing, err := r.posts.GetByID(ctx, id)
		if err != nil || existing == nil {
			return "", false, err
		}
		return existing.AuthorID, true, nil
	}, caller)
	if err != nil {
		return nil, err
	}
	if p.CommunityID != nil && *p.CommunityID == "" {
		p.CommunityID = nil
	}
	if p.CommunityID != nil {
		community, err := r.communities.GetByID(ctx, *p.CommunityID)
		if err != nil {
			return nil, err
		}
		if community == nil {
			return nil, apperr.InvalidField("community_id", "Community not found")
		}
	}
	p.AuthorID = caller
	p.Author = nil
	if err := r.posts.Upsert(ctx, p); err != nil {
		return nil, err
	}
	return r.posts.GetByID(ctx, p.ID)
}

func (r *Router) createCommunity(ctx context.Context, caller string, c *models.Community) (*models.Community, error) {
	if !r.isStaff(ctx, caller) {
		return nil, apperr.Forbidden("Only moderators can create communities")
	}
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return nil, apperr.InvalidField("name", "Name is required")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := r.communities.Upsert(ctx, c); err != nil {
		return nil, err
	}
	return r.communities.GetByID(ctx, c.ID)
}

func (r *Router) listEvents(ctx context.Context, caller string, f models.EventFilter, offset, limit int) ([]models.Event, error) {
	if f.Status != models.EventApproved && !r.isStaff(ctx, caller) {
		f.Status = models.EventApproved
	}
	return r.events.List(ctx, f, offset, limit)
}

func (r *Router) createEvent(ctx context.Context, caller string, e *models.Event) (*models.Event, error) {
	e.Title = strings.TrimSpace(e.Title)
	if e.Title == "" {
		return nil, apperr.InvalidField("title", "Title is required")
	}
	if e.StartsAt.IsZero() {
		return nil, apperr.InvalidField("starts_at", "Pick a date")
	}
	if e.RSVPLimit < 0 {
		return nil, apperr.InvalidField("rsvp_limit", "RSVP limit cannot be negative")
	}
	// events are never re-created: moderation state only moves through event.moderate
	err := prepareCreate(&e.ID, func(id string) (string, bool, error) {
		existing, err := r.events.GetByID(ctx, id)
		if err != nil || existing == nil {
			return "", false, err
		}
		return "", false, apperr.AlreadyExists("This event was already submitted")
	}, caller)
	if err != nil {
		return nil, err
	}
	if e.College != nil && *e.College == "" {
		e.College = nil
	}
	e.CreatorID = caller
	e.Creator = nil
	e.Status = models.EventPending
	e.AttendeeCount = 0
	e.StartsAt = e.StartsAt.UTC()
	if err := r.events.Upsert(ctx, e); err != nil {
		return nil, err
	}
	return r.events.GetByID(ctx, e.ID)
}

func (r *Router) listApplications(ctx context.Context, caller string, f models.ApplicationFilter, offset, limit int) ([]models.CollabApplication, error) {
	if caller == "" {
		return nil, apperr.Unauthorized("Sign in to continue")
	}
	if f.ApplicantID == caller {
		return r.applications.List(ctx, f, offset, limit)
	}
	if f.PostID == "" {
		f.ApplicantID = caller
		return r.applications.List(ctx, f, offset, limit)
	}
	ok, err := r.isPoster(ctx, caller, f.PostID)
	if err != nil {
		return nil, err
	}
	if !ok {
		f.ApplicantID = caller
	}
	return r.applications.List(ctx, f, offset, limit)
}

func (r *Router) createTaskMessage(ctx context.Context, caller string, m *models.CollabMessage) (*models.CollabMessage, error) {
	m.Content = strings.TrimSpace(m.Content)
	if m.Content == "" && m.FileURL == "" {
		return nil, apperr.InvalidField("content", "Message is empty")
	}
	if err := r.requireParticipant(ctx, caller, m.PostID); err != nil {
		return nil, err
	}
	err := prepareCreate(&m.ID, func(id string) (string, bool, error) {
		existing, err := r.taskMessages.GetByID(ctx, id)
		if err != nil || existing == nil {
			return "", false, err
		}
		return existing.SenderID, true, nil
	}, caller)
	if err != nil {
		return nil, err
	}
	m.SenderID = caller
	m.Sender = nil
	if err := r.taskMessages.Upsert(ctx, m); err != nil {
		return nil, err
	}
	return r.taskMessages.GetByID(ctx, m.ID)
}

func (r *Router) createRoomMessage(ctx context.Context, caller string, m *models.CollegeMessage) (*models.CollegeMessage, error) {
	m.Content = strings.TrimSpace(m.Content)
	if m.Content == "" && m.FileURL == "" {
		return nil, apperr.InvalidField("content", "Message is empty")
	}
	p, err := r.profile(ctx, caller)
	if err != nil {
		return nil, err
	}
	if p == nil || p.CollegeName() == "" {
		return nil, apperr.FailedPrecondition("Add your college to your profile first")
	}
	if m.College == "" {
		m.College = p.CollegeName()
	}
	if m.Room == "" {
		m.Room = models.RoomCommon
	}
	if err := r.requireRoom(ctx, caller, m.College, m.Room, true); err != nil {
		return nil, err
	}
	err = prepareCreate(&m.ID, func(id string) (string, bool, error) {
		existing, err := r.roomMessages.GetByID(ctx, id)
		if err != nil || existing == nil {
			return "", false, err
		}
		return existing.SenderID, true, nil
	}, caller)
	if err != nil {
		return nil, err
	}
	m.SenderID = caller
	m.Sender = nil
	if err := r.roomMessages.Upsert(ctx, m); err != nil {
		return nil, err
	}
	return r.roomMessages.GetByID(ctx, m.ID)
}

func (r *Router) listComplaints(ctx context.Context, caller string, f models.ComplaintFilter, offset, limit int) ([]models.Complaint, error) {
	if caller == "" {
		return nil, apperr.Unauthorized("Sign in to continue")
	}
	p, err := r.profile(ctx, caller)
	if err != nil {
		return nil, err
	}
	switch {
	case p == nil || !p.IsStaff():
		f.UserID = caller
	case p.Access == models.AccessModerator && f.UserID != caller:
		f.College = p.CollegeName()
	}
	return r.complaints.List(ctx, f, offset, limit)
}

func (r *Router) createComplaint(ctx context.Context, caller string, c *models.Complaint) (*models.Complaint, error) {
	c.Subject = strings.TrimSpace(c.Subject)
	if c.Subject == "" {
		return nil, apperr.InvalidField("subject", "Subject is required")
	}
	p, err := r.profile(ctx, caller)
	if err != nil {
		return nil, err
	}
	if p == nil || p.CollegeName() == "" {
		return nil, apperr.FailedPrecondition("Add your college to your profile first")
	}
	existing, err := r.complaints.GetByID(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.AlreadyExists("This complaint was already submitted")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.UserID = caller
	c.College = p.CollegeName()
	c.Status = models.ComplaintSubmitted
	c.CreatedAt = time.Time{}
	if err := r.complaints.Upsert(ctx, c); err != nil {
		return nil, err
	}
	return r.complaints.GetByID(ctx, c.ID)
}

func canSeeCollegeComplaints(p models.Profile, college string) bool {
	switch p.Access {
	case models.AccessAdmin:
		return true
	case models.AccessModerator:
		return p.CollegeName() == college
	default:
		return false
	}
}

func (r *Router) isStaff(ctx context.Context, caller string) bool {
	if caller == "" {
		return false
	}
	p, err := r.profile(ctx, caller)
	return err == nil && p != nil && p.IsStaff()
}

func (r *Router) isPoster(ctx context.Context, caller, postID string) (bool, error) {
	if caller == "" || postID == "" {
		return false, nil
	}
	task, err := r.tasks.GetByID(ctx, postID)
	if err != nil || task == nil {
		return false, err
	}
	return task.PosterID == caller, nil
}

// requireParticipant allows the task's poster and assigned helper
func (r *Router) requireParticipant(ctx context.Context, caller, postID string) error {
	if caller == "" {
		return apperr.Unauthorized("Sign in to continue")
	}
	if postID == "" {
		return apperr.InvalidField("post_id", "Task is required")
	}
	task, err := r.tasks.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if task == nil {
		return apperr.NotFound("Task not found")
	}
	if task.PosterID == caller || (task.HelperID != nil && *task.HelperID == caller) {
		return nil
	}
	return apperr.Forbidden("Only the task owner and helper can see this conversation")
}

// requireRoom checks membership of a college room. The faculty room is
// for verified faculty and staff; only staff post announcements.
func (r *Router) requireRoom(ctx context.Context, caller, college, room string, writing bool) error {
	if caller == "" {
		return apperr.Unauthorized("Sign in to continue")
	}
	if college == "" {
		return apperr.InvalidField("college", "College is required")
	}
	p, err := r.profile(ctx, caller)
	if err != nil {
		return err
	}
	if p == nil {
		return apperr.Unauthorized("Sign in to continue")
	}
	if p.Access != models.AccessAdmin && p.CollegeName() != college {
		return apperr.Forbidden("You can only join rooms of your own college")
	}
	switch room {
	case models.RoomCommon:
		return nil
	case models.RoomFaculty:
		if p.IsFaculty() || p.IsStaff() {
			return nil
		}
		return apperr.Forbidden("The faculty room is for faculty members")
	case models.RoomAnnouncements:
		if !writing || p.IsStaff() {
			return nil
		}
		return apperr.Forbidden("Only moderators can post announcements")
	default:
		return apperr.InvalidField("room", "Unknown room")
	}
}
