package views

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/internal/db"
	"github.com/vibecampus/vibehub/internal/feed"
	"github.com/vibecampus/vibehub/internal/models"
	"github.com/vibecampus/vibehub/internal/rpcclient"
)

// Collection is a feed source the signed-in user can also write to
type Collection[T feed.Record, F any] interface {
	feed.Source[T, F]
	Create(ctx context.Context, rec T) (T, error)
	Delete(ctx context.Context, id string) error
}

// Records answers the per-record questions views ask besides listing
type Records interface {
	AttendingIDs(ctx context.Context, eventIDs []string) ([]string, error)
	EscrowForPost(ctx context.Context, postID string) (*models.Escrow, error)
	DeliverableCount(ctx context.Context, postID string) (int64, error)
}

// Sources is where views read their lists from
type Sources struct {
	Posts           Collection[models.Post, models.PostFilter]
	Events          feed.Source[models.Event, models.EventFilter]
	CollabPosts     feed.Source[models.CollabPost, models.CollabFilter]
	CollabMessages  Collection[models.CollabMessage, models.CollabMessageFilter]
	CollegeMessages Collection[models.CollegeMessage, models.CollegeMessageFilter]
	Complaints      Collection[models.Complaint, models.ComplaintFilter]
	Records         Records
}

// RemoteSources reads through the API server
func RemoteSources(c *rpcclient.Client) Sources {
	return Sources{
		Posts:           c.Posts(),
		Events:          c.Events(),
		CollabPosts:     c.CollabPosts(),
		CollabMessages:  c.CollabMessages(),
		CollegeMessages: c.CollegeMessages(),
		Complaints:      c.Complaints(),
		Records:         c,
	}
}

// repoCollection adapts repository methods to Collection
type repoCollection[T feed.Record, F any] struct {
	list   func(ctx context.Context, f F, offset, limit int) ([]T, error)
	get    func(ctx context.Context, id string) (*T, error)
	create func(ctx context.Context, rec T) (T, error)
	remove func(ctx context.Context, id string) error
}

func (r *repoCollection[T, F]) List(ctx context.Context, f F, offset, limit int) ([]T, error) {
	return r.list(ctx, f, offset, limit)
}

func (r *repoCollection[T, F]) Get(ctx context.Context, id string) (*T, error) {
	return r.get(ctx, id)
}

func (r *repoCollection[T, F]) Create(ctx context.Context, rec T) (T, error) {
	if r.create == nil {
		var zero T
		return zero, apperr.Forbidden("This list is read-only")
	}
	return r.create(ctx, rec)
}

func (r *repoCollection[T, F]) Delete(ctx context.Context, id string) error {
	if r.remove == nil {
		return apperr.Forbidden("This list is read-only")
	}
	return r.remove(ctx, id)
}

// LocalSources reads the database in-process. caller returns the
// signed-in user, who owns everything created through these sources.
func LocalSources(repo *db.Repository, caller func() string) Sources {
	posts := db.NewPostRepository(repo)
	events := db.NewEventRepository(repo)
	tasks := db.NewCollabPostRepository(repo)
	taskMessages := db.NewCollabMessageRepository(repo)
	roomMessages := db.NewCollegeMessageRepository(repo)
	complaints := db.NewComplaintRepository(repo)
	profiles := db.NewProfileRepository(repo)

	signedIn := func() (string, error) {
		id := caller()
		if id == "" {
			return "", apperr.Unauthorized("Sign in to continue")
		}
		return id, nil
	}

	return Sources{
		Posts: &repoCollection[models.Post, models.PostFilter]{
			list: posts.List,
			get:  posts.GetByID,
			create: func(ctx context.Context, p models.Post) (models.Post, error) {
				user, err := signedIn()
				if err != nil {
					return p, err
				}
				p.ID = idOrNew(p.ID)
				p.AuthorID = user
				p.Author = nil
				return saved(ctx, posts.Upsert, posts.GetByID, &p)
			},
			remove: func(ctx context.Context, id string) error {
				user, err := signedIn()
				if err != nil {
					return err
				}
				return posts.Delete(ctx, id, user)
			},
		},
		Events:      &repoCollection[models.Event, models.EventFilter]{list: events.List, get: events.GetByID},
		CollabPosts: &repoCollection[models.CollabPost, models.CollabFilter]{list: tasks.List, get: tasks.GetByID},
		CollabMessages: &repoCollection[models.CollabMessage, models.CollabMessageFilter]{
			list: taskMessages.List,
			get:  taskMessages.GetByID,
			create: func(ctx context.Context, m models.CollabMessage) (models.CollabMessage, error) {
				user, err := signedIn()
				if err != nil {
					return m, err
				}
				m.ID = idOrNew(m.ID)
				m.SenderID = user
				m.Sender = nil
				return saved(ctx, taskMessages.Upsert, taskMessages.GetByID, &m)
			},
			remove: func(ctx context.Context, id string) error {
				user, err := signedIn()
				if err != nil {
					return err
				}
				return taskMessages.Delete(ctx, id, user)
			},
		},
		CollegeMessages: &repoCollection[models.CollegeMessage, models.CollegeMessageFilter]{
			list: roomMessages.List,
			get:  roomMessages.GetByID,
			create: func(ctx context.Context, m models.CollegeMessage) (models.CollegeMessage, error) {
				user, err := signedIn()
				if err != nil {
					return m, err
				}
				m.ID = idOrNew(m.ID)
				m.SenderID = user
				m.Sender = nil
				return saved(ctx, roomMessages.Upsert, roomMessages.GetByID, &m)
			},
			remove: func(ctx context.Context, id string) error {
				user, err := signedIn()
				if err != nil {
					return err
				}
				return roomMessages.Delete(ctx, id, user)
			},
		},
		Complaints: &repoCollection[models.Complaint, models.ComplaintFilter]{
			list: complaints.List,
			get:  complaints.GetByID,
			create: func(ctx context.Context, c models.Complaint) (models.Complaint, error) {
				user, err := signedIn()
				if err != nil {
					return c, err
				}
				p, err := profiles.GetByID(ctx, user)
				if err != nil {
					return c, err
				}
				if p == nil || p.CollegeName() == "" {
					return c, apperr.FailedPrecondition("Add your college to your profile first")
				}
				c.ID = idOrNew(c.ID)
				c.UserID = user
				c.College = p.CollegeName()
				c.Status = models.ComplaintSubmitted
				return saved(ctx, complaints.Upsert, complaints.GetByID, &c)
			},
		},
		Records: &localRecords{
			caller:       caller,
			events:       events,
			wallets:      db.NewWalletRepository(repo),
			deliverables: db.NewCollabDeliverableRepository(repo),
		},
	}
}

type localRecords struct {
	caller       func() string
	events       *db.EventRepository
	wallets      *db.WalletRepository
	deliverables *db.CollabDeliverableRepository
}

func (r *localRecords) AttendingIDs(ctx context.Context, eventIDs []string) ([]string, error) {
	user := r.caller()
	if user == "" || len(eventIDs) == 0 {
		return nil, nil
	}
	return r.events.AttendingIDs(ctx, user, eventIDs)
}

func (r *localRecords) EscrowForPost(ctx context.Context, postID string) (*models.Escrow, error) {
	return r.wallets.EscrowForPost(ctx, postID)
}

func (r *localRecords) DeliverableCount(ctx context.Context, postID string) (int64, error) {
	return r.deliverables.Count(ctx, postID)
}

func idOrNew(id string) string {
	if strings.TrimSpace(id) == "" {
		return uuid.NewString()
	}
	return id
}

// saved upserts rec and reads back the stored row
func saved[T any, PT interface {
	*T
	feed.Record
}](ctx context.Context, upsert func(context.Context, PT) error, get func(context.Context, string) (*T, error), rec PT) (T, error) {
	if err := upsert(ctx, rec); err != nil {
		return *rec, err
	}
	stored, err := get(ctx, rec.RecordID())
	if err != nil {
		return *rec, err
	}
	if stored == nil {
		return *rec, apperr.NotFound("Not found")
	}
	return *stored, nil
}
