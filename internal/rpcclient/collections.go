package rpcclient

import (
	"context"
	"encoding/json"

	"github.com/vibecampus/vibehub/internal/api"
	"github.com/vibecampus/vibehub/internal/models"
)

// Collection reads and writes one server collection. It satisfies
// feed.Source.
type Collection[T any, F any] struct {
	c    *Client
	name string
}

// NewCollection binds the collection served under name ("posts", ...)
func NewCollection[T any, F any](c *Client, name string) *Collection[T, F] {
	return &Collection[T, F]{c: c, name: name}
}

func (col *Collection[T, F]) List(ctx context.Context, filter F, offset, limit int) ([]T, error) {
	raw, err := json.Marshal(filter)
	if err != nil {
		return nil, err
	}
	var rows []T
	err = col.c.Call(ctx, col.name+".list", api.ListParams{Filter: raw, Offset: offset, Limit: limit}, &rows)
	return rows, err
}

// Get returns nil when the record does not exist or is not visible
func (col *Collection[T, F]) Get(ctx context.Context, id string) (*T, error) {
	var rec *T
	if err := col.c.Call(ctx, col.name+".get", api.IDParams{ID: id}, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Create inserts rec, or updates it when the caller owns a row with its id
func (col *Collection[T, F]) Create(ctx context.Context, rec T) (T, error) {
	var out T
	err := col.c.Call(ctx, col.name+".create", rec, &out)
	return out, err
}

func (col *Collection[T, F]) Delete(ctx context.Context, id string) error {
	return col.c.Call(ctx, col.name+".delete", api.IDParams{ID: id}, nil)
}

// Collections of the API server
func (c *Client) Profiles() *Collection[models.Profile, models.ProfileFilter] {
	return NewCollection[models.Profile, models.ProfileFilter](c, "profiles")
}

func (c *Client) Posts() *Collection[models.Post, models.PostFilter] {
	return NewCollection[models.Post, models.PostFilter](c, "posts")
}

func (c *Client) Communities() *Collection[models.Community, models.CommunityFilter] {
	return NewCollection[models.Community, models.CommunityFilter](c, "communities")
}

func (c *Client) Events() *Collection[models.Event, models.EventFilter] {
	return NewCollection[models.Event, models.EventFilter](c, "events")
}

func (c *Client) CollabPosts() *Collection[models.CollabPost, models.CollabFilter] {
	return NewCollection[models.CollabPost, models.CollabFilter](c, "collab_posts")
}

func (c *Client) CollabApplications() *Collection[models.CollabApplication, models.ApplicationFilter] {
	return NewCollection[models.CollabApplication, models.ApplicationFilter](c, "collab_applications")
}

func (c *Client) CollabDeliverables() *Collection[models.CollabDeliverable, models.DeliverableFilter] {
	return NewCollection[models.CollabDeliverable, models.DeliverableFilter](c, "collab_deliverables")
}

func (c *Client) CollabMessages() *Collection[models.CollabMessage, models.CollabMessageFilter] {
	return NewCollection[models.CollabMessage, models.CollabMessageFilter](c, "collab_messages")
}

func (c *Client) CollegeMessages() *Collection[models.CollegeMessage, models.CollegeMessageFilter] {
	return NewCollection[models.CollegeMessage, models.CollegeMessageFilter](c, "college_messages")
}

func (c *Client) Complaints() *Collection[models.Complaint, models.ComplaintFilter] {
	return NewCollection[models.Complaint, models.ComplaintFilter](c, "complaints")
}

func (c *Client) Notifications() *Collection[models.Notification, models.NotificationFilter] {
	return NewCollection[models.Notification, models.NotificationFilter](c, "notifications")
}
