package db

import (
	"context"

	"github.com/vibecampus/vibehub/internal/models"
)

// EventRepository provides event-related database operations
type EventRepository struct {
	*Repository
}

// NewEventRepository creates a new event repository
func NewEventRepository(repo *Repository) *EventRepository {
	return &EventRepository{Repository: repo}
}

// GetByID retrieves an event with its creator
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	return getByID[models.Event](ctx, r.db.Preload("Creator"), id)
}

// List returns a page of events, soonest first
func (r *EventRepository) List(ctx context.Context, f models.EventFilter, offset, limit int) ([]models.Event, error) {
	q := r.db.WithContext(ctx).Model(&models.Event{}).Preload("Creator")
	switch {
	case f.College == "":
		q = q.Where("college IS NULL")
	case f.IncludeGlobal:
		q = q.Where("(college = ? OR college IS NULL)", f.College)
	default:
		q = q.Where("college = ?", f.College)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	q = search(q, f.Search, "title", "description")

	var events []models.Event
	if err := paginate(q.Order("starts_at ASC").Order("id ASC"), offset, limit).Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// Upsert creates the event or updates it when the id already exists
func (r *EventRepository) Upsert(ctx context.Context, event *models.Event) error {
	return upsert(ctx, r.Repository, event.TableName(), event.ID, event)
}

// Delete removes an event created by creatorID
func (r *EventRepository) Delete(ctx context.Context, id, creatorID string) error {
	return deleteOwned[models.Event](ctx, r.Repository, models.Event{}.TableName(), id, "creator_id", creatorID)
}

// AttendingIDs returns which of eventIDs userID has RSVP'd to
func (r *EventRepository) AttendingIDs(ctx context.Context, userID string, eventIDs []string) ([]string, error) {
	var ids []string
	q := r.db.WithContext(ctx).Model(&models.EventAttendee{}).Where("user_id = ?", userID)
	if len(eventIDs) > 0 {
		q = q.Where("event_id IN ?", eventIDs)
	}
	if err := q.Pluck("event_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// AttendeeIDs returns the users attending eventID
func (r *EventRepository) AttendeeIDs(ctx context.Context, eventID string) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&models.EventAttendee{}).
		Where("event_id = ?", eventID).
		Order("created_at ASC").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
