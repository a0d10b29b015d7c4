package procedures

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/internal/models"
)

func loadEvent(tx *Tx, id string) (*models.Event, error) {
	if id == "" {
		return nil, apperr.InvalidField("event_id", "Event is required")
	}
	e, err := find[models.Event](tx, "id = ?", id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, apperr.NotFound("Event not found")
	}
	return e, nil
}

// eventToggleRSVP adds or removes the caller from an event's attendees.
// Only approved events with room left accept new RSVPs.
func eventToggleRSVP(_ context.Context, tx *Tx, caller string, params json.RawMessage) (interface{}, error) {
	var p EventParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	event, err := loadEvent(tx, p.EventID)
	if err != nil {
		return nil, err
	}

	existing, err := find[models.EventAttendee](tx, "event_id = ? AND user_id = ?", event.ID, caller)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if err := tx.Where("event_id = ? AND user_id = ?", event.ID, caller).
			Delete(&models.EventAttendee{}).Error; err != nil {
			return nil, err
		}
		if err := tx.deleted(existing); err != nil {
			return nil, err
		}
		if err := tx.Model(&models.Event{}).
			Where("id = ? AND attendee_count > 0", event.ID).
			Update("attendee_count", gorm.Expr("attendee_count - 1")).Error; err != nil {
			return nil, err
		}
	} else {
		if event.Status != models.EventApproved {
			return nil, apperr.FailedPrecondition("This event is not open for RSVPs")
		}
		res := tx.Model(&models.Event{}).
			Where("id = ? AND (rsvp_limit = 0 OR attendee_count < rsvp_limit)", event.ID).
			Update("attendee_count", gorm.Expr("attendee_count + 1"))
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, apperr.FailedPrecondition("This event is full")
		}
		attendee := &models.EventAttendee{EventID: event.ID, UserID: caller}
		if err := tx.Create(attendee).Error; err != nil {
			return nil, err
		}
		if err := tx.inserted(attendee); err != nil {
			return nil, err
		}
	}

	after, err := find[models.Event](tx, "id = ?", event.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.updated(after, event); err != nil {
		return nil, err
	}
	return &RSVPResult{Attending: existing == nil, AttendeeCount: after.AttendeeCount}, nil
}

// eventModerate approves or rejects a pending event
func eventModerate(_ context.Context, tx *Tx, caller string, params json.RawMessage) (interface{}, error) {
	var p EventModerateParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if p.Status != models.EventApproved && p.Status != models.EventRejected {
		return nil, apperr.InvalidField("status", "Status must be approved or rejected")
	}
	if _, err := requireStaff(tx, caller, "Only moderators can review events"); err != nil {
		return nil, err
	}
	event, err := loadEvent(tx, p.EventID)
	if err != nil {
		return nil, err
	}

	res := tx.Model(&models.Event{}).
		Where("id = ? AND status = ?", event.ID, models.EventPending).
		Update("status", p.Status)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperr.FailedPrecondition("This event has already been reviewed")
	}

	after, err := find[models.Event](tx, "id = ?", event.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.updated(after, event); err != nil {
		return nil, err
	}
	if err := notify(tx, event.CreatorID, models.NotifyEventModerated, caller, event.ID); err != nil {
		return nil, err
	}
	return after, nil
}
