package procedures

import (
	"context"
	"encoding/json"

	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/internal/models"
)

// complaintAdvance moves a complaint one step along
// submitted -> in_review -> resolved. Moderators handle their own
// college; admins handle any.
func complaintAdvance(_ context.Context, tx *Tx, caller string, params json.RawMessage) (interface{}, error) {
	var p ComplaintAdvanceParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	staff, err := requireStaff(tx, caller, "Only moderators can update complaints")
	if err != nil {
		return nil, err
	}
	if p.ComplaintID == "" {
		return nil, apperr.InvalidField("complaint_id", "Complaint is required")
	}
	c, err := find[models.Complaint](tx, "id = ?", p.ComplaintID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("Complaint not found")
	}
	if staff.Access != models.AccessAdmin && staff.CollegeName() != c.College {
		return nil, apperr.Forbidden("You can only update complaints from your college")
	}
	if next := models.NextComplaintStatus(c.Status); next == "" || next != p.Status {
		return nil, apperr.FailedPrecondition("Complaints move from submitted to in review to resolved")
	}

	res := tx.Model(&models.Complaint{}).
		Where("id = ? AND status = ?", c.ID, c.Status).
		Update("status", p.Status)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperr.FailedPrecondition("This complaint was updated by someone else. Refresh and try again.")
	}
	after, err := find[models.Complaint](tx, "id = ?", c.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.updated(after, c); err != nil {
		return nil, err
	}
	if err := notify(tx, c.UserID, models.NotifyComplaintUpdated, caller, c.ID); err != nil {
		return nil, err
	}
	return after, nil
}
