package procedures

import (
	"github.com/google/uuid"

	"github.com/vibecampus/vibehub/internal/models"
)

// notify writes an inbox entry for userID. Users are never notified of
// their own actions.
func notify(tx *Tx, userID, typ, actorID, subjectID string) error {
	if userID == "" || userID == actorID {
		return nil
	}
	n := &models.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      typ,
		SubjectID: subjectID,
	}
	if actorID != "" {
		actor := actorID
		n.ActorID = &actor
	}
	if err := tx.Create(n).Error; err != nil {
		return err
	}
	return tx.inserted(n)
}
