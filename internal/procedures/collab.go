package procedures

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/internal/models"
)

// Task lifecycle: open -> in_progress -> completed, open -> cancelled.
// The reward is held in escrow from creation, so a task can only leave
// open with its funds already set aside.

func loadTask(tx *Tx, id string) (*models.CollabPost, error) {
	if id == "" {
		return nil, apperr.InvalidField("post_id", "Task is required")
	}
	post, err := find[models.CollabPost](tx, "id = ?", id)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, apperr.NotFound("Task not found")
	}
	return post, nil
}

func loadApplication(tx *Tx, id string) (*models.CollabApplication, error) {
	if id == "" {
		return nil, apperr.InvalidField("application_id", "Application is required")
	}
	app, err := find[models.CollabApplication](tx, "id = ?", id)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, apperr.NotFound("Application not found")
	}
	return app, nil
}

// moveTask switches a task from one status to another, failing when
// another request got there first
func moveTask(tx *Tx, post *models.CollabPost, from string, fields map[string]interface{}) (*models.CollabPost, error) {
	res := tx.Model(&models.CollabPost{}).
		Where("id = ? AND status = ?", post.ID, from).
		Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperr.FailedPrecondition("This task was changed by someone else. Refresh and try again.")
	}
	after, err := find[models.CollabPost](tx, "id = ?", post.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.updated(after, post); err != nil {
		return nil, err
	}
	return after, nil
}

// heldEscrow returns the task's escrow if it is currently held for the full reward
func heldEscrow(tx *Tx, post *models.CollabPost) (*models.Escrow, error) {
	escrow, err := find[models.Escrow](tx, "post_id = ?", post.ID)
	if err != nil {
		return nil, err
	}
	if escrow == nil || escrow.Status != models.EscrowHeld || escrow.Amount != post.Reward {
		return nil, nil
	}
	return escrow, nil
}

func setEscrowStatus(tx *Tx, escrow *models.Escrow, status string) error {
	res := tx.Model(&models.Escrow{}).
		Where("id = ? AND status = ?", escrow.ID, escrow.Status).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.FailedPrecondition("Escrow was changed by someone else. Refresh and try again.")
	}
	after, err := find[models.Escrow](tx, "id = ?", escrow.ID)
	if err != nil {
		return err
	}
	return tx.updated(after, escrow)
}

// holdReward debits the poster and holds the reward against the task
func holdReward(tx *Tx, post *models.CollabPost, existing *models.Escrow) (*models.Escrow, error) {
	if _, err := adjustWallet(tx, post.PosterID, walletDelta{Balance: -post.Reward, Spent: post.Reward}, models.TxEscrowHold, post.ID); err != nil {
		return nil, err
	}

	if existing != nil {
		before := *existing
		if err := tx.Model(&models.Escrow{}).Where("id = ?", existing.ID).Updates(map[string]interface{}{
			"status":   models.EscrowHeld,
			"amount":   post.Reward,
			"payer_id": post.PosterID,
		}).Error; err != nil {
			return nil, err
		}
		after, err := find[models.Escrow](tx, "id = ?", existing.ID)
		if err != nil {
			return nil, err
		}
		return after, tx.updated(after, &before)
	}

	escrow := &models.Escrow{
		ID:      uuid.NewString(),
		PostID:  post.ID,
		PayerID: post.PosterID,
		Amount:  post.Reward,
		Status:  models.EscrowHeld,
	}
	if err := tx.Create(escrow).Error; err != nil {
		return nil, err
	}
	return escrow, tx.inserted(escrow)
}

// collabCreateTask opens a task and escrows its reward in one step
func collabCreateTask(_ context.Context, tx *Tx, caller string, params json.RawMessage) (interface{}, error) {
	var p CreateTaskParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		return nil, apperr.InvalidField("title", "Title is required")
	}
	if p.Reward <= 0 {
		return nil, apperr.InvalidField("reward", "Reward must be greater than zero")
	}
	if _, err := callerProfile(tx, caller); err != nil {
		return nil, err
	}

	post := &models.CollabPost{
		ID:          uuid.NewString(),
		PosterID:    caller,
		Title:       p.Title,
		Description: strings.TrimSpace(p.Description),
		Reward:      p.Reward,
		Status:      models.TaskOpen,
	}
	if err := tx.Omit("Poster", "Helper").Create(post).Error; err != nil {
		return nil, err
	}
	if err := tx.inserted(post); err != nil {
		return nil, err
	}
	if _, err := holdReward(tx, post, nil); err != nil {
		return nil, err
	}
	return post, nil
}

// collabCreateEscrow holds the reward for an open task that has none,
// such as tasks created before rewards were escrowed up front
func collabCreateEscrow(_ context.Context, tx *Tx, caller string, params json.RawMessage) (interface{}, error) {
	var p TaskParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	post, err := loadTask(tx, p.PostID)
	if err != nil {
		return nil, err
	}
	if post.PosterID != caller {
		return nil, apperr.Forbidden("Only the task owner can fund this task")
	}
	if post.Status != models.TaskOpen {
		return nil, apperr.FailedPrecondition("Only open tasks can be funded")
	}
	if post.Reward <= 0 {
		return nil, apperr.FailedPrecondition("This task has no reward to escrow")
	}

	existing, err := find[models.Escrow](tx, "post_id = ?", post.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status == models.EscrowHeld {
		return nil, apperr.AlreadyExists("The reward is already in escrow")
	}
	return holdReward(tx, post, existing)
}

// collabApply records the caller's application to an open task
func collabApply(_ context.Context, tx *Tx, caller string, params json.RawMessage) (interface{}, error) {
	var p ApplyParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	post, err := loadTask(tx, p.PostID)
	if err != nil {
		return nil, err
	}
	if post.PosterID == caller {
		return nil, apperr.InvalidArg("You cannot apply to your own task")
	}
	if post.Status != models.TaskOpen {
		return nil, apperr.FailedPrecondition("This task is no longer accepting applications")
	}

	dup, err := find[models.CollabApplication](tx, "post_id = ? AND applicant_id = ?", post.ID, caller)
	if err != nil {
		return nil, err
	}
	if dup != nil {
		return nil, apperr.AlreadyExists("You have already applied to this task")
	}

	app := &models.CollabApplication{
		ID:          uuid.NewString(),
		PostID:      post.ID,
		ApplicantID: caller,
		Message:     strings.TrimSpace(p.Message),
		Status:      models.ApplicationPending,
	}
	if err := tx.Omit("Applicant").Create(app).Error; err != nil {
		return nil, err
	}
	if err := tx.inserted(app); err != nil {
		return nil, err
	}
	if err := notify(tx, post.PosterID, models.NotifyApplication, caller, post.ID); err != nil {
		return nil, err
	}
	return app, nil
}

// setApplicationStatus moves a pending application to status
func setApplicationStatus(tx *Tx, app *models.CollabApplication, status string) error {
	res := tx.Model(&models.CollabApplication{}).
		Where("id = ? AND status = ?", app.ID, models.ApplicationPending).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.FailedPrecondition("This application has already been answered")
	}
	after, err := find[models.CollabApplication](tx, "id = ?", app.ID)
	if err != nil {
		return err
	}
	return tx.updated(after, app)
}

// declinePending declines every other pending application of a task
func declinePending(tx *Tx, postID, exceptID, actor string) error {
	var pending []models.CollabApplication
	if err := tx.Where("post_id = ? AND status = ? AND id <> ?", postID, models.ApplicationPending, exceptID).
		Find(&pending).Error; err != nil {
		return err
	}
	for i := range pending {
		if err := setApplicationStatus(tx, &pending[i], models.ApplicationDeclined); err != nil {
			return err
		}
		if err := notify(tx, pending[i].ApplicantID, models.NotifyApplicationDeclined, actor, postID); err != nil {
			return err
		}
	}
	return nil
}

// collabAcceptApplication assigns the applicant as helper. The reward
// must already be held; it is recorded as pending for the helper.
func collabAcceptApplication(_ context.Context, tx *Tx, caller string, params json.RawMessage) (interface{}, error) {
	var p ApplicationParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	app, err := loadApplication(tx, p.ApplicationID)
	if err != nil {
		return nil, err
	}
	post, err := loadTask(tx, app.PostID)
	if err != nil {
		return nil, err
	}
	if post.PosterID != caller {
		return nil, apperr.Forbidden("Only the task owner can accept applications")
	}
	if post.Status != models.TaskOpen {
		return nil, apperr.FailedPrecondition("This task is no longer open")
	}
	if app.Status != models.ApplicationPending {
		return nil, apperr.FailedPrecondition("This application has already been answered")
	}
	escrow, err := heldEscrow(tx, post)
	if err != nil {
		return nil, err
	}
	if escrow == nil {
		return nil, apperr.FailedPrecondition("The reward must be in escrow before a helper can start")
	}

	after, err := moveTask(tx, post, models.TaskOpen, map[string]interface{}{
		"status":    models.TaskInProgress,
		"helper_id": app.ApplicantID,
	})
	if err != nil {
		return nil, err
	}
	if err := setApplicationStatus(tx, app, models.ApplicationAccepted); err != nil {
		return nil, err
	}
	if err := declinePending(tx, post.ID, app.ID, caller); err != nil {
		return nil, err
	}
	if _, err := adjustWallet(tx, app.ApplicantID, walletDelta{Pending: escrow.Amount}, models.TxPayoutPending, post.ID); err != nil {
		return nil, err
	}
	if err := notify(tx, app.ApplicantID, models.NotifyApplicationAccepted, caller, post.ID); err != nil {
		return nil, err
	}
	return after, nil
}

// collabDeclineApplication turns down one pending application
func collabDeclineApplication(_ context.Context, tx *Tx, caller string, params json.RawMessage) (interface{}, error) {
	var p ApplicationParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	app, err := loadApplication(tx, p.ApplicationID)
	if err != nil {
		return nil, err
	}
	post, err := loadTask(tx, app.PostID)
	if err != nil {
		return nil, err
	}
	if post.PosterID != caller {
		return nil, apperr.Forbidden("Only the task owner can decline applications")
	}
	if err := setApplicationStatus(tx, app, models.ApplicationDeclined); err != nil {
		return nil, err
	}
	if err := notify(tx, app.ApplicantID, models.NotifyApplicationDeclined, caller, post.ID); err != nil {
		return nil, err
	}
	return find[models.CollabApplication](tx, "id = ?", app.ID)
}

// collabSubmitDeliverable records work from the assigned helper
func collabSubmitDeliverable(_ context.Context, tx *Tx, caller string, params json.RawMessage) (interface{}, error) {
	var p DeliverableParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	p.URL = strings.TrimSpace(p.URL)
	p.Note = strings.TrimSpace(p.Note)
	if p.URL == "" && p.Note == "" {
		return nil, apperr.InvalidField("url", "Add a link or a note describing your work")
	}
	post, err := loadTask(tx, p.PostID)
	if err != nil {
		return nil, err
	}
	if post.HelperID == nil || *post.HelperID != caller {
		return nil, apperr.Forbidden("Only the assigned helper can submit work")
	}
	if post.Status != models.TaskInProgress {
		return nil, apperr.FailedPrecondition("This task is not in progress")
	}

	d := &models.CollabDeliverable{
		ID:       uuid.NewString(),
		PostID:   post.ID,
		HelperID: caller,
		URL:      p.URL,
		Note:     p.Note,
	}
	if err := tx.Create(d).Error; err != nil {
		return nil, err
	}
	if err := tx.inserted(d); err != nil {
		return nil, err
	}
	if err := notify(tx, post.PosterID, models.NotifyDeliverable, caller, post.ID); err != nil {
		return nil, err
	}
	return d, nil
}

// collabCompleteAndPay closes an in-progress task with at least one
// deliverable and releases the escrowed reward to the helper
func collabCompleteAndPay(_ context.Context, tx *Tx, caller string, params json.RawMessage) (interface{}, error) {
	var p TaskParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	post, err := loadTask(tx, p.PostID)
	if err != nil {
		return nil, err
	}
	if post.PosterID != caller {
		return nil, apperr.Forbidden("Only the task owner can complete this task")
	}
	if post.Status != models.TaskInProgress || post.HelperID == nil {
		return nil, apperr.FailedPrecondition("This task is not in progress")
	}

	var deliverables int64
	if err := tx.Model(&models.CollabDeliverable{}).Where("post_id = ?", post.ID).Count(&deliverables).Error; err != nil {
		return nil, err
	}
	if deliverables == 0 {
		return nil, apperr.FailedPrecondition("The helper has not submitted any work yet")
	}
	escrow, err := heldEscrow(tx, post)
	if err != nil {
		return nil, err
	}
	if escrow == nil {
		return nil, apperr.FailedPrecondition("No reward is held for this task")
	}

	after, err := moveTask(tx, post, models.TaskInProgress, map[string]interface{}{"status": models.TaskCompleted})
	if err != nil {
		return nil, err
	}
	if err := setEscrowStatus(tx, escrow, models.EscrowReleased); err != nil {
		return nil, err
	}
	helper := *post.HelperID
	if _, err := adjustWallet(tx, helper, walletDelta{
		Balance: escrow.Amount,
		Pending: -escrow.Amount,
		Earned:  escrow.Amount,
	}, models.TxPayout, post.ID); err != nil {
		return nil, err
	}
	if err := notify(tx, helper, models.NotifyPaid, caller, post.ID); err != nil {
		return nil, err
	}
	return after, nil
}

// collabCancel withdraws an open task and refunds its escrow
func collabCancel(_ context.Context, tx *Tx, caller string, params json.RawMessage) (interface{}, error) {
	var p TaskParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	post, err := loadTask(tx, p.PostID)
	if err != nil {
		return nil, err
	}
	if post.PosterID != caller {
		return nil, apperr.Forbidden("Only the task owner can cancel this task")
	}
	if post.Status != models.TaskOpen {
		return nil, apperr.FailedPrecondition("Only open tasks can be cancelled")
	}

	after, err := moveTask(tx, post, models.TaskOpen, map[string]interface{}{"status": models.TaskCancelled})
	if err != nil {
		return nil, err
	}
	if err := declinePending(tx, post.ID, "", caller); err != nil {
		return nil, err
	}

	escrow, err := find[models.Escrow](tx, "post_id = ?", post.ID)
	if err != nil {
		return nil, err
	}
	if escrow != nil && escrow.Status == models.EscrowHeld {
		if err := setEscrowStatus(tx, escrow, models.EscrowRefunded); err != nil {
			return nil, err
		}
		if _, err := adjustWallet(tx, escrow.PayerID, walletDelta{
			Balance: escrow.Amount,
			Spent:   -escrow.Amount,
		}, models.TxEscrowRefund, post.ID); err != nil {
			return nil, err
		}
	}
	return after, nil
}
