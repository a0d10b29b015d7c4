package views

import (
	"context"

	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/internal/feed"
	"github.com/vibecampus/vibehub/internal/gateway"
	"github.com/vibecampus/vibehub/internal/models"
	"github.com/vibecampus/vibehub/internal/realtime"
)

// Board is the task marketplace
type Board struct {
	*list[models.CollabPost, models.CollabFilter]
}

// CollabBoard lists tasks newest first
func CollabBoard(vc *Context, filter models.CollabFilter) *Board {
	return &Board{list: newList(vc, vc.sources.CollabPosts, filter, feed.Options[models.CollabPost, models.CollabFilter]{
		Scope: "collab-board",
		Less:  newestTaskFirst,
		Match: func(f models.CollabFilter, p models.CollabPost) bool { return f.Match(p) },
		Realtime: func(models.CollabFilter) []realtime.Filter {
			return []realtime.Filter{realtime.Table("collab_posts")}
		},
	})}
}

func newestTaskFirst(a, b models.CollabPost) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// SetStatus shows only tasks in status; "" shows all
func (v *Board) SetStatus(ctx context.Context, status string) error {
	f := v.Filter()
	f.Status = status
	return v.ctl.SetFilter(ctx, f)
}

// Search narrows the board after the user stops typing
func (v *Board) Search(q string) {
	f := v.Filter()
	f.Search = q
	v.ctl.SetFilterDebounced(f)
}

// Actions returns the controls the user may use on task. Escrow and
// deliverables are private to the task's participants, so others only
// ever see Apply.
func (v *Board) Actions(ctx context.Context, task models.CollabPost) (gateway.TaskActions, error) {
	user := v.vc.userID()
	participant := task.PosterID == user || (task.HelperID != nil && *task.HelperID == user)
	if user == "" || !participant {
		return gateway.ActionsFor(task, user, 0, false), nil
	}
	escrow, err := v.vc.sources.Records.EscrowForPost(ctx, task.ID)
	if err != nil {
		return gateway.TaskActions{}, err
	}
	held := escrow != nil && escrow.Status == models.EscrowHeld && escrow.Amount == task.Reward
	var delivered int64
	if task.Status == models.TaskInProgress {
		if delivered, err = v.vc.sources.Records.DeliverableCount(ctx, task.ID); err != nil {
			return gateway.TaskActions{}, err
		}
	}
	return gateway.ActionsFor(task, user, delivered, held), nil
}

// Post creates a task with its reward escrowed up front
func (v *Board) Post(ctx context.Context, title, description string, reward int64) (*models.CollabPost, error) {
	return v.vc.gateway.CreateTask(ctx, title, description, reward)
}

// Apply offers to help with task
func (v *Board) Apply(ctx context.Context, task models.CollabPost, message string) error {
	if task.PosterID == v.vc.userID() {
		return apperr.InvalidArg("You cannot apply to your own task")
	}
	_, err := v.vc.gateway.Apply(ctx, task.ID, message)
	return err
}

// Accept makes an applicant the helper and starts the task
func (v *Board) Accept(ctx context.Context, task models.CollabPost, applicationID string) error {
	_, err := v.vc.gateway.AcceptApplication(ctx, task, applicationID)
	return err
}

// Complete pays the helper from escrow
func (v *Board) Complete(ctx context.Context, task models.CollabPost) error {
	delivered, err := v.vc.sources.Records.DeliverableCount(ctx, task.ID)
	if err != nil {
		return err
	}
	_, err = v.vc.gateway.CompleteAndPay(ctx, task, delivered)
	return err
}

// Cancel closes an open task and refunds its escrow
func (v *Board) Cancel(ctx context.Context, task models.CollabPost) error {
	_, err := v.vc.gateway.Cancel(ctx, task)
	return err
}
