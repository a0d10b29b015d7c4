package gateway

import (
	"context"
	"strings"

	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/internal/models"
	"github.com/vibecampus/vibehub/internal/procedures"
)

// task lifecycle; every other move is rejected
var transitions = map[string][]string{
	models.TaskOpen:       {models.TaskInProgress, models.TaskCancelled},
	models.TaskInProgress: {models.TaskCompleted},
}

// CanTransition reports whether a task may move from one status to another
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TaskActions is what the current user may do with a task right now
type TaskActions struct {
	Apply    bool
	Accept   bool
	Submit   bool
	Complete bool
	Cancel   bool
	Fund     bool
}

// ActionsFor derives enabled controls from the task's status, the
// caller's relation to it and the number of deliverables submitted
func ActionsFor(task models.CollabPost, userID string, deliverables int64, escrowHeld bool) TaskActions {
	owner := task.PosterID == userID
	helper := task.HelperID != nil && *task.HelperID == userID
	return TaskActions{
		Apply:    !owner && userID != "" && task.Status == models.TaskOpen,
		Accept:   owner && escrowHeld && CanTransition(task.Status, models.TaskInProgress),
		Submit:   helper && task.Status == models.TaskInProgress,
		Complete: owner && deliverables > 0 && CanTransition(task.Status, models.TaskCompleted),
		Cancel:   owner && CanTransition(task.Status, models.TaskCancelled),
		Fund:     owner && !escrowHeld && task.Status == models.TaskOpen && task.Reward > 0,
	}
}

func requireTransition(task models.CollabPost, to string) error {
	if !CanTransition(task.Status, to) {
		return apperr.FailedPrecondition("This task can no longer be moved to " + strings.ReplaceAll(to, "_", " "))
	}
	return nil
}

// CreateTask posts a task and escrows its reward from the caller's wallet
func (g *Gateway) CreateTask(ctx context.Context, title, description string, reward int64) (*models.CollabPost, error) {
	if strings.TrimSpace(title) == "" {
		return nil, apperr.InvalidField("title", "Title is required")
	}
	if err := g.requireFunds("reward", reward); err != nil {
		return nil, err
	}
	var out models.CollabPost
	err := g.call(ctx, Key(procedures.CollabCreateTask), procedures.CollabCreateTask, procedures.CreateTaskParams{
		Title:       title,
		Description: description,
		Reward:      reward,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateEscrow funds an open task that has no held escrow
func (g *Gateway) CreateEscrow(ctx context.Context, task models.CollabPost) (*models.Escrow, error) {
	if task.Status != models.TaskOpen {
		return nil, apperr.FailedPrecondition("Only open tasks can be funded")
	}
	if err := g.requireFunds("reward", task.Reward); err != nil {
		return nil, err
	}
	var out models.Escrow
	if err := g.call(ctx, Key(procedures.CollabCreateEscrow, task.ID), procedures.CollabCreateEscrow,
		procedures.TaskParams{PostID: task.ID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Apply offers to help with a task
func (g *Gateway) Apply(ctx context.Context, postID, message string) (*models.CollabApplication, error) {
	var out models.CollabApplication
	if err := g.call(ctx, Key(procedures.CollabApply, postID), procedures.CollabApply,
		procedures.ApplyParams{PostID: postID, Message: strings.TrimSpace(message)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AcceptApplication assigns the applicant and starts the task
func (g *Gateway) AcceptApplication(ctx context.Context, task models.CollabPost, applicationID string) (*models.CollabPost, error) {
	if err := requireTransition(task, models.TaskInProgress); err != nil {
		return nil, err
	}
	var out models.CollabPost
	if err := g.call(ctx, Key(procedures.CollabAcceptApplication, applicationID), procedures.CollabAcceptApplication,
		procedures.ApplicationParams{ApplicationID: applicationID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeclineApplication turns an applicant down
func (g *Gateway) DeclineApplication(ctx context.Context, applicationID string) (*models.CollabApplication, error) {
	var out models.CollabApplication
	if err := g.call(ctx, Key(procedures.CollabDeclineApplication, applicationID), procedures.CollabDeclineApplication,
		procedures.ApplicationParams{ApplicationID: applicationID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitDeliverable records the helper's work
func (g *Gateway) SubmitDeliverable(ctx context.Context, postID, url, note string) (*models.CollabDeliverable, error) {
	url, note = strings.TrimSpace(url), strings.TrimSpace(note)
	if url == "" && note == "" {
		return nil, apperr.InvalidField("url", "Add a link or a note describing your work")
	}
	var out models.CollabDeliverable
	if err := g.call(ctx, Key(procedures.CollabSubmitDeliverable, postID), procedures.CollabSubmitDeliverable,
		procedures.DeliverableParams{PostID: postID, URL: url, Note: note}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CompleteAndPay closes the task and releases the reward to the helper
func (g *Gateway) CompleteAndPay(ctx context.Context, task models.CollabPost, deliverables int64) (*models.CollabPost, error) {
	if err := requireTransition(task, models.TaskCompleted); err != nil {
		return nil, err
	}
	if deliverables == 0 {
		return nil, apperr.FailedPrecondition("The helper has not submitted any work yet")
	}
	var out models.CollabPost
	if err := g.call(ctx, Key(procedures.CollabCompleteAndPay, task.ID), procedures.CollabCompleteAndPay,
		procedures.TaskParams{PostID: task.ID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Cancel withdraws an open task and refunds its reward
func (g *Gateway) Cancel(ctx context.Context, task models.CollabPost) (*models.CollabPost, error) {
	if err := requireTransition(task, models.TaskCancelled); err != nil {
		return nil, err
	}
	var out models.CollabPost
	if err := g.call(ctx, Key(procedures.CollabCancel, task.ID), procedures.CollabCancel,
		procedures.TaskParams{PostID: task.ID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
