// Package procedures implements the named atomic operations behind every
// multi-row invariant: follows, RSVPs, the task escrow lifecycle,
// payments and moderation.
package procedures

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/internal/db"
	"github.com/vibecampus/vibehub/internal/realtime"
	"github.com/vibecampus/vibehub/pkg/logging"
	"github.com/vibecampus/vibehub/pkg/telemetry"
)

// Handler runs one procedure inside tx on behalf of caller
type Handler func(ctx context.Context, tx *Tx, caller string, params json.RawMessage) (interface{}, error)

// Registry maps procedure names to handlers
type Registry struct {
	repo     *db.Repository
	handlers map[string]Handler
	logger   *zap.Logger
}

// NewRegistry creates a registry with every built-in procedure registered
func NewRegistry(repo *db.Repository) *Registry {
	r := &Registry{
		repo:     repo,
		handlers: make(map[string]Handler),
		logger:   logging.GetLogger().With(zap.String("component", "procedures")),
	}

	r.Register(FollowToggle, followToggle)
	r.Register(EventToggleRSVP, eventToggleRSVP)
	r.Register(EventModerate, eventModerate)
	r.Register(CollabCreateTask, collabCreateTask)
	r.Register(CollabCreateEscrow, collabCreateEscrow)
	r.Register(CollabApply, collabApply)
	r.Register(CollabAcceptApplication, collabAcceptApplication)
	r.Register(CollabDeclineApplication, collabDeclineApplication)
	r.Register(CollabSubmitDeliverable, collabSubmitDeliverable)
	r.Register(CollabCompleteAndPay, collabCompleteAndPay)
	r.Register(CollabCancel, collabCancel)
	r.Register(WalletCreatePayment, walletCreatePayment)
	r.Register(WalletConfirmPayment, walletConfirmPayment)
	r.Register(ProfileSetUsername, profileSetUsername)
	r.Register(ComplaintAdvance, complaintAdvance)
	r.Register(AdminAssignModerator, adminAssignModerator)
	r.Register(AdminVerifyProfile, adminVerifyProfile)
	r.Register(AccountDelete, accountDelete)

	return r
}

// Register adds or replaces a procedure
func (r *Registry) Register(name string, h Handler) {
	r.handlers[name] = h
}

// Names returns the registered procedure names, sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke runs the named procedure in a single transaction. Changes it
// records are published only after commit; a failed procedure leaves
// no trace.
func (r *Registry) Invoke(ctx context.Context, name, caller string, params json.RawMessage) (result interface{}, err error) {
	ctx, span := telemetry.StartSpan(ctx, "procedure."+name)
	span.SetAttributes(attribute.String("procedure", name))
	start := time.Now()
	defer func() {
		telemetry.RecordProcedure(ctx, name, time.Since(start), err)
		telemetry.EndSpan(span, err)
	}()

	h, ok := r.handlers[name]
	if !ok {
		return nil, apperr.NotFound("Unknown procedure: " + name)
	}
	if caller == "" {
		return nil, apperr.Unauthorized("Sign in to continue")
	}

	var tx *Tx
	err = r.repo.DB().WithContext(ctx).Transaction(func(g *gorm.DB) error {
		tx = &Tx{DB: g}
		res, herr := h(ctx, tx, caller, params)
		if herr != nil {
			return herr
		}
		result = res
		return nil
	})
	if err != nil {
		var ae *apperr.AppError
		if !errors.As(err, &ae) {
			r.logger.Error("Procedure failed",
				zap.String("procedure", name),
				zap.String("caller", caller),
				zap.Error(err))
			return nil, apperr.Wrap(apperr.CodeInternal, "Something went wrong. Please try again.", err)
		}
		r.logger.Debug("Procedure rejected",
			zap.String("procedure", name),
			zap.String("caller", caller),
			zap.String("code", string(ae.Code)),
			zap.String("message", ae.Message))
		return nil, err
	}

	r.repo.PublishAll(ctx, tx.changes)
	r.logger.Debug("Procedure committed",
		zap.String("procedure", name),
		zap.String("caller", caller),
		zap.Int("changes", len(tx.changes)))
	return result, nil
}

// Caller binds the registry to a caller so it can be used as a typed
// procedure client in-process
func (r *Registry) Caller(caller func() string) *Local {
	return &Local{registry: r, caller: caller}
}

// Local calls procedures in-process
type Local struct {
	registry *Registry
	caller   func() string
}

// Call marshals params, invokes name and decodes the result into out
func (l *Local) Call(ctx context.Context, name string, params, out interface{}) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return apperr.InvalidArg("Invalid parameters")
	}
	res, err := l.registry.Invoke(ctx, name, l.caller(), raw)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	encoded, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return json.Unmarshal(encoded, out)
}

// Tx is the transaction a procedure runs in. Changes recorded on it are
// published once the transaction commits.
type Tx struct {
	*gorm.DB
	changes []realtime.Change
}

type tabler interface {
	TableName() string
}

func (tx *Tx) inserted(rec tabler) error {
	return tx.record(rec.TableName(), realtime.EventInsert, rec, nil)
}

func (tx *Tx) updated(newRec, oldRec tabler) error {
	return tx.record(newRec.TableName(), realtime.EventUpdate, newRec, oldRec)
}

func (tx *Tx) deleted(oldRec tabler) error {
	return tx.record(oldRec.TableName(), realtime.EventDelete, nil, oldRec)
}

func (tx *Tx) record(table string, typ realtime.EventType, newRec, oldRec interface{}) error {
	ch, err := realtime.NewChange(table, typ, newRec, oldRec)
	if err != nil {
		return err
	}
	tx.changes = append(tx.changes, ch)
	return nil
}

// Changes returns what the procedure has recorded so far
func (tx *Tx) Changes() []realtime.Change {
	return tx.changes
}

// find loads the first row matching query, or nil when there is none
func find[T any](tx *Tx, query string, args ...interface{}) (*T, error) {
	var rec T
	res := tx.Where(query, args...).Limit(1).Find(&rec)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &rec, nil
}

func decode(params json.RawMessage, out interface{}) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, out); err != nil {
		return apperr.InvalidArg("Invalid parameters")
	}
	return nil
}
