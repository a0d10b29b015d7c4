package views

import (
	"context"
	"sync"

	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/internal/feed"
	"github.com/vibecampus/vibehub/internal/models"
	"github.com/vibecampus/vibehub/internal/optimistic"
	"github.com/vibecampus/vibehub/internal/realtime"
)

// ErrRSVPInFlight is returned while an RSVP on the same event is pending
var ErrRSVPInFlight = apperr.FailedPrecondition("Your RSVP is still being saved")

// Events lists upcoming events and tracks which ones the user attends
type Events struct {
	*list[models.Event, models.EventFilter]

	mu        sync.Mutex
	attending map[string]optimistic.Value[bool]
	mutating  map[string]struct{}
	err       string
}

// EventsList lists events soonest first
func EventsList(vc *Context, filter models.EventFilter) *Events {
	return &Events{
		attending: make(map[string]optimistic.Value[bool]),
		mutating:  make(map[string]struct{}),
		list: newList(vc, vc.sources.Events, filter, feed.Options[models.Event, models.EventFilter]{
			Scope: "events",
			Less:  soonestEventFirst,
			Match: func(f models.EventFilter, e models.Event) bool { return f.Match(e) },
			Realtime: func(models.EventFilter) []realtime.Filter {
				return []realtime.Filter{realtime.Table("events")}
			},
		}),
	}
}

func soonestEventFirst(a, b models.Event) bool {
	if !a.StartsAt.Equal(b.StartsAt) {
		return a.StartsAt.Before(b.StartsAt)
	}
	return a.ID < b.ID
}

// Mount loads the first page and the user's RSVPs for it
func (v *Events) Mount(ctx context.Context) error {
	if err := v.list.Mount(ctx); err != nil {
		return err
	}
	return v.refreshAttendance(ctx)
}

// LoadMore fetches the next page and its RSVPs
func (v *Events) LoadMore(ctx context.Context) error {
	if err := v.list.LoadMore(ctx); err != nil {
		return err
	}
	return v.refreshAttendance(ctx)
}

// Search narrows the list after the user stops typing
func (v *Events) Search(q string) {
	f := v.Filter()
	f.Search = q
	v.ctl.SetFilterDebounced(f)
}

// refreshAttendance asks which listed events the user attends. Events
// with a pending toggle keep their local value.
func (v *Events) refreshAttendance(ctx context.Context) error {
	if v.vc.userID() == "" {
		return nil
	}
	items := v.Snapshot().Items
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, len(items))
	for i, e := range items {
		ids[i] = e.ID
	}
	attending, err := v.vc.sources.Records.AttendingIDs(ctx, ids)
	if err != nil {
		return err
	}
	yes := make(map[string]bool, len(attending))
	for _, id := range attending {
		yes[id] = true
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	for _, id := range ids {
		cur, ok := v.attending[id]
		if !ok {
			cur = optimistic.New(false)
		}
		v.attending[id] = optimistic.Reduce(cur, optimistic.ServerSetAction(yes[id]))
	}
	return nil
}

// IsAttending reports the user's RSVP, including one still being saved
func (v *Events) IsAttending(eventID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	a, ok := v.attending[eventID]
	return ok && a.Current()
}

// Attending returns a copy of the RSVP set
func (v *Events) Attending() map[string]bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[string]bool, len(v.attending))
	for id, a := range v.attending {
		if a.Current() {
			out[id] = true
		}
	}
	return out
}

// Err returns the last RSVP failure message
func (v *Events) Err() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

// ToggleRSVP flips the RSVP immediately and asks the server to do the
// same. On failure the flip is undone and the error returned.
func (v *Events) ToggleRSVP(ctx context.Context, eventID string) error {
	if v.vc.userID() == "" {
		return apperr.Unauthorized("Sign in to continue")
	}
	v.mu.Lock()
	if _, busy := v.mutating[eventID]; busy {
		v.mu.Unlock()
		return ErrRSVPInFlight
	}
	cur, ok := v.attending[eventID]
	if !ok {
		cur = optimistic.New(false)
	}
	v.attending[eventID] = optimistic.Reduce(cur, optimistic.ApplyAction(!cur.Current()))
	v.mutating[eventID] = struct{}{}
	v.mu.Unlock()

	res, err := v.vc.gateway.ToggleRSVP(ctx, eventID)

	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.mutating, eventID)
	cur = v.attending[eventID]
	if err != nil {
		v.attending[eventID] = optimistic.Reduce(cur, optimistic.FailAction[bool](err))
		v.err = apperr.Message(err)
		return err
	}
	v.attending[eventID] = optimistic.Reduce(cur, optimistic.ConfirmAction(res.Attending))
	v.err = ""
	return nil
}

// Moderate approves or rejects a pending event
func (v *Events) Moderate(ctx context.Context, event models.Event, status string) error {
	_, err := v.vc.gateway.ModerateEvent(ctx, event, status)
	return err
}
