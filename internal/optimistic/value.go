// Package optimistic models a field that can be changed locally before
// the server confirms it. Every transition goes through Reduce.
package optimistic

// State of an optimistic value
type State string

const (
	Confirmed  State = "confirmed"
	Pending    State = "pending"
	RolledBack State = "rolled_back"
)

// Value pairs the last server-confirmed value with the one shown
type Value[T any] struct {
	Confirmed  T
	Optimistic T
	State      State
	Err        error
}

// New returns a confirmed value
func New[T any](v T) Value[T] {
	return Value[T]{Confirmed: v, Optimistic: v, State: Confirmed}
}

// Current is what should be displayed
func (v Value[T]) Current() T {
	return v.Optimistic
}

// Pending reports whether a change is awaiting confirmation
func (v Value[T]) Pending() bool {
	return v.State == Pending
}

// ActionKind names a transition
type ActionKind int

const (
	// Apply shows Next before the server has answered
	Apply ActionKind = iota
	// Confirm accepts the server's value for the pending change
	Confirm
	// Fail reverts to the last confirmed value and records Err
	Fail
	// ServerSet replaces the value from a server push
	ServerSet
)

// Action drives Reduce
type Action[T any] struct {
	Kind ActionKind
	Next T
	Err  error
}

// Reduce is the single transition function for Value
func Reduce[T any](v Value[T], a Action[T]) Value[T] {
	switch a.Kind {
	case Apply:
		return Value[T]{Confirmed: v.Confirmed, Optimistic: a.Next, State: Pending}
	case Confirm:
		return Value[T]{Confirmed: a.Next, Optimistic: a.Next, State: Confirmed}
	case Fail:
		if v.State != Pending {
			return v
		}
		return Value[T]{Confirmed: v.Confirmed, Optimistic: v.Confirmed, State: RolledBack, Err: a.Err}
	case ServerSet:
		if v.State == Pending {
			// keep showing the local change; the confirmation will settle it
			return Value[T]{Confirmed: a.Next, Optimistic: v.Optimistic, State: Pending}
		}
		return Value[T]{Confirmed: a.Next, Optimistic: a.Next, State: Confirmed}
	default:
		return v
	}
}

// Helpers for building actions

func ApplyAction[T any](next T) Action[T] { return Action[T]{Kind: Apply, Next: next} }

func ConfirmAction[T any](next T) Action[T] { return Action[T]{Kind: Confirm, Next: next} }

func FailAction[T any](err error) Action[T] { return Action[T]{Kind: Fail, Err: err} }

func ServerSetAction[T any](next T) Action[T] { return Action[T]{Kind: ServerSet, Next: next} }
