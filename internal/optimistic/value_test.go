package optimistic

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReduce(t *testing.T) {
	boom := errors.New("Something went wrong")

	tests := []struct {
		name    string
		start   Value[bool]
		actions []Action[bool]
		want    Value[bool]
	}{
		{
			name:    "apply then confirm",
			start:   New(false),
			actions: []Action[bool]{ApplyAction(true), ConfirmAction(true)},
			want:    Value[bool]{Confirmed: true, Optimistic: true, State: Confirmed},
		},
		{
			name:    "apply then fail rolls back",
			start:   New(false),
			actions: []Action[bool]{ApplyAction(true), FailAction[bool](boom)},
			want:    Value[bool]{Confirmed: false, Optimistic: false, State: RolledBack, Err: boom},
		},
		{
			name:    "fail without pending change is ignored",
			start:   New(true),
			actions: []Action[bool]{FailAction[bool](boom)},
			want:    New(true),
		},
		{
			name:    "server push while pending keeps local value",
			start:   New(false),
			actions: []Action[bool]{ApplyAction(true), ServerSetAction(false)},
			want:    Value[bool]{Confirmed: false, Optimistic: true, State: Pending},
		},
		{
			name:    "server push clears a rollback",
			start:   New(false),
			actions: []Action[bool]{ApplyAction(true), FailAction[bool](boom), ServerSetAction(true)},
			want:    Value[bool]{Confirmed: true, Optimistic: true, State: Confirmed},
		},
		{
			name:    "retry after rollback",
			start:   New(false),
			actions: []Action[bool]{ApplyAction(true), FailAction[bool](boom), ApplyAction(true)},
			want:    Value[bool]{Confirmed: false, Optimistic: true, State: Pending},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := tt.start
			for _, a := range tt.actions {
				v = Reduce(v, a)
			}
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestRollbackRestoresPreActionValue(t *testing.T) {
	members := New([]string{"a", "b"})
	members = Reduce(members, ApplyAction([]string{"a", "b", "c"}))
	assert.Equal(t, []string{"a", "b", "c"}, members.Current())
	assert.True(t, members.Pending())

	members = Reduce(members, FailAction[[]string](errors.New("full")))
	assert.Equal(t, []string{"a", "b"}, members.Current())
	assert.EqualError(t, members.Err, "full")
}
