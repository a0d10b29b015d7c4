package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"app error", FailedPrecondition("Insufficient balance"), "Insufficient balance"},
		{"wrapped cause hidden", Wrap(CodeInternal, "Could not load feed", errors.New("pq: connection refused")), "Could not load feed"},
		{"wrapped by fmt", fmt.Errorf("invoke: %w", Forbidden("Only the poster can do that")), "Only the poster can do that"},
		{"plain error", errors.New("boom"), "Something went wrong. Please try again."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Message(tt.err))
		})
	}
}

func TestCodeAndField(t *testing.T) {
	err := fmt.Errorf("validate: %w", InvalidField("username", "Username must be 3-24 characters"))
	assert.Equal(t, CodeInvalidArgument, CodeOf(err))
	assert.Equal(t, "username", FieldOf(err))
	assert.Equal(t, CodeUnknown, CodeOf(errors.New("x")))
	assert.Equal(t, Code(""), CodeOf(nil))
}

func TestIs(t *testing.T) {
	sentinel := &AppError{Code: CodeNotFound}
	assert.True(t, errors.Is(NotFound("Task not found"), sentinel))
	assert.False(t, errors.Is(Forbidden("no"), sentinel))
}
