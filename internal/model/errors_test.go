package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineError_KindAndRetryable(t *testing.T) {
	cases := []struct {
		err       *EngineError
		kind      ErrorKind
		retryable bool
	}{
		{ErrInvalidParams("window %d below 1", 0), KindInvalidParams, false},
		{ErrUnknownStrategy("no_such"), KindUnknownStrategy, false},
		{ErrDataUnavailable("upstream timeout", nil), KindDataUnavailable, true},
		{ErrInternal("metric overflow", nil), KindInternalComputation, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.kind, tc.err.Kind)
		assert.Equal(t, tc.retryable, tc.err.Retryable)
	}
}

func TestEngineError_MatchesWithErrorsAs(t *testing.T) {
	wrapped := fmt.Errorf("orchestrator: %w", ErrUnknownStrategy("ghost"))
	var ee *EngineError
	require.True(t, errors.As(wrapped, &ee))
	assert.Equal(t, KindUnknownStrategy, ee.Kind)
}

func TestEngineError_UnwrapsCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := ErrDataUnavailable("provider unreachable", cause)
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "provider unreachable")
	assert.Contains(t, err.Error(), "refused")
}
