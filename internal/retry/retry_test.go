package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/xanote/pkg/types"
)

func TestDo(t *testing.T) {
	transient := fmt.Errorf("dial: %w", types.ErrTransient)
	permanent := errors.New("bad request")

	tests := []struct {
		name      string
		policy    Policy
		failures  []error
		wantCalls int
		wantErr   error
	}{
		{
			name:      "zero policy makes one attempt",
			failures:  []error{transient},
			wantCalls: 1,
			wantErr:   types.ErrTransient,
		},
		{
			name:      "retries transient failures",
			policy:    Policy{Retries: 3, Backoff: time.Millisecond},
			failures:  []error{transient, transient},
			wantCalls: 3,
		},
		{
			name:      "gives up after retries",
			policy:    Policy{Retries: 2, Backoff: time.Millisecond},
			failures:  []error{transient, transient, transient, transient},
			wantCalls: 3,
			wantErr:   types.ErrTransient,
		},
		{
			name:      "does not retry permanent failures",
			policy:    Policy{Retries: 3, Backoff: time.Millisecond},
			failures:  []error{permanent},
			wantCalls: 1,
			wantErr:   permanent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Do(context.Background(), tt.policy, "test", func(context.Context) error {
				calls++
				if calls <= len(tt.failures) {
					return tt.failures[calls-1]
				}
				return nil
			})
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestDo_Timeout(t *testing.T) {
	err := Do(context.Background(), Policy{Timeout: 10 * time.Millisecond}, "test", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDo_CancelBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Policy{Retries: 5, Backoff: time.Hour}, "test", func(context.Context) error {
		calls++
		cancel()
		return types.ErrTransient
	})
	assert.Equal(t, 1, calls)
	require.ErrorIs(t, err, context.Canceled)
}
