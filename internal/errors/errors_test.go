package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPanicErrorString(t *testing.T) {
	testCases := []struct {
		name     string
		err      *PanicError
		expected string
	}{
		{
			name:     "auth rejected",
			err:      NewAuthRejected(),
			expected: "[ERR_AUTH_REJECTED] key does not match the current or previous window",
		},
		{
			name:     "action failed",
			err:      NewActionFailed("lock", 1, false),
			expected: "[ERR_ACTION_FAILED] action:lock command exited with code 1",
		},
		{
			name:     "signaled",
			err:      NewActionFailed("verify", -1, true),
			expected: "[ERR_ACTION_FAILED] action:verify command terminated by signal",
		},
		{
			name:     "launch failed with cause",
			err:      NewActionLaunchFailed("lock", "/missing", fmt.Errorf("no such file")),
			expected: "[ERR_ACTION_LAUNCH_FAILED] action:lock failed to launch command: no such file",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.err.Error())
		})
	}
}

func TestPanicErrorIs(t *testing.T) {
	cause := errors.New("exec: not found")
	err := fmt.Errorf("lock: %w", NewActionLaunchFailed("lock", "/missing", cause))

	assert.ErrorIs(t, err, ErrActionLaunchFailed)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrActionFailed)
	assert.True(t, IsLaunchError(err))
	assert.False(t, IsConfigError(err))

	cfgErr := fmt.Errorf("load: %w", NewConfigError("lock_script is required"))
	assert.ErrorIs(t, cfgErr, ErrConfigInvalid)
	assert.True(t, IsConfigError(cfgErr))
}

func TestWithContext(t *testing.T) {
	err := NewActionLaunchFailed("verify", "/bin/verify --all", nil)

	require.NotNil(t, err.Context)
	assert.Equal(t, "/bin/verify --all", err.Context["command"])

	err.WithContext("attempt", 2)
	assert.Equal(t, 2, err.Context["attempt"])
}

type recordingLogger struct {
	level string
	msg   string
}

func (r *recordingLogger) Error(ctx context.Context, err error, msg string, fields ...interface{}) {
	r.level, r.msg = "error", msg
}

func (r *recordingLogger) Warn(ctx context.Context, err error, msg string, fields ...interface{}) {
	r.level, r.msg = "warn", msg
}

func (r *recordingLogger) Debug(ctx context.Context, msg string, fields ...interface{}) {
	r.level, r.msg = "debug", msg
}

func TestErrorHandlerLevels(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		level string
	}{
		{"auth is debug", NewAuthRejected(), "debug"},
		{"action failure is warn", NewActionFailed("lock", 2, false), "warn"},
		{"launch failure is error", NewActionLaunchFailed("lock", "x", errors.New("boom")), "error"},
		{"plain error is error", errors.New("plain"), "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &recordingLogger{}
			NewErrorHandler(logger).Handle(context.Background(), tt.err)
			assert.Equal(t, tt.level, logger.level)
		})
	}

	t.Run("nil error is ignored", func(t *testing.T) {
		logger := &recordingLogger{}
		NewErrorHandler(logger).Handle(context.Background(), nil)
		assert.Empty(t, logger.level)
	})
}
