package server

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"invalid port", NewInvalidPortError(0), "SERVER_INVALID_PORT"},
		{"invalid concurrency", NewInvalidConcurrencyError(-1), "SERVER_INVALID_CONCURRENCY"},
		{"store locked", NewStoreLockedError("/data/rowforge"), "SERVER_STORE_LOCKED"},
		{"invalid config", WrapInvalidConfig(errors.New("bad value")), "SERVER_INVALID_CONFIG"},
		{"store init", WrapStoreInit(errors.New("mkdir failed")), "SERVER_STORE_INIT_FAILED"},
		{"app init", WrapAppInit(errors.New("boom")), "SERVER_INIT_FAILED"},
		{"runtime", WrapRuntime(errors.New("listen failed")), "SERVER_RUNTIME_FAILED"},
		{"uncoded sentinel", fmt.Errorf("wrapped: %w", ErrConfigUnavailable), "SERVER_CONFIG_UNAVAILABLE"},
		{"unknown", errors.New("anything"), "SERVER_RUNTIME_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 2, ExitCode(NewInvalidPortError(70000)))
	assert.Equal(t, 2, ExitCode(NewInvalidConcurrencyError(0)))
	assert.Equal(t, 7, ExitCode(NewStoreLockedError("/data")))
	assert.Equal(t, 7, ExitCode(WrapStoreInit(errors.New("mkdir"))))
	assert.Equal(t, 7, ExitCode(WrapAppInit(errors.New("boom"))))
	assert.Equal(t, 1, ExitCode(errors.New("runtime")))
}

func TestWithErrorCodeUnwraps(t *testing.T) {
	base := errors.New("base failure")
	coded := WithErrorCode(base, "SERVER_RUNTIME_FAILED")

	assert.ErrorIs(t, coded, base)
	assert.Equal(t, "SERVER_RUNTIME_FAILED", ErrorCode(coded))
	assert.Nil(t, WithErrorCode(nil, "ANY"))
}

func TestSuggestions(t *testing.T) {
	assert.Nil(t, Suggestions(nil))
	assert.NotEmpty(t, Suggestions(NewInvalidPortError(0)))
	assert.NotEmpty(t, Suggestions(NewStoreLockedError("/data")))
	assert.NotEmpty(t, Suggestions(errors.New("runtime")))
}
