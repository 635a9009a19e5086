package exitcode_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"taskmate/internal/auth"
	"taskmate/internal/exitcode"
	"taskmate/internal/service"
	"taskmate/internal/tasks"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitcode.Success},
		{"not signed in", auth.ErrNotSignedIn, exitcode.AuthError},
		{"wrong password", fmt.Errorf("sign in: %w", auth.ErrInvalidCredentials), exitcode.AuthError},
		{"email taken", auth.ErrEmailExists, exitcode.AuthError},
		{"manager signed out", tasks.ErrSignedOut, exitcode.AuthError},
		{"expired session through transport", &url.Error{Op: "Post", URL: "https://x", Err: auth.ErrSessionExpired}, exitcode.AuthError},
		{"permission", service.NewStoreError("list", service.KindPermission, "permission denied", nil), exitcode.AuthError},
		{"wrapped permission", fmt.Errorf("add: %w", service.NewStoreError("create", service.KindPermission, "", nil)), exitcode.AuthError},
		{"network", service.NewStoreError("list", service.KindNetwork, "connection refused", nil), exitcode.BackendError},
		{"not found", service.NewStoreError("update", service.KindNotFound, "task not found", nil), exitcode.BackendError},
		{"timeout", context.DeadlineExceeded, exitcode.BackendError},
		{"plain", errors.New("boom"), exitcode.BackendError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitcode.FromError(tt.err); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}
