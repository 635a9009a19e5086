package commands_test

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"taskmate/internal/commands"
	"taskmate/internal/exitcode"
)

func TestServeCommand(t *testing.T) {
	env := newEnv(t, seeded(), "u1", false)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	cmd := &commands.ServeCmd{Listener: ln}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var out, errOut bytes.Buffer
	done := make(chan int, 1)
	go func() {
		done <- cmd.Run(ctx, env, nil, &out, &errOut)
	}()

	url := "http://" + ln.Addr().String() + "/api/state"
	var body string
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			data, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			body = string(data)
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not come up: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !strings.Contains(body, `"owner":"u1"`) || !strings.Contains(body, "Pay rent") {
		t.Errorf("unexpected state %s", body)
	}

	cancel()
	select {
	case code := <-done:
		if code != exitcode.Success {
			t.Errorf("expected exit code %d, got %d (%s)", exitcode.Success, code, errOut.String())
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
	if !strings.HasPrefix(out.String(), "listening on http://127.0.0.1:") {
		t.Errorf("unexpected stdout %q", out.String())
	}
}

func TestServeCommand_UnexpectedArgument(t *testing.T) {
	env := newEnv(t, seeded(), "u1", false)
	_, stderr, code := runCommand(t, &commands.ServeCmd{}, env, []string{"now"})
	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: unexpected argument: now\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}
