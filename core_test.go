package nbexec

import (
	"testing"
	"time"
)

// waitToken blocks until tok fires or the timeout elapses, failing the
// test on timeout. It stands in for the host scheduler's wake-up
// delivery in these synchronous tests.
func waitToken(t *testing.T, tok *Token, timeout time.Duration) {
	t.Helper()
	select {
	case <-tok.Wait():
	case <-time.After(timeout):
		t.Fatal("timed out waiting for readiness token")
	}
}

// TestExecuteEcho covers spec.md §8 scenario 1.
func TestExecuteEcho(t *testing.T) {
	ctx, err := Execute([]string{"/bin/echo", "hi"}, nil, "", StderrDiscard)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var out []byte
	for {
		chunk, err := Read(ctx, UnbufferedRead)
		if err == nil && chunk == nil {
			break // EOF
		}
		if err == ErrWouldBlock {
			waitToken(t, ctx.readToken, 2*time.Second)
			continue
		}
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		out = append(out, chunk...)
	}

	if string(out) != "hi\n" {
		t.Fatalf("output = %q, want %q", out, "hi\n")
	}

	chunk, err := Read(ctx, UnbufferedRead)
	if err != nil || chunk != nil {
		t.Fatalf("second Read() = (%q, %v), want (nil, nil)", chunk, err)
	}

	info, err := waitReaped(t, ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if info.Type != ExitNormal || info.Status != 0 {
		t.Fatalf("exit info = %+v, want {exit 0}", info)
	}
}

// TestExecuteCat covers spec.md §8 scenario 2.
func TestExecuteCat(t *testing.T) {
	ctx, err := Execute([]string{"/bin/cat"}, nil, "", StderrDiscard)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	n, err := Write(ctx, []byte("abc"))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != 3 {
		t.Fatalf("Write() n = %d, want 3", n)
	}

	var out []byte
	for len(out) < 3 {
		chunk, err := Read(ctx, 3)
		if err == ErrWouldBlock {
			waitToken(t, ctx.readToken, 2*time.Second)
			continue
		}
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		out = append(out, chunk...)
	}
	if string(out) != "abc" {
		t.Fatalf("output = %q, want %q", out, "abc")
	}

	if err := Close(ctx, Write); err != nil {
		t.Fatalf("Close(Write) error = %v", err)
	}
	// Closing twice must be a no-op.
	if err := Close(ctx, Write); err != nil {
		t.Fatalf("Close(Write) twice error = %v", err)
	}

	// cat closes its stdout only after it has seen EOF on its stdin, so
	// the unbuffered read reports ErrWouldBlock until then.
	deadline := time.Now().Add(2 * time.Second)
	chunk, err := Read(ctx, UnbufferedRead)
	for err == ErrWouldBlock && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
		chunk, err = Read(ctx, UnbufferedRead)
	}
	if err != nil || chunk != nil {
		t.Fatalf("Read() after EOF = (%q, %v), want (nil, nil)", chunk, err)
	}

	info, err := waitReaped(t, ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if info.Type != ExitNormal || info.Status != 0 {
		t.Fatalf("exit info = %+v, want {exit 0}", info)
	}
}

// TestExecuteSleepTerminate covers spec.md §8 scenario 3.
func TestExecuteSleepTerminate(t *testing.T) {
	ctx, err := Execute([]string{"/bin/sleep", "10"}, nil, "", StderrDiscard)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if err := Terminate(ctx); err != nil {
		t.Fatalf("Terminate() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	var info ExitInfo
	for {
		info, err = Wait(ctx)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Wait() never observed exit, last error = %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if info.Type != ExitSignaled || info.Status != 15 {
		t.Fatalf("exit info = %+v, want {signaled 15}", info)
	}
}

// TestExecuteNotFound covers spec.md §8 scenario 4.
func TestExecuteNotFound(t *testing.T) {
	ctx, err := Execute([]string{"/does/not/exist"}, nil, "", StderrDiscard)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	var info ExitInfo
	for {
		info, err = Wait(ctx)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Wait() never observed exit, last error = %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if info.Type != ExitNormal || info.Status != ForkExecFailure {
		t.Fatalf("exit info = %+v, want {exit 125}", info)
	}
}

// TestExecuteStderrDiscard covers spec.md §8 scenario 6: with
// StderrDiscard, a child's stderr writes never reach the parent's
// stdout pipe.
func TestExecuteStderrDiscard(t *testing.T) {
	ctx, err := Execute([]string{"/bin/sh", "-c", "echo err 1>&2"}, nil, "", StderrDiscard)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var out []byte
	for {
		chunk, err := Read(ctx, UnbufferedRead)
		if err == nil && chunk == nil {
			break
		}
		if err == ErrWouldBlock {
			waitToken(t, ctx.readToken, 2*time.Second)
			continue
		}
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		out = append(out, chunk...)
	}

	if len(out) != 0 {
		t.Fatalf("stdout output = %q, want empty (stderr was discarded)", out)
	}

	waitReaped(t, ctx)
}

func TestWriteRejectsEmptyBuffer(t *testing.T) {
	ctx, err := Execute([]string{"/bin/cat"}, nil, "", StderrDiscard)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	defer Kill(ctx)

	if _, err := Write(ctx, nil); err != ErrBadArgument {
		t.Fatalf("Write(nil) error = %v, want ErrBadArgument", err)
	}
}

func TestReadRejectsNonPositiveRequest(t *testing.T) {
	ctx, err := Execute([]string{"/bin/cat"}, nil, "", StderrDiscard)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	defer Kill(ctx)

	if _, err := Read(ctx, 0); err != ErrBadArgument {
		t.Fatalf("Read(0) error = %v, want ErrBadArgument", err)
	}
	if _, err := Read(ctx, -2); err != ErrBadArgument {
		t.Fatalf("Read(-2) error = %v, want ErrBadArgument", err)
	}
}

func TestPipeClosedAfterBothClosed(t *testing.T) {
	ctx, err := Execute([]string{"/bin/cat"}, nil, "", StderrDiscard)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if err := Close(ctx, Write); err != nil {
		t.Fatalf("Close(Write) error = %v", err)
	}
	if err := Close(ctx, Read); err != nil {
		t.Fatalf("Close(Read) error = %v", err)
	}

	if _, err := Write(ctx, []byte("x")); err != ErrPipeClosed {
		t.Fatalf("Write() after close = %v, want ErrPipeClosed", err)
	}
	if _, err := Read(ctx, UnbufferedRead); err != ErrPipeClosed {
		t.Fatalf("Read() after close = %v, want ErrPipeClosed", err)
	}

	waitReaped(t, ctx)
}

func TestAliveReflectsChildState(t *testing.T) {
	ctx, err := Execute([]string{"/bin/sleep", "10"}, nil, "", StderrDiscard)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !Alive(ctx) {
		t.Fatal("Alive() = false immediately after Execute, want true")
	}
	if err := Kill(ctx); err != nil {
		t.Fatalf("Kill() error = %v", err)
	}
	waitReaped(t, ctx)
	if Alive(ctx) {
		t.Fatal("Alive() = true after reap, want false")
	}
}

// waitReaped polls Wait until the child is reaped or the deadline
// passes, the way a collaborator without readiness on SIGCHLD would.
func waitReaped(t *testing.T, ctx *ExecContext) (ExitInfo, error) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		info, err := Wait(ctx)
		if err == nil {
			return info, nil
		}
		if time.Now().After(deadline) {
			return ExitInfo{}, err
		}
		time.Sleep(10 * time.Millisecond)
	}
}
