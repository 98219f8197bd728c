package supervisor_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nbexec/nbexec"
	"github.com/nbexec/nbexec/supervisor"
)

func TestShutdownTerminatesTrackedChild(t *testing.T) {
	ctx, err := nbexec.Execute([]string{"/bin/sleep", "30"}, nil, "", nbexec.StderrDiscard)
	require.NoError(t, err)

	s := supervisor.New(supervisor.WithGracePeriod(200 * time.Millisecond))
	s.Track(ctx)

	deadline, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(deadline))

	require.False(t, nbexec.Alive(ctx))
}

func TestShutdownIgnoresAlreadyExitedChild(t *testing.T) {
	ctx, err := nbexec.Execute([]string{"/bin/echo", "done"}, nil, "", nbexec.StderrDiscard)
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := nbexec.Wait(ctx); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("child never reaped")
		}
		time.Sleep(10 * time.Millisecond)
	}

	s := supervisor.New()
	s.Track(ctx)
	require.NoError(t, s.Shutdown(context.Background()))
}

func TestUntrackExcludesFromShutdown(t *testing.T) {
	ctx, err := nbexec.Execute([]string{"/bin/sleep", "30"}, nil, "", nbexec.StderrDiscard)
	require.NoError(t, err)
	defer nbexec.Kill(ctx)

	s := supervisor.New()
	s.Track(ctx)
	s.Untrack(ctx)

	require.NoError(t, s.Shutdown(context.Background()))
	require.True(t, nbexec.Alive(ctx))
}
