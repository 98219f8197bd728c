package input_test

import (
	"bufio"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nbexec/nbexec"
	"github.com/nbexec/nbexec/input"
	"github.com/nbexec/nbexec/stream"
)

func TestPushReaderFeedsCat(t *testing.T) {
	execCtx, err := nbexec.Execute([]string{"/bin/cat"}, nil, "", nbexec.StderrDiscard)
	require.NoError(t, err)

	done := input.PushReader(context.Background(), execCtx, strings.NewReader("abcdef"))
	require.NoError(t, <-done)

	r := stream.NewReader(execCtx)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "abcdef", string(out))
}

func TestPushLinesFeedsCat(t *testing.T) {
	execCtx, err := nbexec.Execute([]string{"/bin/cat"}, nil, "", nbexec.StderrDiscard)
	require.NoError(t, err)

	lines := make(chan string, 2)
	lines <- "one"
	lines <- "two"
	close(lines)

	done := input.PushLines(context.Background(), execCtx, lines)
	require.NoError(t, <-done)

	r := stream.NewReader(execCtx)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "one\ntwo\n", string(out))
}

func TestScanLinesPullFunc(t *testing.T) {
	execCtx, err := nbexec.Execute([]string{"/bin/cat"}, nil, "", nbexec.StderrDiscard)
	require.NoError(t, err)

	sc := bufio.NewScanner(strings.NewReader("a\nb\nc"))
	pf := input.ScanLines(sc)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := input.FromPullFunc(ctx, execCtx, pf)
	require.NoError(t, <-done)

	r := stream.NewReader(execCtx)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "a\nb\nc\n", string(out))
}
