// Package input provides producer adapters that feed an ExecContext's
// stdin from ordinary Go sources -- an io.Reader, a channel, or a pull
// function -- closing the handle's input fd when the source is
// exhausted, the way spec.md §6.2 describes as the counterpart to
// package stream's consumer side.
package input

import (
	"bufio"
	"context"
	"io"

	"github.com/nbexec/nbexec"
	"github.com/nbexec/nbexec/stream"
)

// FromReader copies r to execCtx's stdin until r returns io.EOF or
// goCtx is cancelled, then closes the input fd. It runs synchronously;
// callers that want it in the background should launch it via
// PushReader instead.
func FromReader(goCtx context.Context, execCtx *nbexec.ExecContext, r io.Reader) error {
	w := stream.NewWriter(execCtx)
	defer w.Close()

	buf := make([]byte, nbexec.PipeBufSize)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, werr := w.WriteContext(goCtx, buf[:n]); werr != nil {
				return werr
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}

// PushReader launches FromReader on its own goroutine and returns a
// channel that receives its final error (nil on clean EOF). It is the
// fire-and-forget entry point for hosts that already have an
// io.Reader, such as os.Stdin, lined up to feed a child.
func PushReader(goCtx context.Context, execCtx *nbexec.ExecContext, r io.Reader) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- FromReader(goCtx, execCtx, r)
	}()
	return done
}

// PushWriter drains chunks, blocking the sending goroutine whenever the
// child's stdin pipe applies back-pressure rather than buffering
// chunks unboundedly. It is the channel counterpart to PushReader, for
// producers that already work in terms of discrete []byte messages
// instead of a stream.
func PushWriter(goCtx context.Context, execCtx *nbexec.ExecContext, chunks <-chan []byte) <-chan error {
	done := make(chan error, 1)
	go func() {
		w := stream.NewWriter(execCtx)
		defer w.Close()
		for {
			select {
			case chunk, ok := <-chunks:
				if !ok {
					done <- nil
					return
				}
				if _, err := w.WriteContext(goCtx, chunk); err != nil {
					done <- err
					return
				}
			case <-goCtx.Done():
				done <- goCtx.Err()
				return
			}
		}
	}()
	return done
}

// PushLines is PushWriter specialized for line-oriented text producers:
// it appends a newline to every string received on lines.
func PushLines(goCtx context.Context, execCtx *nbexec.ExecContext, lines <-chan string) <-chan error {
	chunks := make(chan []byte)
	go func() {
		defer close(chunks)
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					return
				}
				select {
				case chunks <- []byte(line + "\n"):
				case <-goCtx.Done():
					return
				}
			case <-goCtx.Done():
				return
			}
		}
	}()
	return PushWriter(goCtx, execCtx, chunks)
}

// PullFunc is a producer called repeatedly to obtain the next chunk to
// write. It returns ok=false when there is nothing left to send, or a
// non-nil err if production itself failed; the chunk (if any) is
// written before either of those is honored, matching spec.md §6.2's
// "pull from a producer function" adapter.
type PullFunc func(ctx context.Context) (chunk []byte, ok bool, err error)

// FromPullFunc drives execCtx's stdin from next until it returns
// ok=false or a non-nil error, then closes the input fd.
func FromPullFunc(goCtx context.Context, execCtx *nbexec.ExecContext, next PullFunc) <-chan error {
	done := make(chan error, 1)
	go func() {
		w := stream.NewWriter(execCtx)
		defer w.Close()
		for {
			chunk, ok, err := next(goCtx)
			if len(chunk) > 0 {
				if _, werr := w.WriteContext(goCtx, chunk); werr != nil {
					done <- werr
					return
				}
			}
			if err != nil {
				done <- err
				return
			}
			if !ok {
				done <- nil
				return
			}
		}
	}()
	return done
}

// ScanLines adapts a bufio.Scanner (e.g. over a file or os.Stdin) to a
// PullFunc, the common case of line-oriented producers, grounded on
// the scanner-driven read loop in edirooss/zmux-server's log pipeline.
func ScanLines(sc *bufio.Scanner) PullFunc {
	return func(ctx context.Context) ([]byte, bool, error) {
		if !sc.Scan() {
			return nil, false, sc.Err()
		}
		line := append(append([]byte(nil), sc.Bytes()...), '\n')
		return line, true, nil
	}
}
