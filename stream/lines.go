package stream

import (
	"bufio"
	"context"

	"github.com/nbexec/nbexec"
)

// Result carries either a decoded value or the error that ended
// decoding, mirroring the shape of a single bufio.Scanner iteration.
type Result[T any] struct {
	Value T
	Err   error
}

// Lines reads ctx's output one line at a time, grounded on
// edirooss/zmux-server's bufio.Scanner-based handleStdout/handleStderr
// pattern. The returned channel is closed after the final line (or
// error) has been delivered; a non-nil Err in the final Result means
// something other than clean EOF ended the stream.
//
// The scanner runs on its own goroutine reading through a Reader, so
// it blocks that goroutine, not the caller's.
func Lines(goCtx context.Context, execCtx *nbexec.ExecContext) <-chan Result[string] {
	out := make(chan Result[string])
	go func() {
		defer close(out)
		r := NewReader(execCtx)
		sc := bufio.NewScanner(&contextReader{ctx: goCtx, r: r})
		sc.Buffer(make([]byte, 0, nbexec.PipeBufSize), nbexec.PipeBufSize)
		for sc.Scan() {
			select {
			case out <- Result[string]{Value: sc.Text()}:
			case <-goCtx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			select {
			case out <- Result[string]{Err: err}:
			case <-goCtx.Done():
			}
		}
	}()
	return out
}

// contextReader adapts Reader.ReadContext to the plain io.Reader
// bufio.Scanner expects, so a single context governs the whole scan.
type contextReader struct {
	ctx context.Context
	r   *Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	return c.r.ReadContext(c.ctx, p)
}
