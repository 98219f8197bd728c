package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nbexec/nbexec"
	"github.com/nbexec/nbexec/input"
	"github.com/nbexec/nbexec/internal/procerr"
	"github.com/nbexec/nbexec/stream"
	"github.com/nbexec/nbexec/supervisor"
)

func newRunCmd() *cobra.Command {
	var (
		dir     string
		grace   time.Duration
		verbose bool
		stdin   bool
	)

	cmd := &cobra.Command{
		Use:   "run -- PROGRAM [ARGS...]",
		Short: "Execute PROGRAM under the nbexec engine, streaming stdio",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(verbose)
			defer log.Sync()

			execCtx, err := nbexec.Execute(args, os.Environ(), dir, nbexec.StderrInherit)
			if err != nil {
				return err
			}
			log.Info("child started", zap.Int("pid", execCtx.Pid()), zap.Strings("args", args))

			sup := supervisor.New(supervisor.WithGracePeriod(grace), supervisor.WithLogger(log))
			sup.Track(execCtx)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			goCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go func() {
				select {
				case <-sigCh:
					cancel()
				case <-goCtx.Done():
				}
			}()

			var inputDone <-chan error
			if stdin {
				inputDone = input.PushReader(goCtx, execCtx, os.Stdin)
			} else {
				_ = nbexec.Close(execCtx, nbexec.Write)
			}

			r := stream.NewReader(execCtx)
			copyErrCh := make(chan error, 1)
			go func() {
				_, err := io.Copy(cmd.OutOrStdout(), r)
				copyErrCh <- err
			}()

			info := waitForExit(goCtx, sup, execCtx)
			sup.Untrack(execCtx)
			<-copyErrCh
			if inputDone != nil {
				<-inputDone
			}

			log.Info("child exited", zap.String("status", procerr.Describe(info)))
			if code := procerr.ExitCode(info); code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "working directory for the child")
	cmd.Flags().DurationVar(&grace, "grace", 5*time.Second, "SIGTERM grace period before SIGKILL")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	cmd.Flags().BoolVar(&stdin, "stdin", false, "forward this process's stdin to the child")
	return cmd
}

// waitForExit polls Wait until the child is reaped. If goCtx is
// cancelled first (host received SIGINT/SIGTERM), it drives the
// supervisor's escalating shutdown (SIGTERM, then SIGKILL after the
// grace period) and keeps polling until the signalled child is reaped.
func waitForExit(goCtx context.Context, sup *supervisor.Supervisor, execCtx *nbexec.ExecContext) nbexec.ExitInfo {
	shuttingDown := false
	for {
		if info, err := nbexec.Wait(execCtx); err == nil {
			return info
		}
		select {
		case <-goCtx.Done():
			if !shuttingDown {
				shuttingDown = true
				go sup.Shutdown(context.Background())
			}
		case <-time.After(10 * time.Millisecond):
		}
	}
}
