package procerr

import (
	"testing"

	"github.com/nbexec/nbexec"
)

func TestDescribeNormalExit(t *testing.T) {
	got := Describe(nbexec.ExitInfo{Type: nbexec.ExitNormal, Status: 0})
	if got != "exit status 0" {
		t.Fatalf("Describe() = %q", got)
	}
}

func TestDescribeSignaled(t *testing.T) {
	got := Describe(nbexec.ExitInfo{Type: nbexec.ExitSignaled, Status: 15})
	if got != "signal: terminated" {
		t.Fatalf("Describe() = %q", got)
	}
}

func TestExitCodeMapsSignalToConvention(t *testing.T) {
	if got := ExitCode(nbexec.ExitInfo{Type: nbexec.ExitSignaled, Status: 9}); got != 137 {
		t.Fatalf("ExitCode() = %d, want 137", got)
	}
	if got := ExitCode(nbexec.ExitInfo{Type: nbexec.ExitNormal, Status: 3}); got != 3 {
		t.Fatalf("ExitCode() = %d, want 3", got)
	}
}
