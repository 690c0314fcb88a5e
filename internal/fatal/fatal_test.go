//go:build unix

package fatal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestReportFor(t *testing.T) {
	r := reportFor(unix.SIGSEGV)
	assert.Equal(t, "SIGSEGV", r.Kind)
	assert.Equal(t, "segmentation fault", r.Message)
	assert.Empty(t, r.Location.File)
}

func TestOnFatalSignalDeliversReport(t *testing.T) {
	got := make(chan Report, 1)
	stop := OnFatalSignal(func(r Report) { got <- r })
	defer stop()

	require.NoError(t, unix.Kill(unix.Getpid(), unix.SIGABRT))
	select {
	case r := <-got:
		assert.Equal(t, "SIGABRT", r.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("no report for SIGABRT")
	}
}
