package sigbridge

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/kestrelvm/kestrel/internal/callbacks"
)

// sigQuitCounter counts SIGQUIT notifications.
type sigQuitCounter struct {
	n atomic.Uint64
}

func (c *sigQuitCounter) SigQuit() { c.n.Add(1) }

func waitForCount(t *testing.T, c *sigQuitCounter, want uint64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.n.Load() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d SIGQUIT dispatches, got %d", want, c.n.Load())
}

func TestRelayDispatchesSigQuit(t *testing.T) {
	d := callbacks.New()
	counter := &sigQuitCounter{}
	d.AddSigQuitCallback(counter)

	r := New(d)
	r.Start()
	defer r.Stop()

	// Inject directly into the notify channel; delivering a real SIGQUIT
	// from a test is fragile across environments.
	r.ch <- unix.SIGQUIT
	waitForCount(t, counter, 1)

	r.ch <- unix.SIGQUIT
	waitForCount(t, counter, 2)
}

func TestRelayStopIsIdempotent(t *testing.T) {
	d := callbacks.New()
	counter := &sigQuitCounter{}
	d.AddSigQuitCallback(counter)

	r := New(d)
	r.Start()
	r.Stop()
	r.Stop()

	require.Equal(t, uint64(0), counter.n.Load())
}
