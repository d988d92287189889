// Package sigbridge relays SIGQUIT from the operating system to the
// runtime callback dispatcher, fulfilling the lifecycle manager's side of
// the process-signal contract.
package sigbridge

import (
	"os"
	"os/signal"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/kestrelvm/kestrel/internal/callbacks"
)

// Relay subscribes to SIGQUIT and dispatches each delivery synchronously
// on its own goroutine. Stop is idempotent.
type Relay struct {
	dispatcher *callbacks.Dispatcher
	log        zerolog.Logger

	ch       chan os.Signal
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option configures a Relay.
type Option func(*Relay)

// WithLogger sets the structured logger.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Relay) {
		r.log = log
	}
}

// New creates a relay for d. Call Start to begin listening.
func New(d *callbacks.Dispatcher, opts ...Option) *Relay {
	r := &Relay{
		dispatcher: d,
		log:        zerolog.Nop(),
		ch:         make(chan os.Signal, 1),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start subscribes to SIGQUIT and launches the relay goroutine.
func (r *Relay) Start() {
	signal.Notify(r.ch, unix.SIGQUIT)
	r.wg.Add(1)
	go r.loop()
}

func (r *Relay) loop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.done:
			return
		case <-r.ch:
			r.log.Debug().Msg("SIGQUIT received")
			r.dispatcher.SigQuit()
		}
	}
}

// Stop unsubscribes and waits for the relay goroutine to exit. Safe to
// call more than once.
func (r *Relay) Stop() {
	r.stopOnce.Do(func() {
		signal.Stop(r.ch)
		close(r.done)
	})
	r.wg.Wait()
}
