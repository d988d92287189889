package callbacks

import "github.com/rs/zerolog"

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger installs a structured logger. Registration, removal, and
// phase transitions are logged at debug level; dispatch fan-out itself is
// never logged. The default is a no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(d *Dispatcher) {
		d.log = log
	}
}
