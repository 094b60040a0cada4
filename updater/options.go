package updater

import (
	"time"

	"github.com/moffa90/go-gestic/protocol"
)

// Config holds the updater configuration.
type Config struct {
	// ProgressCallback is called during Program and Verify (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations (optional)
	Logger Logger

	// Address is the I2C address of the controller
	Address uint16

	// SessionID is used for every session when HasSessionID is set.
	// Otherwise each session draws a random ID.
	SessionID    uint32
	HasSessionID bool

	// ReadyTimeout bounds each wait for the ready line. Zero waits forever.
	ReadyTimeout time.Duration

	// Timing holds the fixed delays between bus operations
	Timing Timing

	// VerifyAfterProgram makes Update run a verify session after programming
	VerifyAfterProgram bool

	// BootMessage makes Reset wait for and consume the status message the
	// device posts after rebooting
	BootMessage bool
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Address:            protocol.DefaultAddress,
		ReadyTimeout:       5 * time.Second,
		Timing:             DefaultTiming(),
		VerifyAfterProgram: true,
		BootMessage:        true,
	}
}

func newConfig(opts []Option) Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Option is a functional option for configuring the Programmer and Session.
type Option func(*Config)

// WithProgressCallback sets a callback function to track update progress.
//
// Example:
//
//	prog := updater.New(dev,
//	    updater.WithProgressCallback(func(p updater.Progress) {
//	        fmt.Printf("%.1f%% complete\n", p.Percentage)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for updater operations.
//
// Example:
//
//	prog := updater.New(dev, updater.WithLogger(slog.Default()))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithAddress sets the I2C address of the controller.
// Default is protocol.DefaultAddress (0x42).
func WithAddress(addr uint16) Option {
	return func(c *Config) {
		c.Address = addr
	}
}

// WithSessionID fixes the session ID instead of drawing a random one.
//
// Example:
//
//	prog := updater.New(dev, updater.WithSessionID(1))
func WithSessionID(id uint32) Option {
	return func(c *Config) {
		c.SessionID = id
		c.HasSessionID = true
	}
}

// WithReadyTimeout bounds how long the updater waits for the device to
// assert the ready line after a frame. Zero waits forever.
//
// Example:
//
//	prog := updater.New(dev, updater.WithReadyTimeout(2*time.Second))
func WithReadyTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout >= 0 {
			c.ReadyTimeout = timeout
		}
	}
}

// WithTiming replaces the fixed delays between bus operations.
//
// Example:
//
//	t := updater.DefaultTiming()
//	t.LoaderRestart = 25 * time.Second
//	prog := updater.New(dev, updater.WithTiming(t))
func WithTiming(t Timing) Option {
	return func(c *Config) {
		c.Timing = t
	}
}

// WithVerifyAfterProgram enables or disables the verify run in Update.
// Default is true.
func WithVerifyAfterProgram(verify bool) Option {
	return func(c *Config) {
		c.VerifyAfterProgram = verify
	}
}

// WithBootMessage enables or disables consuming the post-reset status message.
// Default is true.
func WithBootMessage(enabled bool) Option {
	return func(c *Config) {
		c.BootMessage = enabled
	}
}

func (c *Config) reportProgress(progress Progress) {
	if c.ProgressCallback != nil {
		c.ProgressCallback(progress)
	}
}

func (c *Config) logDebug(msg string, keysAndValues ...interface{}) {
	if c.Logger != nil {
		c.Logger.Debug(msg, keysAndValues...)
	}
}

func (c *Config) logInfo(msg string, keysAndValues ...interface{}) {
	if c.Logger != nil {
		c.Logger.Info(msg, keysAndValues...)
	}
}

func (c *Config) logError(msg string, keysAndValues ...interface{}) {
	if c.Logger != nil {
		c.Logger.Error(msg, keysAndValues...)
	}
}
