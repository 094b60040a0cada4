package updater

import "time"

// Update phases reported through Progress.Phase.
const (
	PhaseResetting   = "resetting"
	PhaseBeginning   = "beginning"
	PhaseProgramming = "programming"
	PhaseVerifying   = "verifying"
	PhaseCompleting  = "completing"
	PhaseComplete    = "complete"
)

// Progress contains information about a running update.
// Passed to ProgressCallback during Program and Verify.
type Progress struct {
	// Phase is one of the Phase* constants
	Phase string

	// CurrentBlock is the number of blocks submitted so far
	CurrentBlock int

	// TotalBlocks is the number of blocks in the image
	TotalBlocks int

	// Percentage is the completion percentage (0.0 to 100.0)
	Percentage float64

	// BytesWritten is the sum of the length fields of the submitted blocks
	BytesWritten int

	// Mismatches is the number of blocks that failed verification so far
	Mismatches int

	// ElapsedTime is the time elapsed since the run started
	ElapsedTime time.Duration
}

// ProgressCallback is called after every phase change and every block.
// Implementations should return quickly; the bus is idle while it runs.
//
// Example:
//
//	prog := updater.New(dev,
//	    updater.WithProgressCallback(func(p updater.Progress) {
//	        fmt.Printf("[%s] %.1f%% - Block %d/%d\n",
//	            p.Phase, p.Percentage, p.CurrentBlock, p.TotalBlocks)
//	    }),
//	)
type ProgressCallback func(Progress)

// Logger is an optional logging interface that can be provided to the updater.
// This allows integration with any logging framework.
//
// *slog.Logger satisfies it directly; other frameworks need a thin adapter:
//
//	type GlogLogger struct{}
//	func (GlogLogger) Debug(msg string, kv ...interface{}) { glog.V(1).Infoln(msg, kv) }
//	func (GlogLogger) Info(msg string, kv ...interface{})  { glog.Infoln(msg, kv) }
//	func (GlogLogger) Error(msg string, kv ...interface{}) { glog.Errorln(msg, kv) }
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}
