package logger

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	std     *logrus.Logger
	stdOnce sync.Once
)

// Std returns the process-wide structured logger. Discovery logs skipped
// primitive files through it, and the optimizer and compiler log malformed
// globs and failed link checks; VersionConflict, CycleDetected and
// LinkValidationWarning values are returned to the caller instead, which
// prints them. The CLI sets its level with the --verbose flag.
func Std() *logrus.Logger {
	stdOnce.Do(func() {
		std = logrus.New()
		std.SetOutput(os.Stderr)
		std.SetFormatter(&logrus.TextFormatter{
			DisableTimestamp: true,
			FullTimestamp:    false,
		})
		std.SetLevel(logrus.InfoLevel)
	})
	return std
}

// SetVerbose raises or lowers the logger's level.
func SetVerbose(verbose bool) {
	if verbose {
		Std().SetLevel(logrus.DebugLevel)
	} else {
		Std().SetLevel(logrus.InfoLevel)
	}
}
