// Package logx is the leveled logger with a fatal variant that the reactor
// core treats as an external collaborator (spec §1 OUT OF SCOPE). It wraps
// pterm's prefixed printers the same way 1ureka-roj1's internal/util does.
package logx

import (
	"os"

	"github.com/pterm/pterm"
)

func init() {
	pterm.DefaultLogger.ShowTime = true
	pterm.DefaultLogger.TimeFormat = "2006-01-02 15:04:05.000"
}

// Debug logs at debug severity; hidden unless EnableDebug was called.
func Debug(format string, args ...interface{}) {
	pterm.Debug.Printfln(format, args...)
}

// Info logs at info severity.
func Info(format string, args ...interface{}) {
	pterm.Info.Printfln(format, args...)
}

// Warning logs at warning severity — used for transient/resource-exhaustion
// conditions that do not tear down a connection or the process (e.g. EMFILE
// on accept, a failed config reload).
func Warning(format string, args ...interface{}) {
	pterm.Warning.Printfln(format, args...)
}

// Error logs at error severity — per-connection failures and DEL failures
// at the poller layer (ADD/MOD failures go through Fatal).
func Error(format string, args ...interface{}) {
	pterm.Error.Printfln(format, args...)
}

// Fatal logs at error severity and terminates the process. This is the sink
// for spec §7's "fatal configuration errors": listen socket creation, bind,
// listen, epoll/kqueue creation, eventfd creation, and constructing a second
// EventLoop on a thread that already owns one.
func Fatal(format string, args ...interface{}) {
	pterm.Error.Printfln(format, args...)
	os.Exit(1)
}

// EnableDebug raises the logger's visible level to include Debug output.
func EnableDebug() {
	pterm.EnableDebugMessages()
	pterm.DefaultLogger.Level = pterm.LogLevelDebug
}
