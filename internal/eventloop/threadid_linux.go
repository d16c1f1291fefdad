//go:build linux

package eventloop

import "golang.org/x/sys/unix"

// currentThreadID returns the calling OS thread's tid. Callers must have
// already pinned the goroutine with runtime.LockOSThread, or this value is
// meaningless across calls.
func currentThreadID() int64 { return int64(unix.Gettid()) }
