// Package iox holds cleanup helpers for closers whose errors cannot be
// acted on: response bodies, frame files, adapters and locks.
package iox

import "io"

// DiscardClose closes c and drops the error.
//
//	defer iox.DiscardClose(resp.Body)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a func that closes c, for t.Cleanup registration:
//
//	t.Cleanup(iox.CloseFunc(adapter))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr calls fn and drops its error, for cleanups that are not
// Close, such as a logger Sync.
//
//	defer iox.DiscardErr(logger.Sync)
func DiscardErr(fn func() error) { _ = fn() }
