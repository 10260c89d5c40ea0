// Copyright 2024 The jsonl Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package flock serializes cache builds across processes with an
// advisory flock(2) lock scoped to a single cache path.  Locks on
// different paths never interfere, and there is no nested acquisition,
// so no deadlock is possible.
package flock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// ErrContention is returned when the lock stays held elsewhere for the
// whole bounded wait.  Surfacing this beats blocking indefinitely on a
// wedged lock file.
var ErrContention = errors.New("lock held by another process")

const (
	maxAttempts  = 6
	initialDelay = 5 * time.Millisecond
	maxDelay     = 100 * time.Millisecond
)

// Lock is a held advisory lock.  Release it exactly once.
type Lock struct {
	path string
	f    *os.File
}

// Acquire takes the advisory lock guarding path (a sibling ".lock"
// file).  It retries a small bounded number of times with doubling
// backoff before giving up with ErrContention.
func Acquire(path string) (*Lock, error) {
	lockPath := path + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("os.MkdirAll: %w", err)
	}
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("os.OpenFile: %w", err)
	}

	delay := initialDelay
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(delay)
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
			}
		}
		err = unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &Lock{path: lockPath, f: f}, nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) {
			_ = f.Close()
			return nil, fmt.Errorf("unix.Flock: %w", err)
		}
	}

	_ = f.Close()
	return nil, fmt.Errorf("%w: %s", ErrContention, lockPath)
}

// Release drops the lock.  The lock file itself is left in place so a
// concurrent Acquire never races a deletion.
func (l *Lock) Release() error {
	if l.f == nil {
		return nil
	}
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	cerr := l.f.Close()
	l.f = nil
	if err != nil {
		return fmt.Errorf("unix.Flock: %w", err)
	}
	return cerr
}
