// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package trace provides simple timers for the phases of an invocation.
package trace

import (
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

var (
	// enabled controls whether or not tracing is enabled globally. By default it is disabled
	// and timers are nil, so Stop returns without doing any work.
	enabled bool
	// logger receives the timer output. By default timers use a null logger.
	logger = hclog.NewNullLogger()
	// level is the level timer output is logged at.
	level = hclog.Info

	mu sync.Mutex
)

func Enabled(e bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = e
}

func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// SetLogger sets the logger and level used by timers started after the call.
func SetLogger(l hclog.Logger, lvl hclog.Level) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		l = hclog.NewNullLogger()
	}
	if lvl == hclog.NoLevel {
		lvl = hclog.Info
	}
	logger = l
	level = lvl
}

type Timer struct {
	name  string
	log   hclog.Logger
	level hclog.Level
	t0    time.Time
}

// Start a timer for the named phase. It returns nil when tracing is disabled.
func Start(name string) *Timer {
	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		return nil
	}
	return &Timer{name: name, log: logger, level: level, t0: time.Now()}
}

// Stop logs the time since the timer started. Optional args are key/value pairs that are
// appended to the log line.
func (t *Timer) Stop(args ...interface{}) time.Duration {
	if t == nil {
		return 0
	}
	d := time.Since(t.t0)
	t.log.Log(t.level, "trace", append([]interface{}{"phase", t.name, "duration", d}, args...)...)
	return d
}
