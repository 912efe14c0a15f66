// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/waf-autoscaling/gateway-termination-handler/client"
)

// Session is an authenticated handle to the Management Server API.
type Session interface {
	DeleteGateway(ctx context.Context, name string) error
}

// ManagementAPI is the Management Server API. Login turns it into a Session.
type ManagementAPI interface {
	Session
	Login(ctx context.Context) error
}

// Retry is a retry budget: the number of attempts and the constant wait between them.
type Retry struct {
	Attempts int
	Interval time.Duration
}

// CreateSession logs in to the Management Server, repeating the identical request at a
// constant interval while it is rejected. Transport errors are not retried.
func (env Environment) CreateSession(ctx context.Context) (Session, error) {
	retry := env.authRetry()

	for {
		err := env.MX.Login(ctx)
		if err == nil {
			env.Logger.Debug("Created session with Management Server", "host", env.MXHost)
			return env.MX, nil
		}

		var statusErr *client.StatusError
		if !errors.As(err, &statusErr) {
			return nil, fmt.Errorf("authentication request to Management Server failed: %w", err)
		}

		retry.Attempts--
		if retry.Attempts <= 0 {
			return nil, fmt.Errorf("authentication request to Management Server failed with status code %d", statusErr.StatusCode)
		}

		env.Logger.Warn("Authentication request to Management Server failed",
			"status", statusErr.StatusCode, "attempts-left", retry.Attempts, "interval", retry.Interval)
		if err := wait(ctx, retry.Interval); err != nil {
			return nil, err
		}
	}
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
