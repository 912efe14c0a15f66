// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/waf-autoscaling/gateway-termination-handler/client"
	"github.com/waf-autoscaling/gateway-termination-handler/structs"
)

// State is the state of a gateway deletion.
type State string

const (
	StateAttempting    State = "attempting"
	StateSucceeded     State = "succeeded"
	StateAlreadyAbsent State = "already-absent"
	StateExhausted     State = "exhausted"
)

type errorKind int

const (
	unknownError errorKind = iota
	gatewayNotFound
	gatewayRunning
)

func (k errorKind) String() string {
	switch k {
	case gatewayNotFound:
		return "not-found"
	case gatewayRunning:
		return "still-running"
	default:
		return "unknown"
	}
}

// errorKinds maps Management Server error codes to the action taken on a failed delete.
// Codes that are not listed are unknown errors and are retried.
var errorKinds = map[string]errorKind{
	client.ErrCodeGatewayNotFound: gatewayNotFound,
	client.ErrCodeGatewayRunning:  gatewayRunning,
}

func classify(code string) errorKind {
	return errorKinds[code]
}

// DeleteEvent removes a terminated gateway from the Management Server inventory.
type DeleteEvent struct {
	structs.Gateway
}

func (e DeleteEvent) Identifier() string {
	return e.Name
}

// Reconcile deletes the gateway through the session until it is gone or the retry budget
// is spent. A gateway that is already gone is not an error, and neither is running out of
// retries: both end in a terminal State with a nil error. Errors are only returned for
// failures that aren't reported by the Management Server, such as transport errors.
func (e DeleteEvent) Reconcile(ctx context.Context, env Environment, session Session) (State, error) {
	retry := env.deleteRetry()
	logger := env.Logger.With("gateway", e.Name)

	for {
		err := session.DeleteGateway(ctx, e.Name)
		if err == nil {
			logger.Info("Gateway has been removed successfully from the Management Server")
			return StateSucceeded, nil
		}

		var apiErr *client.APIError
		if !errors.As(err, &apiErr) {
			return StateAttempting, fmt.Errorf("failed to delete gateway %s: %w", e.Name, err)
		}

		kind := classify(apiErr.Code)
		switch kind {
		case gatewayNotFound:
			// Most likely deleted by the gateway's own shutdown scripts.
			logger.Info("Gateway has already removed itself from the Management Server")
			return StateAlreadyAbsent, nil
		case gatewayRunning:
			logger.Info("Gateway is still running")
		default:
			logger.Warn("An unknown error has occurred while trying to delete the gateway",
				"status", apiErr.StatusCode, "error-code", apiErr.Code, "description", apiErr.Description)
		}

		retry.Attempts--
		if retry.Attempts <= 0 {
			logger.Error("Gateway could not be removed from the Management Server in a timely manner. Please see the function's execution logs",
				"reason", kind, "error-code", apiErr.Code)
			return StateExhausted, nil
		}

		logger.Info("Waiting before trying again", "interval", retry.Interval, "attempts-left", retry.Attempts)
		if err := wait(ctx, retry.Interval); err != nil {
			return StateAttempting, err
		}
	}
}
