// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/hashicorp/go-hclog"

	"github.com/waf-autoscaling/gateway-termination-handler/trace"
)

func main() {
	lambda.Start(HandleRequest)
}

// HandleRequest is invoked when a gateway instance in an auto-scaling group is deleted.
// It makes sure the gateway is removed from the Management Server inventory in the cases
// where the gateway could not remove itself before it was terminated.
func HandleRequest(ctx context.Context, rawEvent map[string]interface{}) (string, error) {
	env, err := SetupEnvironment(ctx)
	if err != nil {
		// We can't rely on the logger because of the error.
		fmt.Println("Error setting up the environment:", err)
		return "", fmt.Errorf("setting up environment: %w", err)
	}

	return handle(ctx, env, rawEvent)
}

func handle(ctx context.Context, env Environment, rawEvent map[string]interface{}) (string, error) {
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		env.Logger = env.Logger.With("request-id", lc.AwsRequestID)
	}
	trace.SetLogger(env.Logger, hclog.Info)

	event, err := GetEvent(env, rawEvent)
	if err != nil {
		env.Logger.Warn("Error getting event", "error", err)
		return "", fmt.Errorf("error getting event: %w", err)
	}

	env.Logger.Info("Creating session with Management Server", "host", env.MXHost)
	timer := trace.Start("session")
	session, err := env.CreateSession(ctx)
	timer.Stop()
	if err != nil {
		env.Logger.Error("Error creating session", "error", err)
		return "", err
	}

	timer = trace.Start("reconcile")
	state, err := event.Reconcile(ctx, env, session)
	timer.Stop("gateway", event.Identifier(), "state", state)
	if err != nil {
		env.Logger.Error("Error reconciling event", "error", err, "identifier", event.Identifier())
		return string(state), err
	}

	return string(state), nil
}
