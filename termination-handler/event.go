// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/waf-autoscaling/gateway-termination-handler/structs"
)

// GetEvent decodes the raw Pub/Sub message, or push envelope, that notified the deletion of
// a gateway instance and returns the event that removes it from the Management Server.
// A push envelope delivered through a function URL is read from the request body.
func GetEvent(env Environment, data map[string]interface{}) (DeleteEvent, error) {
	msg, err := decodeMessage(data)
	if err != nil {
		return DeleteEvent{}, err
	}

	entry, err := msg.AuditLogEntry()
	if err != nil {
		return DeleteEvent{}, fmt.Errorf("error decoding message %q: %w", msg.MessageID, err)
	}

	gw, err := entry.Gateway()
	if err != nil {
		return DeleteEvent{}, fmt.Errorf("error extracting gateway from message %q: %w", msg.MessageID, err)
	}

	env.Logger.Info("Received event",
		"message-id", msg.MessageID,
		"method", entry.ProtoPayload.MethodName,
		"resource", gw.ResourceName,
		"gateway", gw.Name)

	return DeleteEvent{gw}, nil
}

var errEmptyBody = errors.New("empty function URL request body")

// functionURLRequest holds the fields of a function URL request that carry the push envelope.
type functionURLRequest struct {
	Body            string `mapstructure:"body"`
	IsBase64Encoded bool   `mapstructure:"isBase64Encoded"`
}

func decodeMessage(data map[string]interface{}) (structs.PubSubMessage, error) {
	if _, ok := data["body"]; !ok {
		return decodePubSub(data)
	}

	var req functionURLRequest
	if err := mapstructure.Decode(data, &req); err != nil {
		return structs.PubSubMessage{}, fmt.Errorf("error decoding function URL request: %w", err)
	}

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		b, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return structs.PubSubMessage{}, fmt.Errorf("error decoding function URL request body: %w", err)
		}
		body = b
	}

	var envelope map[string]interface{}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return structs.PubSubMessage{}, fmt.Errorf("error unmarshalling function URL request body: %w", err)
	}
	if envelope == nil {
		return structs.PubSubMessage{}, errEmptyBody
	}
	return decodePubSub(envelope)
}

func decodePubSub(data map[string]interface{}) (structs.PubSubMessage, error) {
	if _, ok := data["message"]; ok {
		var envelope structs.PushEnvelope
		if err := mapstructure.Decode(data, &envelope); err != nil {
			return envelope.Message, fmt.Errorf("error decoding push envelope: %w", err)
		}
		return envelope.Message, nil
	}

	var msg structs.PubSubMessage
	if err := mapstructure.Decode(data, &msg); err != nil {
		return msg, fmt.Errorf("error decoding message: %w", err)
	}
	return msg, nil
}
