// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package structs

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

var errNoData = errors.New("message data isn't populated")

// PubSubMessage is a Pub/Sub message as delivered to a background function.
type PubSubMessage struct {
	// Data is the base64 encoded message payload.
	Data string `mapstructure:"data" json:"data"`
	// Attributes are the optional message attributes.
	Attributes map[string]string `mapstructure:"attributes" json:"attributes,omitempty"`
	// MessageID is the ID assigned by Pub/Sub.
	MessageID string `mapstructure:"messageId" json:"messageId,omitempty"`
	// PublishTime is the RFC 3339 time the message was published.
	PublishTime string `mapstructure:"publishTime" json:"publishTime,omitempty"`
}

// PushEnvelope is the body of a Pub/Sub push subscription request.
type PushEnvelope struct {
	Message      PubSubMessage `mapstructure:"message" json:"message"`
	Subscription string        `mapstructure:"subscription" json:"subscription"`
}

// AuditLogEntry holds the parts of a Cloud Audit Log entry that are exported to Pub/Sub
// when an instance in a managed instance group is deleted.
type AuditLogEntry struct {
	// InsertID uniquely identifies the log entry.
	InsertID string `json:"insertId"`
	// ProtoPayload describes the audited operation.
	ProtoPayload AuditProtoPayload `json:"protoPayload"`
	// Resource is the monitored resource that produced the entry.
	Resource MonitoredResource `json:"resource"`
	// Timestamp is the RFC 3339 time of the operation.
	Timestamp string `json:"timestamp"`
}

// AuditProtoPayload is the audited operation.
type AuditProtoPayload struct {
	ServiceName  string `json:"serviceName"`
	MethodName   string `json:"methodName"`
	ResourceName string `json:"resourceName"`
}

// MonitoredResource is the resource that produced an audit log entry.
type MonitoredResource struct {
	Type   string            `json:"type"`
	Labels map[string]string `json:"labels"`
}

// AuditLogEntry decodes the message payload into an AuditLogEntry.
func (m PubSubMessage) AuditLogEntry() (AuditLogEntry, error) {
	var entry AuditLogEntry
	if m.Data == "" {
		return entry, errNoData
	}

	raw, err := base64.StdEncoding.DecodeString(m.Data)
	if err != nil {
		return entry, fmt.Errorf("failed to decode message data: %w", err)
	}

	if err := json.Unmarshal(raw, &entry); err != nil {
		return entry, fmt.Errorf("failed to unmarshal audit log entry: %w", err)
	}
	return entry, nil
}

// Gateway returns the gateway that the audit log entry refers to.
func (e AuditLogEntry) Gateway() (Gateway, error) {
	return ParseGateway(e.ProtoPayload.ResourceName)
}
