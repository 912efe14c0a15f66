// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

const (
	fmtBaseURL      = "https://%s%s"
	pathAuthSession = "/auth/session"
	fmtPathGateway  = "/conf/gateways/%s"
)

// Error codes returned by the Management Server API.
const (
	// ErrCodeGatewayRunning is returned when deleting a gateway that is still running.
	ErrCodeGatewayRunning = "IMP-10210"
	// ErrCodeGatewayNotFound is returned when deleting a gateway that does not exist.
	ErrCodeGatewayNotFound = "IMP-10102"
)

// MXConfig holds the settings used to reach the Management Server API.
type MXConfig struct {
	// Address is the host:port of the Management Server.
	Address string
	// APIPath is the path prefix of the API, e.g. /SecureSphere/api/v1.
	APIPath  string
	Username string
	Password string
	// Timeout bounds each request.
	Timeout time.Duration
	// InsecureSkipVerify disables TLS certificate verification. The Management Server
	// is usually deployed with a self-signed certificate.
	InsecureSkipVerify bool
}

// MX is a client for the Management Server API. After a successful Login the client
// holds the session cookie and is the session handle for later requests.
type MX struct {
	baseURL    string
	httpClient *http.Client
	username   string
	password   string
}

// StatusError is returned when a session request is rejected.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("session request failed with status %s", e.Status)
}

// APIError is returned when the Management Server rejects a request and reports why.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed with status %d: %s %s", e.StatusCode, e.Code, e.Description)
}

// ErrorDetail is a single entry of the errors field in the body of a failed Management
// Server API request.
type ErrorDetail struct {
	Code        string `json:"error-code"`
	Description string `json:"description"`
}

// NewMX returns a Management Server client.
func NewMX(cfg MXConfig) (*MX, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	transport := cleanhttp.DefaultTransport()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec
	}

	return &MX{
		baseURL: fmt.Sprintf(fmtBaseURL, cfg.Address, cfg.APIPath),
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
			Jar:       jar,
		},
		username: cfg.Username,
		password: cfg.Password,
	}, nil
}

// Login creates an API session using basic credentials.
// A *StatusError is returned if the Management Server rejects the request.
func (c *MX) Login(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pathAuthSession, nil)
	if err != nil {
		return err
	}
	httpReq.SetBasicAuth(c.username, c.password)

	httpRes, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer httpRes.Body.Close()
	_, _ = io.Copy(io.Discard, httpRes.Body)

	if httpRes.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: httpRes.StatusCode, Status: httpRes.Status}
	}
	return nil
}

// DeleteGateway removes the named gateway from the inventory.
// An *APIError carrying the first reported error code is returned if the Management Server
// rejects the request. A body without an errors field is an *APIError without a code.
// A body that is not a JSON object, or whose errors field is null, empty or starts with a
// null entry, is returned as a plain error.
func (c *MX) DeleteGateway(ctx context.Context, name string) error {
	u := c.baseURL + fmt.Sprintf(fmtPathGateway, url.PathEscape(name))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}

	httpRes, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer httpRes.Body.Close()

	if httpRes.StatusCode == http.StatusOK {
		_, _ = io.Copy(io.Discard, httpRes.Body)
		return nil
	}

	body, err := io.ReadAll(httpRes.Body)
	if err != nil {
		return err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return fmt.Errorf("failed to unmarshal response with status %s: %w", httpRes.Status, err)
	}
	if fields == nil {
		return fmt.Errorf("null response with status %s", httpRes.Status)
	}

	apiErr := &APIError{StatusCode: httpRes.StatusCode}
	rawErrs, ok := fields["errors"]
	if !ok {
		return apiErr
	}

	var errs []*ErrorDetail
	if err := json.Unmarshal(rawErrs, &errs); err != nil {
		return fmt.Errorf("failed to unmarshal errors in response with status %s: %w", httpRes.Status, err)
	}
	if len(errs) == 0 || errs[0] == nil {
		return fmt.Errorf("malformed errors in response with status %s: %s", httpRes.Status, body)
	}
	apiErr.Code = errs[0].Code
	apiErr.Description = errs[0].Description
	return apiErr
}
