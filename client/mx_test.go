// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/waf-autoscaling/gateway-termination-handler/client"
)

const (
	apiPath     = "/SecureSphere/api/v1"
	username    = "admin"
	password    = "secret"
	sessionName = "JSESSIONID"
	sessionID   = "session-1234"
)

// mockMX is a minimal Management Server. Gateways listed in running report IMP-10210,
// gateways not in inventory report IMP-10102.
type mockMX struct {
	inventory map[string]struct{}
	running   map[string]struct{}
	deleted   []string
}

func (m *mockMX) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == apiPath+"/auth/session":
		u, p, ok := r.BasicAuth()
		if !ok || u != username || p != password {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: sessionName, Value: sessionID, Path: "/"})
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, apiPath+"/conf/gateways/"):
		if c, err := r.Cookie(sessionName); err != nil || c.Value != sessionID {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"errors":[{"error-code":"IMP-10005","description":"Session is not authenticated"}]}`))
			return
		}
		name := strings.TrimPrefix(r.URL.Path, apiPath+"/conf/gateways/")
		if _, ok := m.running[name]; ok {
			w.WriteHeader(http.StatusNotAcceptable)
			_, _ = w.Write([]byte(`{"errors":[{"error-code":"IMP-10210","description":"Gateway is running"}]}`))
			return
		}
		if _, ok := m.inventory[name]; !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[{"error-code":"IMP-10102","description":"Gateway not found"}]}`))
			return
		}
		delete(m.inventory, name)
		m.deleted = append(m.deleted, name)
		w.WriteHeader(http.StatusOK)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newMXClient(t *testing.T, server *httptest.Server, pass string, insecure bool) *client.MX {
	mx, err := client.NewMX(client.MXConfig{
		Address:            strings.TrimPrefix(server.URL, "https://"),
		APIPath:            apiPath,
		Username:           username,
		Password:           pass,
		Timeout:            time.Second,
		InsecureSkipVerify: insecure,
	})
	require.NoError(t, err)
	return mx
}

func TestMXLogin(t *testing.T) {
	ctx := context.Background()
	server := httptest.NewTLSServer(&mockMX{})
	t.Cleanup(server.Close)

	t.Run("valid credentials", func(t *testing.T) {
		mx := newMXClient(t, server, password, true)
		require.NoError(t, mx.Login(ctx))
	})

	t.Run("invalid credentials", func(t *testing.T) {
		mx := newMXClient(t, server, "wrong", true)
		err := mx.Login(ctx)
		require.Error(t, err)

		var statusErr *client.StatusError
		require.True(t, errors.As(err, &statusErr))
		require.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
		require.Contains(t, err.Error(), "401")
	})

	t.Run("certificate verification enabled", func(t *testing.T) {
		mx := newMXClient(t, server, password, false)
		err := mx.Login(ctx)
		require.Error(t, err)

		var statusErr *client.StatusError
		require.False(t, errors.As(err, &statusErr))
	})

	t.Run("server unreachable", func(t *testing.T) {
		closed := httptest.NewTLSServer(&mockMX{})
		mx := newMXClient(t, closed, password, true)
		closed.Close()

		err := mx.Login(ctx)
		require.Error(t, err)
		var statusErr *client.StatusError
		require.False(t, errors.As(err, &statusErr))
	})
}

func TestMXDeleteGateway(t *testing.T) {
	ctx := context.Background()
	mock := &mockMX{
		inventory: map[string]struct{}{"gw-1": {}, "gw-running": {}},
		running:   map[string]struct{}{"gw-running": {}},
	}
	server := httptest.NewTLSServer(mock)
	t.Cleanup(server.Close)

	mx := newMXClient(t, server, password, true)

	t.Run("without a session", func(t *testing.T) {
		err := mx.DeleteGateway(ctx, "gw-1")
		var apiErr *client.APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		require.Equal(t, "IMP-10005", apiErr.Code)
	})

	require.NoError(t, mx.Login(ctx))

	cases := map[string]struct {
		name   string
		status int
		code   string
	}{
		"gateway in inventory": {
			name: "gw-1",
		},
		"gateway already deleted": {
			name:   "gw-1",
			status: http.StatusNotFound,
			code:   client.ErrCodeGatewayNotFound,
		},
		"gateway running": {
			name:   "gw-running",
			status: http.StatusNotAcceptable,
			code:   client.ErrCodeGatewayRunning,
		},
	}

	for _, n := range []string{"gateway in inventory", "gateway already deleted", "gateway running"} {
		c := cases[n]
		t.Run(n, func(t *testing.T) {
			err := mx.DeleteGateway(ctx, c.name)
			if c.status == 0 {
				require.NoError(t, err)
				return
			}
			var apiErr *client.APIError
			require.True(t, errors.As(err, &apiErr))
			require.Equal(t, c.status, apiErr.StatusCode)
			require.Equal(t, c.code, apiErr.Code)
		})
	}
	require.Equal(t, []string{"gw-1"}, mock.deleted)
}

func TestMXDeleteGatewayResponseBody(t *testing.T) {
	ctx := context.Background()
	cases := map[string]struct {
		body    string
		apiErr  bool
		code    string
		message string
	}{
		"empty errors": {
			body: `{"errors":[]}`,
		},
		"null errors": {
			body: `{"errors":null}`,
		},
		"null first error": {
			body: `{"errors":[null]}`,
		},
		"errors of the wrong type": {
			body: `{"errors":{"error-code":"IMP-10102"}}`,
		},
		"null body": {
			body: `null`,
		},
		"array body": {
			body: `[{"error-code":"IMP-10102"}]`,
		},
		"null error code": {
			body:    `{"errors":[{"error-code":null}]}`,
			apiErr:  true,
			message: "request failed with status 500",
		},
		"no errors field": {
			body:    `{}`,
			apiErr:  true,
			message: "request failed with status 500",
		},
		"multiple errors": {
			body:    `{"errors":[{"error-code":"IMP-99999","description":"first"},{"error-code":"IMP-10102"}]}`,
			apiErr:  true,
			code:    "IMP-99999",
			message: "request failed with status 500: IMP-99999 first",
		},
		"not json": {
			body: `<html>Internal Server Error</html>`,
		},
		"empty body": {
			body: ``,
		},
	}

	for n, c := range cases {
		t.Run(n, func(t *testing.T) {
			server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(c.body))
			}))
			t.Cleanup(server.Close)

			mx := newMXClient(t, server, password, true)
			err := mx.DeleteGateway(ctx, "gw-1")
			require.Error(t, err)

			var apiErr *client.APIError
			require.Equal(t, c.apiErr, errors.As(err, &apiErr))
			if c.apiErr {
				require.Equal(t, c.code, apiErr.Code)
				require.EqualError(t, err, c.message)
			}
		})
	}
}

func TestMXDeleteGatewayTruncatedSuccess(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Declare more than is written so the client sees an unexpected EOF.
		w.Header().Set("Content-Length", "100")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":`))
	}))
	t.Cleanup(server.Close)

	mx := newMXClient(t, server, password, true)
	require.NoError(t, mx.DeleteGateway(context.Background(), "gw-1"))
}
