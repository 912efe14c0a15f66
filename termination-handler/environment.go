// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/kelseyhightower/envconfig"

	"github.com/waf-autoscaling/gateway-termination-handler/client"
	"github.com/waf-autoscaling/gateway-termination-handler/trace"
)

const handlerName = "gateway-termination-handler"

// Config holds the configuration from the environment.
type Config struct {
	// MXHost is the host name or address of the Management Server.
	MXHost string `envconfig:"MX_HOST"`

	// MXPort is the port the Management Server API listens on.
	MXPort int `envconfig:"MX_PORT" default:"8083"`

	// MXAPIPath is the path prefix of the Management Server API.
	MXAPIPath string `envconfig:"MX_API_PATH" default:"/SecureSphere/api/v1"`

	// MXUsername is the user that API sessions are created for.
	MXUsername string `envconfig:"MX_USERNAME" default:"admin"`

	// MXPassword is the password of MXUsername.
	MXPassword string `envconfig:"MX_PASSWORD"`

	// MXPasswordPath is the path to the password in Parameter Store.
	// It is mutually exclusive with MXPassword.
	MXPasswordPath string `envconfig:"MX_PASSWORD_PATH"`

	// InsecureSkipVerify disables verification of the Management Server's TLS certificate.
	// It defaults to true because the Management Server is deployed with a self-signed certificate.
	InsecureSkipVerify bool `envconfig:"MX_INSECURE_SKIP_VERIFY" default:"true"`

	// RequestTimeout bounds every request to the Management Server.
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`

	// AuthRetries is the number of session requests made before giving up.
	AuthRetries int `envconfig:"AUTH_RETRIES" default:"3"`

	// AuthRetryInterval is the wait between session requests.
	AuthRetryInterval time.Duration `envconfig:"AUTH_RETRY_INTERVAL" default:"5s"`

	// DeleteRetries is the number of delete requests made before giving up.
	DeleteRetries int `envconfig:"DELETE_RETRIES" default:"6"`

	// DeleteRetryInterval is the wait between delete requests.
	DeleteRetryInterval time.Duration `envconfig:"DELETE_RETRY_INTERVAL" default:"30s"`

	// LogLevel is the configured logging level.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// TraceEnabled enables logging of phase timings.
	TraceEnabled bool `envconfig:"TRACE_ENABLED" default:"false"`
}

// LoadConfig reads the Config from environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("failed to load configuration from environment: %w", err)
	}
	return cfg, nil
}

// validate reports every configuration problem at once.
func (c Config) validate() error {
	var resultErr error

	if c.MXHost == "" {
		resultErr = multierror.Append(resultErr, errors.New("MX_HOST is required"))
	}

	switch {
	case c.MXPassword == "" && c.MXPasswordPath == "":
		resultErr = multierror.Append(resultErr, errors.New("one of MX_PASSWORD or MX_PASSWORD_PATH is required"))
	case c.MXPassword != "" && c.MXPasswordPath != "":
		resultErr = multierror.Append(resultErr, errors.New("MX_PASSWORD and MX_PASSWORD_PATH are mutually exclusive"))
	}

	if c.AuthRetries < 1 {
		resultErr = multierror.Append(resultErr, fmt.Errorf("AUTH_RETRIES must be at least 1, got %d", c.AuthRetries))
	}
	if c.DeleteRetries < 1 {
		resultErr = multierror.Append(resultErr, fmt.Errorf("DELETE_RETRIES must be at least 1, got %d", c.DeleteRetries))
	}

	return resultErr
}

func (c Config) mxConfig() client.MXConfig {
	return client.MXConfig{
		Address:            net.JoinHostPort(c.MXHost, strconv.Itoa(c.MXPort)),
		APIPath:            c.MXAPIPath,
		Username:           c.MXUsername,
		Password:           c.MXPassword,
		Timeout:            c.RequestTimeout,
		InsecureSkipVerify: c.InsecureSkipVerify,
	}
}

// ParamGetter reads a secret value from a data store.
type ParamGetter interface {
	Get(ctx context.Context, key string) (string, error)
}

// Environment contains all of the handler's dependencies for a single invocation.
type Environment struct {
	Config

	// MX is the Management Server API client. It becomes the session once logged in.
	MX ManagementAPI

	// Logger is used to log messages.
	Logger hclog.Logger

	// Store is the data store the Management Server password is read from.
	// It is nil unless MXPasswordPath is set.
	Store ParamGetter
}

// SetupEnvironment constructs the processing Environment based on environment variables
// and Parameter Store.
func SetupEnvironment(ctx context.Context) (Environment, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return Environment{Config: cfg}, err
	}

	var store ParamGetter
	if cfg.MXPasswordPath != "" {
		sdkConfig, err := config.LoadDefaultConfig(ctx, config.WithRetryer(func() aws.Retryer {
			// Adaptive mode should retry on hitting rate limits.
			return retry.AddWithMaxBackoffDelay(retry.NewAdaptiveMode(), 3*time.Second)
		}))
		if err != nil {
			return Environment{Config: cfg}, fmt.Errorf("failed to create AWS SDK configuration: %w", err)
		}
		store = client.NewSSM(&sdkConfig)
	}

	return NewEnvironment(ctx, cfg, store)
}

// NewEnvironment validates cfg, resolves the Management Server password and builds the
// Management Server client.
func NewEnvironment(ctx context.Context, cfg Config, store ParamGetter) (Environment, error) {
	env := Environment{Config: cfg, Store: store}

	env.Logger = hclog.New(
		&hclog.LoggerOptions{
			Name:  handlerName,
			Level: hclog.LevelFromString(env.LogLevel),
		},
	)

	trace.Enabled(env.TraceEnabled)

	if err := env.validate(); err != nil {
		return env, err
	}

	if err := env.setMXPassword(ctx); err != nil {
		return env, err
	}

	mx, err := client.NewMX(env.mxConfig())
	if err != nil {
		return env, err
	}
	env.MX = mx

	return env, nil
}

func (env *Environment) setMXPassword(ctx context.Context) error {
	if env.MXPasswordPath == "" {
		return nil
	}

	if env.Store == nil {
		return errors.New("no parameter store configured for MX_PASSWORD_PATH")
	}

	password, err := env.Store.Get(ctx, env.MXPasswordPath)
	if err != nil {
		return fmt.Errorf("failed to read Management Server password from %s: %w", env.MXPasswordPath, err)
	}
	if password == "" {
		return fmt.Errorf("empty Management Server password at %s", env.MXPasswordPath)
	}

	env.MXPassword = password
	return nil
}

func (env Environment) authRetry() Retry {
	return Retry{Attempts: env.AuthRetries, Interval: env.AuthRetryInterval}
}

func (env Environment) deleteRetry() Retry {
	return Retry{Attempts: env.DeleteRetries, Interval: env.DeleteRetryInterval}
}
