// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package client_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmTypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"

	"github.com/waf-autoscaling/gateway-termination-handler/client"
)

func TestSSMGet(t *testing.T) {
	ctx := context.Background()
	store := client.NewSSMFromAPI(mockSSM{mappings: map[string]string{"/waf/mx-password": "value"}})

	t.Run("With a path that isn't in parameter store", func(t *testing.T) {
		_, err := store.Get(ctx, "not/real")
		require.Error(t, err)
	})

	t.Run("With a path that is in parameter store", func(t *testing.T) {
		v, err := store.Get(ctx, "/waf/mx-password")
		require.NoError(t, err)
		require.Equal(t, "value", v)
	})

	t.Run("With a parameter that has no value", func(t *testing.T) {
		store := client.NewSSMFromAPI(mockSSM{empty: true})
		_, err := store.Get(ctx, "/waf/mx-password")
		require.Error(t, err)
	})
}

type mockSSM struct {
	mappings map[string]string
	empty    bool
}

var _ client.GetParameterAPIClient = (*mockSSM)(nil)

func (s mockSSM) GetParameter(_ context.Context, i *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	if s.empty {
		return &ssm.GetParameterOutput{Parameter: &ssmTypes.Parameter{}}, nil
	}

	if i.WithDecryption == nil || !*i.WithDecryption {
		return nil, errors.New("decryption not requested")
	}

	value := s.mappings[*i.Name]
	if value == "" {
		return nil, errors.New("Not found")
	}

	return &ssm.GetParameterOutput{
		Parameter: &ssmTypes.Parameter{Value: &value},
	}, nil
}
