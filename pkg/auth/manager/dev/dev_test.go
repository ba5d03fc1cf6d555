package dev_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qabel/blockserver/pkg/auth/manager/dev"
	"github.com/qabel/blockserver/pkg/errtypes"
)

func TestAuthBypassTokenResolves(t *testing.T) {
	r, err := dev.New(map[string]interface{}{"bypass_token": "Token dev"})
	require.NoError(t, err)

	u, err := r.Auth(context.Background(), "Token dev")
	require.NoError(t, err)
	require.EqualValues(t, 1, u.UserID)
	require.True(t, u.Active)
}

func TestAuthWrongHeaderIsInvalidCredentials(t *testing.T) {
	r, err := dev.New(map[string]interface{}{"bypass_token": "Token dev"})
	require.NoError(t, err)

	_, err = r.Auth(context.Background(), "Token someone-else")
	require.Error(t, err)
	require.Implements(t, (*errtypes.IsInvalidCredentials)(nil), err)
}

func TestGetUserKnownAndUnknown(t *testing.T) {
	r, err := dev.New(map[string]interface{}{"user_id": 7})
	require.NoError(t, err)

	u, err := r.GetUser(context.Background(), 7)
	require.NoError(t, err)
	require.EqualValues(t, 7, u.UserID)

	_, err = r.GetUser(context.Background(), 8)
	require.Error(t, err)
	require.Implements(t, (*errtypes.IsNotFound)(nil), err)
}

func TestBypassReportsOnlyTheConfiguredToken(t *testing.T) {
	r, err := dev.New(map[string]interface{}{"bypass_token": "Token dev"})
	require.NoError(t, err)

	require.True(t, r.Bypass("Token dev"))
	require.False(t, r.Bypass("Token someone-else"))
}

func TestDefaultsApplyWhenUnconfigured(t *testing.T) {
	r, err := dev.New(nil)
	require.NoError(t, err)

	u, err := r.Auth(context.Background(), "Token dev")
	require.NoError(t, err)
	require.EqualValues(t, 1, u.UserID)
	require.EqualValues(t, 2*1024*1024*1024, u.BlockQuota)
}
