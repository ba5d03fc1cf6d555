package remote_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qabel/blockserver/pkg/auth/manager/remote"
	"github.com/qabel/blockserver/pkg/errtypes"
)

func TestAuthSendsSecretAndParsesUser(t *testing.T) {
	var gotSecret string
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecret = r.Header.Get("APISECRET")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"user_id":               7,
			"active":                true,
			"block_quota":           1024,
			"monthly_traffic_quota": 2048,
		})
	}))
	defer srv.Close()

	r, err := remote.New(map[string]interface{}{
		"host":       srv.URL,
		"api_secret": "s3cr3t",
	})
	require.NoError(t, err)

	u, err := r.Auth(context.Background(), "Token alice")
	require.NoError(t, err)
	require.EqualValues(t, 7, u.UserID)
	require.Equal(t, "s3cr3t", gotSecret)
	require.Equal(t, "Token alice", gotBody["auth"])
}

func TestAuthNotFoundIsInvalidCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r, err := remote.New(map[string]interface{}{"host": srv.URL, "api_secret": "s"})
	require.NoError(t, err)

	_, err = r.Auth(context.Background(), "Token nobody")
	require.Error(t, err)
	require.Implements(t, (*errtypes.IsInvalidCredentials)(nil), err)
}

func TestAuthUpstreamFailureIsAuthUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r, err := remote.New(map[string]interface{}{"host": srv.URL, "api_secret": "s"})
	require.NoError(t, err)

	_, err = r.Auth(context.Background(), "Token alice")
	require.Error(t, err)
	require.Implements(t, (*errtypes.IsAuthUpstream)(nil), err)
}

func TestHostRequired(t *testing.T) {
	_, err := remote.New(map[string]interface{}{"api_secret": "s"})
	require.Error(t, err)
}
