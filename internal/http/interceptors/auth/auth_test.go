package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	authmw "github.com/qabel/blockserver/internal/http/interceptors/auth"
	"github.com/qabel/blockserver/pkg/auth"
	"github.com/qabel/blockserver/pkg/errtypes"
)

type fakeResolver struct{}

func (fakeResolver) Auth(ctx context.Context, header string) (auth.User, error) {
	if header == "Token good" {
		return auth.User{UserID: 1, Active: true}, nil
	}
	return auth.User{}, errtypes.InvalidCredentials(header)
}

func (fakeResolver) GetUser(ctx context.Context, userID int64) (auth.User, error) {
	return auth.User{}, errtypes.NotFound("user")
}

func (fakeResolver) Bypass(header string) bool { return false }

func TestKnownHeaderResolvesUser(t *testing.T) {
	var gotOK bool
	var gotUser auth.User
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _, gotOK = auth.ContextGetUser(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Token good")
	rr := httptest.NewRecorder()

	authmw.New(fakeResolver{})(next).ServeHTTP(rr, req)

	require.True(t, gotOK)
	require.EqualValues(t, 1, gotUser.UserID)
}

func TestMissingHeaderPassesThroughUnresolved(t *testing.T) {
	var gotOK bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _, gotOK = auth.ContextGetUser(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()

	authmw.New(fakeResolver{})(next).ServeHTTP(rr, req)

	require.False(t, gotOK)
}

func TestBadHeaderIsRecordedButNotRejectedHere(t *testing.T) {
	var gotErr error
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotErr = auth.ContextGetAuthError(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Token wrong")
	rr := httptest.NewRecorder()

	authmw.New(fakeResolver{})(next).ServeHTTP(rr, req)

	require.Error(t, gotErr)
	require.Implements(t, (*errtypes.IsInvalidCredentials)(nil), gotErr)
}
