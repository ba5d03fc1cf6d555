package trace

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qabel/blockserver/pkg/appctx"
)

func TestTraceFromHeaderIsPreserved(t *testing.T) {
	var gotTrace string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTrace = appctx.GetTrace(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Trace-ID", "abc-123")
	rr := httptest.NewRecorder()

	New()(next).ServeHTTP(rr, req)

	require.Equal(t, "abc-123", gotTrace)
	require.Equal(t, "abc-123", rr.Header().Get("X-Trace-ID"))
}

func TestTraceIsGeneratedWhenMissing(t *testing.T) {
	var gotTrace string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTrace = appctx.GetTrace(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()

	New()(next).ServeHTTP(rr, req)

	require.Len(t, gotTrace, 36)
	require.Equal(t, gotTrace, rr.Header().Get("X-Trace-ID"))
}
