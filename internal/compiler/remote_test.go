package compiler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grader/internal/grading"
)

func remoteServer(t *testing.T, httpStatus int, body string, seen *remoteRequest) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(httpStatus)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRemoteRunnerSuccess(t *testing.T) {
	var seen remoteRequest
	server := remoteServer(t, http.StatusOK, `{"status":200,"output":"Brokerage Account\n0 - Exit"}`, &seen)
	runner := NewRemoteRunner(RemoteService{Name: "primary", URL: server.URL}, zerolog.Nop())

	result, err := runner.Attempt(context.Background(), "public class TransactionHistory {}", "public class PortfolioManager { public static void main(String[] a) {} }")

	require.NoError(t, err)
	require.Equal(t, "remote:primary", runner.Name())
	require.True(t, result.CompilationSuccess)
	require.True(t, result.ExecutionSuccess)
	require.Equal(t, "Brokerage Account\n0 - Exit", result.ExecutionOutput)

	require.Equal(t, "java", seen.LanguageID)
	require.Equal(t, grading.SyntheticStdin, seen.Stdin)
	require.Contains(t, seen.SourceText, "class TransactionHistory {}")
	require.NotContains(t, seen.SourceText, "public class TransactionHistory")
}

func TestRemoteRunnerRuntimeError(t *testing.T) {
	server := remoteServer(t, http.StatusOK, `{"status":200,"output":"Menu","error":"Exception in thread \"main\""}`, nil)

	result, err := NewRemoteRunner(RemoteService{URL: server.URL}, zerolog.Nop()).Attempt(context.Background(), "a", "b")

	require.NoError(t, err)
	require.True(t, result.CompilationSuccess)
	require.False(t, result.ExecutionSuccess)
	require.Equal(t, "Menu", result.ExecutionOutput)
}

func TestRemoteRunnerCompileFailure(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnprocessableEntity} {
		body, _ := json.Marshal(map[string]interface{}{"status": status, "output": "", "error": "Main.java:3: error: cannot find symbol"})
		server := remoteServer(t, http.StatusOK, string(body), nil)

		result, err := NewRemoteRunner(RemoteService{URL: server.URL}, zerolog.Nop()).Attempt(context.Background(), "a", "b")

		require.NoError(t, err)
		require.False(t, result.CompilationSuccess)
		require.Equal(t, "Main.java:3: error: cannot find symbol", result.CompilationErrors)
	}
}

func TestRemoteRunnerRejectsBadResponses(t *testing.T) {
	cases := map[string]struct {
		httpStatus int
		body       string
	}{
		"server error":    {http.StatusInternalServerError, `{"status":500,"output":""}`},
		"missing output":  {http.StatusOK, `{"status":200}`},
		"wrong type":      {http.StatusOK, `{"status":"200","output":"x"}`},
		"not json":        {http.StatusOK, `<html>busy</html>`},
		"remote overload": {http.StatusOK, `{"status":503,"output":""}`},
	}

	for name, tc := range cases {
		server := remoteServer(t, tc.httpStatus, tc.body, nil)

		_, err := NewRemoteRunner(RemoteService{URL: server.URL}, zerolog.Nop()).Attempt(context.Background(), "a", "b")

		require.Error(t, err, name)
	}
}

func TestRemoteRunnerUnreachable(t *testing.T) {
	server := remoteServer(t, http.StatusOK, `{}`, nil)
	url := server.URL
	server.Close()

	_, err := NewRemoteRunner(RemoteService{URL: url, Timeout: time.Second}, zerolog.Nop()).Attempt(context.Background(), "a", "b")

	require.Error(t, err)
}

func TestRemoteRunnerHonoursRateLimit(t *testing.T) {
	server := remoteServer(t, http.StatusOK, `{"status":200,"output":"ok"}`, nil)
	runner := NewRemoteRunner(RemoteService{URL: server.URL, RatePerMinute: 1, Timeout: 200 * time.Millisecond}, zerolog.Nop())

	_, err := runner.Attempt(context.Background(), "a", "b")
	require.NoError(t, err)

	_, err = runner.Attempt(context.Background(), "a", "b")
	require.Error(t, err, "second call within the minute should wait past the timeout")
}
