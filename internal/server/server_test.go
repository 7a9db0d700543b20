package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/assetgraph/internal/engine"
	"github.com/vk/assetgraph/internal/registry"
	"github.com/vk/assetgraph/internal/testutil"
)

func newTestServer(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.RegisterModules(testutil.NewScriptModule()))

	logs := &testutil.SafeBuffer{}
	opts.Logger = slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := New(reg, engine.Options{Workers: 2}, opts)

	ts := httptest.NewServer(s)
	t.Cleanup(func() {
		s.Hub().Close()
		ts.Close()
	})
	return s, ts
}

func post(t *testing.T, url, contentType, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, contentType, strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out), "body: %s", data)
	return resp, out
}

const linearGraph = `{
	"nodes": [
		{"id": "a", "type": "Emit", "params": {"value": 1, "state": {"ticker": "AAPL"}}},
		{"id": "b", "type": "Emit", "params": {"value": 2}}
	],
	"edges": [{"from": "a", "to": "b"}]
}`

func TestRootAndHealth(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	var root map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&root))
	assert.Equal(t, "AssetGraph engine is running", root["message"])

	resp, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK\n", string(body))
}

func TestNodeTypes(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp, err := http.Get(ts.URL + "/api/node-types")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string][]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, []string{"Emit", "Fail", "Panic", "Sleep"}, out["types"])
}

func TestExecute(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	t.Run("success returns state", func(t *testing.T) {
		resp, out := post(t, ts.URL+"/api/execute-graph", "application/json", linearGraph)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("X-Run-ID"))
		assert.Equal(t, "AAPL", out["ticker"])
		assert.Equal(t, []any{}, out["errors"])
	})

	t.Run("nodes mode", func(t *testing.T) {
		resp, out := post(t, ts.URL+"/api/execute-graph?mode=nodes", "application/json", linearGraph)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		b, ok := out["b"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "done", b["status"])
		assert.Equal(t, float64(2), b["result"])
	})

	t.Run("node failure returns 500 with payload", func(t *testing.T) {
		body := `{"nodes": [{"id": "bad", "type": "Fail", "params": {"message": "boom"}}]}`
		resp, out := post(t, ts.URL+"/api/execute-graph", "application/json", body)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

		errs, ok := out["errors"].([]any)
		require.True(t, ok)
		require.Len(t, errs, 1)
		entry := errs[0].(map[string]any)
		assert.Equal(t, "bad", entry["node"])
		assert.Equal(t, "execution", entry["kind"])
	})

	t.Run("yaml body", func(t *testing.T) {
		body := "nodes:\n  - id: only\n    type: Emit\n    params:\n      state:\n        ticker: MSFT\n"
		resp, out := post(t, ts.URL+"/api/execute-graph", "application/yaml", body)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "MSFT", out["ticker"])
	})

	testCases := []struct {
		name     string
		path     string
		body     string
		wantKind string
		wantText string
	}{
		{
			name:     "cycle",
			path:     "/api/execute-graph",
			body:     `{"nodes": [{"id": "x", "type": "Emit"}, {"id": "y", "type": "Emit"}], "edges": [{"from": "x", "to": "y"}, {"from": "y", "to": "x"}]}`,
			wantKind: "cycle",
			wantText: "graph contains a cycle",
		},
		{
			name:     "dangling edge",
			path:     "/api/execute-graph",
			body:     `{"nodes": [{"id": "x", "type": "Emit"}], "edges": [{"from": "x", "to": "ghost"}]}`,
			wantKind: "validation",
			wantText: "ghost",
		},
		{
			name:     "malformed json",
			path:     "/api/execute-graph",
			body:     `{"nodes": [`,
			wantText: "failed to parse JSON",
		},
		{
			name:     "empty body",
			path:     "/api/execute-graph",
			body:     " ",
			wantText: "request body is empty",
		},
		{
			name:     "bad mode",
			path:     "/api/execute-graph?mode=all",
			body:     linearGraph,
			wantText: "invalid result mode",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, out := post(t, ts.URL+tc.path, "application/json", tc.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, out["detail"], tc.wantText)
			if tc.wantKind != "" {
				assert.Equal(t, tc.wantKind, out["kind"])
			}
		})
	}
}

func TestExecute_DefaultResultMode(t *testing.T) {
	_, ts := newTestServer(t, Options{ResultMode: engine.ResultModeNodes})

	resp, out := post(t, ts.URL+"/api/execute-graph", "application/json", linearGraph)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, out, "a")
	assert.NotContains(t, out, "errors")
}

func TestExecute_BodyTooLarge(t *testing.T) {
	_, ts := newTestServer(t, Options{MaxBodyBytes: 16})

	resp, out := post(t, ts.URL+"/api/execute-graph", "application/json", linearGraph)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, out["detail"], "exceeds 16 bytes")
}

func TestValidate(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp, out := post(t, ts.URL+"/api/validate-graph", "application/json",
		`{"nodes": [{"id": "b", "type": "Mystery"}, {"id": "a", "type": "Emit"}], "edges": [{"from": "a", "to": "b"}]}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["valid"])
	assert.Equal(t, []any{"a", "b"}, out["order"])
	assert.Equal(t, []any{"Mystery"}, out["unknownTypes"])

	resp, out = post(t, ts.URL+"/api/validate-graph", "application/json",
		`{"nodes": [{"id": "a", "type": "Emit"}], "edges": [{"from": "a", "to": "a"}]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, out["valid"])
	assert.Equal(t, "cycle", out["kind"])
}

func TestWebSocketStreamsNodeUpdates(t *testing.T) {
	s, ts := newTestServer(t, Options{})

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.Hub().Clients() == 1 }, time.Second, 10*time.Millisecond)

	resp, _ := post(t, ts.URL+"/api/execute-graph", "application/json",
		`{"nodes": [{"id": "ok", "type": "Emit"}, {"id": "bad", "type": "Fail"}]}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	// Each node goes running then done or error.
	seen := map[string][]string{}
	types := map[string]bool{}
	for i := 0; i < 4; i++ {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg struct {
			Type string       `json:"type"`
			Data engine.Event `json:"data"`
		}
		require.NoError(t, conn.ReadJSON(&msg))
		types[msg.Type] = true
		seen[msg.Data.NodeID] = append(seen[msg.Data.NodeID], string(msg.Data.Status))
	}

	assert.Equal(t, []string{"running", "done"}, seen["ok"])
	assert.Equal(t, []string{"running", "error"}, seen["bad"])
	assert.True(t, types[MessageGraphUpdate])
	assert.True(t, types[MessageError])
}

func TestHub_PublishWithoutClients(t *testing.T) {
	h := NewHub(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	assert.NotPanics(t, func() {
		h.Publish(Message{Type: MessageGraphUpdate, Data: "x"})
		h.Close()
		h.Publish(Message{Type: MessageGraphUpdate, Data: "y"})
	})
	assert.Zero(t, h.Clients())
}

func TestServe_GracefulShutdown(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
