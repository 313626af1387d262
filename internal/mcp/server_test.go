package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ganaudit/internal/cache"
	"ganaudit/internal/config"
	"ganaudit/internal/judge"
	"ganaudit/internal/orchestrator"
	"ganaudit/internal/progress"
	"ganaudit/internal/sanitize"
	"ganaudit/internal/store"
	"ganaudit/internal/types"
)

func newTestServer(t *testing.T) (*Server, *bytes.Buffer) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.StateDir = t.TempDir()

	sessions, err := store.New(cfg.StateDir, cfg.Store.WriteRetries)
	require.NoError(t, err)

	orch, err := orchestrator.New(cfg, orchestrator.Deps{
		Store:     sessions,
		Cache:     cache.New(cfg.Cache.Capacity, cfg.Cache.TTL),
		Tracker:   progress.New(cfg.Progress.EnableAfter, cfg.Progress.MaxTracked),
		Sanitizer: sanitize.New(cfg.Sanitizer),
		Judge:     judge.NewHeuristicJudge(),
		Contexts:  judge.StaticContextBuilder{},
	})
	require.NoError(t, err)
	t.Cleanup(orch.Close)

	out := &bytes.Buffer{}
	return NewServer(orch, out), out
}

// runSession feeds newline-delimited requests and returns the decoded
// responses keyed by request id.
func runSession(t *testing.T, srv *Server, out *bytes.Buffer, requests ...string) map[string]rpcResponse {
	t.Helper()
	in := strings.NewReader(strings.Join(requests, "\n") + "\n")
	require.NoError(t, srv.Serve(context.Background(), in))

	responses := make(map[string]rpcResponse)
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var resp rpcResponse
		require.NoError(t, json.Unmarshal([]byte(line), &resp))
		if resp.ID != nil {
			responses[string(*resp.ID)] = resp
		}
	}
	return responses
}

func TestInitializeAndToolsList(t *testing.T) {
	srv, out := newTestServer(t)
	responses := runSession(t, srv, out,
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
	)

	init, ok := responses["1"]
	require.True(t, ok)
	require.Nil(t, init.Error)
	raw, _ := json.Marshal(init.Result)
	assert.Contains(t, string(raw), "ganaudit")

	list, ok := responses["2"]
	require.True(t, ok)
	raw, _ = json.Marshal(list.Result)
	assert.Contains(t, string(raw), toolName)
}

func TestToolCallReturnsReview(t *testing.T) {
	srv, out := newTestServer(t)
	call := `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"gansauditor_codex","arguments":{"sessionId":"s1","thoughtNumber":1,"artifact":"func x() { panic(1) }"}}}`

	responses := runSession(t, srv, out, call)
	resp, ok := responses["5"]
	require.True(t, ok)
	require.Nil(t, resp.Error)

	raw, _ := json.Marshal(resp.Result)
	var result toolResult
	require.NoError(t, json.Unmarshal(raw, &result))
	require.Len(t, result.Content, 1)

	var review types.StructuredReview
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &review))
	assert.NotZero(t, review.OverallScore)
	assert.NotEmpty(t, review.Dimensions)
	assert.True(t, review.Completion.NextThoughtNeeded)
}

func TestToolCallValidationErrors(t *testing.T) {
	srv, out := newTestServer(t)
	responses := runSession(t, srv, out,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"gansauditor_codex","arguments":{"thoughtNumber":0,"artifact":"x"}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"unknown_tool","arguments":{}}}`,
		`{"jsonrpc":"2.0","id":3,"method":"no/such/method"}`,
	)

	require.NotNil(t, responses["1"].Error)
	assert.Equal(t, codeInvalidParams, responses["1"].Error.Code)

	require.NotNil(t, responses["2"].Error)
	assert.Equal(t, codeInvalidParams, responses["2"].Error.Code)

	require.NotNil(t, responses["3"].Error)
	assert.Equal(t, codeMethodNotFound, responses["3"].Error.Code)
}

func TestParseErrorResponse(t *testing.T) {
	srv, out := newTestServer(t)
	runSession(t, srv, out, `{broken json`)

	assert.Contains(t, out.String(), `-32700`)
}
