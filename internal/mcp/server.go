package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"ganaudit/internal/judge"
	"ganaudit/internal/logging"
	"ganaudit/internal/orchestrator"
	"ganaudit/internal/types"
)

// toolName is the single audit tool exposed to MCP clients.
const toolName = "gansauditor_codex"

// Server reads newline-delimited JSON-RPC requests from in and writes
// responses to out. Tool calls run concurrently; writes are serialized.
type Server struct {
	orch *orchestrator.Orchestrator

	out   io.Writer
	outMu sync.Mutex
	wg    sync.WaitGroup
}

// NewServer creates a server bound to an orchestrator.
func NewServer(orch *orchestrator.Orchestrator, out io.Writer) *Server {
	return &Server{orch: orch, out: out}
}

// Serve processes requests until in closes or ctx is cancelled.
func (s *Server) Serve(ctx context.Context, in io.Reader) error {
	logging.Get(logging.CategoryMCP).Info("stdio server started")

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req rpcRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.write(rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: codeParseError, Message: err.Error()}})
			continue
		}
		if req.JSONRPC != "2.0" {
			s.respondErr(req.ID, codeInvalidRequest, "jsonrpc must be 2.0")
			continue
		}

		switch req.Method {
		case "initialize":
			s.respond(req.ID, serverCapabilities{
				ProtocolVersion: "2024-11-05",
				ServerInfo:      serverInfo{Name: "ganaudit", Version: judge.Version},
				Capabilities:    map[string]interface{}{"tools": map[string]interface{}{}},
			})
		case "notifications/initialized", "initialized":
			// Notification, no response.
		case "tools/list":
			s.respond(req.ID, map[string]interface{}{"tools": []toolInfo{auditToolInfo()}})
		case "tools/call":
			// Tool calls may block on the queue; keep the reader loop free.
			s.wg.Add(1)
			go func(req rpcRequest) {
				defer s.wg.Done()
				s.handleCall(ctx, req)
			}(req)
		case "ping":
			s.respond(req.ID, map[string]interface{}{})
		default:
			if req.ID != nil {
				s.respondErr(req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %q", req.Method))
			}
		}
	}

	s.wg.Wait()
	logging.Get(logging.CategoryMCP).Info("stdio server stopped")
	return scanner.Err()
}

// handleCall executes one tools/call request.
func (s *Server) handleCall(ctx context.Context, req rpcRequest) {
	var params callParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.respondErr(req.ID, codeInvalidParams, err.Error())
		return
	}
	if params.Name != toolName {
		s.respondErr(req.ID, codeInvalidParams, fmt.Sprintf("unknown tool %q", params.Name))
		return
	}

	var thought types.Thought
	if err := json.Unmarshal(params.Arguments, &thought); err != nil {
		s.respondErr(req.ID, codeInvalidParams, err.Error())
		return
	}

	review, err := s.orch.Audit(ctx, thought, thought.SessionID, orchestrator.Options{})
	if err != nil {
		switch {
		case errors.Is(err, types.ErrQueueFull):
			s.respondErr(req.ID, codeQueueFull, err.Error())
		case errors.Is(err, types.ErrSessionLocked):
			s.respondErr(req.ID, codeSessionLocked, err.Error())
		case errors.Is(err, types.ErrInvalidThought):
			s.respondErr(req.ID, codeInvalidParams, err.Error())
		default:
			s.respondErr(req.ID, codeInternal, err.Error())
		}
		return
	}

	payload, err := json.Marshal(review)
	if err != nil {
		s.respondErr(req.ID, codeInternal, err.Error())
		return
	}
	s.respond(req.ID, toolResult{Content: []contentBlock{{Type: "text", Text: string(payload)}}})
}

func (s *Server) respond(id *json.RawMessage, result interface{}) {
	if id == nil {
		return
	}
	s.write(rpcResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func (s *Server) respondErr(id *json.RawMessage, code int, msg string) {
	if id == nil {
		return
	}
	logging.Get(logging.CategoryMCP).Warn("request failed (%d): %s", code, msg)
	s.write(rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: msg}})
}

func (s *Server) write(resp rpcResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		logging.Get(logging.CategoryMCP).Error("marshal response: %v", err)
		return
	}
	s.outMu.Lock()
	defer s.outMu.Unlock()
	s.out.Write(append(data, '\n'))
}

// auditToolInfo describes the audit tool's input schema.
func auditToolInfo() toolInfo {
	return toolInfo{
		Name:        toolName,
		Description: "Submit an artifact revision for adversarial audit; returns a structured review with score, verdict, evidence and loop-control guidance.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"sessionId":        map[string]interface{}{"type": "string"},
				"branchId":         map[string]interface{}{"type": "string"},
				"thoughtNumber":    map[string]interface{}{"type": "integer", "minimum": 1},
				"artifact":         map[string]interface{}{"type": "string"},
				"inlineConfigText": map[string]interface{}{"type": "string"},
			},
			"required": []string{"thoughtNumber", "artifact"},
		},
	}
}
