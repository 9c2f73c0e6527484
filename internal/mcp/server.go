// Package mcp implements a JSON-RPC 2.0 server over stdio for editor
// integrations: tools/list, tools/call, prompts/list, prompts/get, and
// initialize, framed as newline-delimited JSON per request/response.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/wtokarzewski/janus-agent/internal/skills"
	"github.com/wtokarzewski/janus-agent/internal/tools"
)

// Standard JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Server serves the editor-facing tool and prompt catalog over stdio.
type Server struct {
	tools    *tools.Registry
	skills   *skills.Catalog
	callCtx  tools.CallContext
	initDone bool
}

// NewServer builds a Server exposing reg's tools and cat's skills as
// prompts, executing tool calls with callCtx.
func NewServer(reg *tools.Registry, cat *skills.Catalog, callCtx tools.CallContext) *Server {
	return &Server{tools: reg, skills: cat, callCtx: callCtx}
}

// Serve reads one JSON request per line from r and writes one JSON
// response per line to w, until r is exhausted or ctx is done.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeError(enc, nil, codeParseError, "parse error: "+err.Error())
			continue
		}
		if req.Method == "notifications/initialized" {
			continue // no reply expected for notifications
		}

		result, rpcErr := s.dispatch(ctx, req)
		if rpcErr != nil {
			s.writeError(enc, req.ID, rpcErr.Code, rpcErr.Message)
			continue
		}
		if err := enc.Encode(response{JSONRPC: "2.0", ID: req.ID, Result: result}); err != nil {
			slog.Error("mcp: failed to write response", "error", err)
			return err
		}
	}
	return scanner.Err()
}

func (s *Server) writeError(enc *json.Encoder, id json.RawMessage, code int, msg string) {
	if err := enc.Encode(response{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: msg}}); err != nil {
		slog.Error("mcp: failed to write error response", "error", err)
	}
}

func (s *Server) dispatch(ctx context.Context, req request) (any, *rpcError) {
	switch req.Method {
	case "initialize":
		s.initDone = true
		return map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo":      map[string]any{"name": "janus", "version": "1.0"},
			"capabilities": map[string]any{
				"tools":   map[string]any{},
				"prompts": map[string]any{},
			},
		}, nil
	case "tools/list":
		return map[string]any{"tools": s.tools.Definitions(s.callCtx)}, nil
	case "tools/call":
		return s.handleToolsCall(ctx, req.Params)
	case "prompts/list":
		return map[string]any{"prompts": s.listPrompts()}, nil
	case "prompts/get":
		return s.handlePromptsGet(req.Params)
	default:
		return nil, &rpcError{Code: codeMethodNotFound, Message: "method not found: " + req.Method}
	}
}

type toolsCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (s *Server) handleToolsCall(ctx context.Context, raw json.RawMessage) (any, *rpcError) {
	var params toolsCallParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: "invalid tools/call params: " + err.Error()}
	}
	if params.Name == "" {
		return nil, &rpcError{Code: codeInvalidParams, Message: "tools/call requires a name"}
	}

	result := s.tools.Execute(ctx, params.Name, params.Arguments, s.callCtx)
	isError := len(result) >= 6 && result[:6] == "Error:"
	return map[string]any{
		"content": []map[string]any{{"type": "text", "text": result}},
		"isError": isError,
	}, nil
}

func (s *Server) listPrompts() []map[string]any {
	out := make([]map[string]any, 0)
	for _, sk := range s.skills.Visible(s.callCtx.SkillAllow, s.callCtx.SkillDeny) {
		out = append(out, map[string]any{
			"name":        sk.Name,
			"description": sk.Description,
		})
	}
	return out
}

type promptsGetParams struct {
	Name string `json:"name"`
}

func (s *Server) handlePromptsGet(raw json.RawMessage) (any, *rpcError) {
	var params promptsGetParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: "invalid prompts/get params: " + err.Error()}
	}
	sk, ok := s.skills.Get(params.Name)
	if !ok {
		return nil, &rpcError{Code: codeInvalidParams, Message: fmt.Sprintf("unknown prompt %q", params.Name)}
	}
	return map[string]any{
		"description": sk.Description,
		"messages": []map[string]any{
			{"role": "user", "content": map[string]any{"type": "text", "text": sk.Body}},
		},
	}, nil
}
