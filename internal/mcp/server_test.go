package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/wtokarzewski/janus-agent/internal/gate"
	"github.com/wtokarzewski/janus-agent/internal/skills"
	"github.com/wtokarzewski/janus-agent/internal/tools"
)

type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "Echoes its input back." }
func (echoTool) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{"text": map[string]any{"type": "string"}}}
}
func (echoTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	return tools.GetString(args, "text", ""), nil
}

func newTestServer() *Server {
	reg := tools.NewRegistry(gate.New(nil), nil)
	reg.Register(echoTool{})
	cat := skills.Load()
	return NewServer(reg, cat, tools.CallContext{})
}

func serveOne(t *testing.T, s *Server, req string) map[string]any {
	t.Helper()
	var out bytes.Buffer
	if err := s.Serve(context.Background(), strings.NewReader(req+"\n"), &out); err != nil {
		t.Fatalf("Serve() error: %v", err)
	}
	var resp map[string]any
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshalling response %q: %v", out.String(), err)
	}
	return resp
}

func TestInitializeReturnsCapabilities(t *testing.T) {
	s := newTestServer()
	resp := serveOne(t, s, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	result, ok := resp["result"].(map[string]any)
	if !ok {
		t.Fatalf("expected a result object, got %+v", resp)
	}
	if result["protocolVersion"] == "" {
		t.Error("expected a non-empty protocolVersion")
	}
}

func TestToolsListIncludesRegisteredTool(t *testing.T) {
	s := newTestServer()
	resp := serveOne(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	result := resp["result"].(map[string]any)
	toolList := result["tools"].([]any)
	if len(toolList) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(toolList))
	}
	def := toolList[0].(map[string]any)["function"].(map[string]any)
	if def["name"] != "echo" {
		t.Errorf("name = %v, want echo", def["name"])
	}
}

func TestToolsCallExecutesAndReturnsContent(t *testing.T) {
	s := newTestServer()
	resp := serveOne(t, s, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"echo","arguments":{"text":"hi"}}}`)
	result := resp["result"].(map[string]any)
	if result["isError"] != false {
		t.Errorf("isError = %v, want false", result["isError"])
	}
	content := result["content"].([]any)[0].(map[string]any)
	if content["text"] != "hi" {
		t.Errorf("text = %v, want hi", content["text"])
	}
}

func TestToolsCallUnknownToolReportsError(t *testing.T) {
	s := newTestServer()
	resp := serveOne(t, s, `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"nope","arguments":{}}}`)
	result := resp["result"].(map[string]any)
	if result["isError"] != true {
		t.Errorf("isError = %v, want true for an unknown tool", result["isError"])
	}
}

func TestUnknownMethodReturnsMethodNotFound(t *testing.T) {
	s := newTestServer()
	resp := serveOne(t, s, `{"jsonrpc":"2.0","id":5,"method":"bogus"}`)
	errObj, ok := resp["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected an error object, got %+v", resp)
	}
	if int(errObj["code"].(float64)) != codeMethodNotFound {
		t.Errorf("code = %v, want %d", errObj["code"], codeMethodNotFound)
	}
}

func TestMalformedJSONReturnsParseError(t *testing.T) {
	s := newTestServer()
	var out bytes.Buffer
	if err := s.Serve(context.Background(), strings.NewReader("{not json}\n"), &out); err != nil {
		t.Fatalf("Serve() error: %v", err)
	}
	var resp map[string]any
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}
	errObj := resp["error"].(map[string]any)
	if int(errObj["code"].(float64)) != codeParseError {
		t.Errorf("code = %v, want %d", errObj["code"], codeParseError)
	}
}

func TestNotificationsInitializedProducesNoResponse(t *testing.T) {
	s := newTestServer()
	var out bytes.Buffer
	req := `{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n" +
		`{"jsonrpc":"2.0","id":9,"method":"initialize"}` + "\n"
	if err := s.Serve(context.Background(), strings.NewReader(req), &out); err != nil {
		t.Fatalf("Serve() error: %v", err)
	}
	dec := json.NewDecoder(&out)
	count := 0
	for dec.More() {
		var msg map[string]any
		if err := dec.Decode(&msg); err != nil {
			t.Fatalf("decoding response %d: %v", count, err)
		}
		count++
	}
	if count != 1 {
		t.Errorf("expected exactly 1 response, got %d", count)
	}
}
