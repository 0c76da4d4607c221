package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   string
		out  string
	}{
		{"numeric", `42`, `42`},
		{"string", `"req-7"`, `"req-7"`},
		{"numeric string keeps quotes", `"42"`, `"42"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id RequestID
			require.NoError(t, json.Unmarshal([]byte(tt.in), &id))
			got, err := json.Marshal(id)
			require.NoError(t, err)
			assert.Equal(t, tt.out, string(got))
		})
	}
}

func TestRequestIDKeyDistinguishesNumberFromString(t *testing.T) {
	var numeric, str RequestID
	require.NoError(t, json.Unmarshal([]byte(`5`), &numeric))
	require.NoError(t, json.Unmarshal([]byte(`"5"`), &str))
	assert.NotEqual(t, numeric.Key(), str.Key())
}

func TestRequestIDRejectsInvalid(t *testing.T) {
	for _, in := range []string{`1.5`, `true`, `[1]`, `{"a":1}`} {
		var id RequestID
		assert.Error(t, json.Unmarshal([]byte(in), &id), "input %s", in)
	}
}

func TestNewRequest(t *testing.T) {
	req, err := NewRequest(NewIntID(1), MethodToolsCall, map[string]any{"name": "echo"})
	require.NoError(t, err)
	assert.Equal(t, JSONRPCVersion, req.JSONRPC)
	assert.Equal(t, "n:1", req.ID.Key())
	require.NoError(t, req.Validate())

	var params map[string]any
	require.NoError(t, json.Unmarshal(req.Params, &params))
	assert.Equal(t, "echo", params["name"])
}

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"missing id", Request{JSONRPC: JSONRPCVersion, Method: "ping"}},
		{"missing method", Request{JSONRPC: JSONRPCVersion, ID: NewIntID(1)}},
		{"wrong version", Request{JSONRPC: "1.0", ID: NewIntID(1), Method: "ping"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.req.Validate())
		})
	}
}

func TestNewResponseAlwaysCarriesResult(t *testing.T) {
	resp, err := NewResponse(NewIntID(3), nil)
	require.NoError(t, err)
	require.NoError(t, resp.Validate())
	assert.JSONEq(t, `{}`, string(resp.Result))
}

func TestNewErrorResponsePassesCodeThrough(t *testing.T) {
	resp, err := NewErrorResponse(NewStringID("a"), -32099, "custom failure", map[string]any{"hint": "retry"})
	require.NoError(t, err)
	require.NoError(t, resp.Validate())
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrorCode(-32099), resp.Error.Code)
	assert.Equal(t, "custom failure", resp.Error.Message)
	assert.JSONEq(t, `{"hint":"retry"}`, string(resp.Error.Data))
}

func TestResponseValidateRequiresTerminalMember(t *testing.T) {
	resp := Response{JSONRPC: JSONRPCVersion, ID: NewIntID(1)}
	assert.Error(t, resp.Validate())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		data string
		kind MessageKind
		ok   bool
	}{
		{"request", `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`, KindRequest, true},
		{"string id request", `{"jsonrpc":"2.0","id":"a","method":"ping"}`, KindRequest, true},
		{"response", `{"jsonrpc":"2.0","id":1,"result":{}}`, KindResponse, true},
		{"error response", `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"nope"}}`, KindResponse, true},
		{"notification", `{"jsonrpc":"2.0","method":"notifications/progress","params":{}}`, KindNotification, true},
		{"null id is not a request", `{"jsonrpc":"2.0","id":null,"method":"ping"}`, KindNotification, true},
		{"malformed json", `{"jsonrpc":`, KindInvalid, false},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"ping"}`, KindInvalid, false},
		{"no shape", `{"jsonrpc":"2.0","id":1}`, KindInvalid, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, err := Classify([]byte(tt.data))
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestErrorImplementsError(t *testing.T) {
	e := &Error{Code: MethodNotFound, Message: "no such method"}
	assert.Contains(t, e.Error(), "no such method")
	assert.Contains(t, e.Error(), "-32601")
}
