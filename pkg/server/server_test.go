package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcperrors "github.com/mcpwire/mcpwire/pkg/errors"
	"github.com/mcpwire/mcpwire/pkg/pagination"
	"github.com/mcpwire/mcpwire/pkg/protocol"
	"github.com/mcpwire/mcpwire/pkg/session"
	"github.com/mcpwire/mcpwire/pkg/transport"
)

// connect serves srv over one end of a pipe and returns a raw session
// acting as the client peer on the other end. The server session is built
// before connect returns, so later registry mutations reach it regardless
// of goroutine scheduling.
func connect(t *testing.T, srv *Server) *session.Session {
	t.Helper()
	serverEnd, clientEnd := transport.Pipe()
	sess := srv.NewSession(serverEnd)
	go func() { _ = sess.Start(context.Background()) }()
	cli := session.New(clientEnd)
	go func() { _ = cli.Start(context.Background()) }()
	t.Cleanup(func() { _ = cli.Close() })
	return cli
}

func call(t *testing.T, cli *session.Session, method string, params, out any) {
	t.Helper()
	raw, err := cli.Call(context.Background(), method, params, session.WithTimeout(5*time.Second))
	require.NoError(t, err)
	if out != nil {
		require.NoError(t, json.Unmarshal(raw, out))
	}
}

func callExpectCode(t *testing.T, cli *session.Session, method string, params any, code int) {
	t.Helper()
	_, err := cli.Call(context.Background(), method, params, session.WithTimeout(5*time.Second))
	var rpcErr *protocol.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, protocol.ErrorCode(code), rpcErr.Code)
}

func echoTool() (protocol.Tool, ToolFunc) {
	tool := protocol.Tool{Name: "echo", Description: "repeats its input"}
	handler := func(ctx context.Context, args json.RawMessage, progress *session.ProgressReporter) (*protocol.CallToolResult, error) {
		var in struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, mcperrors.NewInvalidParams("echo wants a text argument")
		}
		return &protocol.CallToolResult{Content: []protocol.Content{protocol.TextContent(in.Text)}}, nil
	}
	return tool, handler
}

func TestInitializeHandshake(t *testing.T) {
	srv := New(protocol.Implementation{Name: "test-server", Version: "0.1.0"},
		WithInstructions("be gentle"))
	cli := connect(t, srv)

	var result protocol.InitializeResult
	call(t, cli, protocol.MethodInitialize, protocol.InitializeParams{
		ProtocolVersion: protocol.ProtocolVersion,
		ClientInfo:      protocol.Implementation{Name: "test-client", Version: "0.0.1"},
	}, &result)

	assert.Equal(t, protocol.ProtocolVersion, result.ProtocolVersion)
	assert.Equal(t, "test-server", result.ServerInfo.Name)
	assert.Equal(t, "be gentle", result.Instructions)
	require.NotNil(t, result.Capabilities.Tools)
	assert.True(t, result.Capabilities.Tools.ListChanged)
	require.NotNil(t, result.Capabilities.Resources)
	assert.True(t, result.Capabilities.Resources.Subscribe)
	require.NotNil(t, result.Capabilities.Logging)

	require.NoError(t, cli.Notify(protocol.NotificationInitialized, nil))
	call(t, cli, protocol.MethodPing, nil, nil)
}

func TestToolsListPaginationFollowsCursor(t *testing.T) {
	srv := New(protocol.Implementation{Name: "s", Version: "1"}, WithPageSize(2))
	tool, handler := echoTool()
	srv.AddTool(tool, handler)
	srv.AddTool(protocol.Tool{Name: "alpha"}, handler)
	srv.AddTool(protocol.Tool{Name: "zulu"}, handler)
	cli := connect(t, srv)

	var first protocol.ListToolsResult
	call(t, cli, protocol.MethodToolsList, protocol.ListToolsParams{}, &first)
	require.Len(t, first.Tools, 2)
	assert.Equal(t, "alpha", first.Tools[0].Name)
	assert.Equal(t, "echo", first.Tools[1].Name)
	require.True(t, pagination.HasNextPage(first.PaginatedResult))

	var second protocol.ListToolsResult
	call(t, cli, protocol.MethodToolsList, protocol.ListToolsParams{
		PaginatedParams: pagination.PageAfter(first.NextCursor),
	}, &second)
	require.Len(t, second.Tools, 1)
	assert.Equal(t, "zulu", second.Tools[0].Name)
	assert.False(t, pagination.HasNextPage(second.PaginatedResult))

	// The pages are disjoint.
	assert.NotContains(t, []string{first.Tools[0].Name, first.Tools[1].Name}, second.Tools[0].Name)
}

func TestCursorValidation(t *testing.T) {
	srv := New(protocol.Implementation{Name: "s", Version: "1"}, WithPageSize(1))
	_, handler := echoTool()
	srv.AddTool(protocol.Tool{Name: "a"}, handler)
	srv.AddTool(protocol.Tool{Name: "b"}, handler)
	srv.AddPrompt(protocol.Prompt{Name: "p1"}, nil)
	srv.AddPrompt(protocol.Prompt{Name: "p2"}, nil)
	cli := connect(t, srv)

	// Garbage is rejected.
	garbage := protocol.Cursor("!!! not base64 !!!")
	callExpectCode(t, cli, protocol.MethodToolsList, protocol.ListToolsParams{
		PaginatedParams: pagination.PageAfter(garbage),
	}, mcperrors.CodeInvalidCursor)

	// A cursor from one listing is invalid against another.
	var prompts protocol.ListPromptsResult
	call(t, cli, protocol.MethodPromptsList, protocol.ListPromptsParams{}, &prompts)
	require.True(t, pagination.HasNextPage(prompts.PaginatedResult))
	callExpectCode(t, cli, protocol.MethodToolsList, protocol.ListToolsParams{
		PaginatedParams: pagination.PageAfter(prompts.NextCursor),
	}, mcperrors.CodeInvalidCursor)
}

func TestToolsCall(t *testing.T) {
	srv := New(protocol.Implementation{Name: "s", Version: "1"})
	tool, handler := echoTool()
	srv.AddTool(tool, handler)
	cli := connect(t, srv)

	var result protocol.CallToolResult
	call(t, cli, protocol.MethodToolsCall, protocol.CallToolParams{
		Name:      "echo",
		Arguments: json.RawMessage(`{"text":"hello"}`),
	}, &result)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "hello", result.Content[0].Text)

	callExpectCode(t, cli, protocol.MethodToolsCall, protocol.CallToolParams{Name: "nope"},
		mcperrors.CodeInvalidParams)
}

func TestToolCallStreamsProgress(t *testing.T) {
	srv := New(protocol.Implementation{Name: "s", Version: "1"})
	srv.AddTool(protocol.Tool{Name: "longRunning"},
		func(ctx context.Context, args json.RawMessage, progress *session.ProgressReporter) (*protocol.CallToolResult, error) {
			require.NotNil(t, progress)
			total := 2.0
			if err := progress.Report(1, &total, ""); err != nil {
				return nil, err
			}
			if err := progress.Report(2, &total, ""); err != nil {
				return nil, err
			}
			return &protocol.CallToolResult{Content: []protocol.Content{protocol.TextContent("done")}}, nil
		})
	cli := connect(t, srv)

	var events []float64
	raw, err := cli.Call(context.Background(), protocol.MethodToolsCall,
		protocol.CallToolParams{Name: "longRunning"},
		session.WithProgress(protocol.NewStringToken("abc123"), func(p protocol.ProgressParams) {
			events = append(events, p.Progress)
		}),
		session.WithTimeout(5*time.Second))
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 2}, events)
	var result protocol.CallToolResult
	require.NoError(t, json.Unmarshal(raw, &result))
	require.Len(t, result.Content, 1)
	assert.Equal(t, "done", result.Content[0].Text)
}

func TestListChangedBroadcast(t *testing.T) {
	srv := New(protocol.Implementation{Name: "s", Version: "1"})
	cli := connect(t, srv)

	changed := make(chan struct{}, 8)
	cli.HandleNotification(protocol.NotificationToolsListChanged, func(json.RawMessage) {
		changed <- struct{}{}
	})

	expectOne := func() {
		t.Helper()
		select {
		case <-changed:
		case <-time.After(time.Second):
			t.Fatal("expected a list_changed notification")
		}
	}
	expectNone := func() {
		t.Helper()
		select {
		case <-changed:
			t.Fatal("unexpected list_changed notification")
		case <-time.After(50 * time.Millisecond):
		}
	}

	tool, handler := echoTool()
	srv.AddTool(tool, handler)
	expectOne()

	// Replacing the handler under an existing name keeps the key set.
	srv.AddTool(tool, handler)
	expectNone()

	srv.RemoveTool(tool.Name)
	expectOne()

	// Removing an absent name mutates nothing.
	srv.RemoveTool(tool.Name)
	expectNone()
}

func TestListChangedReachesSessionBeforeLoopRuns(t *testing.T) {
	srv := New(protocol.Implementation{Name: "s", Version: "1"})
	serverEnd, clientEnd := transport.Pipe()

	// The session joins the broadcast set as soon as it is built, before
	// any goroutine runs its loop.
	sess := srv.NewSession(serverEnd)
	require.Len(t, srv.broadcaster.snapshot(), 1)

	// A mutation while the loop is not yet running must still be announced.
	tool, handler := echoTool()
	srv.AddTool(tool, handler)

	changed := make(chan struct{}, 1)
	cli := session.New(clientEnd)
	cli.HandleNotification(protocol.NotificationToolsListChanged, func(json.RawMessage) {
		changed <- struct{}{}
	})
	go func() { _ = sess.Start(context.Background()) }()
	go func() { _ = cli.Start(context.Background()) }()
	t.Cleanup(func() { _ = cli.Close() })

	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatal("list_changed issued before the session loop ran was lost")
	}

	// Closing the session removes it from the broadcast set.
	require.NoError(t, sess.Close())
	assert.Empty(t, srv.broadcaster.snapshot())
}

func TestResourceSubscriptionFlow(t *testing.T) {
	const uri = "file:///project/readme.md"
	srv := New(protocol.Implementation{Name: "s", Version: "1"})
	srv.AddResource(protocol.Resource{URI: uri, Name: "readme"},
		func(ctx context.Context, uri string) ([]protocol.ResourceContents, error) {
			return []protocol.ResourceContents{{URI: uri, Text: "# hello"}}, nil
		})
	cli := connect(t, srv)

	updated := make(chan string, 4)
	cli.HandleNotification(protocol.NotificationResourceUpdated, func(params json.RawMessage) {
		var up protocol.ResourceUpdatedParams
		if json.Unmarshal(params, &up) == nil {
			updated <- up.URI
		}
	})

	// Updates before any subscription reach nobody.
	srv.NotifyResourceUpdated(uri)
	select {
	case <-updated:
		t.Fatal("unsubscribed session received an update")
	case <-time.After(50 * time.Millisecond):
	}

	callExpectCode(t, cli, protocol.MethodResourcesSubscribe,
		protocol.SubscribeParams{URI: "file:///unknown"}, mcperrors.CodeResourceNotFound)

	call(t, cli, protocol.MethodResourcesSubscribe, protocol.SubscribeParams{URI: uri}, nil)
	srv.NotifyResourceUpdated(uri)
	select {
	case got := <-updated:
		assert.Equal(t, uri, got)
	case <-time.After(time.Second):
		t.Fatal("subscribed session never received the update")
	}

	call(t, cli, protocol.MethodResourcesUnsubscribe, protocol.SubscribeParams{URI: uri}, nil)
	srv.NotifyResourceUpdated(uri)
	select {
	case <-updated:
		t.Fatal("update delivered after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestResourcesRead(t *testing.T) {
	const uri = "file:///notes.txt"
	srv := New(protocol.Implementation{Name: "s", Version: "1"})
	srv.AddResource(protocol.Resource{URI: uri, Name: "notes", MimeType: "text/plain"},
		func(ctx context.Context, uri string) ([]protocol.ResourceContents, error) {
			return []protocol.ResourceContents{{URI: uri, MimeType: "text/plain", Text: "remember the milk"}}, nil
		})
	cli := connect(t, srv)

	var result protocol.ReadResourceResult
	call(t, cli, protocol.MethodResourcesRead, protocol.ReadResourceParams{URI: uri}, &result)
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "remember the milk", result.Contents[0].Text)

	callExpectCode(t, cli, protocol.MethodResourcesRead,
		protocol.ReadResourceParams{URI: "file:///other.txt"}, mcperrors.CodeResourceNotFound)
}

func TestResourceTemplatesList(t *testing.T) {
	srv := New(protocol.Implementation{Name: "s", Version: "1"})
	srv.AddResourceTemplate(protocol.ResourceTemplate{
		URITemplate: "file:///logs/{date}.log",
		Name:        "daily logs",
	})
	cli := connect(t, srv)

	var result protocol.ListResourceTemplatesResult
	call(t, cli, protocol.MethodResourcesTemplatesList, protocol.ListResourceTemplatesParams{}, &result)
	require.Len(t, result.ResourceTemplates, 1)
	assert.Equal(t, "file:///logs/{date}.log", result.ResourceTemplates[0].URITemplate)
}

func TestPromptsGet(t *testing.T) {
	srv := New(protocol.Implementation{Name: "s", Version: "1"})
	srv.AddPrompt(protocol.Prompt{
		Name:      "greeting",
		Arguments: []protocol.PromptArgument{{Name: "who", Required: true}},
	}, func(ctx context.Context, args map[string]string) (*protocol.GetPromptResult, error) {
		return &protocol.GetPromptResult{
			Messages: []protocol.PromptMessage{{
				Role:    "user",
				Content: protocol.TextContent("Say hello to " + args["who"]),
			}},
		}, nil
	})
	cli := connect(t, srv)

	var result protocol.GetPromptResult
	call(t, cli, protocol.MethodPromptsGet, protocol.GetPromptParams{
		Name:      "greeting",
		Arguments: map[string]string{"who": "Ada"},
	}, &result)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "Say hello to Ada", result.Messages[0].Content.Text)

	callExpectCode(t, cli, protocol.MethodPromptsGet,
		protocol.GetPromptParams{Name: "missing"}, mcperrors.CodeInvalidParams)
}

func TestLoggingSetLevelGatesServerMessages(t *testing.T) {
	srv := New(protocol.Implementation{Name: "s", Version: "1"})
	cli := connect(t, srv)

	messages := make(chan protocol.LoggingMessageParams, 4)
	cli.HandleNotification(protocol.NotificationMessage, func(params json.RawMessage) {
		var lm protocol.LoggingMessageParams
		if json.Unmarshal(params, &lm) == nil {
			messages <- lm
		}
	})

	call(t, cli, protocol.MethodLoggingSetLevel, protocol.SetLevelParams{Level: protocol.LogLevelError}, nil)

	srv.LogMessage(protocol.LogLevelInfo, "worker", "suppressed")
	select {
	case <-messages:
		t.Fatal("info message delivered past an error threshold")
	case <-time.After(50 * time.Millisecond):
	}

	srv.LogMessage(protocol.LogLevelCritical, "worker", "disk full")
	select {
	case lm := <-messages:
		assert.Equal(t, protocol.LogLevelCritical, lm.Level)
		assert.Equal(t, "worker", lm.Logger)
	case <-time.After(time.Second):
		t.Fatal("critical message never delivered")
	}

	callExpectCode(t, cli, protocol.MethodLoggingSetLevel,
		protocol.SetLevelParams{Level: protocol.LogLevel("verbose")}, mcperrors.CodeInvalidParams)
}

func TestCompletionComplete(t *testing.T) {
	srv := New(protocol.Implementation{Name: "s", Version: "1"})
	cli := connect(t, srv)

	// Without a handler completions resolve to an empty list.
	var empty protocol.CompleteResult
	call(t, cli, protocol.MethodCompletionComplete, protocol.CompleteParams{
		Ref:      protocol.CompletionReference{Type: "ref/prompt", Name: "greeting"},
		Argument: protocol.CompletionArgument{Name: "who", Value: "A"},
	}, &empty)
	assert.Empty(t, empty.Completion.Values)

	srv.SetCompletionFunc(func(ctx context.Context, params protocol.CompleteParams) (*protocol.CompleteResult, error) {
		return &protocol.CompleteResult{Completion: protocol.Completion{Values: []string{"Ada", "Alan"}, Total: 2}}, nil
	})
	var result protocol.CompleteResult
	call(t, cli, protocol.MethodCompletionComplete, protocol.CompleteParams{
		Ref:      protocol.CompletionReference{Type: "ref/prompt", Name: "greeting"},
		Argument: protocol.CompletionArgument{Name: "who", Value: "A"},
	}, &result)
	assert.Equal(t, []string{"Ada", "Alan"}, result.Completion.Values)
}

func TestServerQueriesClientRootsAndSampling(t *testing.T) {
	srv := New(protocol.Implementation{Name: "s", Version: "1"})
	serverEnd, clientEnd := transport.Pipe()
	sess := srv.NewSession(serverEnd)
	go func() { _ = sess.Start(context.Background()) }()
	t.Cleanup(func() { _ = sess.Close() })

	cli := session.New(clientEnd)
	cli.HandleRequest(protocol.MethodRootsList, func(ctx context.Context, req *session.IncomingRequest) (any, error) {
		return protocol.ListRootsResult{Roots: []protocol.Root{{URI: "file:///workspace", Name: "workspace"}}}, nil
	})
	cli.HandleRequest(protocol.MethodSamplingCreateMessage, func(ctx context.Context, req *session.IncomingRequest) (any, error) {
		return protocol.CreateMessageResult{
			Role:    "assistant",
			Content: protocol.TextContent("as requested"),
			Model:   "test-model",
		}, nil
	})
	go func() { _ = cli.Start(context.Background()) }()
	t.Cleanup(func() { _ = cli.Close() })

	roots, err := srv.ListRoots(context.Background(), sess)
	require.NoError(t, err)
	require.Len(t, roots.Roots, 1)
	assert.Equal(t, "file:///workspace", roots.Roots[0].URI)

	msg, err := srv.CreateMessage(context.Background(), sess, protocol.CreateMessageParams{
		Messages:  []protocol.SamplingMessage{{Role: "user", Content: protocol.TextContent("hello?")}},
		MaxTokens: 16,
	})
	require.NoError(t, err)
	assert.Equal(t, "assistant", msg.Role)
	assert.Equal(t, "as requested", msg.Content.Text)
}
