// Package mcpwire implements a session-oriented engine for the Model
// Context Protocol (2025-03-26): bidirectional JSON-RPC 2.0 with request
// correlation, progress streaming, cooperative cancellation, resource
// subscriptions, severity-gated protocol logging, list-change broadcasting,
// and opaque-cursor pagination.
//
// This root package re-exports the entry points; the engine lives in the
// sub-packages:
//
//   - pkg/protocol: wire envelopes, method names, and payload types
//   - pkg/session: the correlation table and dispatch engine both peers run
//   - pkg/server: registries, broadcasting, and the served method surface
//   - pkg/client: the typed client facade, roots, and sampling
//   - pkg/transport: stdio and in-process pipe transports
//   - pkg/pagination: opaque-cursor listing helpers
//   - pkg/errors, pkg/logging, pkg/observability: the ambient stack
//
// # Serving
//
//	srv := mcpwire.NewServer(protocol.Implementation{Name: "demo", Version: "1.0.0"})
//	srv.AddTool(protocol.Tool{Name: "echo"}, func(ctx context.Context, args json.RawMessage, progress *session.ProgressReporter) (*protocol.CallToolResult, error) {
//	    return &protocol.CallToolResult{Content: []protocol.Content{protocol.TextContent("hi")}}, nil
//	})
//	if err := srv.Serve(ctx, mcpwire.NewStdio()); err != nil {
//	    log.Fatal(err)
//	}
//
// # Calling
//
//	c := mcpwire.NewClient(mcpwire.NewStdio(), protocol.Implementation{Name: "cli", Version: "1.0.0"})
//	go c.Start(ctx)
//	if _, err := c.Initialize(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	result, err := c.CallTool(ctx, "echo", nil,
//	    session.WithProgress(protocol.NewStringToken("t1"), func(p protocol.ProgressParams) {
//	        log.Printf("progress %.0f", p.Progress)
//	    }))
//
// Requests also flow server-to-client on the same session: the server can
// query roots/list or ask for sampling/createMessage, and either side can
// cancel its outstanding calls cooperatively.
package mcpwire
