package mcpwire

import (
	"github.com/mcpwire/mcpwire/pkg/client"
	"github.com/mcpwire/mcpwire/pkg/server"
	"github.com/mcpwire/mcpwire/pkg/session"
	"github.com/mcpwire/mcpwire/pkg/transport"
)

// Version is the SDK version.
const Version = "0.1.0"

var (
	// NewClient creates a high-level client peer.
	NewClient = client.New

	// NewServer creates a high-level server peer.
	NewServer = server.New

	// NewSession creates a raw session for embedders that register their
	// own method surface.
	NewSession = session.New

	// NewStdio creates a newline-delimited JSON transport over
	// stdin/stdout.
	NewStdio = transport.NewStdio

	// Pipe creates a connected in-process transport pair.
	Pipe = transport.Pipe
)
