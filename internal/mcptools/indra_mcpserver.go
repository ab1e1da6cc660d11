// Package mcptools exposes the synthesis engine over the Model Context
// Protocol: one tool to run a session, one to validate an existing
// configuration, and one to read the constraint catalog.
package mcptools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/riverlab/indra/internal/confluence"
	"github.com/riverlab/indra/internal/synth"
)

const version = "0.1.0"

// NewIndraMCPServer creates an MCP server with the 3 synthesis tools
// registered: synthesize_config, validate_config, and get_constraints.
func NewIndraMCPServer(coordinator *synth.Coordinator, catalog *confluence.ConstraintSet) *mcp.Server {
	svc := NewIndraService(coordinator, catalog)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "indra",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "synthesize_config",
		Description: "Run a full expert consultation session for a modeling purpose and return the synthesized CONFLUENCE configuration.",
	}, svc.SynthesizeConfig)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "validate_config",
		Description: "Validate a CONFLUENCE configuration (file path or inline fields) against the constraint catalog.",
	}, svc.ValidateConfig)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_constraints",
		Description: "Return the CONFLUENCE configuration field catalog and cross-field rules.",
	}, svc.GetConstraints)

	return server
}

// RunIndraMCPServerStdio runs the MCP server on stdio transport,
// blocking until stdin is closed or the context is cancelled.
func RunIndraMCPServerStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}
