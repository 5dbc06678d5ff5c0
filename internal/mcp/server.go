// ABOUTME: MCP server exposing the collect_user_intent tool to agents
// ABOUTME: Supports stdio and Streamable HTTP transports via mark3labs/mcp-go

package mcp

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/2389/intent-bridge/internal/auth"
	"github.com/2389/intent-bridge/internal/broker"
)

// ServerName and ServerVersion identify this server in the MCP handshake.
const (
	ServerName    = "intent-bridge"
	ServerVersion = "1.0.0"
)

// ToolName is the single tool agents call to ask a human something.
const ToolName = "collect_user_intent"

const toolDescription = "Ask the human operator a question and wait for their answer. " +
	"Use this whenever you need a decision, clarification, or guidance that only " +
	"a human can provide. The call blocks until the human replies, dismisses the " +
	"question, or the wait times out."

// credentialEnvVar supplies the agent credential in stdio mode, where there
// is no HTTP request to carry one.
const credentialEnvVar = "INTENT_API_KEY"

type credentialKey struct{}

// WithCredential stores the agent credential on the context for the tool
// handler to pick up.
func WithCredential(ctx context.Context, credential string) context.Context {
	return context.WithValue(ctx, credentialKey{}, credential)
}

func credentialFrom(ctx context.Context) string {
	credential, _ := ctx.Value(credentialKey{}).(string)
	return credential
}

// Server wraps an MCP server around the broker. Each tool call becomes one
// blocking question/answer exchange.
type Server struct {
	broker *broker.Broker
	mcp    *server.MCPServer
	logger *slog.Logger
}

// NewServer creates the MCP server and registers the collect_user_intent tool.
func NewServer(b *broker.Broker) *Server {
	s := &Server{
		broker: b,
		logger: slog.Default().With("component", "mcp"),
	}

	s.mcp = server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
	)

	tool := mcp.NewTool(ToolName,
		mcp.WithDescription(toolDescription),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question or decision to put to the human"),
		),
	)
	s.mcp.AddTool(tool, s.handleCollectIntent)

	return s
}

// ServeStdio runs the server over stdin/stdout until the agent disconnects.
// The credential comes from the environment since stdio carries no headers.
func (s *Server) ServeStdio() error {
	credential := os.Getenv(credentialEnvVar)
	s.logger.Info("serving mcp over stdio", "authenticated", credential != "")

	return server.ServeStdio(s.mcp, server.WithStdioContextFunc(
		func(ctx context.Context) context.Context {
			return WithCredential(ctx, credential)
		},
	))
}

// HTTPHandler returns the Streamable HTTP transport for mounting on the web
// server. The per-request credential is lifted from the usual auth headers.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp,
		server.WithHTTPContextFunc(
			func(ctx context.Context, r *http.Request) context.Context {
				return WithCredential(ctx, auth.APICredential(r))
			},
		),
	)
}

// handleCollectIntent runs one exchange. Broker outcomes are never tool
// errors: dismissals and timeouts come back as plain text so the agent can
// read them and move on.
func (s *Server) handleCollectIntent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("question is required"), nil
	}
	if question == "" {
		return mcp.NewToolResultError("question must not be empty"), nil
	}

	result, err := s.broker.Ask(ctx, question, credentialFrom(ctx))
	if err != nil {
		return nil, err
	}

	s.logger.Info("tool call resolved", "request", result.RequestID, "outcome", string(result.Outcome))

	if result.Image != nil {
		return mcp.NewToolResultImage(
			result.Text,
			base64.StdEncoding.EncodeToString(result.Image.Data),
			result.Image.MimeType,
		), nil
	}
	return mcp.NewToolResultText(result.Text), nil
}
