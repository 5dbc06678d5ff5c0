// Package mcp exposes the broker to agents over the Model Context Protocol.
//
// A single tool, collect_user_intent, takes a question and blocks until a
// human resolves it. Two transports are supported: stdio for agents that
// spawn the binary directly, and Streamable HTTP mounted on the web server
// for remote agents. The agent credential travels in the INTENT_API_KEY
// environment variable for stdio and in the usual auth headers for HTTP.
package mcp
