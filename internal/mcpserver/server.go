// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the release registry to LLM tooling via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/mukti/internal/apperr"
	"github.com/starford/mukti/internal/models"
	"github.com/starford/mukti/internal/releaseservice"
)

const registryFormatURI = "mukti://registry-format"

// Server wraps the MCP server with the registry tools.
type Server struct {
	mcp   *server.MCPServer
	svc   *releaseservice.Service
	rules releaseservice.RulesRequest
}

// New creates a new MCP server. rules carries the configured aliases and
// redirect options used by preview_redirects.
func New(svc *releaseservice.Service, rules releaseservice.RulesRequest, version string) *Server {
	s := &Server{svc: svc, rules: rules}

	s.mcp = server.NewMCPServer(
		"mukti",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_releases",
		mcp.WithDescription("List every release in the registry, oldest first, with status and archive count."),
	), s.listReleases)

	s.mcp.AddTool(mcp.NewTool("get_release",
		mcp.WithDescription("Return one release record with resolved archive URLs. "+
			"Omit version to get the most recent active release."),
		mcp.WithString("version", mcp.Description("Semantic version such as 1.2.3")),
	), s.getRelease)

	s.mcp.AddTool(mcp.NewTool("resolve_alias",
		mcp.WithDescription("Resolve a NAME=TARGET:KIND alias against a release and return the redirect rule."),
		mcp.WithString("alias", mcp.Required(), mcp.Description("Alias spec, e.g. linux=x86_64-unknown-linux-gnu:tar.gz")),
		mcp.WithString("version", mcp.Description("Release to resolve against (default: most recent active)")),
	), s.resolveAlias)

	s.mcp.AddTool(mcp.NewTool("preview_redirects",
		mcp.WithDescription("Return the redirect rules generate-redirects would write with the configured aliases."),
		mcp.WithString("version", mcp.Description("Release to resolve against (default: most recent active)")),
	), s.previewRedirects)

	s.mcp.AddResource(
		mcp.NewResource(registryFormatURI, "Registry Format",
			mcp.WithResourceDescription("JSON layout of the releases registry file."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRegistryFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type releaseSummary struct {
	Version  string        `json:"version"`
	Status   models.Status `json:"status"`
	Archives int           `json:"archives"`
}

func (s *Server) listReleases(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reg, err := s.svc.Registry(ctx)
	if err != nil {
		return toolError(err), nil
	}
	out := make([]releaseSummary, 0, len(reg.Releases))
	for _, rel := range reg.Releases {
		status := rel.Status
		if status == "" {
			status = models.StatusActive
		}
		out = append(out, releaseSummary{Version: rel.Version, Status: status, Archives: len(rel.Archives)})
	}
	return jsonResult(out)
}

type archiveURL struct {
	Target string `json:"target"`
	Kind   string `json:"kind"`
	URL    string `json:"url"`
}

func (s *Server) getRelease(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reg, err := s.svc.Registry(ctx)
	if err != nil {
		return toolError(err), nil
	}
	rel, err := reg.Select(req.GetString("version", ""))
	if err != nil {
		return toolError(err), nil
	}
	urls := make([]archiveURL, 0, len(rel.Archives))
	for _, a := range rel.Archives {
		urls = append(urls, archiveURL{Target: a.Target, Kind: string(a.Kind), URL: rel.ArchiveURL(a)})
	}
	return jsonResult(struct {
		*models.Release
		URLs []archiveURL `json:"urls"`
	}{rel, urls})
}

func (s *Server) resolveAlias(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	alias, err := req.RequireString("alias")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rr := s.rules
	rr.Aliases = []string{alias}
	rr.Versioned = false
	rr.Version = req.GetString("version", "")
	rules, _, err := s.svc.Rules(ctx, rr)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(rules[0])
}

func (s *Server) previewRedirects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rr := s.rules
	rr.Version = req.GetString("version", "")
	rules, _, err := s.svc.Rules(ctx, rr)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(rules)
}

func (s *Server) readRegistryFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      registryFormatURI,
			MIMEType: "text/markdown",
			Text:     RegistryFormatContract,
		},
	}, nil
}

func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", apperr.Category(err), err))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(out)), nil
}
