package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for cogniprof resources.
	uriScheme = "cogniprof://"

	profilesPrefix = uriScheme + "profiles/"
	linesSuffix    = "/lines"
	mimeJSON       = "application/json"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "profiles",
		Name:        "profiles",
		Description: "Summary of every stored entity profile",
		MIMEType:    mimeJSON,
	}, s.handleProfilesResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "profiles/{entityId}",
		Name:        "entity-profile",
		Description: "Profile row of one entity",
		MIMEType:    mimeJSON,
	}, s.handleProfileResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "profiles/{entityId}/lines",
		Name:        "entity-lines",
		Description: "Jurisprudential lines of one entity",
		MIMEType:    mimeJSON,
	}, s.handleLinesResource)
}

// handleProfilesResource lists every profile in summary form.
func (s *Server) handleProfilesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	profiles, err := s.ports.Reader.ListProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}

	summaries := make([]ProfileSummary, len(profiles))
	for i := range profiles {
		summaries[i] = ProfileSummary{
			EntityID:    profiles[i].EntityID,
			RecordCount: profiles[i].RecordCount,
			Confidence:  profiles[i].Confidence,
		}
	}
	return jsonResource(req.Params.URI, summaries)
}

// handleProfileResource returns one profile row.
func (s *Server) handleProfileResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	entityID, wantLines := parseProfileURI(req.Params.URI)
	if entityID == "" || wantLines {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	p, err := s.ports.Reader.GetProfile(ctx, entityID)
	if err != nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	return jsonResource(req.Params.URI, p.Row())
}

// handleLinesResource returns the line rows of one entity.
func (s *Server) handleLinesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	entityID, wantLines := parseProfileURI(req.Params.URI)
	if entityID == "" || !wantLines {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	lines, err := s.ports.Reader.GetLines(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("getting lines: %w", err)
	}
	return jsonResource(req.Params.URI, lineRows(lines))
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: mimeJSON,
			Text:     string(data),
		}},
	}, nil
}

// parseProfileURI extracts the entity id from cogniprof://profiles/{id}
// or cogniprof://profiles/{id}/lines.
func parseProfileURI(uri string) (entityID string, lines bool) {
	if !strings.HasPrefix(uri, profilesPrefix) {
		return "", false
	}
	rest := strings.TrimPrefix(uri, profilesPrefix)
	if strings.HasSuffix(rest, linesSuffix) {
		rest = strings.TrimSuffix(rest, linesSuffix)
		lines = true
	}
	if rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, lines
}
