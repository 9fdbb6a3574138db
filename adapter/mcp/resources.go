package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"
	conversationQueries "github.com/felixgeelhaar/talentreach/internal/conversations/application/queries"
	resourceQueries "github.com/felixgeelhaar/talentreach/internal/resources/application/queries"
)

// RegisterResources registers MCP resources that expose outreach data.
func RegisterResources(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}
	app := deps.App

	srv.Resource("talentreach://escalations").
		Name("Escalations").
		Description("Conversations waiting for a human").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			if app == nil || app.ListEscalationsHandler == nil {
				return nil, needsDatabase("escalation listing")
			}
			escalations, err := app.ListEscalationsHandler.Handle(ctx, conversationQueries.ListEscalationsQuery{
				TenantID: app.TenantID,
				Limit:    100,
			})
			if err != nil {
				return nil, err
			}
			return jsonContent(uri, escalations)
		})

	srv.Resource("talentreach://replies/pending").
		Name("Pending Replies").
		Description("Replies that failed to send and wait for a retry").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			if app == nil || app.ListPendingRepliesHandler == nil {
				return nil, needsDatabase("pending reply listing")
			}
			replies, err := app.ListPendingRepliesHandler.Handle(ctx, app.TenantID)
			if err != nil {
				return nil, err
			}
			return jsonContent(uri, replies)
		})

	srv.Resource("talentreach://resources").
		Name("Scheduling Resources").
		Description("Booking links in the rotation").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			if app == nil || app.ListResourcesHandler == nil {
				return nil, needsDatabase("resource listing")
			}
			resources, err := app.ListResourcesHandler.Handle(ctx, resourceQueries.ListResourcesQuery{TenantID: app.TenantID})
			if err != nil {
				return nil, err
			}
			return jsonContent(uri, resources)
		})

	return nil
}

func jsonContent(uri string, v any) (*mcp.ResourceContent, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.ResourceContent{
		URI:      uri,
		MimeType: "application/json",
		Text:     string(data),
	}, nil
}
