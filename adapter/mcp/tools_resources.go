package mcp

import (
	"context"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/talentreach/adapter/cli"
	"github.com/felixgeelhaar/talentreach/internal/resources/application/commands"
	"github.com/felixgeelhaar/talentreach/internal/resources/application/queries"
)

type resourceAddInput struct {
	OwnerName   string `json:"owner_name" jsonschema:"required"`
	ResourceURL string `json:"resource_url" jsonschema:"required"`
}

type resourceSetActiveInput struct {
	ResourceID string `json:"resource_id" jsonschema:"required"`
	Active     bool   `json:"active"`
}

type resourceTools struct {
	app *cli.App
}

func registerResourceTools(srv *mcp.Server, deps ToolDependencies) error {
	tools := resourceTools{app: deps.App}

	srv.Tool("resources.list").
		Description("List scheduling links with their rotation counters").
		Handler(tools.list)

	srv.Tool("resources.add").
		Description("Register a scheduling link and put it into the rotation").
		Handler(tools.add)

	srv.Tool("resources.set_active").
		Description("Take a scheduling link in or out of the rotation").
		Handler(tools.setActive)

	return nil
}

func (t resourceTools) list(ctx context.Context, input struct{}) ([]queries.ResourceDTO, error) {
	if t.app.ListResourcesHandler == nil {
		return nil, needsDatabase("resource listing")
	}
	return t.app.ListResourcesHandler.Handle(ctx, queries.ListResourcesQuery{TenantID: t.app.TenantID})
}

func (t resourceTools) add(ctx context.Context, input resourceAddInput) (queries.ResourceDTO, error) {
	if t.app.RegisterResourceHandler == nil {
		return queries.ResourceDTO{}, needsDatabase("resource registration")
	}
	resource, err := t.app.RegisterResourceHandler.Handle(ctx, commands.RegisterResourceCommand{
		TenantID:    t.app.TenantID,
		OwnerName:   input.OwnerName,
		ResourceURL: input.ResourceURL,
	})
	if err != nil {
		return queries.ResourceDTO{}, err
	}
	return queries.ToResourceDTO(resource), nil
}

func (t resourceTools) setActive(ctx context.Context, input resourceSetActiveInput) (queries.ResourceDTO, error) {
	if t.app.SetResourceActiveHandler == nil {
		return queries.ResourceDTO{}, needsDatabase("resource update")
	}
	id, err := requireID("resource_id", input.ResourceID)
	if err != nil {
		return queries.ResourceDTO{}, err
	}
	resource, err := t.app.SetResourceActiveHandler.Handle(ctx, commands.SetResourceActiveCommand{
		TenantID:   t.app.TenantID,
		ResourceID: id,
		Active:     input.Active,
	})
	if err != nil {
		return queries.ResourceDTO{}, err
	}
	return queries.ToResourceDTO(resource), nil
}
