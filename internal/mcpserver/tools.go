package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/codekiln/langstar/internal/controlplane"
	"github.com/codekiln/langstar/internal/deployment"
	"github.com/codekiln/langstar/internal/model"
)

type toolset struct {
	deployments  Deployments
	integrations Integrations
	logger       zerolog.Logger
}

func (t *toolset) tools() []server.ServerTool {
	return []server.ServerTool{
		t.listDeployments(),
		t.getDeployment(),
		t.createDeployment(),
		t.updateDeployment(),
		t.deleteDeployment(),
		t.waitForRevision(),
		t.getDeploymentURL(),
		t.listRevisions(),
	}
}

func (t *toolset) listDeployments() server.ServerTool {
	return server.ServerTool{
		Tool: mcp.NewTool("list_deployments",
			mcp.WithDescription("List LangGraph deployments in the workspace, optionally filtered by name or status."),
			mcp.WithString("name_contains", mcp.Description("Only deployments whose name contains this substring")),
			mcp.WithString("status", mcp.Description("Only deployments in this status"),
				mcp.Enum(string(model.DeploymentAwaitingDatabase), string(model.DeploymentReady), string(model.DeploymentUnused), string(model.DeploymentAwaitingDelete), string(model.DeploymentUnknown))),
			mcp.WithNumber("limit", mcp.Description("Page size, at most 100"), mcp.DefaultNumber(controlplane.DefaultPageSize)),
			mcp.WithNumber("offset", mcp.Description("Number of deployments to skip")),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			limit := mcp.ParseInt(request, "limit", controlplane.DefaultPageSize)
			if limit < 1 || limit > controlplane.MaxPageSize {
				return mcp.NewToolResultError(fmt.Sprintf("limit must be between 1 and %d", controlplane.MaxPageSize)), nil
			}
			page, err := t.deployments.List(ctx, controlplane.ListOptions{
				Limit:        limit,
				Offset:       mcp.ParseInt(request, "offset", 0),
				NameContains: mcp.ParseString(request, "name_contains", ""),
				Status:       model.DeploymentStatus(mcp.ParseString(request, "status", "")),
			})
			if err != nil {
				return mcp.NewToolResultErrorFromErr("list deployments", err), nil
			}
			return jsonResult(page)
		},
	}
}

func (t *toolset) getDeployment() server.ServerTool {
	return server.ServerTool{
		Tool: mcp.NewTool("get_deployment",
			mcp.WithDescription("Get a deployment by id or exact name."),
			deploymentParam(),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			d, res := t.resolve(ctx, request)
			if res != nil {
				return res, nil
			}
			return jsonResult(d)
		},
	}
}

func (t *toolset) createDeployment() server.ServerTool {
	return server.ServerTool{
		Tool: mcp.NewTool("create_deployment",
			mcp.WithDescription("Create a LangGraph deployment from a GitHub repository or an external docker image. With wait, blocks until the first revision is deployed and returns the endpoint URL."),
			mcp.WithString("name", mcp.Required(), mcp.Description("Deployment name: lowercase letters, digits and hyphens")),
			mcp.WithString("source", mcp.Description("Where the deployment is built from"),
				mcp.Enum(string(model.SourceGitHub), string(model.SourceExternalDocker)), mcp.DefaultString(string(model.SourceGitHub))),
			mcp.WithString("repo_url", mcp.Description("GitHub repository URL (github source)")),
			mcp.WithString("integration_id", mcp.Description("GitHub integration id; discovered when omitted")),
			mcp.WithString("branch", mcp.Description("Git ref to build"), mcp.DefaultString(deployment.DefaultRepoRef)),
			mcp.WithString("config_path", mcp.Description("Path of langgraph.json in the repository"), mcp.DefaultString(deployment.DefaultConfigPath)),
			mcp.WithString("image_uri", mcp.Description("Image to run (external_docker source)")),
			mcp.WithString("deployment_type", mcp.Description("Deployment tier"),
				mcp.Enum(string(model.DeploymentTypeDevFree), string(model.DeploymentTypeDev), string(model.DeploymentTypeProd)),
				mcp.DefaultString(string(model.DeploymentTypeDevFree))),
			mcp.WithArray("env", mcp.Description("Environment variables as KEY=VALUE"), mcp.WithStringItems()),
			mcp.WithBoolean("wait", mcp.Description("Wait until the deployment is ready"), mcp.DefaultBool(false)),
			mcp.WithReadOnlyHintAnnotation(false),
			mcp.WithDestructiveHintAnnotation(false),
			mcp.WithIdempotentHintAnnotation(false),
		),
		Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			env, err := stringSlice(request, "env")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			params := deployment.CreateParams{
				Name:           mcp.ParseString(request, "name", ""),
				Source:         model.DeploymentSource(mcp.ParseString(request, "source", string(model.SourceGitHub))),
				RepoURL:        mcp.ParseString(request, "repo_url", ""),
				IntegrationID:  mcp.ParseString(request, "integration_id", ""),
				Branch:         mcp.ParseString(request, "branch", ""),
				ConfigPath:     mcp.ParseString(request, "config_path", ""),
				DeploymentType: model.DeploymentType(mcp.ParseString(request, "deployment_type", "")),
				ImageURI:       mcp.ParseString(request, "image_uri", ""),
				Env:            env,
			}
			if params.Source == model.SourceGitHub {
				id, err := t.integrations.ResolveIntegration(ctx, params.IntegrationID, params.RepoURL)
				if err != nil {
					return mcp.NewToolResultErrorFromErr("resolve GitHub integration", err), nil
				}
				params.IntegrationID = id
			}

			req, err := deployment.BuildCreateRequest(params)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			d, err := t.deployments.Create(ctx, req, mcp.ParseBoolean(request, "wait", false))
			if err != nil {
				return partialResult("create deployment", d, err), nil
			}
			return jsonResult(d)
		},
	}
}

func (t *toolset) updateDeployment() server.ServerTool {
	return server.ServerTool{
		Tool: mcp.NewTool("update_deployment",
			mcp.WithDescription("Update what a deployment builds. Changing the branch, config path, image or env creates a new revision."),
			deploymentParam(),
			mcp.WithString("branch", mcp.Description("Git ref to build")),
			mcp.WithString("config_path", mcp.Description("Path of langgraph.json in the repository")),
			mcp.WithString("image_uri", mcp.Description("Image to run (external_docker source)")),
			mcp.WithArray("env", mcp.Description("Replacement environment variables as KEY=VALUE"), mcp.WithStringItems()),
			mcp.WithBoolean("wait", mcp.Description("Wait until the new revision is deployed"), mcp.DefaultBool(false)),
			mcp.WithReadOnlyHintAnnotation(false),
			mcp.WithDestructiveHintAnnotation(false),
			mcp.WithIdempotentHintAnnotation(false),
		),
		Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			env, err := stringSlice(request, "env")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			d, res := t.resolve(ctx, request)
			if res != nil {
				return res, nil
			}
			patch, err := deployment.BuildUpdateRequest(d, deployment.UpdateParams{
				Branch:     mcp.ParseString(request, "branch", ""),
				ConfigPath: mcp.ParseString(request, "config_path", ""),
				ImageURI:   mcp.ParseString(request, "image_uri", ""),
				Env:        env,
			})
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			updated, err := t.deployments.Update(ctx, d.ID, patch, mcp.ParseBoolean(request, "wait", false))
			if err != nil {
				return partialResult("update deployment", updated, err), nil
			}
			return jsonResult(updated)
		},
	}
}

func (t *toolset) deleteDeployment() server.ServerTool {
	return server.ServerTool{
		Tool: mcp.NewTool("delete_deployment",
			mcp.WithDescription("Delete a deployment. This cannot be undone. Deleting an id that no longer exists succeeds."),
			deploymentParam(),
			mcp.WithReadOnlyHintAnnotation(false),
			mcp.WithDestructiveHintAnnotation(true),
			mcp.WithIdempotentHintAnnotation(true),
		),
		Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			ref, err := request.RequireString("deployment")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			id, err := t.deployments.DeleteRef(ctx, ref)
			if err != nil {
				return mcp.NewToolResultErrorFromErr("delete deployment", err), nil
			}
			t.logger.Info().Str("deployment_id", id).Msg("deployment deleted through MCP")
			return jsonResult(map[string]string{"status": "deleted", "deployment_id": id})
		},
	}
}

func (t *toolset) waitForRevision() server.ServerTool {
	return server.ServerTool{
		Tool: mcp.NewTool("wait_for_revision",
			mcp.WithDescription("Wait until a revision of a deployment is deployed, then return the deployment with its URL. Defaults to the latest revision."),
			deploymentParam(),
			mcp.WithString("revision_id", mcp.Description("Revision to wait for")),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			d, res := t.resolve(ctx, request)
			if res != nil {
				return res, nil
			}
			ready, err := t.deployments.Wait(ctx, d, mcp.ParseString(request, "revision_id", ""))
			if err != nil {
				return partialResult("wait for revision", ready, err), nil
			}
			return jsonResult(ready)
		},
	}
}

func (t *toolset) getDeploymentURL() server.ServerTool {
	return server.ServerTool{
		Tool: mcp.NewTool("get_deployment_url",
			mcp.WithDescription("Resolve the base URL a deployment is served at."),
			deploymentParam(),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			d, res := t.resolve(ctx, request)
			if res != nil {
				return res, nil
			}
			url, err := t.deployments.ResolveURL(ctx, d)
			if err != nil {
				return mcp.NewToolResultErrorFromErr("resolve URL", err), nil
			}
			return jsonResult(map[string]string{"deployment_id": d.ID, "url": url})
		},
	}
}

func (t *toolset) listRevisions() server.ServerTool {
	return server.ServerTool{
		Tool: mcp.NewTool("list_revisions",
			mcp.WithDescription("List the revisions of a deployment, newest first."),
			deploymentParam(),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			d, res := t.resolve(ctx, request)
			if res != nil {
				return res, nil
			}
			revs, err := t.deployments.Revisions(ctx, d.ID)
			if err != nil {
				return mcp.NewToolResultErrorFromErr("list revisions", err), nil
			}
			return jsonResult(revs)
		},
	}
}

func deploymentParam() mcp.ToolOption {
	return mcp.WithString("deployment", mcp.Required(), mcp.Description("Deployment id or exact name"))
}

// resolve returns the deployment named by the "deployment" argument, or a
// tool error result.
func (t *toolset) resolve(ctx context.Context, request mcp.CallToolRequest) (*model.Deployment, *mcp.CallToolResult) {
	ref, err := request.RequireString("deployment")
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	d, err := t.deployments.Resolve(ctx, ref)
	if err != nil {
		return nil, mcp.NewToolResultErrorFromErr("resolve deployment", err)
	}
	return d, nil
}

// partialResult reports err and, when the operation got far enough to
// produce a record, includes it so the caller keeps the deployment id.
func partialResult(op string, d *model.Deployment, err error) *mcp.CallToolResult {
	if d == nil {
		return mcp.NewToolResultErrorFromErr(op, err)
	}
	data, merr := json.MarshalIndent(d, "", "  ")
	if merr != nil {
		return mcp.NewToolResultErrorFromErr(op, err)
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v\n\ndeployment:\n%s", op, err, data))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// stringSlice reads an optional array of strings. A missing argument is nil.
func stringSlice(request mcp.CallToolRequest, key string) ([]string, error) {
	raw, ok := request.GetArguments()[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s must be an array of strings", key)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, errors.New(key + " must be an array of strings")
	}
}
