package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/codekiln/langstar/internal/controlplane"
	"github.com/codekiln/langstar/internal/deployment"
	"github.com/codekiln/langstar/internal/model"
)

func (c *CLI) newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Manage LangGraph deployments",
	}
	cmd.PersistentFlags().DurationVar(&c.poll.Interval, "interval", 0, "Revision poll interval (default from config, 10s)")
	cmd.PersistentFlags().DurationVar(&c.poll.Timeout, "timeout", 0, "Give up waiting after this long (default from config, 30m)")

	cmd.AddCommand(
		c.newGraphListCmd(),
		c.newGraphGetCmd(),
		c.newGraphCreateCmd(),
		c.newGraphUpdateCmd(),
		c.newGraphDeleteCmd(),
		c.newGraphWaitCmd(),
		c.newGraphURLCmd(),
		c.newGraphRevisionsCmd(),
	)
	return cmd
}

func (c *CLI) newGraphListCmd() *cobra.Command {
	var (
		opts   controlplane.ListOptions
		status string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List deployments",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Limit < 1 || opts.Limit > controlplane.MaxPageSize {
				return &usageError{err: fmt.Errorf("--limit must be between 1 and %d", controlplane.MaxPageSize)}
			}
			if opts.Offset < 0 {
				return &usageError{err: fmt.Errorf("--offset must not be negative")}
			}
			opts.Status = model.DeploymentStatus(status)

			a, err := c.application()
			if err != nil {
				return err
			}
			page, err := a.Manager.List(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return c.printer(cmd.OutOrStdout()).deploymentList(page)
		},
	}
	cmd.Flags().IntVar(&opts.Limit, "limit", controlplane.DefaultPageSize, "Maximum number of deployments to return (max 100)")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Number of deployments to skip")
	cmd.Flags().StringVar(&opts.NameContains, "name-contains", "", "Only deployments whose name contains this substring")
	cmd.Flags().StringVar(&status, "status", "", "Only deployments in this status (e.g. READY)")
	return cmd
}

func (c *CLI) newGraphGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get REF",
		Short: "Show a deployment by id or name",
		Args:  oneArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.application()
			if err != nil {
				return err
			}
			d, err := a.Manager.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.printer(cmd.OutOrStdout()).deployment(d)
		},
	}
}

func (c *CLI) newGraphCreateCmd() *cobra.Command {
	var (
		p              deployment.CreateParams
		source         string
		deploymentType string
		wait           bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a deployment",
		Long: `Create a deployment from a GitHub repository or an external docker image.

Without --wait the command returns once the control plane has accepted the
request. With --wait it follows the first revision until it is deployed and
prints the endpoint URL.

Examples:
  langstar graph create --name agent --repo-url https://github.com/acme/agent --wait
  langstar graph create --name svc --source external_docker --image-uri docker.io/acme/agent:1
  langstar graph create --name agent --repo-url https://github.com/acme/agent --env OPENAI_API_KEY=sk-...`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p.Source = model.DeploymentSource(source)
			p.DeploymentType = model.DeploymentType(deploymentType)
			switch p.Source {
			case model.SourceGitHub:
				if p.RepoURL == "" {
					return &deployment.ValidationError{Field: "repo_url", Message: "is required for github deployments (--repo-url)"}
				}
			case model.SourceExternalDocker:
			default:
				return &usageError{err: fmt.Errorf("invalid --source %q: must be %q or %q", source, model.SourceGitHub, model.SourceExternalDocker)}
			}

			a, err := c.application()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if p.Source == model.SourceGitHub {
				id, err := a.ResolveIntegration(ctx, p.IntegrationID, p.RepoURL)
				if err != nil {
					return err
				}
				p.IntegrationID = id
			}

			req, err := deployment.BuildCreateRequest(p)
			if err != nil {
				return err
			}

			a.Logger.Info().Str("name", p.Name).Bool("wait", wait).Msg("creating deployment")
			start := time.Now()
			d, err := a.Manager.Create(ctx, req, wait)
			return c.finish(cmd, d, err, wait, start)
		},
	}
	cmd.Flags().StringVar(&p.Name, "name", "", "Deployment name (required)")
	cmd.Flags().StringVar(&source, "source", string(model.SourceGitHub), "Source type: github or external_docker")
	cmd.Flags().StringVar(&p.RepoURL, "repo-url", "", "GitHub repository URL")
	cmd.Flags().StringVar(&p.Branch, "branch", deployment.DefaultRepoRef, "Git branch or ref to build")
	cmd.Flags().StringVar(&p.IntegrationID, "integration-id", "", "GitHub integration id (discovered when omitted)")
	cmd.Flags().StringVar(&p.ConfigPath, "config-path", deployment.DefaultConfigPath, "Path of langgraph.json in the repository")
	cmd.Flags().StringVar(&p.ImageURI, "image-uri", "", "Docker image (external_docker)")
	cmd.Flags().StringVar(&deploymentType, "deployment-type", string(model.DeploymentTypeDevFree), "Deployment type: dev_free, dev or prod")
	cmd.Flags().StringArrayVar(&p.Env, "env", nil, "Environment variable as KEY=VALUE (repeatable)")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait until the deployment is ready")
	cmd.MarkFlagRequired("name")
	return cmd
}

func (c *CLI) newGraphUpdateCmd() *cobra.Command {
	var (
		p    deployment.UpdateParams
		env  []string
		wait bool
	)
	cmd := &cobra.Command{
		Use:   "update REF",
		Short: "Update a deployment",
		Long: `Update what a deployment builds. Changing the branch, config path, image or
environment variables creates a new revision; --wait follows it until it is
deployed. --env replaces the full set of environment variables.`,
		Args: oneArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("env") {
				p.Env = env
				if p.Env == nil {
					p.Env = []string{}
				}
			}

			a, err := c.application()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			d, err := a.Manager.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			patch, err := deployment.BuildUpdateRequest(d, p)
			if err != nil {
				return err
			}

			a.Logger.Info().Str("deployment_id", d.ID).Bool("wait", wait).Msg("updating deployment")
			start := time.Now()
			updated, err := a.Manager.Update(ctx, d.ID, patch, wait && patch.CreatesRevision())
			return c.finish(cmd, updated, err, wait && patch.CreatesRevision(), start)
		},
	}
	cmd.Flags().StringVar(&p.Branch, "branch", "", "Git branch or ref to build")
	cmd.Flags().StringVar(&p.ConfigPath, "config-path", "", "Path of langgraph.json in the repository")
	cmd.Flags().StringVar(&p.ImageURI, "image-uri", "", "Docker image (external_docker)")
	cmd.Flags().StringArrayVar(&env, "env", nil, "Environment variable as KEY=VALUE (repeatable, replaces all)")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait until the new revision is deployed")
	return cmd
}

func (c *CLI) newGraphDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete REF",
		Short: "Delete a deployment",
		Long: `Delete a deployment. This cannot be undone.

An id is deleted directly, so repeating a delete succeeds. A name is resolved
first. Without --yes the command asks for confirmation on a terminal and
refuses to run otherwise.`,
		Args: oneArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := args[0]
			a, err := c.application()
			if err != nil {
				return err
			}

			if !yes {
				if !c.interactive() {
					return &usageError{err: fmt.Errorf("refusing to delete %q without confirmation: pass --yes", ref)}
				}
				ok, err := confirm(c.in, cmd.ErrOrStderr(), ref)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.ErrOrStderr(), "Deletion cancelled.")
					return nil
				}
			}

			id, err := a.Manager.DeleteRef(cmd.Context(), ref)
			if err != nil {
				return err
			}
			return c.printer(cmd.OutOrStdout()).deleted(id)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func (c *CLI) newGraphWaitCmd() *cobra.Command {
	var revisionID string
	cmd := &cobra.Command{
		Use:   "wait REF",
		Short: "Wait for a revision of an existing deployment",
		Long: `Follow a revision until it is deployed, then print the deployment with its
URL. Defaults to the latest revision. Use this to resume after a create or
update timed out.`,
		Args: oneArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.application()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			d, err := a.Manager.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			start := time.Now()
			ready, err := a.Manager.Wait(ctx, d, revisionID)
			return c.finish(cmd, ready, err, true, start)
		},
	}
	cmd.Flags().StringVar(&revisionID, "revision", "", "Revision id (default: latest)")
	return cmd
}

func (c *CLI) newGraphURLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "url REF",
		Short: "Print the endpoint URL of a deployment",
		Args:  oneArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.application()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			d, err := a.Manager.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			url, err := a.Manager.ResolveURL(ctx, d)
			if err != nil {
				return err
			}
			return c.printer(cmd.OutOrStdout()).url(d, url)
		},
	}
}

func (c *CLI) newGraphRevisionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revisions REF",
		Short: "List the revisions of a deployment, newest first",
		Args:  oneArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.application()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			d, err := a.Manager.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			revs, err := a.Manager.Revisions(ctx, d.ID)
			if err != nil {
				return err
			}
			return c.printer(cmd.OutOrStdout()).revisions(revs)
		},
	}
}

// finish prints whatever record an operation produced, even when it failed,
// so the deployment id is never lost.
func (c *CLI) finish(cmd *cobra.Command, d *model.Deployment, err error, waited bool, start time.Time) error {
	if d != nil {
		if perr := c.printer(cmd.OutOrStdout()).deployment(d); perr != nil && err == nil {
			err = perr
		}
	}
	if err != nil {
		return err
	}

	logger := c.app.Logger
	if waited {
		logger.Info().Str("deployment_id", d.ID).Dur("elapsed", time.Since(start).Round(time.Second)).Msg("deployment ready")
	} else {
		logger.Info().Str("deployment_id", d.ID).Msgf("follow progress with 'langstar graph wait %s'", d.ID)
	}
	return nil
}
