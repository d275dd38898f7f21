package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/codekiln/langstar/internal/config"
	"github.com/codekiln/langstar/internal/controlplane"
	"github.com/codekiln/langstar/internal/model"
)

const maxNameWidth = 30

type printer struct {
	w      io.Writer
	format string
}

func (c *CLI) printer(w io.Writer) printer {
	format := config.FormatTable
	if c.cfg != nil {
		format = c.cfg.OutputFormat
	}
	return printer{w: w, format: format}
}

func (p printer) json() bool {
	return p.format == config.FormatJSON
}

func (p printer) printJSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p printer) deploymentList(page *controlplane.DeploymentList) error {
	if p.json() {
		return p.printJSON(page)
	}
	if len(page.Resources) == 0 {
		fmt.Fprintln(p.w, "No deployments found.")
		return nil
	}

	fmt.Fprintf(p.w, "%-30s %-36s %-18s %-9s %-16s %s\n", "NAME", "ID", "STATUS", "TYPE", "SOURCE", "CREATED")
	for _, d := range page.Resources {
		fmt.Fprintf(p.w, "%-30s %-36s %-18s %-9s %-16s %s\n",
			truncate(d.Name, maxNameWidth), d.ID, d.Status, deploymentType(&d), d.Source, formatTime(d.CreatedAt))
	}
	fmt.Fprintf(p.w, "\nTotal: %d deployment(s) (offset: %d)\n", len(page.Resources), page.Offset)
	return nil
}

func (p printer) deployment(d *model.Deployment) error {
	if p.json() {
		return p.printJSON(d)
	}

	fmt.Fprintf(p.w, "Name:             %s\n", d.Name)
	fmt.Fprintf(p.w, "ID:               %s\n", d.ID)
	fmt.Fprintf(p.w, "Status:           %s\n", d.Status)
	fmt.Fprintf(p.w, "Source:           %s\n", d.Source)
	if t := deploymentType(d); t != "-" {
		fmt.Fprintf(p.w, "Type:             %s\n", t)
	}
	if d.SourceConfig != nil && d.SourceConfig.RepoURL != "" {
		fmt.Fprintf(p.w, "Repository:       %s\n", d.SourceConfig.RepoURL)
	}
	if src := d.SourceRevisionConfig; src != nil {
		if src.RepoRef != "" {
			fmt.Fprintf(p.w, "Branch:           %s\n", src.RepoRef)
		}
		if src.ImageURI != "" {
			fmt.Fprintf(p.w, "Image:            %s\n", src.ImageURI)
		}
	}
	fmt.Fprintf(p.w, "Latest revision:  %s\n", orDash(d.LatestRevisionID))
	fmt.Fprintf(p.w, "Active revision:  %s\n", orDash(d.ActiveRevisionID))
	fmt.Fprintf(p.w, "Created:          %s\n", formatTime(d.CreatedAt))
	if url := d.URL; url != "" {
		fmt.Fprintf(p.w, "URL:              %s\n", url)
	} else if custom := d.CustomURL(); custom != "" {
		fmt.Fprintf(p.w, "URL:              %s\n", custom)
	}
	return nil
}

func (p printer) revisions(revs []model.Revision) error {
	if p.json() {
		return p.printJSON(map[string]any{"resources": revs})
	}
	if len(revs) == 0 {
		fmt.Fprintln(p.w, "No revisions found.")
		return nil
	}

	fmt.Fprintf(p.w, "%-36s %-18s %-20s %s\n", "ID", "STATUS", "CREATED", "MESSAGE")
	for _, r := range revs {
		fmt.Fprintf(p.w, "%-36s %-18s %-20s %s\n", r.ID, r.Status, formatTime(r.CreatedAt), r.StatusMessage)
	}
	return nil
}

func (p printer) url(d *model.Deployment, url string) error {
	if p.json() {
		return p.printJSON(map[string]string{"deployment_id": d.ID, "url": url})
	}
	fmt.Fprintln(p.w, url)
	return nil
}

func (p printer) deleted(id string) error {
	if p.json() {
		return p.printJSON(map[string]string{"status": "deleted", "deployment_id": id})
	}
	fmt.Fprintf(p.w, "Deleted deployment %s\n", id)
	return nil
}

func deploymentType(d *model.Deployment) string {
	if d.SourceConfig == nil || d.SourceConfig.DeploymentType == "" {
		return "-"
	}
	return string(d.SourceConfig.DeploymentType)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
