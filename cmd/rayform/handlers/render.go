package handlers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/imamik/rayform/internal/config"
	"github.com/imamik/rayform/internal/provisioning/outputs"
	"github.com/imamik/rayform/internal/provisioning/plan"
)

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorYellow = lipgloss.Color("#eab308")
	colorRed    = lipgloss.Color("#ef4444")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f9fafb")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorWhite)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
	keyStyle     = lipgloss.NewStyle().Width(28)

	actionStyles = map[plan.Action]lipgloss.Style{
		plan.ActionCreate:   lipgloss.NewStyle().Foreground(colorGreen),
		plan.ActionUpdate:   lipgloss.NewStyle().Foreground(colorYellow),
		plan.ActionDelete:   lipgloss.NewStyle().Foreground(colorRed),
		plan.ActionConflict: lipgloss.NewStyle().Foreground(colorRed).Bold(true),
		plan.ActionNoOp:     lipgloss.NewStyle().Foreground(colorDim),
	}

	actionSymbols = map[plan.Action]string{
		plan.ActionCreate:   "+",
		plan.ActionUpdate:   "~",
		plan.ActionDelete:   "-",
		plan.ActionConflict: "!",
		plan.ActionNoOp:     " ",
	}
)

func writeHeader(b *strings.Builder, title string) {
	b.WriteString("\n")
	b.WriteString(titleStyle.Render("  " + title))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  " + strings.Repeat("═", 30)))
	b.WriteString("\n\n")
}

// renderPlan produces a lipgloss-styled plan.
func renderPlan(deployment string, p *plan.Plan) string {
	var b strings.Builder
	writeHeader(&b, "rayform plan: "+deployment)

	for _, c := range p.Changes {
		style := actionStyles[c.Action]
		line := fmt.Sprintf("  %s %-24s %s", actionSymbols[c.Action], c.Kind, c.Name)
		b.WriteString(style.Render(line))
		b.WriteString("\n")
		for _, d := range c.Details {
			b.WriteString(dimStyle.Render("      " + d))
			b.WriteString("\n")
		}
	}

	summary := p.Summary()
	actions := make([]string, 0, len(summary))
	for a, n := range summary {
		actions = append(actions, fmt.Sprintf("%d %s", n, a))
	}
	sort.Strings(actions)

	b.WriteString("\n")
	b.WriteString(sectionStyle.Render("  Summary"))
	b.WriteString("\n")
	if !p.HasChanges() {
		b.WriteString("  No changes. Infrastructure matches the configuration.\n")
	} else {
		b.WriteString("  " + strings.Join(actions, ", ") + "\n")
	}
	return b.String()
}

// renderOutputs produces a lipgloss-styled table of node addresses.
func renderOutputs(doc *outputs.Document) string {
	var b strings.Builder
	writeHeader(&b, "rayform outputs: "+doc.Deployment)

	for _, e := range doc.Entries() {
		b.WriteString("  ")
		b.WriteString(keyStyle.Render(e.Key))
		b.WriteString(e.Value)
		b.WriteString("\n")
	}
	if doc.Head != nil && doc.Head.PublicIP != "" {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("  ssh ubuntu@%s   # then: ray status", doc.Head.PublicIP)))
		b.WriteString("\n")
	}
	return b.String()
}

// renderInitSummary prints the saved configuration and next steps.
func renderInitSummary(path string, cfg *config.Config) string {
	var b strings.Builder
	writeHeader(&b, "Configuration saved to "+path)

	rows := []outputs.Entry{
		{Key: "Name", Value: cfg.Name},
		{Key: "Region", Value: cfg.Region},
		{Key: "Head", Value: "1 x " + cfg.Nodes.InstanceType},
		{Key: "Workers", Value: fmt.Sprintf("%d x %s", cfg.WorkerCount(), cfg.Nodes.InstanceType)},
		{Key: "Ray port exposed", Value: fmt.Sprintf("%t", cfg.ClusterPortExposed())},
	}
	for _, r := range rows {
		b.WriteString("  ")
		b.WriteString(keyStyle.Render(r.Key))
		b.WriteString(r.Value)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(sectionStyle.Render("  Next steps"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  rayform plan -c %s\n", path)
	fmt.Fprintf(&b, "  rayform apply -c %s\n", path)
	return b.String()
}
