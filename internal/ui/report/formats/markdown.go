// Package formats renders assembled impact reports into output documents.
package formats

import (
	"fmt"
	"strings"
	"time"

	"mwcheck/internal/core/catalog"
	"mwcheck/internal/core/report"
	"mwcheck/internal/core/scan"
)

type MarkdownRenderer struct{}

func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{}
}

func (m *MarkdownRenderer) Render(rep report.Report) ([]byte, error) {
	var b strings.Builder

	b.WriteString("---\n")
	b.WriteString("title: Upgrade Impact Report\n")
	b.WriteString("middleware: " + nonEmpty(rep.Meta.Middleware, "unknown") + "\n")
	fmt.Fprintf(&b, "range: %s -> %s\n", rep.Meta.From, rep.Meta.To)
	b.WriteString("generated_at: " + rep.Meta.GeneratedAt.UTC().Format(time.RFC3339) + "\n")
	b.WriteString("run_id: " + rep.Meta.RunID + "\n")
	b.WriteString("---\n\n")

	fmt.Fprintf(&b, "# Upgrade Impact: %s %s -> %s\n\n", rep.Meta.Middleware, rep.Meta.From, rep.Meta.To)
	fmt.Fprintf(&b, "Scanned `%s` against %d version(s): %s.\n\n",
		rep.Meta.Root, len(rep.Meta.VersionsCovered), joinVersions(rep.Meta.VersionsCovered))

	b.WriteString("## Summary\n")
	b.WriteString("| Metric | Value |\n")
	b.WriteString("| --- | --- |\n")
	fmt.Fprintf(&b, "| Total Changes | %d |\n", rep.Summary.TotalChanges)
	fmt.Fprintf(&b, "| Changes With Matches | %d |\n", rep.Summary.ChangesWithMatches)
	fmt.Fprintf(&b, "| Affected Files | %d |\n", rep.Summary.AffectedFiles)
	fmt.Fprintf(&b, "| Total Matches | %d |\n", rep.Summary.TotalMatches)
	fmt.Fprintf(&b, "| Truncated Scans | %d |\n", rep.Summary.TruncatedScans)
	fmt.Fprintf(&b, "| Invalid Patterns | %d |\n\n", rep.Summary.InvalidPatterns)

	m.writeMatched(&b, rep)
	m.writeIssues(&b, rep)
	m.writeUnmatched(&b, rep)

	return []byte(b.String()), nil
}

func (m *MarkdownRenderer) writeMatched(b *strings.Builder, rep report.Report) {
	b.WriteString("## Affected Changes\n")

	any := false
	for _, res := range rep.Results {
		if res.MatchCount == 0 {
			continue
		}
		any = true

		fmt.Fprintf(b, "\n### [%s] %s\n\n", res.Record.Kind, res.Record.Description)
		fmt.Fprintf(b, "- Introduced in: `%s`\n", res.Record.IntroducedIn)
		if res.Record.Category != "" {
			fmt.Fprintf(b, "- Category: `%s`\n", res.Record.Category)
		}
		fmt.Fprintf(b, "- Pattern: `%s`\n", res.Record.Pattern)
		if res.Record.Replacement != "" {
			fmt.Fprintf(b, "- Replacement: %s\n", res.Record.Replacement)
		}
		fmt.Fprintf(b, "- Source: %s\n", sourceLink(res.Record.Source, res.Record.SourceURL))
		fmt.Fprintf(b, "- Matches: %d in %d file(s)\n", res.MatchCount, len(res.AffectedFiles))
		if res.Truncated {
			b.WriteString("- Note: scan timed out, match list is partial\n")
		}

		for _, site := range res.Matches {
			fmt.Fprintf(b, "\n`%s:%d`\n\n", site.Path, site.Line)
			fmt.Fprintf(b, "```%s\n", scan.FenceLanguage(site.Path))
			for _, line := range site.Before {
				b.WriteString(line + "\n")
			}
			b.WriteString(site.Content + "\n")
			for _, line := range site.After {
				b.WriteString(line + "\n")
			}
			b.WriteString("```\n")
		}

		if res.Annotation != "" {
			b.WriteString("\n#### Assessment\n\n")
			b.WriteString(strings.TrimSpace(res.Annotation) + "\n")
		}
	}

	if !any {
		b.WriteString("No changes matched the scanned codebase.\n")
	}
	b.WriteString("\n")
}

func (m *MarkdownRenderer) writeIssues(b *strings.Builder, rep report.Report) {
	rows := make([]string, 0)
	for _, res := range rep.Results {
		if res.Issue == nil {
			continue
		}
		rows = append(rows, fmt.Sprintf("| %s | `%s` | %s |\n",
			res.Issue.Code, truncatePattern(res.Record.Pattern), res.Issue.Message))
	}
	if len(rows) == 0 {
		return
	}

	b.WriteString("## Scan Issues\n")
	b.WriteString("| Code | Pattern | Detail |\n")
	b.WriteString("| --- | --- | --- |\n")
	for _, row := range rows {
		b.WriteString(row)
	}
	b.WriteString("\n")
}

func (m *MarkdownRenderer) writeUnmatched(b *strings.Builder, rep report.Report) {
	rows := make([]string, 0)
	for _, res := range rep.Results {
		if res.MatchCount > 0 || res.Issue != nil {
			continue
		}
		rows = append(rows, fmt.Sprintf("| %s | %s | %s |\n",
			res.Record.IntroducedIn, res.Record.Kind, res.Record.Description))
	}
	if len(rows) == 0 {
		return
	}

	b.WriteString("<details>\n<summary>Changes without matches (" +
		fmt.Sprintf("%d", len(rows)) + ")</summary>\n\n")
	b.WriteString("| Version | Kind | Change |\n")
	b.WriteString("| --- | --- | --- |\n")
	for _, row := range rows {
		b.WriteString(row)
	}
	b.WriteString("\n</details>\n")
}

func sourceLink(source, url string) string {
	if url == "" {
		return source
	}
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return fmt.Sprintf("[%s](%s)", source, url)
	}
	return fmt.Sprintf("%s (`%s`)", source, url)
}

func truncatePattern(pattern string) string {
	const max = 60
	if len(pattern) <= max {
		return pattern
	}
	return pattern[:max] + "..."
}

func nonEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func joinVersions(versions []catalog.Version) string {
	if len(versions) == 0 {
		return "none"
	}
	parts := make([]string, len(versions))
	for i, v := range versions {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
