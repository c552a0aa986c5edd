// Package annotate enriches scan results with migration guidance. The API
// annotator asks a language model to assess the matched sites; the prompt
// annotator produces the same prompt as text so users can run it through any
// assistant themselves.
package annotate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"mwcheck/internal/core/catalog"
	"mwcheck/internal/core/scan"
	"mwcheck/internal/shared/observability"
)

const maxResponseTokens = 1024

// APIAnnotator sends annotation prompts to the Anthropic API. The client is
// created on first use so that configuring an API key is only required when
// annotation actually runs.
type APIAnnotator struct {
	apiKey   string
	model    string
	maxSites int
	client   *anthropic.Client
}

func NewAPIAnnotator(apiKey, model string, maxSites int) *APIAnnotator {
	return &APIAnnotator{
		apiKey:   apiKey,
		model:    model,
		maxSites: maxSites,
	}
}

func (a *APIAnnotator) ensureClient() error {
	if a.client != nil {
		return nil
	}
	if a.apiKey == "" {
		return fmt.Errorf("annotation API key not configured")
	}
	client := anthropic.NewClient(option.WithAPIKey(a.apiKey))
	a.client = &client
	return nil
}

func (a *APIAnnotator) Annotate(ctx context.Context, rec catalog.ChangeRecord, matches []scan.MatchSite) (string, error) {
	if err := a.ensureClient(); err != nil {
		return "", err
	}

	start := time.Now()
	defer func() {
		observability.AnnotationDuration.Observe(time.Since(start).Seconds())
	}()

	prompt := BuildPrompt(rec, matches, a.maxSites)
	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: maxResponseTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("annotation request failed: %w", err)
	}

	var content strings.Builder
	for _, block := range message.Content {
		content.WriteString(block.Text)
	}
	if content.Len() == 0 {
		return "", fmt.Errorf("empty annotation response")
	}
	return content.String(), nil
}

// PromptAnnotator renders the analysis prompt itself as the annotation, for
// runs without API access.
type PromptAnnotator struct {
	maxSites int
}

func NewPromptAnnotator(maxSites int) *PromptAnnotator {
	return &PromptAnnotator{maxSites: maxSites}
}

func (p *PromptAnnotator) Annotate(_ context.Context, rec catalog.ChangeRecord, matches []scan.MatchSite) (string, error) {
	return BuildPrompt(rec, matches, p.maxSites), nil
}

// BuildPrompt assembles the analysis request for one change and its matched
// sites. At most maxSites sites are included to keep the prompt bounded on
// codebases with hundreds of hits.
func BuildPrompt(rec catalog.ChangeRecord, matches []scan.MatchSite, maxSites int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "A codebase is being migrated and is affected by the following change introduced in version %s.\n\n", rec.IntroducedIn)
	fmt.Fprintf(&b, "Kind: %s\n", rec.Kind)
	if rec.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", rec.Category)
	}
	fmt.Fprintf(&b, "Change: %s\n", rec.Description)
	if rec.Replacement != "" {
		fmt.Fprintf(&b, "Suggested replacement: %s\n", rec.Replacement)
	}

	shown := matches
	if maxSites > 0 && len(shown) > maxSites {
		shown = shown[:maxSites]
	}

	fmt.Fprintf(&b, "\nThe change matched %d site(s). ", len(matches))
	if len(shown) < len(matches) {
		fmt.Fprintf(&b, "The first %d are shown below.\n", len(shown))
	} else {
		b.WriteString("All sites are shown below.\n")
	}

	for _, site := range shown {
		fmt.Fprintf(&b, "\n%s:%d\n```%s\n", site.Path, site.Line, scan.FenceLanguage(site.Path))
		for _, line := range site.Before {
			b.WriteString(line + "\n")
		}
		b.WriteString(site.Content + "\n")
		for _, line := range site.After {
			b.WriteString(line + "\n")
		}
		b.WriteString("```\n")
	}

	b.WriteString("\nFor each site, state whether it is actually affected and what the minimal fix is. Be concise.")
	return b.String()
}
