// Package community scrapes community-maintained version pages that track
// middleware changes in a more digestible form than the raw release notes.
package community

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"mwcheck/internal/core/catalog"
	"mwcheck/internal/shared/observability"
	"mwcheck/internal/shared/util"
)

const sourceID = "community"

// headingKinds classifies section headings on a version page. Matching is by
// lowercased substring so "Deprecations", "Deprecated Features" and
// "Deprecated INI Directives" all land on the same kind.
var headingKinds = []struct {
	needle string
	kind   catalog.ChangeKind
}{
	{"deprecat", catalog.KindDeprecation},
	{"backward incompatible", catalog.KindBreaking},
	{"breaking", catalog.KindBreaking},
	{"removed", catalog.KindRemoved},
	{"new", catalog.KindNew},
}

// Item length bounds filter navigation fragments and whole paragraphs that
// were never meant to be change entries.
const (
	minItemLen = 10
	maxItemLen = 300
)

type Source struct {
	baseURL   string
	host      string
	userAgent string
	limiter   *util.Limiter
}

func New(baseURL, userAgent string, limiter *util.Limiter) (*Source, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse community base url: %w", err)
	}
	return &Source{
		baseURL:   strings.TrimRight(baseURL, "/"),
		host:      u.Hostname(),
		userAgent: userAgent,
		limiter:   limiter,
	}, nil
}

func (s *Source) ID() string { return sourceID }

// Changes scrapes the community page for one version. A page that does not
// exist yet yields an empty set rather than an error, since community sites
// lag new releases.
func (s *Source) Changes(ctx context.Context, version catalog.Version) (catalog.ChangeSet, error) {
	start := time.Now()
	defer func() {
		observability.SourceFetchDuration.WithLabelValues(sourceID).Observe(time.Since(start).Seconds())
	}()

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, 1); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pageURL := fmt.Sprintf("%s/%s", s.baseURL, version)

	c := colly.NewCollector(
		colly.AllowedDomains(s.host),
	)
	c.UserAgent = s.userAgent

	var (
		set       catalog.ChangeSet
		statusErr int
		fetchErr  error
	)

	c.OnError(func(r *colly.Response, err error) {
		statusErr = r.StatusCode
		fetchErr = err
	})

	c.OnHTML("html", func(e *colly.HTMLElement) {
		e.DOM.Find("h2, h3").Each(func(_ int, heading *goquery.Selection) {
			kind, ok := classifyHeading(heading.Text())
			if !ok {
				return
			}
			heading.NextUntil("h2, h3").Find("li").Each(func(_ int, item *goquery.Selection) {
				description := strings.Join(strings.Fields(item.Text()), " ")
				if len(description) < minItemLen || len(description) > maxItemLen {
					return
				}
				set = append(set, catalog.ChangeRecord{
					IntroducedIn: version,
					Kind:         kind,
					Description:  description,
					Source:       sourceID,
					SourceURL:    pageURL,
				})
			})
		})
	})

	if err := c.Visit(pageURL); err != nil && fetchErr == nil {
		fetchErr = err
	}
	c.Wait()

	if statusErr == http.StatusNotFound {
		return catalog.ChangeSet{}, nil
	}
	if fetchErr != nil {
		observability.SourceFetchErrorsTotal.WithLabelValues(sourceID).Inc()
		return nil, fmt.Errorf("scrape %s: %w", pageURL, fetchErr)
	}

	return set, nil
}

func classifyHeading(text string) (catalog.ChangeKind, bool) {
	lower := strings.ToLower(text)
	for _, hk := range headingKinds {
		if strings.Contains(lower, hk.needle) {
			return hk.kind, true
		}
	}
	return "", false
}
