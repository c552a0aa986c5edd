// Package upstream fetches the release engineering UPGRADING notes published
// with each middleware version and shapes their sections into change records.
package upstream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mwcheck/internal/core/catalog"
	"mwcheck/internal/shared/observability"
	"mwcheck/internal/shared/util"
)

const sourceID = "upstream"

type Source struct {
	baseURL   string
	userAgent string
	client    *http.Client
	limiter   *util.Limiter
}

func New(baseURL, userAgent string, timeout time.Duration, limiter *util.Limiter) *Source {
	return &Source{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
		limiter:   limiter,
	}
}

func (s *Source) ID() string { return sourceID }

// Changes downloads the UPGRADING file from the version's release branch. A
// missing branch (unreleased or reorganized version) yields an empty set.
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

	url := fmt.Sprintf("%s/PHP-%s/UPGRADING", s.baseURL, version)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		observability.SourceFetchErrorsTotal.WithLabelValues(sourceID).Inc()
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		slog.Debug("no upstream notes for version", "version", version, "url", url)
		return catalog.ChangeSet{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		observability.SourceFetchErrorsTotal.WithLabelValues(sourceID).Inc()
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		observability.SourceFetchErrorsTotal.WithLabelValues(sourceID).Inc()
		return nil, fmt.Errorf("read %s: %w", url, err)
	}

	return ParseUpgrading(string(body), version, url), nil
}
