package app

import (
	"fmt"

	"mwcheck/internal/core/config"
	"mwcheck/internal/core/ports"
	"mwcheck/internal/sources/community"
	"mwcheck/internal/sources/local"
	"mwcheck/internal/sources/upstream"
)

// buildSources instantiates the middleware's configured sources in its
// declared priority order. The network sources share the app's rate limiter.
func (a *App) buildSources(mw config.Middleware) ([]ports.ChangeSource, error) {
	sources := make([]ports.ChangeSource, 0, len(mw.Sources))
	for _, id := range mw.Sources {
		switch id {
		case "local":
			sources = append(sources, local.New(mw.Name, a.Config.Sources.DataDir))
		case "upstream":
			sources = append(sources, upstream.New(
				a.Config.Sources.UpstreamBaseURL,
				a.Config.Sources.UserAgent,
				a.Config.Sources.RequestTimeout,
				a.limiter,
			))
		case "community":
			src, err := community.New(
				a.Config.Sources.CommunityBaseURL,
				a.Config.Sources.UserAgent,
				a.limiter,
			)
			if err != nil {
				return nil, err
			}
			sources = append(sources, src)
		default:
			// Config validation rejects unknown ids; reaching this is a bug.
			return nil, fmt.Errorf("unknown change source %q", id)
		}
	}
	return sources, nil
}
