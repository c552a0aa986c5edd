package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"mwcheck/internal/core/config"
	"mwcheck/internal/core/ports"
	"mwcheck/internal/core/report"
	"mwcheck/internal/ui/report/formats"
)

// writeOutputs renders the report into every configured format. With more
// than one middleware entry, file names gain the middleware prefix so runs
// do not overwrite each other.
func (a *App) writeOutputs(mw config.Middleware, rep report.Report) error {
	targets := map[string]ports.Renderer{}
	if a.Config.Output.Markdown != "" {
		targets[a.outputPath(mw, a.Config.Output.Markdown)] = formats.NewMarkdownRenderer()
	}
	if a.Config.Output.JSON != "" {
		targets[a.outputPath(mw, a.Config.Output.JSON)] = formats.NewJSONRenderer()
	}

	for path, renderer := range targets {
		data, err := renderer.Render(rep)
		if err != nil {
			return fmt.Errorf("render %q: %w", path, err)
		}
		if err := writeArtifact(path, data); err != nil {
			return fmt.Errorf("write %q: %w", path, err)
		}
		slog.Info("report written", "middleware", mw.Name, "path", path, "bytes", len(data))
	}
	return nil
}

func (a *App) outputPath(mw config.Middleware, configured string) string {
	if len(a.Config.Middleware) <= 1 {
		return configured
	}
	dir, base := filepath.Split(configured)
	return filepath.Join(dir, mw.Name+"-"+base)
}

func writeArtifact(path string, data []byte) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
