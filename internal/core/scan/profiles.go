package scan

import "strings"

// DefaultProfile is the wildcard profile used when the middleware has no
// dedicated extension list.
const DefaultProfile = "default"

// fileProfiles maps a middleware identifier to the file suffixes worth
// searching for that ecosystem.
var fileProfiles = map[string][]string{
	"php":        {"php", "phtml", "inc"},
	"laravel":    {"php", "blade.php", "phtml"},
	"python":     {"py", "pyw"},
	"django":     {"py", "html"},
	"node":       {"js", "ts", "mjs", "cjs"},
	"react":      {"js", "jsx", "ts", "tsx"},
	"vue":        {"vue", "js", "ts"},
	"java":       {"java"},
	"spring":     {"java", "xml", "properties", "yml", "yaml"},
	"mysql":      {"sql"},
	"postgresql": {"sql"},
	"ruby":       {"rb", "erb"},
	"rails":      {"rb", "erb", "html.erb"},
	"go":         {"go"},

	DefaultProfile: {"php", "js", "ts", "py", "java", "rb", "go", "rs", "sql"},
}

// fenceLanguages maps a file suffix to the fenced code block language used
// when rendering match context.
var fenceLanguages = map[string]string{
	"php":       "php",
	"phtml":     "php",
	"inc":       "php",
	"blade.php": "php",
	"py":        "python",
	"pyw":       "python",
	"js":        "javascript",
	"mjs":       "javascript",
	"cjs":       "javascript",
	"ts":        "typescript",
	"jsx":       "jsx",
	"tsx":       "tsx",
	"vue":       "vue",
	"java":      "java",
	"sql":       "sql",
	"rb":        "ruby",
	"erb":       "erb",
	"go":        "go",
	"rs":        "rust",
	"xml":       "xml",
	"yml":       "yaml",
	"yaml":      "yaml",
	"json":      "json",
	"html":      "html",
	"css":       "css",
}

// Profile resolves a middleware identifier to its extension allow-list. An
// unknown middleware falls back to the default profile.
func Profile(middleware string) []string {
	name := strings.ToLower(strings.TrimSpace(middleware))
	if exts, ok := fileProfiles[name]; ok {
		return exts
	}
	return fileProfiles[DefaultProfile]
}

// KnownProfile reports whether the middleware has a dedicated profile.
func KnownProfile(middleware string) bool {
	_, ok := fileProfiles[strings.ToLower(strings.TrimSpace(middleware))]
	return ok
}

// FenceLanguage returns the code block language for a file path, empty when
// the suffix has no mapping.
func FenceLanguage(path string) string {
	lower := strings.ToLower(path)
	// Compound suffixes such as blade.php take precedence over plain ones.
	best := ""
	bestLen := 0
	for suffix, lang := range fenceLanguages {
		if strings.HasSuffix(lower, "."+suffix) && len(suffix) > bestLen {
			best = lang
			bestLen = len(suffix)
		}
	}
	return best
}

// DefaultExcludedDirs is the conventional non-source directory set skipped
// during discovery. Callers may extend it through configuration.
func DefaultExcludedDirs() []string {
	return []string{
		".git", ".svn", ".hg",
		"node_modules", "vendor", "bower_components",
		"dist", "build", "target", "out",
		"__pycache__", ".tox", ".venv", "venv",
		".idea", ".vscode",
	}
}
