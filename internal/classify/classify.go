// Package classify decides whether a changed path should trigger a test run.
//
// A path qualifies when it is not ignored and it is either a test file or a
// source file. The ignore check runs first so build output that happens to
// carry a source extension (a compiled .js under /dist/, for example) can
// never re-trigger a run.
package classify

import (
	"regexp"
	"strings"
)

// Kind is the classification of a single path.
type Kind string

const (
	KindIgnored Kind = "ignored"
	KindTest    Kind = "test"
	KindSource  Kind = "source"
	KindOther   Kind = "other"
)

// Result describes how a path was classified.
type Result struct {
	Path string `json:"path"`
	Kind Kind   `json:"kind"`

	// Rule is the ignore rule that matched when Kind is KindIgnored.
	Rule string `json:"rule,omitempty"`
}

// Qualifies reports whether the result should schedule a run.
func (r Result) Qualifies() bool {
	return r.Kind == KindTest || r.Kind == KindSource
}

// DefaultIgnorePatterns are used when no ignore patterns are configured.
var DefaultIgnorePatterns = []string{
	"node_modules",
	"bower_components",
	"/out/",
	"/dist/",
	"/build/",
	"/bin/",
	"/obj/",
	"/target/",
	"/release/",
	"/debug/",
	".git/",
	".vscode/",
	".idea/",
	".dart_tool",
	".gradle/",
	".pytest_cache",
	"__pycache__",
	".mypy_cache",
	".venv",
	"/venv/",
	"/env/",
	".cache",
	".nyc_output",
	"coverage",
	"test-results",
	"reports",
	".sass-cache",
	".parcel-cache",
	".next",
	".nuxt",
	".turbo",
	".history",
	".DS_Store",
	"__MACOSX",
	"Thumbs.db",
	"desktop.ini",
	"$RECYCLE.BIN",
	"lost+found",
	"System Volume Information",
	".idea/workspace.xml",
}

// sourceExtensions is fixed for the process lifetime.
var sourceExtensions = map[string]struct{}{
	"dart": {}, "ts": {}, "tsx": {}, "js": {}, "jsx": {}, "py": {}, "java": {},
	"kt": {}, "kts": {}, "swift": {}, "rs": {}, "go": {}, "c": {}, "cpp": {},
	"cs": {}, "php": {}, "rb": {}, "m": {}, "mm": {}, "scala": {}, "hs": {},
}

var testDirs = map[string]struct{}{
	"test":      {},
	"tests":     {},
	"__tests__": {},
}

var (
	testInfixRe  = regexp.MustCompile(`(?i)(_test|\.test|\.spec|_spec)\.`)
	testPrefixRe = regexp.MustCompile(`(?i)^test_`)
	specRe       = regexp.MustCompile(`(?i)(Spec\.|Spec$)`)
	dartSuffixRe = regexp.MustCompile(`(?i)[_-]test\.dart$`)
	dartPrefixRe = regexp.MustCompile(`(?i)test_.*\.dart$`)
)

// Classifier applies a fixed ignore rule set. It is immutable; build a new
// one when the rules change.
type Classifier struct {
	rules []rule
}

type rule struct {
	raw      string
	fragment string // non-empty for rules containing a separator
	segment  string // lowercased bare segment
	filename bool   // segment contains a dot
}

// New creates a Classifier for the given ignore patterns. Empty and
// whitespace-only patterns are skipped.
func New(patterns []string) *Classifier {
	c := &Classifier{rules: make([]rule, 0, len(patterns))}
	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if strings.ContainsAny(p, `/\`) {
			c.rules = append(c.rules, rule{raw: p, fragment: normalize(p)})
			continue
		}
		seg := strings.ToLower(strings.Trim(p, "/"))
		c.rules = append(c.rules, rule{
			raw:      p,
			segment:  seg,
			filename: strings.Contains(seg, "."),
		})
	}
	return c
}

// Default creates a Classifier using DefaultIgnorePatterns.
func Default() *Classifier {
	return New(DefaultIgnorePatterns)
}

// Rules returns the ignore patterns in effect.
func (c *Classifier) Rules() []string {
	out := make([]string, len(c.rules))
	for i, r := range c.rules {
		out[i] = r.raw
	}
	return out
}

// IsIgnoredPath reports whether any ignore rule matches path.
func (c *Classifier) IsIgnoredPath(path string) bool {
	_, ok := c.matchIgnore(path)
	return ok
}

// IsTestPath reports whether path looks like a test file, either by living
// under a test folder or by following a common test naming convention.
func (c *Classifier) IsTestPath(path string) bool {
	return IsTestPath(path)
}

// IsSourcePath reports whether path has a recognised source extension.
func (c *Classifier) IsSourcePath(path string) bool {
	return IsSourcePath(path)
}

// Qualifies reports whether a change to path should schedule a run.
func (c *Classifier) Qualifies(path string) bool {
	return c.Classify(path).Qualifies()
}

// Classify returns the full classification of path.
func (c *Classifier) Classify(path string) Result {
	if r, ok := c.matchIgnore(path); ok {
		return Result{Path: path, Kind: KindIgnored, Rule: r}
	}
	if IsTestPath(path) {
		return Result{Path: path, Kind: KindTest}
	}
	if IsSourcePath(path) {
		return Result{Path: path, Kind: KindSource}
	}
	return Result{Path: path, Kind: KindOther}
}

func (c *Classifier) matchIgnore(path string) (string, bool) {
	p := normalize(path)
	parts := segments(p)

	for _, r := range c.rules {
		if r.fragment != "" {
			if strings.Contains(p, r.fragment) || strings.HasSuffix(p, r.fragment) {
				return r.raw, true
			}
			continue
		}

		for _, part := range parts {
			if strings.ToLower(part) == r.segment {
				return r.raw, true
			}
		}

		if r.filename && len(parts) > 0 && strings.ToLower(parts[len(parts)-1]) == r.segment {
			return r.raw, true
		}
	}
	return "", false
}

// IsTestPath reports whether path looks like a test file.
func IsTestPath(path string) bool {
	parts := segments(normalize(path))
	if len(parts) == 0 {
		return false
	}

	for _, dir := range parts[:len(parts)-1] {
		if _, ok := testDirs[strings.ToLower(dir)]; ok {
			return true
		}
	}

	name := parts[len(parts)-1]
	switch {
	case testInfixRe.MatchString(name), testPrefixRe.MatchString(name), specRe.MatchString(name):
		return true
	case dartSuffixRe.MatchString(name), dartPrefixRe.MatchString(name):
		return true
	}
	return false
}

// IsSourcePath reports whether path has a recognised source extension.
func IsSourcePath(path string) bool {
	name := filename(normalize(path))
	dot := strings.LastIndexByte(name, '.')
	if dot == -1 {
		return false
	}
	_, ok := sourceExtensions[strings.ToLower(name[dot+1:])]
	return ok
}

func normalize(path string) string {
	return strings.ReplaceAll(path, `\`, "/")
}

func segments(p string) []string {
	raw := strings.Split(p, "/")
	out := raw[:0]
	for _, s := range raw {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func filename(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}
