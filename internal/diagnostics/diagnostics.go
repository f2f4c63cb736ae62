// Package diagnostics reports problems in the workspace so runs can be
// skipped while the code does not build.
package diagnostics

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// Severity of a diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInformation
	SeverityHint
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInformation:
		return "information"
	case SeverityHint:
		return "hint"
	default:
		return "unknown"
	}
}

// Diagnostic is a single reported problem.
type Diagnostic struct {
	Severity Severity
	Line     int
	Message  string
}

// Resource groups the diagnostics reported for one file.
type Resource struct {
	ID          string
	Diagnostics []Diagnostic
}

// Source returns every diagnostic currently known for the workspace.
type Source interface {
	All(ctx context.Context) ([]Resource, error)
}

// HasErrors reports whether any resource carries an error-severity entry.
func HasErrors(resources []Resource) bool {
	for _, r := range resources {
		for _, d := range r.Diagnostics {
			if d.Severity == SeverityError {
				return true
			}
		}
	}
	return false
}

// CommandSource runs a checker command (go vet, tsc --noEmit, a linter)
// and turns its `file:line[:col]: message` output into diagnostics.
type CommandSource struct {
	argv []string
	dir  string
}

// NewCommandSource creates a CommandSource running argv in dir. An empty
// argv reports no diagnostics.
func NewCommandSource(argv []string, dir string) *CommandSource {
	return &CommandSource{argv: argv, dir: dir}
}

// All runs the command and parses its combined output.
func (s *CommandSource) All(ctx context.Context) ([]Resource, error) {
	if len(s.argv) == 0 {
		return nil, nil
	}

	cmd := exec.CommandContext(ctx, s.argv[0], s.argv[1:]...)
	cmd.Dir = s.dir
	output, err := cmd.CombinedOutput()

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return nil, fmt.Errorf("failed to run diagnostics command %q: %w", strings.Join(s.argv, " "), err)
	}

	resources := Parse(output)
	if exitErr != nil && !HasErrors(resources) {
		resources = append(resources, Resource{
			ID: s.dir,
			Diagnostics: []Diagnostic{{
				Severity: SeverityError,
				Message:  fmt.Sprintf("%s exited with status %d", s.argv[0], exitErr.ExitCode()),
			}},
		})
	}
	return resources, nil
}

var lineRe = regexp.MustCompile(`^(?:vet: )?([^\s:#][^:]*):(\d+)(?::\d+)?:\s*(.*)$`)

// Parse extracts diagnostics from checker output. Messages mentioning a
// warning become warnings; everything else is an error.
func Parse(output []byte) []Resource {
	var (
		order []string
		byID  = make(map[string]*Resource)
	)

	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		m := lineRe.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if m == nil {
			continue
		}
		line, _ := strconv.Atoi(m[2])
		d := Diagnostic{Severity: SeverityError, Line: line, Message: m[3]}
		if strings.Contains(strings.ToLower(m[3]), "warning") {
			d.Severity = SeverityWarning
		}

		r, ok := byID[m[1]]
		if !ok {
			r = &Resource{ID: m[1]}
			byID[m[1]] = r
			order = append(order, m[1])
		}
		r.Diagnostics = append(r.Diagnostics, d)
	}

	out := make([]Resource, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}

// FakeSource implements Source with settable results for testing.
type FakeSource struct {
	mu        sync.Mutex
	resources []Resource
	err       error
	calls     int
}

// NewFakeSource creates a FakeSource reporting no diagnostics.
func NewFakeSource() *FakeSource {
	return &FakeSource{}
}

// Set replaces the reported resources.
func (f *FakeSource) Set(resources ...Resource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resources = resources
}

// SetError makes All fail with err.
func (f *FakeSource) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Calls returns how many times All was called.
func (f *FakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// All returns the configured resources.
func (f *FakeSource) All(ctx context.Context) ([]Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.resources, nil
}
