package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danieljhkim/testloop/internal/classify"
)

const (
	// DefaultCooldownMs is the gate cooldown after a run settles.
	DefaultCooldownMs = 200

	// DefaultDebounceMs is the quiet period before a scheduled run fires.
	DefaultDebounceMs = 300

	// DefaultGlob selects every path in the workspace.
	DefaultGlob = "**/*"
)

// ErrInvalidConfig indicates the configuration file could not be parsed.
var ErrInvalidConfig = errors.New("invalid config")

// Commands are the external commands testloop invokes. Each entry is an
// argv list; an empty list disables the command.
type Commands struct {
	RunAll       []string `yaml:"runAll,omitempty" json:"runAll"`
	Run          []string `yaml:"run,omitempty" json:"run"`
	ClearResults []string `yaml:"clearResults,omitempty" json:"clearResults"`
	Diagnostics  []string `yaml:"diagnostics,omitempty" json:"diagnostics"`
}

// DefaultCommands returns the commands used for a Go workspace.
func DefaultCommands() Commands {
	return Commands{
		RunAll:      []string{"go", "test", "./..."},
		Run:         []string{"go", "test", "."},
		Diagnostics: []string{"go", "vet", "./..."},
	}
}

// Snapshot is an immutable view of the configuration. A reload produces a
// new Snapshot; fields are never mutated after Load returns.
type Snapshot struct {
	IgnorePatterns []string `json:"ignorePatterns"`
	CooldownMs     int      `json:"cooldownMs"`
	DebounceMs     int      `json:"debounceMs"`
	Glob           string   `json:"glob"`
	Commands       Commands `json:"commands"`

	// Source is the file the snapshot was read from, empty for defaults.
	Source string `json:"source,omitempty"`
}

// Cooldown returns CooldownMs as a duration.
func (s *Snapshot) Cooldown() time.Duration {
	return time.Duration(s.CooldownMs) * time.Millisecond
}

// Debounce returns DebounceMs as a duration.
func (s *Snapshot) Debounce() time.Duration {
	return time.Duration(s.DebounceMs) * time.Millisecond
}

// Defaults returns a Snapshot with every field at its built-in default.
func Defaults() *Snapshot {
	return &Snapshot{
		IgnorePatterns: slices.Clone(classify.DefaultIgnorePatterns),
		CooldownMs:     DefaultCooldownMs,
		DebounceMs:     DefaultDebounceMs,
		Glob:           DefaultGlob,
		Commands:       DefaultCommands(),
	}
}

// file mirrors the YAML layout. Pointers distinguish absent keys from zero.
type file struct {
	TestLoop *section `yaml:"test-loop"`
}

type section struct {
	IgnorePatterns []string  `yaml:"ignorePatterns,omitempty"`
	CooldownMs     *int      `yaml:"cooldownMs,omitempty"`
	DebounceMs     *int      `yaml:"debounceMs,omitempty"`
	Glob           string    `yaml:"glob,omitempty"`
	Commands       *Commands `yaml:"commands,omitempty"`
}

// Load reads the configuration file at path. It always returns a usable
// Snapshot: a missing file yields the defaults with a nil error, and a
// malformed file yields the defaults together with an error wrapping
// ErrInvalidConfig so the caller can log it.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Defaults(), nil
		}
		return Defaults(), fmt.Errorf("failed to read config %s: %w", path, err)
	}

	snap, err := Parse(data)
	if err != nil {
		return Defaults(), fmt.Errorf("%s: %w", path, err)
	}
	snap.Source = path
	return snap, nil
}

// Parse builds a Snapshot from YAML, filling absent or unusable fields with
// defaults.
func Parse(data []byte) (*Snapshot, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	snap := Defaults()
	sec := f.TestLoop
	if sec == nil {
		return snap, nil
	}

	if len(sec.IgnorePatterns) > 0 {
		snap.IgnorePatterns = slices.Clone(sec.IgnorePatterns)
	}
	if sec.CooldownMs != nil && *sec.CooldownMs >= 0 {
		snap.CooldownMs = *sec.CooldownMs
	}
	if sec.DebounceMs != nil && *sec.DebounceMs >= 0 {
		snap.DebounceMs = *sec.DebounceMs
	}
	if sec.Glob != "" {
		snap.Glob = sec.Glob
	}
	if c := sec.Commands; c != nil {
		if c.RunAll != nil {
			snap.Commands.RunAll = slices.Clone(c.RunAll)
		}
		if c.Run != nil {
			snap.Commands.Run = slices.Clone(c.Run)
		}
		if c.ClearResults != nil {
			snap.Commands.ClearResults = slices.Clone(c.ClearResults)
		}
		if c.Diagnostics != nil {
			snap.Commands.Diagnostics = slices.Clone(c.Diagnostics)
		}
	}
	return snap, nil
}

// Marshal renders a Snapshot as a configuration file.
func Marshal(s *Snapshot) ([]byte, error) {
	cooldown, debounce := s.CooldownMs, s.DebounceMs
	cmds := s.Commands
	f := file{TestLoop: &section{
		IgnorePatterns: s.IgnorePatterns,
		CooldownMs:     &cooldown,
		DebounceMs:     &debounce,
		Glob:           s.Glob,
		Commands:       &cmds,
	}}
	data, err := yaml.Marshal(&f)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
