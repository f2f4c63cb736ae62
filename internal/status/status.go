// Package status presents the watch state and user-facing warnings.
package status

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

const (
	// ToggleCommand is the command the indicator invokes.
	ToggleCommand = "test-loop.toggleWatch"

	// Tooltip describes the indicator action.
	Tooltip = "Toggle Test Loop"
)

// Format renders the indicator text for a state label ("On", "Off").
func Format(state string) string {
	return "Test Loop: " + state
}

var (
	TextOn  = Format("On")
	TextOff = Format("Off")
)

// Indicator is a single status element showing whether the loop is on.
type Indicator interface {
	SetText(text string)
	Text() string
	Tooltip() string
	Command() string

	// Release removes the indicator. It is safe to call more than once.
	Release()
}

// Notifier surfaces non-blocking messages to the user.
type Notifier interface {
	Warn(msg string)
}

var (
	onColor      = color.New(color.FgGreen, color.Bold)
	offColor     = color.New(color.FgHiBlack)
	warningColor = color.New(color.FgYellow, color.Bold)
)

// TerminalIndicator prints a status line whenever its text changes.
type TerminalIndicator struct {
	mu       sync.Mutex
	w        io.Writer
	text     string
	released bool
}

// NewTerminalIndicator creates an indicator showing TextOff. A nil writer
// defaults to os.Stdout.
func NewTerminalIndicator(w io.Writer) *TerminalIndicator {
	if w == nil {
		w = os.Stdout
	}
	ind := &TerminalIndicator{w: w}
	ind.SetText(TextOff)
	return ind
}

// SetText updates and prints the indicator text.
func (i *TerminalIndicator) SetText(text string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.released || text == i.text {
		return
	}
	i.text = text

	clr := offColor
	mark := "○"
	if text == TextOn {
		clr = onColor
		mark = "●"
	}
	_, _ = clr.Fprintf(i.w, "%s %s  (%s)\n", mark, text, strings.ToLower(Tooltip))
}

// Text returns the current text.
func (i *TerminalIndicator) Text() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.text
}

// Tooltip returns the indicator tooltip.
func (i *TerminalIndicator) Tooltip() string { return Tooltip }

// Command returns the command invoked by the indicator.
func (i *TerminalIndicator) Command() string { return ToggleCommand }

// Release stops further output.
func (i *TerminalIndicator) Release() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.released = true
}

// TerminalNotifier writes warnings to a terminal stream.
type TerminalNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTerminalNotifier creates a notifier. A nil writer defaults to os.Stderr.
func NewTerminalNotifier(w io.Writer) *TerminalNotifier {
	if w == nil {
		w = os.Stderr
	}
	return &TerminalNotifier{w: w}
}

// Warn prints msg with a warning marker.
func (n *TerminalNotifier) Warn(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, _ = warningColor.Fprintf(n.w, "⚠ %s\n", msg)
}

// NopIndicator keeps the indicator text without displaying it. It serves
// one-shot runs that have no watch state to show.
type NopIndicator struct {
	mu   sync.Mutex
	text string
}

func (n *NopIndicator) SetText(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.text = text
}

func (n *NopIndicator) Text() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.text
}

func (n *NopIndicator) Tooltip() string { return Tooltip }
func (n *NopIndicator) Command() string { return ToggleCommand }
func (n *NopIndicator) Release()        {}

// FakeIndicator records every text it is given.
type FakeIndicator struct {
	mu       sync.Mutex
	history  []string
	released bool
}

// NewFakeIndicator creates a FakeIndicator showing TextOff.
func NewFakeIndicator() *FakeIndicator {
	return &FakeIndicator{history: []string{TextOff}}
}

func (f *FakeIndicator) SetText(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, text)
}

func (f *FakeIndicator) Text() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history[len(f.history)-1]
}

func (f *FakeIndicator) Tooltip() string { return Tooltip }
func (f *FakeIndicator) Command() string { return ToggleCommand }

func (f *FakeIndicator) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = true
}

// Released reports whether Release was called.
func (f *FakeIndicator) Released() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

// History returns every text set, starting with the initial one.
func (f *FakeIndicator) History() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.history...)
}

// FakeNotifier records warnings.
type FakeNotifier struct {
	mu       sync.Mutex
	warnings []string
}

func (f *FakeNotifier) Warn(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warnings = append(f.warnings, msg)
}

// Warnings returns the recorded warnings.
func (f *FakeNotifier) Warnings() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.warnings...)
}

// String implements fmt.Stringer for debugging output in tests.
func (f *FakeNotifier) String() string {
	return fmt.Sprintf("%d warnings", len(f.Warnings()))
}
