// Package console registers named commands and dispatches them from an
// interactive input stream.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownCommand indicates no command is registered under a name.
var ErrUnknownCommand = errors.New("unknown command")

// ErrQuit is returned by Serve when the user asks to quit.
var ErrQuit = errors.New("quit")

// Registration is an owned command registration.
type Registration interface {
	Release()
}

// Registry maps command names and aliases to functions.
type Registry struct {
	mu       sync.Mutex
	commands map[string]func()
	aliases  map[string]string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]func()),
		aliases:  make(map[string]string),
	}
}

// Register binds name and its aliases to fn. Releasing the registration
// removes the name and every alias.
func (r *Registry) Register(name string, fn func(), aliases ...string) Registration {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.commands[name] = fn
	for _, a := range aliases {
		r.aliases[a] = name
	}
	return &registration{release: func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.commands, name)
		for _, a := range aliases {
			if r.aliases[a] == name {
				delete(r.aliases, a)
			}
		}
	}}
}

// Execute runs the command registered under name or alias.
func (r *Registry) Execute(name string) error {
	r.mu.Lock()
	if target, ok := r.aliases[name]; ok {
		name = target
	}
	fn, ok := r.commands[name]
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	fn()
	return nil
}

// Names returns the registered command names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.commands))
	for n := range r.commands {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Serve reads one command per line from in until EOF, ctx is done, or a
// quit line ("q", "quit", "exit"). Unknown commands are reported to out.
// Serve returns ErrQuit on a quit line and nil on EOF.
func (r *Registry) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			cmd := strings.TrimSpace(line)
			switch cmd {
			case "":
				continue
			case "q", "quit", "exit":
				return ErrQuit
			}
			if err := r.Execute(cmd); err != nil {
				_, _ = fmt.Fprintf(out, "%v (commands: %s)\n", err, strings.Join(r.Names(), ", "))
			}
		}
	}
}

type registration struct {
	once    sync.Once
	release func()
}

func (g *registration) Release() {
	g.once.Do(g.release)
}
