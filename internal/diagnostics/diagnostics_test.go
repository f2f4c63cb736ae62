package diagnostics

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasErrors(t *testing.T) {
	tests := []struct {
		name      string
		resources []Resource
		want      bool
	}{
		{"nothing", nil, false},
		{"empty resource", []Resource{{ID: "a.go"}}, false},
		{"warnings only", []Resource{{ID: "a.go", Diagnostics: []Diagnostic{{Severity: SeverityWarning}, {Severity: SeverityHint}}}}, false},
		{"one error among many", []Resource{
			{ID: "a.go", Diagnostics: []Diagnostic{{Severity: SeverityInformation}}},
			{ID: "b.go", Diagnostics: []Diagnostic{{Severity: SeverityWarning}, {Severity: SeverityError}}},
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasErrors(tt.resources))
		})
	}
}

func TestSeverity_String(t *testing.T) {
	assert.Equal(t, "error", SeverityError.String())
	assert.Equal(t, "warning", SeverityWarning.String())
	assert.Equal(t, "information", SeverityInformation.String())
	assert.Equal(t, "hint", SeverityHint.String())
	assert.Equal(t, "unknown", Severity(9).String())
}

func TestParse(t *testing.T) {
	output := []byte(`# example.com/app/pkg
pkg/server.go:12:5: undefined: handler
pkg/server.go:40: unreachable code
vet: cmd/main.go:7:2: fmt.Printf format %d has arg of wrong type
src/app.ts:3:1: warning: unused variable
some unrelated line
`)

	resources := Parse(output)

	require.Len(t, resources, 3)
	assert.Equal(t, "pkg/server.go", resources[0].ID)
	require.Len(t, resources[0].Diagnostics, 2)
	assert.Equal(t, Diagnostic{Severity: SeverityError, Line: 12, Message: "undefined: handler"}, resources[0].Diagnostics[0])
	assert.Equal(t, 40, resources[0].Diagnostics[1].Line)

	assert.Equal(t, "cmd/main.go", resources[1].ID)
	assert.Equal(t, SeverityError, resources[1].Diagnostics[0].Severity)

	assert.Equal(t, "src/app.ts", resources[2].ID)
	assert.Equal(t, SeverityWarning, resources[2].Diagnostics[0].Severity)

	assert.True(t, HasErrors(resources))
}

func TestParse_Empty(t *testing.T) {
	assert.Empty(t, Parse(nil))
	assert.Empty(t, Parse([]byte("ok  \texample.com/app\t0.01s\n")))
}

func TestCommandSource(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX shell")
	}
	ctx := context.Background()

	t.Run("no command reports nothing", func(t *testing.T) {
		res, err := NewCommandSource(nil, t.TempDir()).All(ctx)
		require.NoError(t, err)
		assert.Empty(t, res)
	})

	t.Run("clean exit", func(t *testing.T) {
		res, err := NewCommandSource([]string{"sh", "-c", "exit 0"}, t.TempDir()).All(ctx)
		require.NoError(t, err)
		assert.False(t, HasErrors(res))
	})

	t.Run("parsed errors", func(t *testing.T) {
		src := NewCommandSource([]string{"sh", "-c", "echo 'a.go:1:1: broken' >&2; exit 2"}, t.TempDir())
		res, err := src.All(ctx)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, "a.go", res[0].ID)
	})

	t.Run("failing exit without parsable output is a workspace error", func(t *testing.T) {
		dir := t.TempDir()
		res, err := NewCommandSource([]string{"sh", "-c", "echo nope; exit 1"}, dir).All(ctx)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, dir, res[0].ID)
		assert.True(t, HasErrors(res))
	})

	t.Run("missing binary is an error", func(t *testing.T) {
		_, err := NewCommandSource([]string{"testloop-no-such-binary"}, t.TempDir()).All(ctx)
		assert.Error(t, err)
	})
}

func TestFakeSource(t *testing.T) {
	f := NewFakeSource()
	ctx := context.Background()

	res, err := f.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, res)

	f.Set(Resource{ID: "x", Diagnostics: []Diagnostic{{Severity: SeverityError}}})
	res, err = f.All(ctx)
	require.NoError(t, err)
	assert.True(t, HasErrors(res))

	boom := errors.New("boom")
	f.SetError(boom)
	_, err = f.All(ctx)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, f.Calls())
}
