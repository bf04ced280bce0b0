package cmd

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/starterkit/starter/internal/client"
	"github.com/starterkit/starter/internal/telemetry"
	"github.com/starterkit/starter/internal/utils"
	"github.com/starterkit/starter/pkg/metadata"
	"github.com/starterkit/starter/pkg/resolve"
)

const testMetadata = `{
  "_links": {"maven-project": {"href": "/starter.zip?type=maven-project"}},
  "type": {
    "type": "action",
    "default": "maven-project",
    "values": [
      {"id": "maven-project", "name": "Maven Project", "action": "/starter.zip"},
      {"id": "gradle-project", "name": "Gradle Project", "action": "/starter.zip"},
      {"id": "maven-build", "name": "Maven POM", "action": "/pom.xml"}
    ]
  },
  "language": {
    "type": "single-select",
    "default": "java",
    "values": [
      {"id": "java", "name": "Java"},
      {"id": "kotlin", "name": "Kotlin"}
    ]
  },
  "groupId": {"type": "text", "default": "com.example"},
  "dependencies": {
    "type": "hierarchical-multi-select",
    "values": [
      {"name": "Web", "values": [{"id": "web", "name": "Spring Web"}]},
      {"name": "Ops", "values": [{"id": "actuator", "name": "Spring Boot Actuator"}]}
    ]
  }
}`

type initServer struct {
	*httptest.Server
	mu      sync.Mutex
	queries []string
	paths   []string
}

func newInitServer(t *testing.T, project []byte) *initServer {
	t.Helper()
	s := &initServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			if r.Header.Get("Accept") != client.MetadataMediaType {
				http.Error(w, "not acceptable", http.StatusNotAcceptable)
				return
			}
			_, _ = io.WriteString(w, testMetadata)
		case "/starter.zip":
			s.record(r)
			w.Header().Set("Content-Disposition", `attachment; filename="demo.zip"`)
			_, _ = w.Write(project)
		case "/pom.xml":
			s.record(r)
			w.Header().Set("Content-Disposition", `attachment; filename="pom.xml"`)
			_, _ = io.WriteString(w, "<project/>")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *initServer) record(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, r.URL.Path)
	s.queries = append(s.queries, r.URL.RawQuery)
}

func projectZip(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		"demo/pom.xml":   "<project/>",
		"demo/HELP.md":   "# Getting Started\n\nRead the reference guide.\n",
		"demo/mvnw":      "#!/bin/sh\n",
		"demo/src/.keep": "",
	} {
		f, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(f, content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

type scriptedPrompter struct {
	text   map[string]string
	single map[string]string
	multi  []string
	err    error
}

func (p *scriptedPrompter) Text(_ context.Context, label, def string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	for k, v := range p.text {
		if strings.Contains(label, k) {
			return v, nil
		}
	}
	return def, nil
}

func (p *scriptedPrompter) SingleChoice(_ context.Context, label string, items []metadata.Item, initial int) (metadata.Item, error) {
	if p.err != nil {
		return metadata.Item{}, p.err
	}
	for k, id := range p.single {
		if strings.Contains(label, k) {
			if it, ok := metadata.FindItem(items, id); ok {
				return it, nil
			}
		}
	}
	return items[initial], nil
}

func (p *scriptedPrompter) MultiChoice(_ context.Context, _ string, items []metadata.Item) ([]metadata.Item, error) {
	if p.err != nil {
		return nil, p.err
	}
	var out []metadata.Item
	for _, id := range p.multi {
		if it, ok := metadata.FindItem(items, id); ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func TestRunInitNonInteractiveExtracts(t *testing.T) {
	srv := newInitServer(t, projectZip(t))
	dest := filepath.Join(t.TempDir(), "demo")
	var out bytes.Buffer

	err := runInit(context.Background(), initOptions{
		URL:            srv.URL,
		Path:           dest,
		NonInteractive: true,
		ActionParam:    true,
		Out:            &out,
	})
	require.NoError(t, err)

	require.Len(t, srv.queries, 1)
	assert.Equal(t, "/starter.zip", srv.paths[0])
	assert.Equal(t, "type=maven-project&language=java&groupId=com.example", srv.queries[0])
	assert.FileExists(t, filepath.Join(dest, "demo", "pom.xml"))
	assert.Contains(t, out.String(), "Project extracted to "+dest)
	assert.Contains(t, out.String(), "./mvnw spring-boot:run")
}

func TestRunInitOverridesAndRawFile(t *testing.T) {
	srv := newInitServer(t, projectZip(t))
	dest := filepath.Join(t.TempDir(), "shop.zip")
	var out bytes.Buffer

	err := runInit(context.Background(), initOptions{
		URL:            srv.URL,
		Path:           dest,
		NonInteractive: true,
		ActionParam:    true,
		Overrides: resolve.Overrides{
			"type":         "gradle-project",
			"groupId":      "com acme",
			"dependencies": "web,actuator",
		},
		Out: &out,
	})
	require.NoError(t, err)

	assert.Equal(t, "type=gradle-project&language=java&groupId=com%20acme&dependencies=web%2Cactuator", srv.queries[0])
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, projectZip(t)[:4], data[:4])
	assert.Contains(t, out.String(), "Project saved to "+dest)
}

func TestRunInitWithoutActionParam(t *testing.T) {
	srv := newInitServer(t, projectZip(t))
	dir := t.TempDir()

	err := runInit(context.Background(), initOptions{
		URL:            srv.URL,
		Path:           filepath.Join(dir, "pom.xml"),
		NonInteractive: true,
		Overrides:      resolve.Overrides{"type": "maven-build"},
		Out:            io.Discard,
	})
	require.NoError(t, err)

	assert.Equal(t, "/pom.xml", srv.paths[0])
	assert.Equal(t, "language=java&groupId=com.example", srv.queries[0])
	assert.FileExists(t, filepath.Join(dir, "pom.xml"))
}

func TestRunInitUnknownAction(t *testing.T) {
	srv := newInitServer(t, projectZip(t))

	err := runInit(context.Background(), initOptions{
		URL:            srv.URL,
		Path:           filepath.Join(t.TempDir(), "x.zip"),
		NonInteractive: true,
		Overrides:      resolve.Overrides{"type": "ant-project"},
		Out:            io.Discard,
	})
	require.Error(t, err)
	assert.Empty(t, srv.queries, "nothing is downloaded")

	var ue *utils.UserError
	require.ErrorAs(t, presentError(err), &ue)
	assert.Equal(t, "No project type could be determined", ue.Message)
}

func TestRunInitInteractive(t *testing.T) {
	srv := newInitServer(t, projectZip(t))
	var out bytes.Buffer

	err := runInit(context.Background(), initOptions{
		URL:         srv.URL,
		Path:        filepath.Join(t.TempDir(), "demo"),
		ActionParam: true,
		Overrides:   resolve.Overrides{"groupId": "org.acme"},
		Prompter: &scriptedPrompter{
			single: map[string]string{"language": "kotlin", "type": "gradle-project"},
			multi:  []string{"actuator"},
		},
		Out: &out,
	})
	require.NoError(t, err)
	assert.Equal(t, "type=gradle-project&language=kotlin&groupId=org.acme&dependencies=actuator", srv.queries[0])
	assert.Contains(t, out.String(), "./gradlew bootRun")
}

func TestRunInitPromptCancelled(t *testing.T) {
	srv := newInitServer(t, projectZip(t))

	err := runInit(context.Background(), initOptions{
		URL:      srv.URL,
		Path:     filepath.Join(t.TempDir(), "demo"),
		Prompter: &scriptedPrompter{err: errors.New("aborted by user")},
		Out:      io.Discard,
	})
	require.ErrorIs(t, err, resolve.ErrPromptInterrupted)
	assert.Empty(t, srv.queries)
}

func TestRunInitRefusesExistingDestination(t *testing.T) {
	srv := newInitServer(t, projectZip(t))
	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dest, "keep.txt"), []byte("x"), 0o644))

	opts := initOptions{URL: srv.URL, Path: dest, NonInteractive: true, Out: io.Discard}
	err := runInit(context.Background(), opts)
	var ue *utils.UserError
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, ue.Message, "already exists")

	opts.Force = true
	require.NoError(t, runInit(context.Background(), opts))
	assert.FileExists(t, filepath.Join(dest, "demo", "pom.xml"))
	assert.FileExists(t, filepath.Join(dest, "keep.txt"))
}

func TestRunInitEmptyDirectoryIsFine(t *testing.T) {
	srv := newInitServer(t, projectZip(t))
	dest := t.TempDir()

	err := runInit(context.Background(), initOptions{URL: srv.URL, Path: dest, NonInteractive: true, Out: io.Discard})
	require.NoError(t, err)
}

func TestRunInitGitHelpAndPreset(t *testing.T) {
	srv := newInitServer(t, projectZip(t))
	dir := t.TempDir()
	dest := filepath.Join(dir, "demo")
	presetPath := filepath.Join(dir, "answers.toml")
	var out bytes.Buffer

	err := runInit(context.Background(), initOptions{
		URL:            srv.URL,
		Path:           dest,
		NonInteractive: true,
		ActionParam:    true,
		Overrides:      resolve.Overrides{"dependencies": "web"},
		SavePreset:     presetPath,
		Git:            true,
		ShowHelp:       true,
		Out:            &out,
	})
	require.NoError(t, err)

	assert.DirExists(t, filepath.Join(dest, ".git"))
	assert.Contains(t, out.String(), "Git repository initialized")
	assert.NotContains(t, out.String(), "git init")

	assert.Contains(t, out.String(), "Getting Started")
	assert.Contains(t, out.String(), "cat HELP.md")

	saved, err := os.ReadFile(presetPath)
	require.NoError(t, err)
	assert.Contains(t, string(saved), `groupId = "com.example"`)
	assert.Contains(t, string(saved), `dependencies = ["web"]`)
}

func TestRunInitGitIgnoredForFiles(t *testing.T) {
	srv := newInitServer(t, projectZip(t))
	var out bytes.Buffer

	err := runInit(context.Background(), initOptions{
		URL:            srv.URL,
		Path:           filepath.Join(t.TempDir(), "demo.zip"),
		NonInteractive: true,
		Git:            true,
		Out:            &out,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "--git ignored")
}

func TestRunInitMetadataFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := runInit(context.Background(), initOptions{URL: srv.URL, NonInteractive: true, Out: io.Discard})
	require.ErrorIs(t, err, client.ErrRequestFailed)
}

func TestRunInitMalformedMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"groupId": {"type": "text"}}`)
	}))
	defer srv.Close()

	err := runInit(context.Background(), initOptions{URL: srv.URL, NonInteractive: true, Out: io.Discard})
	require.ErrorIs(t, err, metadata.ErrMalformedMetadata)
}

func TestRunInitRefusesExistingSuggestedFile(t *testing.T) {
	srv := newInitServer(t, projectZip(t))
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "demo.zip"), []byte("old"), 0o644))

	opts := initOptions{URL: srv.URL, NonInteractive: true, Out: io.Discard}
	err := runInit(context.Background(), opts)
	var ue *utils.UserError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "Destination already exists: demo.zip", ue.Message)
	data, err := os.ReadFile(filepath.Join(dir, "demo.zip"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))

	opts.Force = true
	require.NoError(t, runInit(context.Background(), opts))
	data, err = os.ReadFile(filepath.Join(dir, "demo.zip"))
	require.NoError(t, err)
	assert.Equal(t, projectZip(t)[:4], data[:4])
}

func TestRunInitConfigDefaultsWithCamelCaseNames(t *testing.T) {
	withConfig(t, "[defaults]\ngroupId = \"com.acme\"\n")
	overrides, err := collectOverrides(newStepCommand(t))
	require.NoError(t, err)

	srv := newInitServer(t, projectZip(t))
	err = runInit(context.Background(), initOptions{
		URL:            srv.URL,
		Path:           filepath.Join(t.TempDir(), "demo.zip"),
		NonInteractive: true,
		Overrides:      overrides,
		Out:            io.Discard,
	})
	require.NoError(t, err)
	assert.Equal(t, "language=java&groupId=com.acme", srv.queries[0])
}

func TestRunInitSpansAreSiblings(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	srv := newInitServer(t, projectZip(t))
	err := runInit(context.Background(), initOptions{
		URL:            srv.URL,
		Path:           filepath.Join(t.TempDir(), "demo"),
		NonInteractive: true,
		Out:            io.Discard,
	})
	require.NoError(t, err)

	spans := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range recorder.Ended() {
		spans[s.Name()] = s
	}
	require.Contains(t, spans, telemetry.SpanStepsResolve)
	require.Contains(t, spans, telemetry.SpanArchiveFetch)
	assert.False(t, spans[telemetry.SpanArchiveFetch].Parent().IsValid(), "archive.fetch is a root span")
	assert.False(t, spans[telemetry.SpanStepsResolve].Parent().IsValid())
}

// withConfig loads a TOML configuration into the global viper instance.
func withConfig(t *testing.T, config string) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.SetConfigType("toml")
	require.NoError(t, viper.ReadConfig(strings.NewReader(config)))
}

// newStepCommand returns a command carrying the step flags, so tests can set
// them without touching initCmd.
func newStepCommand(t *testing.T) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "init"}
	for _, f := range stepFlags {
		cmd.Flags().StringP(f.flag, f.shorthand, "", f.usage)
	}

	prevPreset, prevSet := initPreset, initSet
	t.Cleanup(func() { initPreset, initSet = prevPreset, prevSet })
	initPreset, initSet = "", nil
	return cmd
}

func TestCollectOverridesPrecedence(t *testing.T) {
	const config = `[defaults]
groupId = "com.config"
artifactId = "config-app"
javaVersion = "11"
bootVersion = "3.3.0"
dependencies = ["web", "actuator"]
`
	const presetFile = "artifactId: preset-app\njavaVersion: \"17\"\nname: preset\n"

	tests := []struct {
		name   string
		preset bool
		set    []string
		flags  map[string]string
		want   resolve.Overrides
	}{
		{
			name: "configuration only",
			want: resolve.Overrides{
				"groupId": "com.config", "artifactId": "config-app", "javaVersion": "11",
				"bootVersion": "3.3.0", "dependencies": "web,actuator",
			},
		},
		{
			name:   "preset over configuration",
			preset: true,
			want: resolve.Overrides{
				"groupId": "com.config", "artifactId": "preset-app", "javaVersion": "17",
				"bootVersion": "3.3.0", "dependencies": "web,actuator", "name": "preset",
			},
		},
		{
			name:   "set over preset",
			preset: true,
			set:    []string{"javaVersion=21", "name=set-name"},
			want: resolve.Overrides{
				"groupId": "com.config", "artifactId": "preset-app", "javaVersion": "21",
				"bootVersion": "3.3.0", "dependencies": "web,actuator", "name": "set-name",
			},
		},
		{
			name:   "flags over everything",
			preset: true,
			set:    []string{"javaVersion=21", "artifactId=set-app"},
			flags:  map[string]string{"artifact-id": "flag-app", "java-version": "24", "group-id": "org.flag"},
			want: resolve.Overrides{
				"groupId": "org.flag", "artifactId": "flag-app", "javaVersion": "24",
				"bootVersion": "3.3.0", "dependencies": "web,actuator", "name": "preset",
			},
		},
		{
			name: "set key in other case replaces configuration",
			set:  []string{"groupid=com.set"},
			want: resolve.Overrides{
				"groupid": "com.set", "artifactId": "config-app", "javaVersion": "11",
				"bootVersion": "3.3.0", "dependencies": "web,actuator",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withConfig(t, config)
			cmd := newStepCommand(t)
			if tt.preset {
				initPreset = filepath.Join(t.TempDir(), "answers.yaml")
				require.NoError(t, os.WriteFile(initPreset, []byte(presetFile), 0o644))
			}
			initSet = tt.set
			for flag, v := range tt.flags {
				require.NoError(t, cmd.Flags().Set(flag, v))
			}

			got, err := collectOverrides(cmd)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCollectOverridesBadPreset(t *testing.T) {
	withConfig(t, "")
	cmd := newStepCommand(t)
	initPreset = filepath.Join(t.TempDir(), "missing.toml")

	_, err := collectOverrides(cmd)
	var ue *utils.UserError
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, ue.Message, "Could not load preset")
}

func TestCollectOverridesRejectsNestedDefaults(t *testing.T) {
	withConfig(t, "[defaults.groupId]\nvalue = \"com.acme\"\n")

	_, err := collectOverrides(newStepCommand(t))
	var ve *utils.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "defaults", ve.Field)
	assert.NotEmpty(t, ve.Hint)
	assert.ErrorIs(t, err, utils.ErrInvalidInput)
}

func TestParseSetPairs(t *testing.T) {
	values, err := parseSetPairs([]string{"groupId=com.acme", "description=a=b", " name =shop"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"groupId": "com.acme", "description": "a=b", "name": "shop"}, values)

	_, err = parseSetPairs([]string{"groupId"})
	var ve *utils.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "--set", ve.Field)

	_, err = parseSetPairs([]string{"=value"})
	assert.Error(t, err)
}

func TestStepFlagsAreUnique(t *testing.T) {
	flags := map[string]bool{}
	shorthands := map[string]bool{}
	for _, f := range stepFlags {
		assert.False(t, flags[f.flag], f.flag)
		flags[f.flag] = true
		if f.shorthand != "" {
			assert.False(t, shorthands[f.shorthand], f.shorthand)
			shorthands[f.shorthand] = true
		}
		assert.NotNil(t, initCmd.Flags().Lookup(f.flag))
	}
}
