package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"

	"github.com/starterkit/starter/internal/client"
	"github.com/starterkit/starter/internal/telemetry"
	"github.com/starterkit/starter/internal/templates"
	"github.com/starterkit/starter/internal/tui"
	"github.com/starterkit/starter/internal/utils"
	"github.com/starterkit/starter/internal/vcs"
	"github.com/starterkit/starter/pkg/archive"
	"github.com/starterkit/starter/pkg/metadata"
	"github.com/starterkit/starter/pkg/preset"
	"github.com/starterkit/starter/pkg/request"
	"github.com/starterkit/starter/pkg/resolve"
)

// stepFlag binds a command line flag to the step it answers.
type stepFlag struct {
	flag      string
	shorthand string
	step      string
	usage     string
}

var stepFlags = []stepFlag{
	{"language", "l", "language", "programming language (java, kotlin, groovy)"},
	{"boot-version", "b", "bootVersion", "Spring Boot version"},
	{"group-id", "g", "groupId", "project group id"},
	{"artifact-id", "a", "artifactId", "project artifact id"},
	{"name", "n", "name", "project name"},
	{"description", "d", "description", "project description"},
	{"package-name", "", "packageName", "root package name"},
	{"packaging", "", "packaging", "packaging (jar, war)"},
	{"java-version", "j", "javaVersion", "Java version"},
	{"dependencies", "D", "dependencies", "comma separated dependency ids"},
	{"type", "t", "type", "project type (maven-project, gradle-project, ...)"},
	{"project-version", "", "version", "project version"},
}

var (
	// Init command flags
	initURL            string
	initPath           string
	initNonInteractive bool
	initSet            []string
	initPreset         string
	initSavePreset     string
	initGit            bool
	initShowHelp       bool
	initForce          bool
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a new project",
	Long: `Generate a new project from the service metadata.

Every option the service exposes is answered in this order: command line
flag, --set pair, preset file, configuration (defaults.<name>) and finally
the service default, or an interactive prompt when running in a terminal.

The download is unpacked when --path has no extension and the service
returns a zip archive; otherwise it is written as is.

Examples:
  # Answer every question interactively
  starter init

  # Unattended, unpacked into ./shop
  starter init --non-interactive -n shop -D web,actuator -p shop

  # Gradle build with Kotlin, kept as a zip
  starter init -t gradle-project -l kotlin -p shop.zip

  # Replay a saved preset and create a git repository
  starter init --preset shop.toml -p shop --git`,
	Args: cobra.NoArgs,
	RunE: runInitCommand,
}

// initOptions holds everything a generation run needs.
type initOptions struct {
	URL               string
	Path              string
	NonInteractive    bool
	ActionParam       bool
	Overrides         resolve.Overrides
	SavePreset        string
	Git               bool
	Author            vcs.Signature
	ShowHelp          bool
	Force             bool
	Timeout           time.Duration
	NextStepsTemplate string

	Prompter resolve.Prompter // nil uses the terminal prompter
	Out      io.Writer
	Logger   *zerolog.Logger
}

// runInitCommand executes the init command
func runInitCommand(cmd *cobra.Command, args []string) error {
	overrides, err := collectOverrides(cmd)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("url") {
		viper.Set("url", initURL)
	}
	if cmd.Flags().Changed("non-interactive") {
		viper.Set("non_interactive", initNonInteractive)
	}

	opts := initOptions{
		URL:            viper.GetString("url"),
		Path:           initPath,
		NonInteractive: viper.GetBool("non_interactive"),
		ActionParam:    viper.GetBool("send_action_param"),
		Overrides:      overrides,
		SavePreset:     initSavePreset,
		Git:            initGit,
		Author: vcs.Signature{
			Name:  viper.GetString("git.author_name"),
			Email: viper.GetString("git.author_email"),
		},
		ShowHelp:          initShowHelp,
		Force:             initForce,
		Timeout:           viper.GetDuration("timeout"),
		NextStepsTemplate: viper.GetString("next_steps_template"),
		Out:               cmd.OutOrStdout(),
		Logger:            GetLogger(),
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return runInit(ctx, opts)
}

// collectOverrides layers the answer sources, lowest precedence first:
// configuration, preset file, --set pairs, step flags.
func collectOverrides(cmd *cobra.Command) (resolve.Overrides, error) {
	overrides := resolve.Overrides{}

	configured, err := preset.Flatten(viper.GetStringMap("defaults"))
	if err != nil {
		return nil, utils.NewValidationError("defaults", "values must be strings or lists").
			WithCause(err).
			WithHint("Check the [defaults] table of the configuration file")
	}
	merge(overrides, stepNames(configured))

	if initPreset != "" {
		values, err := preset.Load(initPreset)
		if err != nil {
			return nil, utils.NewUserError("Could not load preset "+initPreset,
				"Check that the file exists and is a flat TOML or YAML table", err)
		}
		merge(overrides, values)
	}

	pairs, err := parseSetPairs(initSet)
	if err != nil {
		return nil, err
	}
	merge(overrides, pairs)

	for _, f := range stepFlags {
		if cmd.Flags().Changed(f.flag) {
			v, _ := cmd.Flags().GetString(f.flag)
			merge(overrides, map[string]string{f.step: v})
		}
	}
	return overrides, nil
}

// merge copies src into dst. Step names match case-insensitively, so a key
// from src replaces any dst key differing only in case.
func merge(dst resolve.Overrides, src map[string]string) {
	for k, v := range src {
		for existing := range dst {
			if existing != k && strings.EqualFold(existing, k) {
				delete(dst, existing)
			}
		}
		dst[k] = v
	}
}

// stepNames restores the casing of the well known step names. Configuration
// keys come back lower-cased from viper.
func stepNames(values map[string]string) map[string]string {
	named := make(map[string]string, len(values))
	for k, v := range values {
		name := k
		for _, f := range stepFlags {
			if strings.EqualFold(f.step, k) {
				name = f.step
				break
			}
		}
		named[name] = v
	}
	return named
}

// parseSetPairs parses repeated --set key=value flags.
func parseSetPairs(pairs []string) (map[string]string, error) {
	values := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, utils.NewValidationError("--set", fmt.Sprintf("expected key=value, got %q", p)).
				WithHint("Name a step, for example --set groupId=com.acme")
		}
		values[key] = value
	}
	return values, nil
}

// runInit fetches the metadata, resolves every step and materializes the
// generated project.
func runInit(ctx context.Context, opts initOptions) error {
	log := opts.Logger
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	if err := checkDestination(opts.Path, opts.Force); err != nil {
		return err
	}

	c := client.New(
		client.WithTimeout(opts.Timeout),
		client.WithUserAgent("starter/"+Version),
		client.WithLogger(log),
	)

	steps, err := loadSteps(ctx, c, opts.URL)
	if err != nil {
		return err
	}

	resolverOpts := []resolve.Option{
		resolve.WithNonInteractive(opts.NonInteractive),
		resolve.WithOutput(out),
		resolve.WithLogger(log),
	}
	if !opts.NonInteractive {
		prompter := opts.Prompter
		if prompter == nil {
			prompter = tui.NewPrompter(tui.WithOutput(out))
		}
		resolverOpts = append(resolverOpts, resolve.WithPrompter(prompter))
	}

	resolveCtx, span := telemetry.Start(ctx, telemetry.SpanStepsResolve, attribute.Int("steps", len(steps)))
	responses, err := resolve.New(resolverOpts...).ResolveAll(resolveCtx, steps, opts.Overrides)
	telemetry.End(span, err)
	if err != nil {
		return err
	}

	var buildOpts []request.Option
	if opts.ActionParam {
		buildOpts = append(buildOpts, request.WithActionParam())
	}
	target, err := request.Build(opts.URL, responses, buildOpts...)
	if err != nil {
		return err
	}
	log.Debug().Str("url", target.String()).Msg("generating project")
	if verbose {
		fmt.Fprintf(out, "%s GET %s\n", color.CyanString(">"), target.String())
	}

	fetchCtx, span := telemetry.Start(ctx, telemetry.SpanArchiveFetch, attribute.String("url", target.String()))
	res, err := saveProject(fetchCtx, c, target.String(), opts.Path, opts.Force)
	if err == nil {
		span.SetAttributes(attribute.String("path", res.Path), attribute.Bool("extracted", res.Extracted))
	}
	telemetry.End(span, err)
	if err != nil {
		return err
	}

	if res.Extracted {
		fmt.Fprintln(out, color.GreenString("✓ Project extracted to %s (%d files)", res.Path, res.Files))
	} else {
		fmt.Fprintln(out, color.GreenString("✓ Project saved to %s", res.Path))
	}

	if opts.SavePreset != "" {
		if err := preset.Save(opts.SavePreset, responses); err != nil {
			return err
		}
		fmt.Fprintln(out, color.GreenString("✓ Answers saved to %s", opts.SavePreset))
	}

	committed := false
	if opts.Git {
		committed = initRepository(out, log, res, opts.Author)
	}

	helpFile := findHelp(res)
	if opts.ShowHelp && helpFile != "" {
		showHelp(out, log, helpFile)
	}

	answers := make(map[string]string, len(responses))
	for _, r := range responses {
		answers[r.Name()] = r.Response
	}
	tmpl := opts.NextStepsTemplate
	if tmpl == "" {
		tmpl = templates.DefaultNextSteps
	}
	next, err := templates.Render(tmpl, templates.NextStepsData{
		Path:          res.Path,
		Extracted:     res.Extracted,
		Git:           committed,
		HelpAvailable: helpFile != "",
		Answers:       answers,
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to render next steps")
		return nil
	}
	fmt.Fprintln(out)
	fmt.Fprint(out, next)
	return nil
}

// loadSteps fetches and parses the service metadata.
func loadSteps(ctx context.Context, c *client.Client, url string) ([]metadata.Step, error) {
	fetchCtx, span := telemetry.Start(ctx, telemetry.SpanMetadataFetch, attribute.String("url", url))
	doc, err := c.FetchMetadata(fetchCtx, url)
	telemetry.End(span, err)
	if err != nil {
		return nil, err
	}

	_, span = telemetry.Start(ctx, telemetry.SpanMetadataParse, attribute.Int("bytes", len(doc)))
	steps, err := metadata.Parse(doc)
	telemetry.End(span, err)
	return steps, err
}

// saveProject downloads the project and writes it once the final destination,
// possibly named by the server, passes checkDestination.
func saveProject(ctx context.Context, c *client.Client, url, path string, force bool) (archive.Result, error) {
	data, suggested, err := archive.Fetch(ctx, c, url)
	if err != nil {
		return archive.Result{}, err
	}
	dest := archive.Destination(path, suggested)
	if err := checkDestination(dest, force); err != nil {
		return archive.Result{}, err
	}
	return archive.Materialize(data, dest)
}

// checkDestination refuses to overwrite an existing file or a non-empty
// directory unless forced.
func checkDestination(path string, force bool) error {
	if path == "" || force {
		return nil
	}
	if utils.DirExists(path) {
		empty, err := utils.IsEmptyDir(path)
		if err != nil || empty {
			return nil
		}
	} else if !utils.FileExists(path) {
		return nil
	}
	return utils.NewUserError(fmt.Sprintf("Destination already exists: %s", path),
		"Use --force to overwrite it or choose another --path", nil)
}

func initRepository(out io.Writer, log *zerolog.Logger, res archive.Result, author vcs.Signature) bool {
	if !res.Extracted {
		fmt.Fprintln(out, color.YellowString("! --git ignored: %s is not a directory", res.Path))
		return false
	}
	hash, err := vcs.Init(res.Path, author, "")
	if err != nil {
		log.Warn().Err(err).Str("path", res.Path).Msg("git init failed")
		fmt.Fprintln(out, color.YellowString("! Could not create a git repository: %v", err))
		return false
	}
	fmt.Fprintln(out, color.GreenString("✓ Git repository initialized (%s)", hash[:7]))
	return true
}

// findHelp locates HELP.md at the root of an extracted project, or one level
// down when the archive has a base directory.
func findHelp(res archive.Result) string {
	if !res.Extracted {
		return ""
	}
	if p := filepath.Join(res.Path, "HELP.md"); utils.FileExists(p) {
		return p
	}
	matches, _ := filepath.Glob(filepath.Join(res.Path, "*", "HELP.md"))
	if len(matches) > 0 {
		return matches[0]
	}
	return ""
}

func showHelp(out io.Writer, log *zerolog.Logger, path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to read help")
		return
	}
	rendered, err := tui.RenderMarkdown(string(content), tui.IsTerminal(os.Stdout) && out == os.Stdout, 100)
	if err != nil {
		log.Debug().Err(err).Msg("markdown rendering failed")
	}
	fmt.Fprintln(out, rendered)
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&initURL, "url", client.DefaultBaseURL, "base URL of the Initializr service")
	initCmd.Flags().StringVarP(&initPath, "path", "p", "", "destination; unpacked when it has no extension")
	initCmd.Flags().BoolVar(&initNonInteractive, "non-interactive", false, "use defaults instead of prompting")
	initCmd.Flags().StringArrayVar(&initSet, "set", nil, "answer any step as key=value (repeatable)")
	initCmd.Flags().StringVar(&initPreset, "preset", "", "load answers from a TOML or YAML file")
	initCmd.Flags().StringVar(&initSavePreset, "save-preset", "", "save the resolved answers to a TOML or YAML file")
	initCmd.Flags().BoolVar(&initGit, "git", false, "initialize a git repository with an initial commit")
	initCmd.Flags().BoolVar(&initShowHelp, "show-help", false, "render the generated HELP.md")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing destination")

	for _, f := range stepFlags {
		initCmd.Flags().StringP(f.flag, f.shorthand, "", f.usage)
	}
}
