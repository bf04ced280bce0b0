// Package resolve decides the answer of every metadata step, either from an
// explicit override, from the step's default when running unattended, or by
// asking the user through a Prompter.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/starterkit/starter/pkg/metadata"
)

// ErrPromptInterrupted wraps every failure of the interactive prompter.
var ErrPromptInterrupted = errors.New("prompt interrupted")

// Prompter asks the user one question at a time. Implementations block until
// the user answers or the input is closed.
type Prompter interface {
	Text(ctx context.Context, label, def string) (string, error)
	SingleChoice(ctx context.Context, label string, items []metadata.Item, initial int) (metadata.Item, error)
	MultiChoice(ctx context.Context, label string, items []metadata.Item) ([]metadata.Item, error)
}

// Overrides maps step names to explicit values.
type Overrides map[string]string

// Lookup returns the override for name, if any. An exact key wins over one
// differing only in case.
func (o Overrides) Lookup(name string) (string, bool) {
	if v, ok := o[name]; ok {
		return v, true
	}
	for k, v := range o {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// Source tells where an answer came from.
type Source string

const (
	SourceOverride Source = "override"
	SourceDefault  Source = "default"
	SourceSole     Source = "sole-value"
	SourcePrompt   Source = "prompt"
)

// Resolver answers steps.
type Resolver struct {
	prompter       Prompter
	nonInteractive bool
	out            io.Writer
	logger         *zerolog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPrompter sets the interactive collaborator.
func WithPrompter(p Prompter) Option {
	return func(r *Resolver) { r.prompter = p }
}

// WithNonInteractive makes the resolver fall back to defaults instead of
// prompting.
func WithNonInteractive(nonInteractive bool) Option {
	return func(r *Resolver) { r.nonInteractive = nonInteractive }
}

// WithOutput sets where auto-selection summaries are printed.
func WithOutput(w io.Writer) Option {
	return func(r *Resolver) { r.out = w }
}

// WithLogger sets the logger used for debug traces of each decision.
func WithLogger(l *zerolog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// New creates a Resolver.
func New(opts ...Option) *Resolver {
	nop := zerolog.Nop()
	r := &Resolver{
		out:    os.Stdout,
		logger: &nop,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveAll answers every step in order. The first failure aborts the run
// and no partial result is returned.
func (r *Resolver) ResolveAll(ctx context.Context, steps []metadata.Step, overrides Overrides) ([]metadata.ResponseStep, error) {
	responses := make([]metadata.ResponseStep, 0, len(steps))
	for _, step := range steps {
		value, ok := overrides.Lookup(step.Name)
		resp, err := r.Resolve(ctx, step, value, ok)
		if err != nil {
			return nil, err
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

// Resolve answers a single step. When hasOverride is set, override is used
// verbatim, without checking it against the declared items.
func (r *Resolver) Resolve(ctx context.Context, step metadata.Step, override string, hasOverride bool) (metadata.ResponseStep, error) {
	response, source, err := r.answer(ctx, step, override, hasOverride)
	if err != nil {
		return metadata.ResponseStep{}, err
	}

	r.logger.Debug().
		Str("step", step.Name).
		Str("type", step.TypeName()).
		Str("source", string(source)).
		Str("value", response).
		Msg("step resolved")
	return metadata.ResponseStep{Step: step, Response: response}, nil
}

func (r *Resolver) answer(ctx context.Context, step metadata.Step, override string, hasOverride bool) (string, Source, error) {
	if hasOverride {
		return override, SourceOverride, nil
	}
	if r.nonInteractive {
		return step.Default(), SourceDefault, nil
	}

	switch k := step.Kind.(type) {
	case metadata.Text:
		if err := r.requirePrompter(step); err != nil {
			return "", "", err
		}
		v, err := r.prompter.Text(ctx, textLabel(step.Name), k.Default)
		if err != nil {
			return "", "", interrupted(step, err)
		}
		return v, SourcePrompt, nil

	case metadata.SingleSelect:
		return r.choose(ctx, step, k.Values, k.Default)

	case metadata.Action:
		return r.choose(ctx, step, k.Values, k.Default)

	case metadata.MultiSelect:
		if err := r.requirePrompter(step); err != nil {
			return "", "", err
		}
		chosen, err := r.prompter.MultiChoice(ctx, choiceLabel(step.Name), k.Values)
		if err != nil {
			return "", "", interrupted(step, err)
		}
		ids := lo.Map(chosen, func(it metadata.Item, _ int) string { return it.ID })
		return strings.Join(ids, ","), SourcePrompt, nil

	default:
		return step.Default(), SourceDefault, nil
	}
}

func (r *Resolver) choose(ctx context.Context, step metadata.Step, items []metadata.Item, def string) (string, Source, error) {
	switch len(items) {
	case 0:
		return def, SourceDefault, nil
	case 1:
		fmt.Fprintf(r.out, "%s Selected %s: %s\n", color.CyanString(">"), step.Name, items[0].ID)
		return items[0].ID, SourceSole, nil
	}

	if err := r.requirePrompter(step); err != nil {
		return "", "", err
	}
	chosen, err := r.prompter.SingleChoice(ctx, choiceLabel(step.Name), items, InitialIndex(items, def))
	if err != nil {
		return "", "", interrupted(step, err)
	}
	return chosen.ID, SourcePrompt, nil
}

// InitialIndex is the position of the default item, or 0 when the default is
// not one of the items.
func InitialIndex(items []metadata.Item, def string) int {
	_, idx, ok := lo.FindIndexOf(items, func(it metadata.Item) bool { return it.ID == def })
	if !ok {
		return 0
	}
	return idx
}

func (r *Resolver) requirePrompter(step metadata.Step) error {
	if r.prompter == nil {
		return fmt.Errorf("%w: no prompter configured for step %q", ErrPromptInterrupted, step.Name)
	}
	return nil
}

func interrupted(step metadata.Step, err error) error {
	return fmt.Errorf("%w: step %q: %w", ErrPromptInterrupted, step.Name, err)
}

func textLabel(name string) string   { return fmt.Sprintf("What %s do you want?", name) }
func choiceLabel(name string) string { return fmt.Sprintf("Select the %s you want:", name) }
