package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/starterkit/starter/pkg/metadata"
)

var (
	// ErrAborted is returned when the user cancels a prompt.
	ErrAborted = errors.New("aborted by user")
	// ErrNoTerminal is returned when prompting without an interactive input.
	ErrNoTerminal = errors.New("standard input is not a terminal")
)

// Prompter asks questions with bubbletea programs, one per question.
type Prompter struct {
	in  io.Reader
	out io.Writer
}

// PrompterOption configures a Prompter.
type PrompterOption func(*Prompter)

// WithInput sets the input the prompts read keys from.
func WithInput(r io.Reader) PrompterOption {
	return func(p *Prompter) { p.in = r }
}

// WithOutput sets where prompts are drawn.
func WithOutput(w io.Writer) PrompterOption {
	return func(p *Prompter) { p.out = w }
}

// NewPrompter creates a Prompter bound to stdin and stdout.
func NewPrompter(opts ...PrompterOption) *Prompter {
	p := &Prompter{in: os.Stdin, out: os.Stdout}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IsTerminal reports whether r is a file attached to a terminal.
func IsTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Text asks for a free-form value.
func (p *Prompter) Text(ctx context.Context, label, def string) (string, error) {
	m, err := run(ctx, p, NewTextModel(label, def))
	if err != nil {
		return "", err
	}
	return m.Value(), nil
}

// SingleChoice asks for exactly one of items.
func (p *Prompter) SingleChoice(ctx context.Context, label string, items []metadata.Item, initial int) (metadata.Item, error) {
	if len(items) == 0 {
		return metadata.Item{}, fmt.Errorf("no options to choose from for %q", label)
	}
	m, err := run(ctx, p, NewSelectModel(label, items, initial))
	if err != nil {
		return metadata.Item{}, err
	}
	return m.Selected(), nil
}

// MultiChoice asks for any number of items.
func (p *Prompter) MultiChoice(ctx context.Context, label string, items []metadata.Item) ([]metadata.Item, error) {
	m, err := run(ctx, p, NewMultiSelectModel(label, items))
	if err != nil {
		return nil, err
	}
	return m.Selected(), nil
}

type promptModel interface {
	tea.Model
	Aborted() bool
}

func run[M promptModel](ctx context.Context, p *Prompter, model M) (M, error) {
	if f, ok := p.in.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
		return model, ErrNoTerminal
	}

	prog := tea.NewProgram(model,
		tea.WithInput(p.in),
		tea.WithOutput(p.out),
		tea.WithContext(ctx),
	)
	final, err := prog.Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model, ctxErr
		}
		return model, fmt.Errorf("prompt failed: %w", err)
	}

	m, ok := final.(M)
	if !ok {
		return model, fmt.Errorf("prompt returned unexpected model %T", final)
	}
	if m.Aborted() {
		return m, ErrAborted
	}
	return m, nil
}
