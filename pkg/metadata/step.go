// Package metadata turns the metadata document served by a project
// generation service into an ordered list of typed configuration steps.
//
// The document is schema-less from this tool's point of view: every
// top-level key may describe a step, and only the step types listed here are
// understood. Anything else is skipped so the remote service can evolve
// without breaking older clients.
package metadata

import (
	"fmt"

	"github.com/samber/lo"
)

// ItemKind distinguishes the three flavours of selectable option.
type ItemKind int

const (
	// ItemOption is a plain option of a single-select step.
	ItemOption ItemKind = iota
	// ItemDependency is an option of a multi-select step and carries a group.
	ItemDependency
	// ItemAction is an option of an action step and carries a request path.
	ItemAction
)

func (k ItemKind) String() string {
	switch k {
	case ItemDependency:
		return "dependency"
	case ItemAction:
		return "action"
	default:
		return "option"
	}
}

// Item is one selectable option within a step.
type Item struct {
	ID          string
	DisplayName string
	Description string
	Kind        ItemKind

	// Group is set for ItemDependency.
	Group string
	// Action is set for ItemAction, e.g. "/starter.zip".
	Action string
}

func (i Item) String() string {
	return fmt.Sprintf("%s - %s", i.ID, i.DisplayName)
}

// Kind is the sealed set of step variants: Text, SingleSelect, Action and
// MultiSelect.
type Kind interface {
	// TypeName returns the canonical type tag of the variant.
	TypeName() string
	isKind()
}

// Text is a free-form string question.
type Text struct {
	Default string
}

// SingleSelect asks for exactly one item of a flat list.
type SingleSelect struct {
	Default string
	Values  []Item
}

// Action asks for exactly one item; the chosen item's Action becomes the
// request path instead of a query parameter.
type Action struct {
	Default string
	Values  []Item
}

// MultiSelect asks for zero or more items grouped for display.
type MultiSelect struct {
	Values []Item
}

func (Text) TypeName() string         { return TypeText }
func (SingleSelect) TypeName() string { return TypeSingleSelect }
func (Action) TypeName() string       { return TypeAction }
func (MultiSelect) TypeName() string  { return TypeMultiSelect }

func (Text) isKind()         {}
func (SingleSelect) isKind() {}
func (Action) isKind()       {}
func (MultiSelect) isKind()  {}

// Groups returns the group names in first-seen order.
func (m MultiSelect) Groups() []string {
	return lo.Uniq(lo.Map(m.Values, func(it Item, _ int) string { return it.Group }))
}

// Step is one configuration question.
type Step struct {
	// Name is the wire parameter key. It is also the key of a CLI override.
	Name string
	Kind Kind
}

// Default returns the declared default of the step. MultiSelect has none
// and yields the empty selection.
func (s Step) Default() string {
	switch k := s.Kind.(type) {
	case Text:
		return k.Default
	case SingleSelect:
		return k.Default
	case Action:
		return k.Default
	default:
		return ""
	}
}

// Items returns the selectable items of the step, nil for Text.
func (s Step) Items() []Item {
	switch k := s.Kind.(type) {
	case SingleSelect:
		return k.Values
	case Action:
		return k.Values
	case MultiSelect:
		return k.Values
	default:
		return nil
	}
}

// TypeName returns the canonical type tag of the step's variant.
func (s Step) TypeName() string {
	if s.Kind == nil {
		return ""
	}
	return s.Kind.TypeName()
}

// FindItem looks up an item by id.
func FindItem(items []Item, id string) (Item, bool) {
	return lo.Find(items, func(it Item) bool { return it.ID == id })
}

// ResponseStep pairs a step with its resolved answer. For MultiSelect the
// answer is a comma separated list of item ids.
type ResponseStep struct {
	Step     Step
	Response string
}

// Name is the wire name of the answered step.
func (r ResponseStep) Name() string {
	return r.Step.Name
}
