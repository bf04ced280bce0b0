package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/lo"

	"github.com/starterkit/starter/pkg/metadata"
)

const (
	CtrlC    = "ctrl+c"
	KeyEsc   = "esc"
	KeyEnter = "enter"
	KeyUp    = "up"
	KeyDown  = "down"
	KeySpace = " "
)

// TextModel asks for a free-form value.
type TextModel struct {
	label   string
	def     string
	input   textinput.Model
	done    bool
	aborted bool
}

// NewTextModel creates a text prompt seeded with def.
func NewTextModel(label, def string) TextModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = def
	ti.SetValue(def)
	ti.CursorEnd()
	ti.Focus()
	return TextModel{label: label, def: def, input: ti}
}

func (m TextModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m TextModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case CtrlC, KeyEsc:
			m.aborted = true
			return m, tea.Quit
		case KeyEnter:
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m TextModel) View() string {
	if m.done {
		return LabelStyle.Render(m.label) + " " + SelectedStyle.Render(m.Value()) + "\n"
	}
	if m.aborted {
		return ""
	}
	return LabelStyle.Render(m.label) + "\n" + m.input.View() + "\n" + helpBar("enter", "confirm", "esc", "cancel") + "\n"
}

// Value returns the typed text, or the default when left blank.
func (m TextModel) Value() string {
	v := strings.TrimSpace(m.input.Value())
	if v == "" {
		return m.def
	}
	return v
}

// Aborted reports whether the user cancelled the prompt.
func (m TextModel) Aborted() bool { return m.aborted }

// SelectModel picks exactly one item.
type SelectModel struct {
	label   string
	items   []metadata.Item
	cursor  int
	height  int // terminal height, 0 until the first WindowSizeMsg
	offset  int // first item shown
	done    bool
	aborted bool
}

// label, help bar and the trailing newline
const selectChrome = 3

// NewSelectModel creates a single choice prompt with the cursor on initial.
func NewSelectModel(label string, items []metadata.Item, initial int) SelectModel {
	if initial < 0 || initial >= len(items) {
		initial = 0
	}
	return SelectModel{label: label, items: items, cursor: initial}
}

func (m SelectModel) Init() tea.Cmd { return nil }

func (m SelectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case CtrlC, KeyEsc, "q":
			m.aborted = true
			return m, tea.Quit
		case KeyUp, "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case KeyDown, "j":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case "home", "g":
			m.cursor = 0
		case "end", "G":
			m.cursor = max(len(m.items)-1, 0)
		case KeyEnter:
			if len(m.items) > 0 {
				m.done = true
				return m, tea.Quit
			}
		}
	}
	m.offset = scrollOffset(m.cursor, m.offset, listRows(m.height, selectChrome), len(m.items))
	return m, nil
}

func (m SelectModel) View() string {
	if m.done {
		return LabelStyle.Render(m.label) + " " + SelectedStyle.Render(m.items[m.cursor].DisplayName) + "\n"
	}
	if m.aborted {
		return ""
	}

	var b strings.Builder
	b.WriteString(LabelStyle.Render(m.label) + "\n")
	start, end := window(m.offset, listRows(m.height, selectChrome), len(m.items))
	for i := start; i < end; i++ {
		b.WriteString(itemLine(m.items[i], i == m.cursor, "") + "\n")
	}
	b.WriteString(helpBar("↑/↓", "move", "enter", "select", "esc", "cancel"))
	b.WriteString(position(m.cursor, len(m.items), end-start < len(m.items)) + "\n")
	return b.String()
}

// Selected returns the item under the cursor.
func (m SelectModel) Selected() metadata.Item {
	return m.items[m.cursor]
}

// Aborted reports whether the user cancelled the prompt.
func (m SelectModel) Aborted() bool { return m.aborted }

// MultiSelectModel toggles any number of grouped items. Typing "/" filters
// the list by id, name or group.
type MultiSelectModel struct {
	label     string
	items     []metadata.Item
	checked   map[int]bool
	visible   []int // indexes into items matching the filter
	cursor    int   // index into visible
	height    int   // terminal height, 0 until the first WindowSizeMsg
	offset    int   // first body line shown
	filter    textinput.Model
	filtering bool
	done      bool
	aborted   bool
}

// NewMultiSelectModel creates a multiple choice prompt.
func NewMultiSelectModel(label string, items []metadata.Item) MultiSelectModel {
	fi := textinput.New()
	fi.Prompt = "/"
	m := MultiSelectModel{
		label:   label,
		items:   items,
		checked: make(map[int]bool),
		filter:  fi,
	}
	m.applyFilter()
	return m
}

func (m MultiSelectModel) Init() tea.Cmd { return nil }

func (m MultiSelectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
	case tea.KeyMsg:
		m, cmd = m.handleKey(msg)
	}
	lines, cursorLine := m.body()
	m.offset = scrollOffset(cursorLine, m.offset, m.rows(), len(lines))
	return m, cmd
}

func (m MultiSelectModel) handleKey(key tea.KeyMsg) (MultiSelectModel, tea.Cmd) {
	if key.String() == CtrlC {
		m.aborted = true
		return m, tea.Quit
	}

	if m.filtering {
		switch key.String() {
		case KeyEnter, KeyEsc:
			m.filtering = false
			m.filter.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(key)
		m.applyFilter()
		return m, cmd
	}

	switch key.String() {
	case KeyEsc:
		if m.filter.Value() != "" {
			m.filter.SetValue("")
			m.applyFilter()
			return m, nil
		}
		m.aborted = true
		return m, tea.Quit
	case "/":
		m.filtering = true
		return m, m.filter.Focus()
	case KeyUp, "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case KeyDown, "j":
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = max(len(m.visible)-1, 0)
	case KeySpace, "x":
		if len(m.visible) > 0 {
			idx := m.visible[m.cursor]
			m.checked[idx] = !m.checked[idx]
		}
	case KeyEnter:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *MultiSelectModel) applyFilter() {
	query := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	visible := make([]int, 0, len(m.items))
	for i, item := range m.items {
		if query == "" ||
			strings.Contains(strings.ToLower(item.ID), query) ||
			strings.Contains(strings.ToLower(item.DisplayName), query) ||
			strings.Contains(strings.ToLower(item.Group), query) {
			visible = append(visible, i)
		}
	}
	m.visible = visible
	if m.cursor >= len(m.visible) {
		m.cursor = max(len(m.visible)-1, 0)
	}
}

// rows is the number of body lines that fit below the label and filter and
// above the help bar. 0 means unbounded.
func (m MultiSelectModel) rows() int {
	chrome := 4 // label, blank line, help bar, trailing newline
	if m.showFilter() {
		chrome++
	}
	return listRows(m.height, chrome)
}

func (m MultiSelectModel) showFilter() bool {
	return m.filtering || m.filter.Value() != ""
}

// body renders the group headers and items, and reports the line holding
// the cursor.
func (m MultiSelectModel) body() ([]string, int) {
	lines := make([]string, 0, len(m.visible)+8)
	cursorLine := 0
	group := ""
	for pos, idx := range m.visible {
		item := m.items[idx]
		if item.Group != group || pos == 0 {
			group = item.Group
			if group != "" {
				lines = append(lines, GroupStyle.Render(group))
			}
		}
		mark := "[ ] "
		if m.checked[idx] {
			mark = CheckedStyle.Render("[x] ")
		}
		if pos == m.cursor {
			cursorLine = len(lines)
		}
		lines = append(lines, itemLine(item, pos == m.cursor, mark))
	}
	if len(m.visible) == 0 {
		lines = append(lines, MutedStyle.Render("  no match"))
	}
	return lines, cursorLine
}

func (m MultiSelectModel) View() string {
	if m.done {
		names := lo.Map(m.Selected(), func(it metadata.Item, _ int) string { return it.DisplayName })
		summary := "none"
		if len(names) > 0 {
			summary = strings.Join(names, ", ")
		}
		return LabelStyle.Render(m.label) + " " + SelectedStyle.Render(summary) + "\n"
	}
	if m.aborted {
		return ""
	}

	var b strings.Builder
	b.WriteString(LabelStyle.Render(m.label) + "\n")
	if m.showFilter() {
		b.WriteString(m.filter.View() + "\n")
	}

	lines, _ := m.body()
	start, end := window(m.offset, m.rows(), len(lines))
	for _, line := range lines[start:end] {
		b.WriteString(line + "\n")
	}

	b.WriteString("\n" + helpBar("space", "toggle", "/", "filter", "enter", "confirm", "esc", "cancel"))
	b.WriteString(position(m.cursor, len(m.visible), end-start < len(lines)) + "\n")
	return b.String()
}

// Selected returns the checked items in their original order.
func (m MultiSelectModel) Selected() []metadata.Item {
	return lo.Filter(m.items, func(_ metadata.Item, i int) bool { return m.checked[i] })
}

// Aborted reports whether the user cancelled the prompt.
func (m MultiSelectModel) Aborted() bool { return m.aborted }

func itemLine(item metadata.Item, current bool, mark string) string {
	cursor := "  "
	name := item.DisplayName
	if current {
		cursor = CursorStyle.Render("› ")
		name = SelectedStyle.Render(name)
	}
	line := cursor + mark + name
	if item.ID != item.DisplayName {
		line += " " + MutedStyle.Render("("+item.ID+")")
	}
	return line
}

// listRows is the number of list lines fitting in height once chrome lines
// are taken. 0 means the height is unknown and everything is shown.
func listRows(height, chrome int) int {
	if height <= 0 {
		return 0
	}
	return max(height-chrome, 1)
}

// scrollOffset moves offset the least needed to keep line within the rows
// lines shown out of total.
func scrollOffset(line, offset, rows, total int) int {
	if rows <= 0 || total <= rows {
		return 0
	}
	if line < offset {
		offset = line
	} else if line >= offset+rows {
		offset = line - rows + 1
	}
	return min(max(offset, 0), total-rows)
}

// window returns the [start, end) range of the lines to draw.
func window(offset, rows, total int) (int, int) {
	if rows <= 0 || total <= rows {
		return 0, total
	}
	offset = min(max(offset, 0), total-rows)
	return offset, offset + rows
}

// position shows where the cursor is when the list is clipped.
func position(cursor, total int, clipped bool) string {
	if !clipped {
		return ""
	}
	return "  " + MutedStyle.Render(fmt.Sprintf("(%d/%d)", cursor+1, total))
}
