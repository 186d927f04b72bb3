package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const maxHistory = 200

// Handler runs one raw message and returns the encoded response. Both a
// local process and the HTTP client satisfy it.
type Handler interface {
	Handle(raw string) string
}

type responseMsg struct {
	input  string
	output string
}

// Console is a line-oriented REPL over a Handler.
type Console struct {
	handler Handler
	theme   Theme
	title   string

	input    textinput.Model
	viewport viewport.Model
	history  []string

	width  int
	height int
	ready  bool
}

// NewConsole builds a console that sends each entered line to h.
func NewConsole(h Handler, title string) Console {
	ti := textinput.New()
	ti.Placeholder = `Set name Alice | Get name | List | {"Tags":{"Action":"Info"}}`
	ti.Prompt = "ao> "
	ti.CharLimit = 4096
	ti.Focus()

	return Console{
		handler:  h,
		theme:    NewDefaultTheme(),
		title:    title,
		input:    ti,
		viewport: viewport.New(80, 10),
	}
}

func (c Console) Init() tea.Cmd {
	return textinput.Blink
}

func (c Console) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return c, tea.Quit
		case tea.KeyEnter:
			return c.submit()
		}

	case tea.WindowSizeMsg:
		c.width = msg.Width
		c.height = msg.Height
		c.input.Width = max(msg.Width-8, 10)
		c.viewport.Width = max(msg.Width-4, 10)
		c.viewport.Height = max(msg.Height-7, 3)
		c.ready = true
		c.refresh()

	case responseMsg:
		c.appendHistory(c.theme.Prompt.Render("> ") + msg.input)
		c.appendHistory(c.theme.RenderResponse(msg.output))
		c.refresh()
		return c, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	cmds = append(cmds, cmd)
	c.viewport, cmd = c.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return c, tea.Batch(cmds...)
}

func (c Console) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(c.input.Value())
	c.input.Reset()

	raw, err := ParseCommand(line)
	switch {
	case errors.Is(err, ErrQuit):
		return c, tea.Quit
	case errors.Is(err, ErrEmpty):
		return c, nil
	case err != nil:
		c.appendHistory(c.theme.Prompt.Render("> ") + line)
		c.appendHistory(c.theme.Error.Render(err.Error()))
		c.refresh()
		return c, nil
	}

	h := c.handler
	return c, func() tea.Msg {
		return responseMsg{input: line, output: h.Handle(raw)}
	}
}

func (c *Console) appendHistory(line string) {
	c.history = append(c.history, line)
	if len(c.history) > maxHistory {
		c.history = c.history[len(c.history)-maxHistory:]
	}
}

func (c *Console) refresh() {
	c.viewport.SetContent(strings.Join(c.history, "\n"))
	c.viewport.GotoBottom()
}

// History returns the rendered transcript lines.
func (c Console) History() []string {
	out := make([]string, len(c.history))
	copy(out, c.history)
	return out
}

func (c Console) View() string {
	header := c.theme.Title.Render(c.title)
	help := c.theme.Dim.Render(" [enter] send • [esc] quit • quit/exit")

	body := c.viewport.View()
	if c.ready {
		body = c.theme.Border.Width(c.viewport.Width).Render(body)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		body,
		c.input.View(),
		help,
	)
}
