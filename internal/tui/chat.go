// Package tui provides the interactive Bubble Tea chat view.
package tui

import (
	"context"
	"fmt"
	"strings"

	"tokenchat/internal/cli"
	"tokenchat/internal/llm"
	"tokenchat/internal/session"
	"tokenchat/internal/store"
	"tokenchat/internal/tui/components"
	"tokenchat/internal/tui/theme"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TurnDoneMsg is sent when a chat turn finishes, carrying the updated
// turn sequence and the refreshed balance.
type TurnDoneMsg struct {
	History []store.Message
	Balance float64
}

// Chat is the root Bubble Tea model for the chat view.
type Chat struct {
	pl *session.Pipeline

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	// Rendered state, refreshed from the pipeline only between turns so
	// the in-flight goroutine never shares it.
	history  []store.Message
	models   []llm.Model
	modelIdx int
	balance  float64
	sending  bool
	ready    bool

	width  int
	height int
}

const chromeHeight = 4 // header + blank + input + status bar

// NewChat creates the chat view over an initialized pipeline.
func NewChat(pl *session.Pipeline) Chat {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Prompt = "> "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(theme.Active.Accent)
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent)

	c := Chat{
		pl:      pl,
		input:   ti,
		spinner: sp,
		history: pl.History(),
		models:  pl.Models(),
		balance: pl.Balance(),
	}
	c.modelIdx = modelIndex(c.models, pl.CurrentModel())
	return c
}

// Init implements tea.Model.
func (c Chat) Init() tea.Cmd {
	return tea.Batch(
		tea.EnableMouseCellMotion,
		textinput.Blink,
		c.spinner.Tick,
	)
}

// sendTurnCmd runs one pipeline turn off the UI goroutine. The pipeline
// synthesizes error replies itself, so the only hard error is ErrBusy,
// which the sending flag already prevents.
func sendTurnCmd(pl *session.Pipeline, text string) tea.Cmd {
	return func() tea.Msg {
		history, _ := pl.Send(context.Background(), text)
		return TurnDoneMsg{History: history, Balance: pl.Balance()}
	}
}

// Update implements tea.Model.
func (c Chat) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		c.width = msg.Width
		c.height = msg.Height
		vpHeight := msg.Height - chromeHeight
		if vpHeight < 3 {
			vpHeight = 3
		}
		if !c.ready {
			c.viewport = viewport.New(msg.Width, vpHeight)
			c.ready = true
		} else {
			c.viewport.Width = msg.Width
			c.viewport.Height = vpHeight
		}
		c.refreshViewport()
		return c, nil

	case spinner.TickMsg:
		if !c.sending {
			return c, nil
		}
		var cmd tea.Cmd
		c.spinner, cmd = c.spinner.Update(msg)
		return c, cmd

	case TurnDoneMsg:
		c.sending = false
		c.history = msg.History
		c.balance = msg.Balance
		c.refreshViewport()
		return c, nil

	case tea.MouseMsg:
		var cmd tea.Cmd
		c.viewport, cmd = c.viewport.Update(msg)
		return c, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return c, tea.Quit

		case "enter":
			if c.sending {
				return c, nil
			}
			text := strings.TrimSpace(c.input.Value())
			if text == "" {
				return c, nil
			}
			c.input.SetValue("")
			c.sending = true
			return c, tea.Batch(sendTurnCmd(c.pl, text), c.spinner.Tick)

		case "ctrl+n":
			// Cycle the model slot; takes effect on the next send.
			if c.sending || len(c.models) == 0 {
				return c, nil
			}
			c.modelIdx = (c.modelIdx + 1) % len(c.models)
			c.pl.SelectModel(c.models[c.modelIdx].ID)
			return c, nil

		case "ctrl+x":
			if c.sending {
				return c, nil
			}
			c.pl.ClearSession()
			c.history = nil
			c.refreshViewport()
			return c, nil

		case "pgup", "pgdown":
			var cmd tea.Cmd
			c.viewport, cmd = c.viewport.Update(msg)
			return c, cmd
		}

		var cmd tea.Cmd
		c.input, cmd = c.input.Update(msg)
		return c, cmd
	}

	return c, nil
}

// View implements tea.Model.
func (c Chat) View() string {
	if !c.ready {
		return "\n  starting..."
	}
	t := theme.Active

	title := lipgloss.NewStyle().
		Foreground(t.Background).
		Background(t.Accent).
		Bold(true).
		Padding(0, 1).
		Render("tokenchat")
	modelLabel := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Padding(0, 1).
		Render(c.currentModelLabel())
	header := lipgloss.JoinHorizontal(lipgloss.Top, title, modelLabel)

	inputLine := c.input.View()
	if c.sending {
		inputLine = c.spinner.View() + lipgloss.NewStyle().
			Foreground(t.TextDim).
			Render("waiting for reply...")
	}

	left := " [enter]send  [ctrl+n]model  [ctrl+x]clear  [esc]quit"
	right := fmt.Sprintf("session %s | balance %s ",
		cli.FormatCost(c.sessionCost()), cli.FormatBalance(c.balance))
	status := components.RenderStatusBar(c.width, left, right)

	return header + "\n" + c.viewport.View() + "\n" + inputLine + "\n" + status
}

func (c *Chat) refreshViewport() {
	if !c.ready {
		return
	}
	c.viewport.SetContent(c.renderTurns())
	c.viewport.GotoBottom()
}

// renderTurns renders the full turn sequence for the viewport.
func (c Chat) renderTurns() string {
	t := theme.Active
	if len(c.history) == 0 {
		return lipgloss.NewStyle().
			Foreground(t.TextDim).
			Padding(1, 2).
			Render("No messages yet. Say something.")
	}

	wrapWidth := c.viewport.Width - 4
	if wrapWidth < 20 {
		wrapWidth = 20
	}
	userStyle := lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	replyStyle := lipgloss.NewStyle().Foreground(t.Green).Bold(true)
	bodyStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Width(wrapWidth).PaddingLeft(2)
	metaStyle := lipgloss.NewStyle().Foreground(t.TextDim).PaddingLeft(2)

	var b strings.Builder
	for _, m := range c.history {
		b.WriteString("\n")
		if m.IsUser {
			b.WriteString(" " + userStyle.Render("you"))
		} else {
			name := m.Model
			if name == "" {
				name = "system"
			}
			b.WriteString(" " + replyStyle.Render(name))
		}
		b.WriteString("\n")
		b.WriteString(bodyStyle.Render(m.Content))
		if meta := turnMeta(m); meta != "" {
			b.WriteString("\n" + metaStyle.Render(meta))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// turnMeta formats the token/cost footer of a reply turn. Synthesized
// error turns carry neither and get no footer.
func turnMeta(m store.Message) string {
	var parts []string
	if m.TokenCount != nil {
		parts = append(parts, cli.FormatTokens(*m.TokenCount)+" tok")
	}
	if m.Cost != nil {
		parts = append(parts, cli.FormatCost(*m.Cost))
	}
	return strings.Join(parts, " | ")
}

func (c Chat) currentModelLabel() string {
	if len(c.models) == 0 {
		return "no models"
	}
	return c.models[c.modelIdx].ID
}

// sessionCost sums the reconciled cost over the loaded turn sequence.
func (c Chat) sessionCost() float64 {
	var total float64
	for _, m := range c.history {
		if m.Cost != nil {
			total += *m.Cost
		}
	}
	return total
}

func modelIndex(models []llm.Model, id string) int {
	for i, m := range models {
		if m.ID == id {
			return i
		}
	}
	return 0
}
