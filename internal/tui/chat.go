package tui

import (
	"context"
	"fmt"
	"strings"

	"diver/internal/app"
	"diver/internal/llm"
	"diver/internal/repl"
	"diver/internal/search"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// maxHistory bounds the conversation sent back to the model.
const maxHistory = 20

const chatHelp = `Commands:
  <question>                  ask about the code
  :find <query> [--ext .py]   search without asking the model
  :clear                      forget the conversation
  :help                       show this help
  :quit                       exit

Start a question with "struct", "class" or "def" to look a definition up directly.
Editing and running files is available in "diver chat".`

type role int

const (
	roleUser role = iota
	roleAssistant
	roleSources
	roleResult
	roleError
	roleSystem
)

type entry struct {
	role role
	text string
}

type chatModel struct {
	ctx  context.Context
	app  *app.App
	busy bool

	transcript []entry
	history    []llm.Message

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	markdown *glamour.TermRenderer

	width, height int
	initialized   bool
}

// answerMsg carries the outcome of a question.
type answerMsg struct {
	sources []string
	answer  string
	err     error
}

// findMsg carries the outcome of a :find.
type findMsg struct {
	results []search.Result
	err     error
}

func newChatModel(ctx context.Context, a *app.App) chatModel {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = selectedStyle

	in := textinput.New()
	in.Placeholder = "Ask about the code, or :help"
	in.CharLimit = 4000
	in.Prompt = "› "
	in.Focus()

	return chatModel{ctx: ctx, app: a, spinner: sp, input: in}
}

func (m *chatModel) initViewport(width, height int) {
	m.width, m.height = width, height

	// viewport, status bar, input
	m.viewport = viewport.New(width, max(height-3, 5))
	m.input.Width = width - 4
	if r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width-2)); err == nil {
		m.markdown = r
	}
	m.initialized = true
	m.refresh()
}

func (m *chatModel) add(r role, text string) {
	m.transcript = append(m.transcript, entry{role: r, text: text})
}

func (m *chatModel) refresh() {
	if len(m.transcript) == 0 && !m.busy {
		m.viewport.SetContent(dimStyle.Render("Ask a question about " + m.app.Root() + "\n\nType :help for commands."))
		return
	}
	m.viewport.SetContent(m.render())
	m.viewport.GotoBottom()
}

func ask(ctx context.Context, a *app.App, question string, history []llm.Message) tea.Cmd {
	return func() tea.Msg {
		results, err := a.Search(ctx, question, "")
		if err != nil {
			return answerMsg{err: fmt.Errorf("search: %w", err)}
		}
		sources := make([]string, len(results))
		for i, r := range results {
			sources[i] = r.Source
		}

		answer, err := a.Chat().Generate(ctx, llm.BuildMessages(question, search.FormatContext(results), history))
		if err != nil {
			return answerMsg{sources: sources, err: fmt.Errorf("generate: %w", err)}
		}
		return answerMsg{sources: sources, answer: answer}
	}
}

func find(ctx context.Context, a *app.App, query, ext string) tea.Cmd {
	return func() tea.Msg {
		results, err := a.Search(ctx, query, ext)
		return findMsg{results: results, err: err}
	}
}

func (m chatModel) Update(msg tea.Msg) (chatModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.initViewport(msg.Width, msg.Height)
		return m, nil

	case answerMsg:
		m.busy = false
		if len(msg.sources) > 0 {
			m.add(roleSources, strings.Join(msg.sources, "  "))
		}
		if msg.err != nil {
			m.add(roleError, msg.err.Error())
			// drop the unanswered question
			m.history = m.history[:len(m.history)-1]
		} else {
			m.add(roleAssistant, msg.answer)
			m.history = append(m.history, llm.Message{Role: "assistant", Content: msg.answer})
			if n := len(m.history); n > maxHistory {
				m.history = m.history[n-maxHistory:]
			}
		}
		m.refresh()
		return m, nil

	case findMsg:
		m.busy = false
		switch {
		case msg.err != nil:
			m.add(roleError, msg.err.Error())
		case len(msg.results) == 0:
			m.add(roleSystem, "No results.")
		}
		for _, r := range msg.results {
			label := "exact"
			if !r.Exact() {
				label = fmt.Sprintf("distance %.3f", *r.Distance)
			}
			m.add(roleSources, fmt.Sprintf("%s (%s)", r.Source, label))
			m.add(roleResult, r.Snippet)
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd

	case tea.KeyMsg:
		if m.busy {
			return m, nil
		}
		if msg.Type == tea.KeyEnter {
			return m.submit()
		}
	}

	var inputCmd, viewCmd tea.Cmd
	if !m.busy {
		m.input, inputCmd = m.input.Update(msg)
	}
	m.viewport, viewCmd = m.viewport.Update(msg)
	return m, tea.Batch(inputCmd, viewCmd)
}

func (m chatModel) submit() (chatModel, tea.Cmd) {
	line := m.input.Value()
	m.input.Reset()
	if strings.HasPrefix(line, "/") {
		line = ":" + line[1:]
	}

	cmd := repl.Parse(line)
	switch cmd.Kind {
	case repl.CmdEmpty:
		return m, nil
	case repl.CmdQuit:
		return m, tea.Quit
	case repl.CmdClear:
		m.transcript, m.history = nil, nil
		m.add(roleSystem, "Conversation cleared.")
	case repl.CmdHelp:
		m.add(roleSystem, chatHelp)
	case repl.CmdFind:
		if cmd.Arg == "" {
			m.add(roleError, "usage: :find <query> [--ext .py]")
			break
		}
		m.add(roleUser, line)
		m.busy = true
		m.refresh()
		return m, tea.Batch(m.spinner.Tick, find(m.ctx, m.app, cmd.Arg, cmd.Ext))
	case repl.CmdAsk:
		m.add(roleUser, cmd.Arg)
		history := append([]llm.Message(nil), m.history...)
		m.history = append(m.history, llm.Message{Role: "user", Content: cmd.Arg})
		m.busy = true
		m.refresh()
		return m, tea.Batch(m.spinner.Tick, ask(m.ctx, m.app, cmd.Arg, history))
	default:
		m.add(roleError, fmt.Sprintf("%s is not available here (try :help)", strings.Fields(line)[0]))
	}
	m.refresh()
	return m, nil
}

func (m chatModel) renderMarkdown(text string) string {
	if m.markdown != nil {
		if out, err := m.markdown.Render(text); err == nil {
			return strings.TrimRight(out, "\n")
		}
	}
	return assistantMsgStyle.Render(text)
}

func (m chatModel) render() string {
	var sb strings.Builder
	for _, e := range m.transcript {
		switch e.role {
		case roleUser:
			sb.WriteString("\n" + userMsgStyle.Render("› ") + e.text + "\n")
		case roleSources:
			sb.WriteString(sourceStyle.Render(e.text) + "\n")
		case roleResult:
			sb.WriteString(dimStyle.Render(e.text) + "\n\n")
		case roleAssistant:
			sb.WriteString(m.renderMarkdown(e.text) + "\n")
		case roleError:
			sb.WriteString(errorStyle.Render("Error: "+e.text) + "\n")
		case roleSystem:
			sb.WriteString(dimStyle.Render(e.text) + "\n")
		}
	}
	if m.busy {
		sb.WriteString(m.spinner.View() + " " + dimStyle.Render("Thinking...") + "\n")
	}
	return sb.String()
}

func (m chatModel) View(width, height int) string {
	if !m.initialized {
		return ""
	}
	status := "ready"
	if m.busy {
		status = "thinking"
	}
	bar := statusBarStyle.Width(m.width).
		Render(fmt.Sprintf("diver • %s • %s", m.app.Config().Ollama.ChatModel, status))
	return lipgloss.JoinVertical(lipgloss.Left, m.viewport.View(), bar, m.input.View())
}
