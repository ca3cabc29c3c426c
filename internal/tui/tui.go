// Package tui is the full-screen interface: index check, model selection,
// indexing progress and chat.
package tui

import (
	"context"

	"diver/internal/app"

	tea "github.com/charmbracelet/bubbletea"
)

type screen int

const (
	screenWelcome screen = iota
	screenSetup
	screenIndexing
	screenChat
)

// programRef lets background commands send messages to the running
// program. It is filled in after tea.NewProgram returns.
type programRef struct {
	p *tea.Program
}

func (r *programRef) send(msg tea.Msg) {
	if r != nil && r.p != nil {
		r.p.Send(msg)
	}
}

// Model is the top-level Bubble Tea model. Each screen has its own
// sub-model; Model only routes messages and moves between screens.
type Model struct {
	ctx     context.Context
	app     *app.App
	program *programRef
	screen  screen
	width   int
	height  int

	welcome  welcomeModel
	setup    setupModel
	indexing indexingModel
	chat     chatModel
}

// New creates a TUI model over a.
func New(ctx context.Context, a *app.App) Model {
	return Model{ctx: ctx, app: a, program: &programRef{}}
}

func (m Model) Init() tea.Cmd {
	return checkIndex(m.ctx, m.app)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if size, ok := msg.(tea.WindowSizeMsg); ok {
		m.width, m.height = size.Width, size.Height
		if m.screen != screenChat {
			return m, nil
		}
	}
	if key, ok := msg.(tea.KeyMsg); ok {
		if key.Type == tea.KeyCtrlC || (key.String() == "q" && m.screen != screenChat) {
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	switch m.screen {
	case screenWelcome:
		cmd = m.updateWelcome(msg)
	case screenSetup:
		cmd = m.updateSetup(msg)
	case screenIndexing:
		cmd = m.updateIndexing(msg)
	case screenChat:
		m.chat, cmd = m.chat.Update(msg)
	}
	return m, cmd
}

func (m *Model) updateWelcome(msg tea.Msg) tea.Cmd {
	m.welcome, _ = m.welcome.Update(msg)
	key, ok := msg.(tea.KeyMsg)
	if !ok || !m.welcome.ready {
		return nil
	}
	switch {
	case key.Type == tea.KeyEnter && m.welcome.status == indexReady:
		m.openChat()
	case key.Type == tea.KeyEnter, key.String() == "r":
		cfg := m.app.Config()
		m.setup = newSetupModel(cfg.Ollama.EmbedModel, cfg.Ollama.ChatModel)
		m.screen = screenSetup
		return fetchModels(m.ctx, cfg.Ollama.URL)
	}
	return nil
}

func (m *Model) updateSetup(msg tea.Msg) tea.Cmd {
	m.setup, _ = m.setup.Update(msg)
	key, ok := msg.(tea.KeyMsg)
	if !ok || key.Type != tea.KeyEnter || !m.setup.selectable() {
		return nil
	}
	if m.setup.advancePage() {
		return nil
	}
	m.app.SetModels(m.setup.selectedEmbedModel(), m.setup.selectedChatModel())
	m.indexing = newIndexingModel()
	m.screen = screenIndexing
	return tea.Batch(m.indexing.spinner.Tick, runIndex(m.ctx, m.app, m.program))
}

func (m *Model) updateIndexing(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	m.indexing, cmd = m.indexing.Update(msg)
	if key, ok := msg.(tea.KeyMsg); ok && key.Type == tea.KeyEnter && m.indexing.done {
		m.openChat()
	}
	return cmd
}

func (m *Model) openChat() {
	m.chat = newChatModel(m.ctx, m.app)
	m.chat.initViewport(m.width, m.height)
	m.screen = screenChat
}

func (m Model) View() string {
	switch m.screen {
	case screenSetup:
		return m.setup.View(m.width, m.height)
	case screenIndexing:
		return m.indexing.View(m.width, m.height)
	case screenChat:
		return m.chat.View(m.width, m.height)
	default:
		return m.welcome.View(m.width, m.height)
	}
}

// Run starts the TUI program and blocks until it exits.
func Run(ctx context.Context, a *app.App) error {
	model := New(ctx, a)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	model.program.p = p
	_, err := p.Run()
	return err
}
