package tui

import (
	"context"
	"fmt"

	"diver/internal/app"
	"diver/internal/store"

	tea "github.com/charmbracelet/bubbletea"
)

type indexStatus int

const (
	indexNotFound indexStatus = iota
	indexReady
	indexStale
)

type welcomeModel struct {
	status  indexStatus
	reason  string
	root    string
	entries int
	ready   bool // true once the check has completed
}

// checkIndexMsg is sent after checking the index status.
type checkIndexMsg struct {
	status  indexStatus
	reason  string
	root    string
	entries int
}

func checkIndex(ctx context.Context, a *app.App) tea.Cmd {
	return func() tea.Msg {
		msg := checkIndexMsg{status: indexNotFound, root: a.Root()}

		st, err := a.Store(ctx)
		if err != nil {
			msg.reason = err.Error()
			return msg
		}
		n, err := st.Count(ctx)
		if err != nil || n == 0 {
			return msg
		}
		msg.entries = n

		model := a.Config().Ollama.EmbedModel
		if err := store.CheckModel(ctx, st, model); err != nil {
			recorded, _ := st.GetMeta(ctx, store.MetaEmbeddingModel)
			msg.status = indexStale
			msg.reason = fmt.Sprintf("model changed: %s → %s", recorded, model)
			return msg
		}
		msg.status = indexReady
		return msg
	}
}

func (m welcomeModel) Update(msg tea.Msg) (welcomeModel, tea.Cmd) {
	if msg, ok := msg.(checkIndexMsg); ok {
		m.status = msg.status
		m.reason = msg.reason
		m.root = msg.root
		m.entries = msg.entries
		m.ready = true
	}
	return m, nil
}

func (m welcomeModel) View(width, height int) string {
	s := "\n"
	s += titleStyle.Render("  ◆ diver") + "\n"
	s += subtitleStyle.Render("  Dive into your codebase with a local model") + "\n\n"

	if !m.ready {
		s += dimStyle.Render("  Checking index...") + "\n"
		return s
	}

	s += dimStyle.Render("  "+m.root) + "\n\n"
	switch m.status {
	case indexReady:
		s += successStyle.Render(fmt.Sprintf("  ✓ Index ready (%d chunks)", m.entries)) + "\n"
	case indexNotFound:
		s += warnStyle.Render("  ✗ No index found") + "\n"
	case indexStale:
		s += warnStyle.Render("  ⚠ Index stale") + "\n"
	}
	if m.reason != "" {
		s += dimStyle.Render("    "+m.reason) + "\n"
	}

	s += "\n"
	if m.status == indexReady {
		s += helpStyle.Render("  Enter chat • r re-index • q quit") + "\n"
	} else {
		s += helpStyle.Render("  Enter choose models and index • q quit") + "\n"
	}
	return s
}
