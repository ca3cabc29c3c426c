package tui

import (
	"context"
	"fmt"
	"time"

	"diver/internal/app"
	"diver/internal/index"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type indexingModel struct {
	spinner   spinner.Model
	phase     string
	processed int
	total     int
	done      bool
	stats     *index.Stats
	err       error
}

func newIndexingModel() indexingModel {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = selectedStyle
	return indexingModel{spinner: sp, phase: "scanning"}
}

// indexDoneMsg is sent when indexing completes.
type indexDoneMsg struct {
	stats *index.Stats
	err   error
}

// indexProgressMsg is sent from the indexer's progress callback.
type indexProgressMsg struct {
	phase     string
	processed int
	total     int
}

// runIndex rebuilds the index. Progress reaches the program through ref
// since the command itself only returns once indexing is over.
func runIndex(ctx context.Context, a *app.App, ref *programRef) tea.Cmd {
	return func() tea.Msg {
		stats, err := a.Index(ctx, index.WithRebuild(true), index.WithProgress(func(phase string, processed, total int) {
			ref.send(indexProgressMsg{phase: phase, processed: processed, total: total})
		}))
		return indexDoneMsg{stats: stats, err: err}
	}
}

func (m indexingModel) Update(msg tea.Msg) (indexingModel, tea.Cmd) {
	switch msg := msg.(type) {
	case indexDoneMsg:
		m.done = true
		m.stats = msg.stats
		m.err = msg.err
	case indexProgressMsg:
		m.phase = msg.phase
		m.processed = msg.processed
		m.total = msg.total
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m indexingModel) View(width, height int) string {
	s := "\n" + titleStyle.Render("  Indexing") + "\n\n"

	if !m.done {
		s += fmt.Sprintf("  %s %s", m.spinner.View(), m.phase)
		if m.total > 0 {
			s += dimStyle.Render(fmt.Sprintf("  %d/%d", m.processed, m.total))
		}
		return s + "\n"
	}

	if m.err != nil {
		s += errorStyle.Render(fmt.Sprintf("  Error: %v", m.err)) + "\n\n"
		s += helpStyle.Render("  Enter chat anyway • q quit") + "\n"
		return s
	}
	s += successStyle.Render("  ✓ Index built") + "\n\n"
	if m.stats != nil {
		s += fmt.Sprintf("  %d files indexed, %d skipped\n", m.stats.FilesIndexed, m.stats.FilesSkipped)
		s += fmt.Sprintf("  %d chunks in %d batches (%s)\n", m.stats.ChunksTotal, m.stats.Batches, m.stats.Elapsed.Round(10*time.Millisecond))
	}
	s += "\n" + helpStyle.Render("  Enter chat • q quit") + "\n"
	return s
}
