package tui

import (
	"context"
	"fmt"
	"strings"

	"diver/internal/llm"

	tea "github.com/charmbracelet/bubbletea"
)

type setupPage int

const (
	setupPageEmbed setupPage = iota
	setupPageChat
)

type setupModel struct {
	defaultEmbed string
	defaultChat  string
	models       []llm.Model
	embedModels  []llm.Model
	chatModels   []llm.Model
	embedCursor  int
	chatCursor   int
	page         setupPage
	loaded       bool
	err          error
}

func newSetupModel(embed, chat string) setupModel {
	return setupModel{defaultEmbed: embed, defaultChat: chat}
}

// fetchModelsMsg is sent when models have been fetched from Ollama.
type fetchModelsMsg struct {
	models []llm.Model
	err    error
}

func fetchModels(ctx context.Context, baseURL string) tea.Cmd {
	return func() tea.Msg {
		models, err := llm.ListModels(ctx, baseURL)
		return fetchModelsMsg{models: models, err: err}
	}
}

// isEmbedModel guesses from the name whether a model produces embeddings.
func isEmbedModel(name string) bool {
	name = strings.ToLower(name)
	return strings.Contains(name, "embed") || strings.Contains(name, "nomic") || strings.Contains(name, "bge")
}

// splitModels separates embedding from chat models. A side left empty
// falls back to the full list.
func splitModels(models []llm.Model) (embed, chat []llm.Model) {
	for _, model := range models {
		if isEmbedModel(model.Name) {
			embed = append(embed, model)
		} else {
			chat = append(chat, model)
		}
	}
	if len(embed) == 0 {
		embed = models
	}
	if len(chat) == 0 {
		chat = models
	}
	return embed, chat
}

func indexOf(models []llm.Model, name string) int {
	for i, m := range models {
		if llm.HasModel([]llm.Model{m}, name) {
			return i
		}
	}
	return 0
}

func (m setupModel) Update(msg tea.Msg) (setupModel, tea.Cmd) {
	switch msg := msg.(type) {
	case fetchModelsMsg:
		m.loaded = true
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.models = msg.models
		m.embedModels, m.chatModels = splitModels(msg.models)
		m.embedCursor = indexOf(m.embedModels, m.defaultEmbed)
		m.chatCursor = indexOf(m.chatModels, m.defaultChat)

	case tea.KeyMsg:
		if !m.loaded || m.err != nil {
			return m, nil
		}
		list, cursor := m.embedModels, &m.embedCursor
		if m.page == setupPageChat {
			list, cursor = m.chatModels, &m.chatCursor
		}
		switch msg.String() {
		case "up", "k":
			if *cursor > 0 {
				*cursor--
			}
		case "down", "j":
			if *cursor < len(list)-1 {
				*cursor++
			}
		}
	}
	return m, nil
}

// selectable reports whether a model list is on screen.
func (m setupModel) selectable() bool {
	return m.loaded && m.err == nil && len(m.models) > 0
}

// advancePage moves from embed page to chat page. Returns true if it advanced.
func (m *setupModel) advancePage() bool {
	if m.page == setupPageEmbed {
		m.page = setupPageChat
		return true
	}
	return false
}

func renderModelList(models []llm.Model, cursor int) string {
	var sb strings.Builder
	for i, model := range models {
		marker := "  "
		style := listItemStyle
		if i == cursor {
			marker = "▸ "
			style = selectedStyle
		}
		fmt.Fprintf(&sb, "  %s%s\n", marker, style.Render(fmt.Sprintf("%s (%s)", model.Name, llm.FormatSize(model.Size))))
	}
	return sb.String()
}

func (m setupModel) View(width, height int) string {
	s := "\n"

	switch {
	case !m.loaded:
		s += titleStyle.Render("  Model Selection") + "\n\n"
		s += dimStyle.Render("  Fetching models from Ollama...") + "\n"
		return s
	case m.err != nil:
		s += titleStyle.Render("  Model Selection") + "\n\n"
		s += errorStyle.Render(fmt.Sprintf("  Error: %v", m.err)) + "\n\n"
		s += dimStyle.Render("  Make sure Ollama is running (or start diver with --serve).") + "\n"
		s += dimStyle.Render("  Press q to quit.") + "\n"
		return s
	case len(m.models) == 0:
		s += titleStyle.Render("  Model Selection") + "\n\n"
		s += warnStyle.Render("  No models found in Ollama.") + "\n"
		s += dimStyle.Render("  Pull one first: ollama pull "+m.defaultEmbed) + "\n"
		return s
	}

	if m.page == setupPageEmbed {
		s += titleStyle.Render("  Select Embedding Model") + "\n"
		s += dimStyle.Render("  Embeds code chunks at index time and questions at query time") + "\n\n"
		s += renderModelList(m.embedModels, m.embedCursor)
		s += "\n" + helpStyle.Render("  ↑/↓ navigate • Enter select") + "\n"
		return s
	}
	s += titleStyle.Render("  Select Chat Model") + "\n"
	s += dimStyle.Render("  Answers questions using the retrieved snippets") + "\n\n"
	s += renderModelList(m.chatModels, m.chatCursor)
	s += "\n" + helpStyle.Render("  ↑/↓ navigate • Enter confirm and index") + "\n"
	return s
}

func (m setupModel) selectedEmbedModel() string {
	if m.embedCursor < len(m.embedModels) {
		return m.embedModels[m.embedCursor].Name
	}
	return ""
}

func (m setupModel) selectedChatModel() string {
	if m.chatCursor < len(m.chatModels) {
		return m.chatModels[m.chatCursor].Name
	}
	return ""
}
