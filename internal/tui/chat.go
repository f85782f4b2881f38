// Package tui is an interactive terminal chat over one collection.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rag-lab/server/internal/domain"
)

// Querier answers questions against a collection.
type Querier interface {
	Query(ctx context.Context, query, collectionID string) (*domain.Answer, error)
}

// Message is one entry in the chat history.
type Message struct {
	Role    string
	Content string
	Sources []domain.Source
	Err     error
}

// Roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type answerMsg struct {
	answer *domain.Answer
	err    error
}

// Model is the Bubble Tea model for the chat console.
type Model struct {
	querier      Querier
	collectionID string
	title        string
	timeout      time.Duration

	input    textinput.Model
	viewport viewport.Model
	messages []Message
	thinking bool
	ready    bool
	width    int
}

// New creates a chat bound to collectionID. title is shown in the header.
func New(querier Querier, collectionID, title string, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.CharLimit = 0
	ti.Focus()

	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return Model{
		querier:      querier,
		collectionID: collectionID,
		title:        title,
		timeout:      timeout,
		input:        ti,
		viewport:     viewport.New(80, 20),
		width:        80,
	}
}

// Messages returns the chat history.
func (m Model) Messages() []Message { return m.messages }

// Thinking reports whether a question is awaiting its answer.
func (m Model) Thinking() bool { return m.thinking }

// Init starts the cursor blinking.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, resize and answer messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		_, fh := historyStyle.GetFrameSize()
		reserved := 2 + 3 + 1 // header, input box, status
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-fh)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case answerMsg:
		m.thinking = false
		if msg.err != nil {
			m.messages = append(m.messages, Message{Role: RoleAssistant, Err: msg.err})
		} else {
			m.messages = append(m.messages, Message{
				Role:    RoleAssistant,
				Content: msg.answer.Answer,
				Sources: msg.answer.Sources,
			})
		}
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	question := strings.TrimSpace(m.input.Value())
	if question == "" || m.thinking {
		return m, nil
	}

	m.input.Reset()
	m.thinking = true
	m.messages = append(m.messages, Message{Role: RoleUser, Content: question})
	m.refresh()
	return m, m.ask(question)
}

func (m Model) ask(question string) tea.Cmd {
	querier, collectionID, timeout := m.querier, m.collectionID, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		answer, err := querier.Query(ctx, question, collectionID)
		return answerMsg{answer: answer, err: err}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

// View renders the header, history, input and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("rag-lab chat") + " " + dimStyle.Render(m.title)
	status := dimStyle.Render("enter: ask  pgup/pgdn: scroll  esc: quit")
	if m.thinking {
		status = thinkingStyle.Render("Thinking...")
	}
	return header + "\n" +
		historyStyle.Render(m.viewport.View()) + "\n" +
		inputStyle.Render(m.input.View()) + "\n" +
		status
}

func (m Model) renderHistory() string {
	if len(m.messages) == 0 {
		return dimStyle.Render("Ask anything about the documents in this collection.")
	}

	wrap := lipgloss.NewStyle().Width(max(20, m.viewport.Width-2))
	var b strings.Builder
	for i, msg := range m.messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch {
		case msg.Role == RoleUser:
			b.WriteString(userStyle.Render("You: "))
			b.WriteString(wrap.Render(msg.Content))
		case msg.Err != nil:
			b.WriteString(errorStyle.Render("Error: " + msg.Err.Error()))
		default:
			b.WriteString(assistantStyle.Render("Assistant: "))
			b.WriteString(wrap.Render(msg.Content))
			if len(msg.Sources) > 0 {
				b.WriteString("\n")
				b.WriteString(dimStyle.Render("Sources:"))
				for _, s := range msg.Sources {
					b.WriteString("\n")
					b.WriteString(dimStyle.Render(fmt.Sprintf("  • %s: %s", s.DocumentName, s.Excerpt)))
				}
			}
		}
	}
	return b.String()
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	thinkingStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("11"))
	historyStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Run starts the chat and blocks until the user quits.
func Run(m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
