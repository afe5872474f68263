// Package tui provides interactive terminal UI components.
package tui

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	shelferrors "github.com/lepinkainen/shelf/internal/errors"
	"github.com/lepinkainen/shelf/internal/library"
	"github.com/lepinkainen/shelf/internal/scanner"
)

const defaultPathWidth = 60

var runProgram = func(m tea.Model) (tea.Model, error) {
	return tea.NewProgram(m).Run()
}

type progressMsg scanner.Progress

type scanDoneMsg struct{}

// waitForProgress reads the next value from the scan's latest-value channel.
func waitForProgress(ch <-chan scanner.Progress) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return scanDoneMsg{}
		}
		return progressMsg(p)
	}
}

type progressModel struct {
	spinner   spinner.Model
	updates   <-chan scanner.Progress
	cancel    func()
	processed int
	lastPath  string
	pathWidth int
	stopping  bool
	done      bool
}

func newProgressModel(updates <-chan scanner.Progress, cancel func()) *progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle
	return &progressModel{
		spinner:   s,
		updates:   updates,
		cancel:    cancel,
		pathWidth: defaultPathWidth,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForProgress(m.updates))
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			// Keep listening until in-flight extractions drain.
			if !m.stopping {
				m.stopping = true
				m.cancel()
			}
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.pathWidth = clamp(defaultPathWidth, msg.Width-20, 20)
	case progressMsg:
		// Ignore stale values.
		if msg.Processed > m.processed {
			m.processed = msg.Processed
			m.lastPath = msg.Path
		}
		return m, waitForProgress(m.updates)
	case scanDoneMsg:
		m.done = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m *progressModel) View() string {
	if m.done {
		return doneStyle.Render(fmt.Sprintf("Scanned %d books", m.processed)) + "\n"
	}

	status := "Scanning library"
	if m.stopping {
		status = "Stopping, waiting for running extractions"
	}
	header := headerStyle.Render(fmt.Sprintf("%s %s", m.spinner.View(), status))
	count := countStyle.Render(fmt.Sprintf("%d books processed", m.processed))
	current := pathStyle.Render(truncateLeft(m.lastPath, m.pathWidth))
	help := helpStyle.Render("q stop scanning")
	return lipgloss.JoinVertical(lipgloss.Left, header, count, current, help)
}

var (
	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			MarginBottom(1)

	countStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("254"))

	pathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("247")).
			Faint(true)

	doneStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("110"))

	helpStyle = lipgloss.NewStyle().
			MarginTop(1).
			Foreground(lipgloss.Color("244"))
)

// WatchScan shows a live progress view for run and returns the collected
// books once it completes. When the user stops the scan, the books finished
// so far are returned together with a StopProcessingError.
func WatchScan(run *scanner.Run) ([]library.Book, error) {
	collected := make(chan []library.Book, 1)
	go func() {
		var books []library.Book
		for b := range run.Books {
			books = append(books, b)
		}
		collected <- books
	}()

	finalModel, err := runProgram(newProgressModel(run.Progress, run.Cancel))
	if err != nil {
		run.Cancel()
		books := <-collected
		run.Wait()
		return books, err
	}

	books := <-collected
	run.Wait()

	typed, ok := finalModel.(*progressModel)
	if !ok {
		return books, fmt.Errorf("unexpected program result")
	}
	if typed.stopping {
		return books, shelferrors.NewStopProcessingError("scan stopped by user")
	}
	return books, nil
}

// truncateLeft keeps the tail of a path, which is the part that changes.
func truncateLeft(value string, width int) string {
	runes := []rune(filepath.ToSlash(value))
	if width <= 0 || len(runes) <= width {
		return string(runes)
	}
	if width <= 3 {
		return string(runes[len(runes)-width:])
	}
	return "..." + string(runes[len(runes)-(width-3):])
}

func clamp(defaultValue, available, minimum int) int {
	width := defaultValue
	if available > 0 && available < defaultValue {
		width = available
	}
	if width < minimum {
		width = minimum
	}
	return width
}
