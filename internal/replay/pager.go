package replay

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/muesli/reflow/wordwrap"
)

var (
	pagerTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	pagerDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	pagerLiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("10"))
)

// Pager is an interactive terminal viewer for run timelines.
type Pager struct {
	title string
}

// NewPager creates a pager titled after the run it shows.
func NewPager(title string) *Pager {
	return &Pager{title: title}
}

// Run shows static content.
func (p *Pager) Run(content string) error {
	prog := tea.NewProgram(
		&pagerModel{title: p.title, content: content},
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err := prog.Run()
	return err
}

// RunLive shows content that re-renders whenever the run file changes, for
// watching a run while it executes.
func (p *Pager) RunLive(filePath string, render func() (string, error)) error {
	content, err := render()
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filePath); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch run file: %w", err)
	}
	defer watcher.Close()

	prog := tea.NewProgram(
		&pagerModel{
			title:   p.title,
			content: content,
			live:    true,
			render:  render,
			watcher: watcher,
		},
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err = prog.Run()
	return err
}

type fileChangedMsg struct{}

type pagerModel struct {
	viewport viewport.Model
	title    string
	content  string
	wrapped  string
	ready    bool
	live     bool
	render   func() (string, error)
	watcher  *fsnotify.Watcher

	searching    bool
	searchInput  textinput.Model
	searchQuery  string
	searchLines  []int
	searchIndex  int
	searchFailed bool
}

func (m *pagerModel) Init() tea.Cmd {
	if m.live && m.watcher != nil {
		return m.watchFile()
	}
	return nil
}

// watchFile blocks until the run file is rewritten. Writes are debounced
// because the store renames a temp file into place.
func (m *pagerModel) watchFile() tea.Cmd {
	return func() tea.Msg {
		for {
			select {
			case event, ok := <-m.watcher.Events:
				if !ok {
					return nil
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					time.Sleep(100 * time.Millisecond)
					return fileChangedMsg{}
				}
			case _, ok := <-m.watcher.Errors:
				if !ok {
					return nil
				}
			}
		}
	}
}

func (m *pagerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	if m.searching {
		switch msg := msg.(type) {
		case tea.KeyMsg:
			switch msg.String() {
			case "enter":
				m.searchQuery = m.searchInput.Value()
				m.searching = false
				m.executeSearch()
				if len(m.searchLines) > 0 {
					m.jumpToMatch(0)
				}
				return m, nil
			case "esc", "ctrl+c":
				m.searching = false
				m.clearSearch()
				return m, nil
			}
		}
		m.searchInput, cmd = m.searchInput.Update(msg)
		return m, cmd
	}

	switch msg := msg.(type) {
	case fileChangedMsg:
		if m.render != nil {
			if newContent, err := m.render(); err == nil {
				offset := m.viewport.YOffset
				atBottom := m.viewport.AtBottom()
				m.content = newContent
				m.wrapped = wrapContent(m.content, m.viewport.Width)
				m.viewport.SetContent(m.wrapped)
				if atBottom {
					m.viewport.GotoBottom()
				} else {
					m.viewport.YOffset = offset
				}
				if m.searchQuery != "" {
					m.executeSearch()
				}
			}
		}
		cmds = append(cmds, m.watchFile())

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.searchQuery != "" {
				m.clearSearch()
			} else {
				return m, tea.Quit
			}
		case "g":
			m.viewport.GotoTop()
		case "G":
			m.viewport.GotoBottom()
		case "f":
			if m.live {
				m.viewport.GotoBottom()
			}
		case "/":
			m.searching = true
			m.searchInput = textinput.New()
			m.searchInput.Placeholder = "Search..."
			m.searchInput.Focus()
			m.searchInput.CharLimit = 100
			m.searchInput.Width = 40
			if m.searchQuery != "" {
				m.searchInput.SetValue(m.searchQuery)
			}
			return m, textinput.Blink
		case "n":
			if len(m.searchLines) > 0 {
				m.searchIndex = (m.searchIndex + 1) % len(m.searchLines)
				m.jumpToMatch(m.searchIndex)
			}
		case "N":
			if len(m.searchLines) > 0 {
				m.searchIndex--
				if m.searchIndex < 0 {
					m.searchIndex = len(m.searchLines) - 1
				}
				m.jumpToMatch(m.searchIndex)
			}
		}

	case tea.WindowSizeMsg:
		headerHeight, footerHeight := 1, 1
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.viewport.YPosition = headerHeight
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		m.wrapped = wrapContent(m.content, msg.Width)
		m.viewport.SetContent(m.wrapped)
		if m.searchQuery != "" {
			m.executeSearch()
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *pagerModel) clearSearch() {
	m.searchQuery = ""
	m.searchLines = nil
	m.searchFailed = false
}

func (m *pagerModel) executeSearch() {
	m.searchLines = nil
	m.searchIndex = 0
	m.searchFailed = false
	if m.searchQuery == "" {
		return
	}
	query := strings.ToLower(m.searchQuery)
	for i, line := range strings.Split(m.wrapped, "\n") {
		if strings.Contains(strings.ToLower(line), query) {
			m.searchLines = append(m.searchLines, i)
		}
	}
	if len(m.searchLines) == 0 {
		m.searchFailed = true
	}
}

func (m *pagerModel) jumpToMatch(index int) {
	if index < 0 || index >= len(m.searchLines) {
		return
	}
	target := m.searchLines[index] - m.viewport.Height/2
	if target < 0 {
		target = 0
	}
	if limit := m.viewport.TotalLineCount() - m.viewport.Height; target > limit {
		target = max(0, limit)
	}
	m.viewport.YOffset = target
}

func (m *pagerModel) View() string {
	if !m.ready {
		return "\n  Loading..."
	}

	title := pagerTitleStyle.Render(m.title)
	rule := strings.Repeat("─", max(0, m.viewport.Width-lipgloss.Width(title)))
	header := lipgloss.JoinHorizontal(lipgloss.Center, title, pagerDimStyle.Render(rule))

	if m.searching {
		return header + "\n" + m.viewport.View() + "\n/" + m.searchInput.View()
	}

	percent := 100
	if span := m.viewport.TotalLineCount() - m.viewport.Height; span > 0 {
		percent = m.viewport.YOffset * 100 / span
		if percent > 100 {
			percent = 100
		}
	}

	var help string
	switch {
	case m.searchFailed:
		help = " pattern not found │ /: search "
	case len(m.searchLines) > 0:
		help = fmt.Sprintf(" [%d/%d] │ n/N: next/prev │ esc: clear ", m.searchIndex+1, len(m.searchLines))
	case m.live:
		help = " " + pagerLiveStyle.Render("● LIVE") + " │ q: quit │ /: search │ f: follow │ g/G: top/bottom "
	default:
		help = " q: quit │ /: search │ g/G: top/bottom "
	}

	info := fmt.Sprintf(" %d%% ", percent)
	pad := strings.Repeat("─", max(0, m.viewport.Width-lipgloss.Width(help)-lipgloss.Width(info)))
	footer := pagerDimStyle.Render(help) + pagerDimStyle.Render(pad) + pagerDimStyle.Render(info)

	return header + "\n" + m.viewport.View() + "\n" + footer
}

// wrapContent word-wraps long lines to the viewport width, keeping timeline
// rows readable.
func wrapContent(content string, width int) string {
	if width <= 0 {
		return content
	}
	var out []string
	for _, line := range strings.Split(content, "\n") {
		if lipgloss.Width(line) <= width {
			out = append(out, line)
			continue
		}
		out = append(out, strings.Split(wordwrap.String(line, width), "\n")...)
	}
	return strings.Join(out, "\n")
}
