package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/averix/trustscan/internal/tui/views"
)

type viewID int

const (
	viewHome viewID = iota
	viewScrape
	viewProgress
)

// App is the root bubbletea model.
type App struct {
	currentView viewID
	width       int
	height      int
	home        views.HomeModel
	scrape      views.ScrapeModel
	progress    views.ProgressModel
}

func NewApp() App {
	return App{
		currentView: viewHome,
		home:        views.NewHomeModel(),
		scrape:      views.NewScrapeModel(),
	}
}

func (a App) Init() tea.Cmd {
	return a.home.Init()
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && a.currentView != viewProgress {
			return a, tea.Quit
		}
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
	case views.NavigateToScrape:
		a.currentView = viewScrape
		a.scrape = views.NewScrapeModel()
		return a, a.scrape.Init()
	case views.NavigateToHome:
		a.currentView = viewHome
		return a, nil
	case views.StartScrapeMsg:
		a.currentView = viewProgress
		a.progress = views.NewProgressModel(msg)
		return a, tea.Batch(a.progress.Init(), a.sizeCmd())
	}

	var cmd tea.Cmd
	switch a.currentView {
	case viewHome:
		var m tea.Model
		m, cmd = a.home.Update(msg)
		a.home = m.(views.HomeModel)
	case viewScrape:
		var m tea.Model
		m, cmd = a.scrape.Update(msg)
		a.scrape = m.(views.ScrapeModel)
	case viewProgress:
		var m tea.Model
		m, cmd = a.progress.Update(msg)
		a.progress = m.(views.ProgressModel)
	}

	return a, cmd
}

func (a App) View() string {
	var content string
	switch a.currentView {
	case viewHome:
		content = a.home.View()
	case viewScrape:
		content = a.scrape.View()
	case viewProgress:
		content = a.progress.View()
	}

	return lipgloss.Place(
		a.width, a.height,
		lipgloss.Center, lipgloss.Top,
		content,
	)
}

// sizeCmd sends a WindowSizeMsg so newly created views get the current terminal size.
func (a App) sizeCmd() tea.Cmd {
	w, h := a.width, a.height
	return func() tea.Msg {
		return tea.WindowSizeMsg{Width: w, Height: h}
	}
}

// Run starts the TUI.
func Run() error {
	p := tea.NewProgram(NewApp(), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
