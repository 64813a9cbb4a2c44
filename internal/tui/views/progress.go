package views

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/averix/trustscan/internal/config"
	"github.com/averix/trustscan/internal/engine/output"
	"github.com/averix/trustscan/internal/engine/scraper"
	"github.com/averix/trustscan/internal/engine/storage"
	"github.com/averix/trustscan/internal/logger"
	"github.com/averix/trustscan/internal/model"
	"github.com/averix/trustscan/internal/tui/styles"
)

// sharedState holds data shared between the scraper goroutine and TUI.
// Lives behind a pointer so it survives bubbletea's value copies.
type sharedState struct {
	mu     sync.Mutex
	stats  *scraper.Stats
	cancel context.CancelFunc
}

// ProgressModel manages the scrape progress view.
type ProgressModel struct {
	params      model.SearchParams
	progress    progress.Model
	startTime   time.Time
	done        bool
	confirmQuit bool
	err         error
	result      *model.ResultSet
	jsonPath    string
	dbPath      string
	logPath     string
	width       int
	height      int
	shared      *sharedState
}

// Messages
type progressTickMsg time.Time

type scrapeCompleteMsg struct {
	Result *model.ResultSet
	Err    error
}

func NewProgressModel(msg StartScrapeMsg) ProgressModel {
	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(50),
	)

	m := ProgressModel{
		progress:  p,
		startTime: time.Now(),
		shared:    &sharedState{},
	}

	m.params.SearchType = msg.Mode
	switch msg.Mode {
	case model.SearchKeyword:
		m.params.Keyword = msg.Target
	case model.SearchDetail:
		m.params.Domain = msg.Target
	default:
		m.params.CategoryID = msg.Target
	}
	m.params.Country = msg.Country
	m.params.Language = msg.Language
	m.params.Filters.MinTrustScore, _ = strconv.ParseFloat(msg.MinTrustScore, 64)
	m.params.Filters.MinReviews, _ = strconv.Atoi(msg.MinReviews)
	m.params.AllPages = msg.AllPages
	if !msg.AllPages {
		m.params.MaxPages, _ = strconv.Atoi(msg.Pages)
		if m.params.MaxPages < 1 {
			m.params.MaxPages = 1
		}
	}
	m.params.IncludeReviews = msg.IncludeReviews

	// Setup output paths
	ts := time.Now().Format("20060102_150405")
	baseName := fmt.Sprintf("trustscan_%s", ts)
	outDir := msg.Output
	os.MkdirAll(outDir, 0755)
	m.jsonPath = filepath.Join(outDir, baseName+".json")
	m.dbPath = filepath.Join(outDir, baseName+".db")
	m.logPath = filepath.Join(outDir, baseName+".log")
	m.params.OutputDir = outDir
	m.params.DBPath = m.dbPath

	return m
}

func (m ProgressModel) Init() tea.Cmd {
	return tea.Batch(
		m.startScraping(),
		tickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(300*time.Millisecond, func(t time.Time) tea.Msg {
		return progressTickMsg(t)
	})
}

func (m ProgressModel) startScraping() tea.Cmd {
	shared := m.shared
	params := m.params
	jsonPath := m.jsonPath
	dbPath := m.dbPath
	logPath := m.logPath

	return func() tea.Msg {
		ctx, cancel := context.WithCancel(context.Background())

		cfg, err := config.Load("")
		if err != nil {
			cancel()
			return scrapeCompleteMsg{Err: err}
		}
		if params.Language == "" {
			params.Language = cfg.DefaultLanguage
		}
		if params.Concurrency <= 0 {
			params.Concurrency = cfg.Concurrency
		}
		if params.ProxyURL == "" {
			params.ProxyURL = cfg.ProxyURL
		}

		log, closeLog, err := logger.NewFileLogger(logPath, cfg.Logging.Level)
		if err != nil {
			cancel()
			return scrapeCompleteMsg{Err: err}
		}

		client := scraper.NewClient(scraper.ClientOptions{
			ProxyURL:   params.ProxyURL,
			Timeout:    cfg.Timeout(),
			MaxRetries: cfg.MaxRetries,
			Headers:    cfg.Headers,
		})
		urls := scraper.NewURLBuilder(cfg.BaseURL)
		enricher := scraper.NewEnricher(client, urls, log, params.Language, params.MaxReviews, params.Concurrency)

		stats := &scraper.Stats{}
		driver := scraper.NewDriver(client, urls, enricher, log, cfg.MaxPages, stats)

		// Store into shared state (survives bubbletea value copies)
		shared.mu.Lock()
		shared.stats = stats
		shared.cancel = cancel
		shared.mu.Unlock()

		rs, runErr := driver.Run(ctx, &params)

		if rs != nil {
			if err := output.WriteJSON(jsonPath, rs); err != nil && runErr == nil {
				runErr = err
			}
			if store, err := storage.NewStore(dbPath); err == nil {
				store.InsertBatch(rs.Businesses)
				store.Close()
			}
		}

		closeLog()
		cancel()

		return scrapeCompleteMsg{Result: rs, Err: runErr}
	}
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if cancel := m.shared.getCancel(); cancel != nil {
				cancel()
			}
			return m, tea.Quit
		case "esc":
			if m.done {
				return m, func() tea.Msg { return NavigateToHome{} }
			}
			if m.confirmQuit {
				// Second esc: cancel the run; completion still lands as
				// a partial result before we leave
				if cancel := m.shared.getCancel(); cancel != nil {
					cancel()
				}
				m.confirmQuit = false
				return m, nil
			}
			// First esc: show confirmation
			m.confirmQuit = true
			return m, nil
		case "enter":
			if m.done {
				return m, func() tea.Msg { return NavigateToHome{} }
			}
			if m.confirmQuit {
				m.confirmQuit = false
				return m, nil
			}
		}
		// Any other key cancels the confirmation
		if m.confirmQuit {
			m.confirmQuit = false
		}
	case progressTickMsg:
		if m.done {
			return m, nil
		}
		return m, tickCmd()
	case scrapeCompleteMsg:
		m.done = true
		m.err = msg.Err
		m.result = msg.Result
		return m, nil
	}

	var cmd tea.Cmd
	var pModel tea.Model
	pModel, cmd = m.progress.Update(msg)
	m.progress = pModel.(progress.Model)
	return m, cmd
}

func (m ProgressModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render(fmt.Sprintf("Scraping: %q (%s)", m.params.Target(), m.params.SearchType)))
	b.WriteString("\n\n")

	statsBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Muted).
		Padding(0, 1).
		Width(30).
		Render(m.renderStats())
	b.WriteString(statsBox)
	b.WriteString("\n\n")

	stats := m.shared.getStats()
	var pct float64
	if stats != nil && stats.PagesTotal.Load() > 0 {
		pct = float64(stats.PagesFetched.Load()) / float64(stats.PagesTotal.Load())
	}
	if m.done && m.err == nil {
		pct = 1
	}
	b.WriteString(m.progress.ViewAs(pct))
	b.WriteString("\n\n")

	if m.done {
		b.WriteString(m.renderOutcome())
		b.WriteString("\n\n")
		b.WriteString(styles.StatusBar.Render("enter back to menu • ctrl+c quit"))
	} else if m.confirmQuit {
		b.WriteString(styles.ErrorText.Render("Press ESC again to stop the run (partial results are kept)"))
		b.WriteString("\n")
		b.WriteString(styles.StatusBar.Render("esc confirm stop • any key continue"))
	} else {
		b.WriteString(styles.StatusBar.Render("esc cancel • ctrl+c quit"))
	}

	return b.String()
}

func (m ProgressModel) renderOutcome() string {
	var re *scraper.RunError
	switch {
	case m.err == nil:
		kept := 0
		if m.result != nil {
			kept = len(m.result.Businesses)
		}
		done := lipgloss.NewStyle().Foreground(styles.Success).Bold(true).
			Render(fmt.Sprintf("Complete! %d businesses kept", kept))
		path := lipgloss.NewStyle().Foreground(styles.Muted).
			Render(fmt.Sprintf("Output: %s", m.jsonPath))
		return done + "\n" + path
	case errors.As(m.err, &re):
		kept := 0
		if m.result != nil {
			kept = len(m.result.Businesses)
		}
		warn := lipgloss.NewStyle().Foreground(styles.Warning).Bold(true).
			Render(fmt.Sprintf("Stopped early: %v", re))
		path := lipgloss.NewStyle().Foreground(styles.Muted).
			Render(fmt.Sprintf("Kept %d businesses in %s", kept, m.jsonPath))
		return warn + "\n" + path
	default:
		return styles.ErrorText.Render(fmt.Sprintf("Error: %v", m.err))
	}
}

func (m ProgressModel) renderStats() string {
	var sb strings.Builder
	elapsed := time.Since(m.startTime).Truncate(time.Second)

	var pagesFetched, pagesTotal, found, kept, dups, warnings, errCount int64

	stats := m.shared.getStats()
	if stats != nil {
		pagesFetched = stats.PagesFetched.Load()
		pagesTotal = stats.PagesTotal.Load()
		found = stats.Found.Load()
		kept = stats.Kept.Load()
		dups = stats.Duplicates.Load()
		warnings = stats.Warnings.Load()
		errCount = stats.Errors.Load()
	}

	statLabel := lipgloss.NewStyle().Foreground(styles.Muted).Width(12)
	statVal := lipgloss.NewStyle().Foreground(styles.Text).Bold(true)

	row := func(label string, value string) {
		sb.WriteString(statLabel.Render(label))
		sb.WriteString(statVal.Render(value))
		sb.WriteString("\n")
	}

	row("Pages:", fmt.Sprintf("%d/%d", pagesFetched, pagesTotal))
	row("Found:", fmt.Sprintf("%d", found))
	row("Kept:", fmt.Sprintf("%d", kept))
	row("Duplicates:", fmt.Sprintf("%d", dups))

	if warnings > 0 {
		wStyle := lipgloss.NewStyle().Foreground(styles.Warning).Bold(true)
		sb.WriteString(statLabel.Render("Warnings:"))
		sb.WriteString(wStyle.Render(fmt.Sprintf("%d", warnings)))
		sb.WriteString("\n")
	}

	eStyle := statVal
	if errCount > 0 {
		eStyle = lipgloss.NewStyle().Foreground(styles.Error).Bold(true)
	}
	sb.WriteString(statLabel.Render("Errors:"))
	sb.WriteString(eStyle.Render(fmt.Sprintf("%d", errCount)))
	sb.WriteString("\n")

	row("Elapsed:", elapsed.String())

	return sb.String()
}

func (s *sharedState) getCancel() context.CancelFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel
}

func (s *sharedState) getStats() *scraper.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
