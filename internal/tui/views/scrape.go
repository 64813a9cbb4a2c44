package views

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/averix/trustscan/internal/model"
	"github.com/averix/trustscan/internal/tui/styles"
)

// Field indices. fieldMode and fieldReviews are virtual fields (not textinputs).
const (
	fieldMode = iota
	fieldTarget
	fieldCountry
	fieldLanguage
	fieldMinTrust
	fieldMinReviews
	fieldPages
	fieldReviews
	fieldOutput
	fieldCount
)

var searchModes = []model.SearchType{
	model.SearchCategory,
	model.SearchKeyword,
	model.SearchDetail,
}

type ScrapeModel struct {
	inputs         []textinput.Model
	modeIdx        int
	includeReviews bool
	focused        int
	err            string
}

func NewScrapeModel() ScrapeModel {
	inputs := make([]textinput.Model, fieldCount)

	inputs[fieldMode] = textinput.New() // placeholder, never used
	inputs[fieldTarget] = newInput("electronics_technology", 50)
	inputs[fieldCountry] = newInput("optional: US, GB, DE...", 10)
	inputs[fieldLanguage] = newInput("optional: en, de, fr...", 10)
	inputs[fieldMinTrust] = newInput("optional: 4.0", 10)
	inputs[fieldMinReviews] = newInput("optional: 50", 10)
	inputs[fieldPages] = newInput("1, or 'all'", 10)
	inputs[fieldReviews] = textinput.New() // placeholder, never used
	inputs[fieldOutput] = newInput("./results", 50)

	return ScrapeModel{
		inputs:  inputs,
		focused: fieldMode,
	}
}

func newInput(placeholder string, width int) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 100
	if width > 0 {
		ti.Width = width
	}
	return ti
}

func (m ScrapeModel) Init() tea.Cmd {
	return nil
}

func (m ScrapeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return m, func() tea.Msg { return NavigateToHome{} }

		case "up":
			m.err = ""
			return m, m.focusPrev()

		case "down", "tab":
			m.err = ""
			return m, m.focusNext()

		case "shift+tab":
			m.err = ""
			return m, m.focusPrev()

		case "enter":
			if cmd := m.submit(); cmd != nil {
				return m, cmd
			}

		case "left":
			switch m.focused {
			case fieldMode:
				if m.modeIdx > 0 {
					m.modeIdx--
				}
				return m, nil
			case fieldReviews:
				m.includeReviews = !m.includeReviews
				return m, nil
			}

		case "right":
			switch m.focused {
			case fieldMode:
				if m.modeIdx < len(searchModes)-1 {
					m.modeIdx++
				}
				return m, nil
			case fieldReviews:
				m.includeReviews = !m.includeReviews
				return m, nil
			}
		}
	}

	// Update focused textinput (skip virtual fields)
	var cmd tea.Cmd
	if m.focused != fieldMode && m.focused != fieldReviews && m.focused < fieldCount {
		m.inputs[m.focused], cmd = m.inputs[m.focused].Update(msg)
	}

	return m, cmd
}

func (m *ScrapeModel) focusNext() tea.Cmd {
	m.blurFocused()
	m.focused++
	if m.focused >= fieldCount {
		m.focused = fieldMode
	}
	return m.focusCurrent()
}

func (m *ScrapeModel) focusPrev() tea.Cmd {
	m.blurFocused()
	m.focused--
	if m.focused < 0 {
		m.focused = fieldOutput
	}
	return m.focusCurrent()
}

func (m *ScrapeModel) blurFocused() {
	if m.focused != fieldMode && m.focused != fieldReviews {
		m.inputs[m.focused].Blur()
	}
}

func (m *ScrapeModel) focusCurrent() tea.Cmd {
	if m.focused == fieldMode || m.focused == fieldReviews {
		return nil
	}
	m.inputs[m.focused].Focus()
	return textinput.Blink
}

func (m *ScrapeModel) submit() tea.Cmd {
	mode := searchModes[m.modeIdx]

	target := strings.TrimSpace(m.inputs[fieldTarget].Value())
	if target == "" {
		m.err = targetLabel(mode) + " is required"
		return nil
	}

	output := strings.TrimSpace(m.inputs[fieldOutput].Value())
	if output == "" {
		output = "./results"
	}

	minTrust := strings.TrimSpace(m.inputs[fieldMinTrust].Value())
	if minTrust != "" {
		v, err := strconv.ParseFloat(minTrust, 64)
		if err != nil || v < 0 || v > 10 {
			m.err = "Min trust score must be a number between 0 and 10"
			return nil
		}
	}

	minReviews := strings.TrimSpace(m.inputs[fieldMinReviews].Value())
	if minReviews != "" {
		if _, err := strconv.Atoi(minReviews); err != nil {
			m.err = "Min reviews must be a number"
			return nil
		}
	}

	pages := strings.TrimSpace(m.inputs[fieldPages].Value())
	allPages := strings.EqualFold(pages, "all")
	if pages != "" && !allPages {
		if p, err := strconv.Atoi(pages); err != nil || p < 1 {
			m.err = "Pages must be a positive number or 'all'"
			return nil
		}
	}

	return func() tea.Msg {
		return StartScrapeMsg{
			Mode:           mode,
			Target:         target,
			Country:        strings.TrimSpace(m.inputs[fieldCountry].Value()),
			Language:       strings.TrimSpace(m.inputs[fieldLanguage].Value()),
			MinTrustScore:  minTrust,
			MinReviews:     minReviews,
			Pages:          pages,
			AllPages:       allPages,
			IncludeReviews: m.includeReviews,
			Output:         output,
		}
	}
}

func (m ScrapeModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("New Scrape") + "\n\n")

	b.WriteString(m.renderMode())
	b.WriteString("\n")

	b.WriteString(m.renderField(targetLabel(searchModes[m.modeIdx])+":", fieldTarget))
	b.WriteString(m.renderField("Country:", fieldCountry))
	b.WriteString(m.renderField("Language:", fieldLanguage))

	b.WriteString("\n")
	b.WriteString(m.renderField("Min trust:", fieldMinTrust))
	b.WriteString(m.renderField("Min reviews:", fieldMinReviews))
	b.WriteString(m.renderField("Pages:", fieldPages))
	b.WriteString(m.renderReviews())
	b.WriteString(m.renderField("Output:", fieldOutput))

	if m.err != "" {
		b.WriteString("\n")
		b.WriteString(styles.ErrorText.Render("  " + m.err))
	}

	b.WriteString("\n\n")
	b.WriteString(styles.StatusBar.Render("enter start • tab next • esc back"))

	return styles.Border.Render(b.String())
}

func targetLabel(mode model.SearchType) string {
	switch mode {
	case model.SearchKeyword:
		return "Keyword"
	case model.SearchDetail:
		return "Domain"
	}
	return "Category"
}

func (m ScrapeModel) renderMode() string {
	label := styles.Label.Render("Mode:")

	active := lipgloss.NewStyle().Foreground(styles.Primary).Bold(true)
	inactive := lipgloss.NewStyle().Foreground(styles.Muted)

	parts := make([]string, len(searchModes))
	for i, mode := range searchModes {
		name := string(mode)
		if i == m.modeIdx {
			parts[i] = active.Render("< " + name + " >")
		} else {
			parts[i] = inactive.Render(name)
		}
	}

	line := fmt.Sprintf("%s %s", label, strings.Join(parts, "  "))
	if m.focused == fieldMode {
		line += lipgloss.NewStyle().Foreground(styles.Secondary).Render(" ←→")
	}

	return line + "\n"
}

func (m ScrapeModel) renderReviews() string {
	label := styles.Label.Render("Reviews:")

	value := "no"
	if m.includeReviews {
		value = "yes"
	}

	style := styles.Value
	if m.focused == fieldReviews {
		style = lipgloss.NewStyle().Foreground(styles.Primary).Bold(true)
		value = "< " + value + " >"
	}

	return fmt.Sprintf("%s %s\n", label, style.Render(value))
}

func (m ScrapeModel) renderField(label string, idx int) string {
	l := styles.Label.Render(label)
	v := m.inputs[idx].View()
	return fmt.Sprintf("%s %s\n", l, v)
}

// StartScrapeMsg carries the validated form values to the progress view.
type StartScrapeMsg struct {
	Mode           model.SearchType
	Target         string
	Country        string
	Language       string
	MinTrustScore  string
	MinReviews     string
	Pages          string
	AllPages       bool
	IncludeReviews bool
	Output         string
}
