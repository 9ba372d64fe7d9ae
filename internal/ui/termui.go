package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/skalibog/ssbe/internal/config"
	"github.com/skalibog/ssbe/internal/session"
	"github.com/skalibog/ssbe/pkg/models"
)

// Стили UI
var (
	primaryColor = lipgloss.Color("#0077cc")
	errorColor   = lipgloss.Color("#cc3300")
	successColor = lipgloss.Color("#33cc33")
	warningColor = lipgloss.Color("#cccc00")
	mutedColor   = lipgloss.Color("#999999")

	appStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor)
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(primaryColor).
			Padding(0, 1)
	emergencyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(errorColor).
			Padding(0, 1)
	longStyle  = lipgloss.NewStyle().Foreground(successColor)
	shortStyle = lipgloss.NewStyle().Foreground(errorColor)
	holdStyle  = lipgloss.NewStyle().Foreground(warningColor)
	footStyle  = lipgloss.NewStyle().Foreground(mutedColor)
)

// tickMsg сигнализирует о необходимости перерисовки
type tickMsg time.Time

// TermUI представляет терминальный монитор сигналов и риск-метрик
type TermUI struct {
	sessions map[string]*session.Session
	config   config.UIConfig
	program  *tea.Program
}

// NewTermUI создает терминальный интерфейс поверх сессий
func NewTermUI(cfg config.UIConfig, sessions map[string]*session.Session) *TermUI {
	return &TermUI{
		sessions: sessions,
		config:   cfg,
	}
}

// Start запускает интерфейс, блокирующий вызов
func (u *TermUI) Start() error {
	u.program = tea.NewProgram(newModel(u.sessions, u.config), tea.WithAltScreen())
	_, err := u.program.Run()
	return err
}

// model реализует tea.Model
type model struct {
	sessions map[string]*session.Session
	refresh  time.Duration
	width    int
}

func newModel(sessions map[string]*session.Session, cfg config.UIConfig) model {
	return model{
		sessions: sessions,
		refresh:  time.Duration(cfg.RefreshRate) * time.Millisecond,
	}
}

func (m model) Init() tea.Cmd {
	return m.tick()
}

func (m model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tickMsg:
		return m, m.tick()
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("SSBE — сигналы и риск"))
	b.WriteString("\n\n")

	symbols := make([]string, 0, len(m.sessions))
	for sym := range m.sessions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		sess := m.sessions[sym]
		b.WriteString(renderSession(sym, sess))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(footStyle.Render("q — выход"))
	return appStyle.Render(b.String())
}

// renderSession рисует строку символа: последний сигнал и метрики
func renderSession(symbol string, sess *session.Session) string {
	var b strings.Builder

	history := sess.SignalHistory()
	metrics := sess.RiskMetrics()

	b.WriteString(fmt.Sprintf("%-10s", symbol))

	if sess.EmergencyMode() {
		b.WriteString(" " + emergencyStyle.Render("АВАРИЙНЫЙ РЕЖИМ"))
	}

	if len(history) == 0 {
		b.WriteString("  нет сигналов")
		return b.String()
	}

	last := history[0]
	b.WriteString("  " + renderDirection(last.Direction))
	b.WriteString(fmt.Sprintf("  сила %.2f  цена %.2f", last.Strength, last.Price))
	b.WriteString(fmt.Sprintf("  | баланс %.2f  дневной PnL %+.2f  позиций %d",
		metrics.AccountBalance, metrics.DailyPnL, metrics.OpenPositions))
	return b.String()
}

func renderDirection(d models.Direction) string {
	switch d {
	case models.DirectionLong:
		return longStyle.Render("LONG ")
	case models.DirectionShort:
		return shortStyle.Render("SHORT")
	default:
		return holdStyle.Render("HOLD ")
	}
}
