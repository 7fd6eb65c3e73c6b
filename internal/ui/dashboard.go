package ui

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/Mohsinsiddi/w3sale/internal/sale"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common/math"
)

// EventLine is one row of the dashboard's event feed.
type EventLine struct {
	Seq     int64
	Name    string
	At      time.Time
	Summary string
}

// SaleView is what the dashboard polls for.
type SaleView struct {
	Status   sale.Status
	TokenIn  TokenInfo
	TokenOut TokenInfo
	Events   []EventLine
}

// dashboardModel is the Bubble Tea model for the live sale dashboard.
type dashboardModel struct {
	view       *SaleView
	lastUpdate time.Time
	interval   time.Duration
	quitting   bool
	fetcher    func() (*SaleView, error)
	err        string
}

type tickMsg time.Time
type viewFetchedMsg *SaleView
type viewErrorMsg string

// NewDashboard creates a Bubble Tea program that refreshes every interval.
func NewDashboard(interval time.Duration, fetcher func() (*SaleView, error)) *tea.Program {
	return tea.NewProgram(newDashboardModel(interval, fetcher))
}

func newDashboardModel(interval time.Duration, fetcher func() (*SaleView, error)) dashboardModel {
	return dashboardModel{interval: interval, fetcher: fetcher}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(m.fetchCmd(), tick(m.interval))
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, m.fetchCmd()
		}

	case tickMsg:
		return m, tea.Batch(m.fetchCmd(), tick(m.interval))

	case viewFetchedMsg:
		m.view = (*SaleView)(msg)
		m.lastUpdate = time.Now()
		m.err = ""

	case viewErrorMsg:
		m.err = string(msg)
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(StyleTitle.Render("Live Sale Dashboard") + "\n")
	updated := "never"
	if !m.lastUpdate.IsZero() {
		updated = m.lastUpdate.Format("15:04:05")
	}
	sb.WriteString(StyleMeta.Render(fmt.Sprintf("Updated: %s · r refresh · q quit", updated)) + "\n\n")

	if m.err != "" {
		sb.WriteString(Err(m.err) + "\n")
	}
	if m.view == nil {
		sb.WriteString(StyleMeta.Render("Loading...") + "\n")
		return sb.String()
	}

	v := m.view
	sb.WriteString(SaleStatusBlock(v.Status, v.TokenIn, v.TokenOut) + "\n")
	sb.WriteString(progressBar(v) + "\n\n")

	if len(v.Status.Commitments) > 0 {
		sb.WriteString(StyleHeader.Render("Commitments") + "\n")
		sb.WriteString(CommitmentsTable(v.Status.Commitments, v.TokenOut) + "\n")
	}

	sb.WriteString(StyleHeader.Render("Recent events") + "\n")
	if len(v.Events) == 0 {
		sb.WriteString(StyleMeta.Render("  no events yet") + "\n")
	}
	for _, e := range v.Events {
		sb.WriteString(fmt.Sprintf("  %s  %s  %s\n",
			StyleMeta.Render(fmt.Sprintf("#%-5d", e.Seq)),
			padR(StyleChain.Render(e.Name), 22),
			e.Summary,
		))
	}
	return sb.String()
}

// progressBar shows deposits against the limit, or elapsed time when the
// sale is unlimited.
func progressBar(v *SaleView) string {
	const width = 40
	cfg := v.Status.Config
	var frac float64
	label := ""
	if cfg.TokenInLimit != nil && cfg.TokenInLimit.Sign() > 0 && cfg.TokenInLimit.Cmp(math.MaxBig256) != 0 {
		total, _ := new(big.Float).SetInt(cfg.TokenInLimit).Float64()
		dep, _ := new(big.Float).SetInt(v.Status.Totals.TokenIn).Float64()
		frac = dep / total
		label = "of limit"
	} else if cfg.SaleDuration > 0 {
		elapsed := v.Status.At - cfg.SaleStart
		frac = float64(elapsed) / float64(cfg.SaleDuration)
		label = "of window"
	}
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	filled := int(frac * width)
	bar := StyleSuccess.Render(strings.Repeat("█", filled)) + StyleMeta.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("  %s %s", bar, StyleMeta.Render(fmt.Sprintf("%.0f%% %s", frac*100, label)))
}

func (m dashboardModel) fetchCmd() tea.Cmd {
	return func() tea.Msg {
		v, err := m.fetcher()
		if err != nil {
			return viewErrorMsg(err.Error())
		}
		return viewFetchedMsg(v)
	}
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// padR pads s on the right to n visible cells.
func padR(s string, n int) string {
	w := lipgloss.Width(s)
	if w >= n {
		return s
	}
	return s + strings.Repeat(" ", n-w)
}
