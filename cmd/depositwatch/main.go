// depositwatch is a read-only operator view of the pending-deposit queue.
// It polls the same sqlite file the bot writes and redraws every few seconds.
package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kangnaum/qrisbot/internal/config"
	"github.com/kangnaum/qrisbot/internal/database"
	"github.com/kangnaum/qrisbot/internal/database/repository"
	"github.com/kangnaum/qrisbot/internal/deposit"
)

const pollEvery = 2 * time.Second

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	headerStyle = lipgloss.NewStyle().Bold(true)
	staleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	footerStyle = lipgloss.NewStyle().Faint(true)
)

type tickMsg time.Time

type rowsMsg []repository.DepositRow

type errMsg struct{ err error }

type model struct {
	ctx    context.Context
	repo   *repository.DepositRepo
	expiry time.Duration
	rows   []repository.DepositRow
	err    error
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.load(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(pollEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) load() tea.Cmd {
	return func() tea.Msg {
		rows, err := m.repo.ListAll(m.ctx)
		if err != nil {
			return errMsg{err}
		}
		return rowsMsg(rows)
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case tickMsg:
		return m, tea.Batch(m.load(), tick())
	case rowsMsg:
		m.rows, m.err = msg, nil
	case errMsg:
		m.err = msg.err
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Pending QRIS Deposits"))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(fmt.Sprintf("error: %v\n", m.err))
		return b.String()
	}
	if len(m.rows) == 0 {
		b.WriteString("no pending deposits\n")
	} else {
		b.WriteString(headerStyle.Render(fmt.Sprintf("%-28s %-12s %12s %12s %8s", "CODE", "USER", "EXPECTED", "REQUESTED", "AGE")))
		b.WriteByte('\n')
		now := time.Now()
		for _, r := range m.rows {
			age := now.Sub(time.UnixMilli(r.Timestamp)).Truncate(time.Second)
			line := fmt.Sprintf("%-28s %-12d %12s %12s %8s",
				r.UniqueCode, r.UserID, deposit.Rupiah(r.Amount), deposit.Rupiah(r.OriginalAmount), age)
			if age > m.expiry {
				// older than the expiry threshold: the sweeper should have
				// removed it, so a red row means the bot is down
				line = staleStyle.Render(line)
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}

	b.WriteString("\n")
	b.WriteString(footerStyle.Render("[q] quit  refreshes every 2s"))
	b.WriteByte('\n')
	return b.String()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	m := model{
		ctx:    context.Background(),
		repo:   repository.NewDepositRepo(db),
		expiry: time.Duration(cfg.Reconcile.ExpirySeconds) * time.Second,
	}
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatalf("ui: %v", err)
	}
}
