package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/dispatch"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/record"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/status"
)

// handleListKeys handles keys on the table view.
func (m Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	v := m.current()
	switch msg.String() {
	case "q":
		return m.quit()

	case "tab":
		m.active = wrapIndex(m.active, 1, len(m.views))
		m.searchInput.SetValue(m.current().ctrl.Query())
		return m, nil

	case "shift+tab":
		m.active = wrapIndex(m.active, -1, len(m.views))
		m.searchInput.SetValue(m.current().ctrl.Query())
		return m, nil

	case "up", "k":
		if v.cursor > 0 {
			v.cursor--
		}
	case "down", "j":
		if v.cursor < len(v.rows)-1 {
			v.cursor++
		}
	case "pgup", "ctrl+u":
		v.cursor -= m.pageSize
	case "pgdown", "ctrl+d":
		v.cursor += m.pageSize
	case "home", "g":
		v.cursor = 0
	case "end", "G":
		v.cursor = len(v.rows) - 1

	case "/":
		m.searchActive = true
		m.searchInput.SetValue(v.ctrl.Query())
		m.searchInput.CursorEnd()
		cmd := m.searchInput.Focus()
		return m, cmd

	case "m":
		if !v.loaded {
			return m, nil
		}
		if _, ok := v.ctrl.LoadMore(); !ok {
			return m.showFlash("All records are shown")
		}
		v.rows = v.ctrl.Visible()

	case "r":
		cmd := m.reload(m.active, true)
		return m, cmd

	case "s", " ":
		rec, ok := m.selected()
		if !ok {
			return m, nil
		}
		sent := !rec.Sent(v.kind)
		m.toggle = &toggleRequest{
			tab:    m.active,
			record: rec,
			sent:   sent,
			prompt: status.PromptFor(v.kind, record.Display(rec.Name()), 1, sent),
		}
		m.modal = modalConfirmStatus
		return m, nil

	case "e":
		if !v.loaded {
			return m, nil
		}
		m.openSendSetup()
		return m, nil

	case "?":
		m.modal = modalHelp
		return m, nil
	}
	m.clampCursor()
	return m, nil
}

// handleSearchKeys handles keys while the search box is focused. The filter
// is applied on every keystroke since it runs over the in-memory dataset.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	v := m.current()
	switch msg.String() {
	case "enter":
		m.searchActive = false
		m.searchInput.Blur()
		return m, nil
	case "esc":
		m.searchActive = false
		m.searchInput.Blur()
		m.searchInput.SetValue("")
		v.ctrl.Filter("")
		v.rows = v.ctrl.Visible()
		v.cursor, v.scrollOffset = 0, 0
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	if q := m.searchInput.Value(); q != v.ctrl.Query() {
		v.ctrl.Filter(q)
		v.rows = v.ctrl.Visible()
		v.cursor, v.scrollOffset = 0, 0
	}
	return m, cmd
}

// handleModalKeys dispatches keys to the open modal.
func (m Model) handleModalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.modal {
	case modalConfirmStatus:
		return m.handleConfirmKeys(msg)
	case modalSendSetup:
		return m.handleSendSetupKeys(msg)
	case modalSendProgress:
		return m.handleSendProgressKeys(msg)
	case modalSendSummary, modalHelp:
		m.modal = modalNone
		return m, nil
	}
	return m, nil
}

func (m Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y", "enter":
		req := *m.toggle
		m.toggle = nil
		m.modal = modalNone
		return m, m.setSent(req)
	case "n", "N", "esc", "q":
		m.toggle = nil
		m.modal = modalNone
		return m, nil
	}
	return m, nil
}

// openSendSetup prepares the send form for the active tab.
func (m *Model) openSendSetup() {
	start := textinput.New()
	start.CharLimit = 7
	start.Width = 8
	start.Focus()
	end := textinput.New()
	end.CharLimit = 7
	end.Width = 8

	m.send = sendState{
		tab:        m.active,
		mode:       m.mode,
		unsentOnly: true,
		start:      start,
		end:        end,
	}
	m.resetRange()
	m.modal = modalSendSetup
}

// sendCandidates lists the recipients the form currently targets, before the
// range is applied.
func (m Model) sendCandidates() []dispatch.Recipient {
	v := m.views[m.send.tab]
	records := v.ctrl.Filtered()
	if m.send.unsentOnly {
		kept := records[:0]
		for _, r := range records {
			if !r.Sent(v.kind) {
				kept = append(kept, r)
			}
		}
		records = kept
	}
	return dispatch.RecipientsFrom(records)
}

// resetRange selects every candidate.
func (m *Model) resetRange() {
	n := len(m.sendCandidates())
	m.send.start.SetValue("1")
	m.send.end.SetValue(strconv.Itoa(n))
	if n == 0 {
		m.send.start.SetValue("0")
	}
}

func (m Model) handleSendSetupKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.modal = modalNone
		return m, nil
	case "tab", "shift+tab":
		m.send.focus = 1 - m.send.focus
		var cmd tea.Cmd
		if m.send.focus == 0 {
			m.send.end.Blur()
			cmd = m.send.start.Focus()
		} else {
			m.send.start.Blur()
			cmd = m.send.end.Focus()
		}
		return m, cmd
	case "left", "right":
		if m.send.mode == dispatch.ModeBCC {
			m.send.mode = dispatch.ModePersonalized
		} else {
			m.send.mode = dispatch.ModeBCC
		}
		return m, nil
	case "ctrl+a":
		m.send.unsentOnly = !m.send.unsentOnly
		m.resetRange()
		return m, nil
	case "enter":
		return m.startJob()
	}

	// Range fields take digits only.
	if msg.Type == tea.KeyRunes {
		for _, r := range msg.Runes {
			if r < '0' || r > '9' {
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	if m.send.focus == 0 {
		m.send.start, cmd = m.send.start.Update(msg)
	} else {
		m.send.end, cmd = m.send.end.Update(msg)
	}
	m.send.err = ""
	return m, cmd
}

// startJob validates the form and creates the dispatch job.
func (m Model) startJob() (tea.Model, tea.Cmd) {
	candidates := m.sendCandidates()
	if len(candidates) == 0 {
		m.send.err = "No recipients with a valid email"
		return m, nil
	}
	start, err1 := strconv.Atoi(strings.TrimSpace(m.send.start.Value()))
	end, err2 := strconv.Atoi(strings.TrimSpace(m.send.end.Value()))
	if err1 != nil || err2 != nil {
		m.send.err = "Range must be two numbers"
		return m, nil
	}
	selected, err := dispatch.SelectRange(candidates, start, end)
	if err != nil {
		m.send.err = fmt.Sprintf("Invalid range: choose 1 to %d", len(candidates))
		return m, nil
	}
	if m.status == nil {
		m.send.err = "Status changes are not available"
		return m, nil
	}

	opts := []dispatch.Option{
		dispatch.WithLogger(m.logger),
		dispatch.WithAutoDispatch(m.autoDispatch),
	}
	if m.batchSize > 0 {
		opts = append(opts, dispatch.WithBatchSize(m.batchSize))
	}
	job, err := dispatch.NewJob(datasets[m.send.tab], selected, m.send.mode, m.launcher, m.status, opts...)
	if err != nil {
		m.send.err = err.Error()
		return m, nil
	}
	m.job = job
	m.jobErr = ""
	m.modal = modalSendProgress
	return m, nil
}

func (m Model) handleSendProgressKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.job == nil || m.jobBusy {
		return m, nil
	}
	job := m.job
	var op func(context.Context) error
	switch msg.String() {
	case "enter", "s":
		if job.State() != dispatch.StateReady {
			return m, nil
		}
		op = job.Dispatch
	case "n":
		if job.State() != dispatch.StateAwaitingConfirmation {
			return m, nil
		}
		op = job.Next
	case "c", "esc":
		op = job.Cancel
	default:
		return m, nil
	}
	m.jobBusy = true
	spin := m.startSpinner()
	return m, tea.Batch(runJob(op), spin)
}
