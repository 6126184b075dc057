package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/dispatch"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/record"
)

// Monochrome theme - adaptive for light and dark terminals
var (
	bgBase   = lipgloss.AdaptiveColor{Light: "#ffffff", Dark: "#000000"}
	bgAlt    = lipgloss.AdaptiveColor{Light: "#f0f0f0", Dark: "#181818"}
	bgCursor = lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#282828"}

	titleBarStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#333333"}).
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#ffffff"}).
			Padding(0, 1)

	statsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#999999"}).
			Background(bgBase).
			Padding(0, 1)

	spinnerStyle = lipgloss.NewStyle().
			Bold(true).
			Background(bgBase)

	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Background(bgBase)

	separatorStyle = lipgloss.NewStyle().
			Faint(true).
			Background(bgBase)

	cursorRowStyle = lipgloss.NewStyle().
			Background(bgCursor)

	normalRowStyle = lipgloss.NewStyle().
			Background(bgBase)

	altRowStyle = lipgloss.NewStyle().
			Background(bgAlt)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#999999"}).
			Background(bgBase).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Background(bgBase)

	loadingStyle = lipgloss.NewStyle().
			Italic(true).
			Background(bgBase)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Underline(true)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(1, 2).
			Background(bgBase)

	modalTitleStyle = lipgloss.NewStyle().
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#aa0000", Dark: "#ff5555"})

	flashStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#996600", Dark: "#ffcc00"}).
			Background(bgBase)
)

// Fixed screen furniture around the table.
const (
	headerLines = 4 // title, stats, column header, separator
	footerLines = 2 // info line, key hints
)

// column is one table column. A zero width column takes the remaining space.
type column struct {
	title string
	width int
	value func(i int, r record.Record, kind record.Kind) string
}

var columns = []column{
	{title: "#", width: 5, value: func(i int, _ record.Record, _ record.Kind) string { return fmt.Sprintf("%d", i+1) }},
	{title: "Name", width: 0, value: func(_ int, r record.Record, _ record.Kind) string { return record.Display(r.Name()) }},
	{title: "Email", width: 30, value: func(_ int, r record.Record, _ record.Kind) string { return record.Display(r.Email()) }},
	{title: "Phone", width: 14, value: func(_ int, r record.Record, _ record.Kind) string { return record.Display(r.Phone()) }},
	{title: "College", width: 20, value: func(_ int, r record.Record, _ record.Kind) string { return record.Display(r.College()) }},
	{title: "Registered", width: 16, value: func(_ int, r record.Record, _ record.Kind) string {
		t, ok := record.Resolve(r)
		if !ok {
			return record.NotAvailable
		}
		return formatDate(t)
	}},
	{title: "Email Status", width: 12, value: func(_ int, r record.Record, kind record.Kind) string {
		if r.Sent(kind) {
			return "✓ Sent"
		}
		return "Pending"
	}},
}

// minNameWidth keeps the flexible column readable on narrow terminals.
const minNameWidth = 12

// columnWidths resolves the flexible column for the given line width.
func columnWidths(width int) []int {
	widths := make([]int, len(columns))
	fixed := 0
	flex := -1
	for i, c := range columns {
		if c.width == 0 {
			flex = i
			continue
		}
		widths[i] = c.width
		fixed += c.width + 1
	}
	if flex >= 0 {
		w := width - fixed - 1
		if w < minNameWidth {
			w = minNameWidth
		}
		widths[flex] = w
	}
	return widths
}

// View renders the current state.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return loadingStyle.Render("Loading...")
	}

	var b strings.Builder
	b.WriteString(m.buildTitleBar())
	b.WriteString("\n")
	b.WriteString(m.buildStatsLine())
	b.WriteString("\n")
	b.WriteString(m.tableView())
	b.WriteString("\n")
	b.WriteString(m.renderInfoLine())
	b.WriteString("\n")
	b.WriteString(m.footerView())

	return m.overlayModal(b.String())
}

// buildTitleBar renders the product name, the tabs and the cache age.
func (m Model) buildTitleBar() string {
	title := "CodeNexus Admin"
	if m.version != "" && m.version != "dev" {
		title = fmt.Sprintf("CodeNexus Admin [%s]", m.version)
	}
	tabs := make([]string, len(m.views))
	for i, v := range m.views {
		label := v.kind.Label
		if i == m.active {
			label = activeTabStyle.Render(label)
		}
		tabs[i] = label
	}
	left := title + " - " + strings.Join(tabs, " | ")
	right := m.cacheIndicator()

	content := left
	if gap := m.width - 2 - lipgloss.Width(left) - lipgloss.Width(right); gap > 1 {
		content += strings.Repeat(" ", gap) + right
	}
	return titleBarStyle.Render(padRight(content, m.width-2))
}

// cacheIndicator describes the age of the active tab's cached data.
func (m Model) cacheIndicator() string {
	v := m.views[m.active]
	if !v.loaded {
		return ""
	}
	age, ok := m.cache.Age(v.kind.CacheKey)
	if !ok {
		return "not cached"
	}
	return "cached " + formatAge(age)
}

// buildStatsLine renders the counts and the active filter.
func (m Model) buildStatsLine() string {
	v := m.views[m.active]
	var content string
	switch {
	case v.err != nil && !v.loaded:
		content = errorStyle.Render("Error: " + v.err.Error())
	case !v.loaded:
		content = "Loading " + strings.ToLower(v.kind.Label) + "..."
	default:
		total := v.ctrl.TotalCount()
		sent := 0
		for _, r := range v.ctrl.Filtered() {
			if r.Sent(v.kind) {
				sent++
			}
		}
		content = fmt.Sprintf("Showing %s of %s %s  |  page %d/%d  |  %s emails sent",
			formatCount(len(v.rows)), formatCount(total), strings.ToLower(v.kind.Label),
			v.ctrl.CurrentPage(), max(v.ctrl.TotalPages(), 1), formatCount(sent))
		if q := v.ctrl.Query(); q != "" {
			content += fmt.Sprintf("  |  filter: %q", q)
		}
	}
	return statsStyle.Render(padRight(content, m.width-2))
}

// tableView renders the column header and the visible rows.
func (m Model) tableView() string {
	v := m.views[m.active]
	widths := columnWidths(m.width)

	var header strings.Builder
	for i, c := range columns {
		header.WriteString(padRight(c.title, widths[i]))
		header.WriteString(" ")
	}
	lines := []string{
		tableHeaderStyle.Render(padRight(header.String(), m.width)),
		separatorStyle.Render(strings.Repeat("─", m.width)),
	}

	end := min(v.scrollOffset+m.pageSize, len(v.rows))
	for i := v.scrollOffset; i < end; i++ {
		var row strings.Builder
		for c, col := range columns {
			row.WriteString(padRight(truncateRunes(col.value(i, v.rows[i], v.kind), widths[c]), widths[c]))
			row.WriteString(" ")
		}
		line := padRight(row.String(), m.width)
		switch {
		case i == v.cursor:
			line = cursorRowStyle.Render(line)
		case i%2 == 1:
			line = altRowStyle.Render(line)
		default:
			line = normalRowStyle.Render(line)
		}
		lines = append(lines, line)
	}
	if v.loaded && len(v.rows) == 0 {
		lines = append(lines, normalRowStyle.Render(padRight("  No records match.", m.width)))
	}
	for len(lines) < headerLines-2+m.pageSize {
		lines = append(lines, normalRowStyle.Render(strings.Repeat(" ", m.width)))
	}
	return strings.Join(lines, "\n")
}

// spinnerIndicator returns the current spinner frame.
func (m Model) spinnerIndicator() string {
	if m.spinnerFrame < len(spinnerFrames) {
		return spinnerFrames[m.spinnerFrame]
	}
	return spinnerFrames[0]
}

// renderInfoLine shows the search box, a flash message, or the load-more
// hint, with a right-aligned spinner while loading.
func (m Model) renderInfoLine() string {
	v := m.views[m.active]
	var content string
	style := statsStyle
	switch {
	case m.searchActive:
		content = "/" + m.searchInput.View()
	case m.flashMessage != "":
		content = m.flashMessage
		style = flashStyle.Padding(0, 1)
	case v.loaded && v.ctrl.HasMore():
		content = fmt.Sprintf("%d more. Press m to load more", v.ctrl.Remaining())
	}

	contentWidth := max(m.width-2, 1)
	if m.isLoading() || m.jobBusy {
		indicator := spinnerStyle.Render(m.spinnerIndicator())
		gap := max(contentWidth-lipgloss.Width(content)-lipgloss.Width(indicator), 1)
		content += strings.Repeat(" ", gap) + indicator
	}
	return style.Render(padRight(content, contentWidth))
}

// footerView renders the key hints.
func (m Model) footerView() string {
	var keys []string
	if m.searchActive {
		keys = []string{"Enter: keep filter", "Esc: clear"}
	} else {
		keys = []string{"Tab: switch", "/: search", "m: more", "r: refresh", "s: toggle sent", "e: send", "?: help", "q: quit"}
	}
	return footerStyle.Render(padRight(strings.Join(keys, "  "), m.width-2))
}

func (m Model) renderConfirmModal() string {
	if m.toggle == nil {
		return ""
	}
	p := m.toggle.prompt
	var b strings.Builder
	b.WriteString(modalTitleStyle.Render(p.Title))
	b.WriteString("\n\n")
	b.WriteString(p.Question)
	b.WriteString("\n\n")
	if p.Warning {
		b.WriteString(warningStyle.Render(p.Detail))
	} else {
		b.WriteString(p.Detail)
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "[y] %s   [n] Cancel", p.Action)
	return b.String()
}

func modeLabel(mode dispatch.Mode) string {
	if mode == dispatch.ModePersonalized {
		return "Personalized (one window per recipient)"
	}
	return "BCC batches"
}

func (m Model) renderSendSetupModal() string {
	kind := datasets[m.send.tab]
	var b strings.Builder
	b.WriteString(modalTitleStyle.Render(fmt.Sprintf("Send %s email to %s", kind.EmailLabel, strings.ToLower(kind.Label))))
	b.WriteString("\n\n")
	scope := "all"
	if m.send.unsentOnly {
		scope = "not yet sent"
	}
	fmt.Fprintf(&b, "Recipients: %d with a valid email (%s)\n", len(m.sendCandidates()), scope)
	fmt.Fprintf(&b, "Mode:       < %s >\n", modeLabel(m.send.mode))
	fmt.Fprintf(&b, "Range:      %s to %s\n", m.send.start.View(), m.send.end.View())
	if m.send.err != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.send.err))
		b.WriteString("\n")
	}
	b.WriteString("\n[Enter] Start  [Tab] Field  [←/→] Mode  [Ctrl+A] All/unsent  [Esc] Cancel")
	return b.String()
}

// maxListedRecipients caps the recipient preview in the progress modal.
const maxListedRecipients = 5

func (m Model) renderSendProgressModal() string {
	job := m.job
	if job == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(modalTitleStyle.Render(fmt.Sprintf("Sending %s email (%s)", job.Kind().EmailLabel, modeLabel(job.Mode()))))
	b.WriteString("\n\n")

	state := job.State()
	step := min(job.Step(), job.Steps())
	fmt.Fprintf(&b, "Step %d of %d\n", step, job.Steps())
	s := job.Summary()
	fmt.Fprintf(&b, "Confirmed %d of %d\n\n", s.Confirmed, s.Intended)

	recipients := job.Upcoming()
	label := "Next window:"
	if state == dispatch.StateAwaitingConfirmation {
		recipients = job.Pending()
		label = "Opened for:"
	}
	b.WriteString(label)
	b.WriteString("\n")
	for i, r := range recipients {
		if i == maxListedRecipients {
			fmt.Fprintf(&b, "  ... and %d more\n", len(recipients)-maxListedRecipients)
			break
		}
		name := record.Display(r.Name)
		fmt.Fprintf(&b, "  %s <%s>\n", truncateRunes(name, 24), r.Email)
	}

	if m.jobErr != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.jobErr))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	switch {
	case m.jobBusy:
		b.WriteString(m.spinnerIndicator() + " Working...")
	case state == dispatch.StateAwaitingConfirmation:
		b.WriteString("[n] Next (marks these as sent)  [c] Close")
	default:
		b.WriteString("[Enter] Send  [c] Close")
	}
	return b.String()
}

func (m Model) renderSummaryModal() string {
	var b strings.Builder
	title := "Send complete"
	if m.summary.State == dispatch.StateClosed {
		title = "Send closed"
	}
	b.WriteString(modalTitleStyle.Render(title))
	b.WriteString("\n\n")
	b.WriteString(m.summary.String())
	b.WriteString("\n")
	if m.summary.Unconfirmed > 0 {
		fmt.Fprintf(&b, "%d not marked as sent\n", m.summary.Unconfirmed)
	}
	fmt.Fprintf(&b, "%d compose windows opened\n", m.summary.Steps)
	b.WriteString("\nPress any key to continue")
	return b.String()
}

var helpLines = []string{
	"Navigation",
	"  ↑/k ↓/j      Move",
	"  PgUp/PgDn    Page",
	"  g/G          First/last row",
	"  Tab          Switch users/registrations",
	"",
	"Data",
	"  /            Search name, email, phone, college",
	"  m            Load more",
	"  r            Refresh from Firestore",
	"",
	"Email",
	"  s, Space     Toggle sent status",
	"  e            Send emails to the filtered list",
	"",
	"  q            Quit",
}

func (m Model) renderHelpModal() string {
	return modalTitleStyle.Render("Keys") + "\n\n" + strings.Join(helpLines, "\n")
}

func (m Model) overlayModal(background string) string {
	var modalContent string
	switch m.modal {
	case modalConfirmStatus:
		modalContent = m.renderConfirmModal()
	case modalSendSetup:
		modalContent = m.renderSendSetupModal()
	case modalSendProgress:
		modalContent = m.renderSendProgressModal()
	case modalSendSummary:
		modalContent = m.renderSummaryModal()
	case modalHelp:
		modalContent = m.renderHelpModal()
	}
	if modalContent == "" {
		return background
	}

	modal := modalStyle.Render(modalContent)
	bgLines := strings.Split(background, "\n")
	modalLines := strings.Split(modal, "\n")

	startLine := max((len(bgLines)-len(modalLines))/2, 0)
	modalWidth := lipgloss.Width(modal)
	leftPadding := max((m.width-modalWidth)/2, 0)

	for i, modalLine := range modalLines {
		lineIdx := startLine + i
		if lineIdx >= len(bgLines) {
			break
		}
		bgLine := bgLines[lineIdx]

		var composite strings.Builder
		if leftPadding > 0 {
			leftBg := truncateToWidth(bgLine, leftPadding)
			composite.WriteString(leftBg)
			if w := lipgloss.Width(leftBg); w < leftPadding {
				composite.WriteString(strings.Repeat(" ", leftPadding-w))
			}
		}
		composite.WriteString(modalLine)
		if rightStart := leftPadding + modalWidth; rightStart < lipgloss.Width(bgLine) {
			composite.WriteString(skipToWidth(bgLine, rightStart))
		}
		bgLines[lineIdx] = composite.String()
	}
	return strings.Join(bgLines, "\n")
}
