// Package tui provides the terminal dashboard for users and registrations.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/cache"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/dispatch"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/docstore"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/record"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/status"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/view"
)

// Options configures the TUI.
type Options struct {
	Cache    *cache.Store
	Store    docstore.Store
	Status   *status.Coordinator
	Launcher dispatch.Launcher

	PageSize     int
	BatchSize    int
	Mode         dispatch.Mode
	AutoDispatch bool

	Logger  *slog.Logger
	Version string
	// Now is used for the cache-age indicator. Defaults to time.Now.
	Now func() time.Time
}

// datasets lists the tabs in display order.
var datasets = [2]record.Kind{record.Users, record.Registrations}

// viewState holds the per-tab state. Tabs live in a fixed array so copies of
// Model never share cursor state.
type viewState struct {
	kind         record.Kind
	ctrl         *view.Controller[record.Record]
	rows         []record.Record // pages 1..current of the filtered set
	cursor       int
	scrollOffset int
	loaded       bool
	pending      bool
	requestID    uint64
	fromCache    bool
	err          error
}

// modalType represents the type of modal dialog.
type modalType int

const (
	modalNone modalType = iota
	modalConfirmStatus
	modalSendSetup
	modalSendProgress
	modalSendSummary
	modalHelp
)

// toggleRequest is a status change awaiting confirmation.
type toggleRequest struct {
	tab    int
	record record.Record
	sent   bool
	prompt status.Prompt
}

// sendState is the form shown before a dispatch job starts.
type sendState struct {
	tab        int
	mode       dispatch.Mode
	unsentOnly bool
	start      textinput.Model
	end        textinput.Model
	focus      int // 0 = start, 1 = end
	err        string
}

// Model is the bubbletea model for the dashboard.
type Model struct {
	cache    *cache.Store
	status   *status.Coordinator
	launcher dispatch.Launcher
	logger   *slog.Logger
	version  string
	now      func() time.Time

	batchSize    int
	mode         dispatch.Mode
	autoDispatch bool

	views  [2]viewState
	active int

	width    int
	height   int
	pageSize int // visible table rows, derived from height

	searchActive bool
	searchInput  textinput.Model

	modal   modalType
	toggle  *toggleRequest
	send    sendState
	job     *dispatch.Job
	jobBusy bool
	jobErr  string
	summary dispatch.Summary

	spinnerFrame  int
	spinnerActive bool

	flashMessage   string
	flashExpiresAt time.Time

	quitting bool
}

// New builds the model. Data is loaded by Init.
func New(opts Options) (Model, error) {
	if opts.Store == nil || opts.Cache == nil {
		return Model{}, fmt.Errorf("new tui: store and cache are required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PageSize == 0 {
		opts.PageSize = view.PageSize
	}
	if opts.Mode == "" {
		opts.Mode = dispatch.ModeBCC
	}
	if opts.Launcher == nil {
		opts.Launcher = noLauncher{}
	}

	ti := textinput.New()
	ti.Placeholder = "name, email, phone or college"
	ti.CharLimit = 200
	ti.Width = 50

	m := Model{
		cache:         opts.Cache,
		status:        opts.Status,
		launcher:      opts.Launcher,
		logger:        opts.Logger,
		version:       opts.Version,
		now:           opts.Now,
		batchSize:     opts.BatchSize,
		mode:          opts.Mode,
		autoDispatch:  opts.AutoDispatch,
		searchInput:   ti,
		pageSize:      20,
		spinnerActive: true,
	}
	for i, kind := range datasets {
		ctrl, err := view.New(opts.Cache, kind.CacheKey, fetcher(opts.Store, kind), record.Match,
			view.WithPageSize(opts.PageSize), view.WithLogger(opts.Logger))
		if err != nil {
			return Model{}, fmt.Errorf("new tui: %w", err)
		}
		m.views[i] = viewState{kind: kind, ctrl: ctrl, pending: true}
	}
	return m, nil
}

// fetcher lists a collection newest first.
func fetcher(store docstore.Store, kind record.Kind) view.FetchFunc[record.Record] {
	return func(ctx context.Context) ([]record.Record, error) {
		records, err := store.List(ctx, kind.Collection)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", kind.Collection, err)
		}
		record.SortByTime(records)
		return records, nil
	}
}

// noLauncher is used when no launcher is configured.
type noLauncher struct{}

func (noLauncher) Launch(context.Context, string) error {
	return fmt.Errorf("no browser launcher configured")
}

// Init loads both tabs.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadData(0, false), m.loadData(1, false), spinnerTick())
}

// dataLoadedMsg is sent when a tab finished loading.
type dataLoadedMsg struct {
	tab       int
	requestID uint64
	fromCache bool
	err       error
}

// statusChangedMsg is sent when a confirmed status toggle was persisted.
type statusChangedMsg struct {
	tab  int
	name string
	sent bool
	err  error
}

// jobUpdatedMsg is sent after a dispatch job operation returns.
type jobUpdatedMsg struct {
	err error
}

// flashClearMsg clears the flash message after timeout.
type flashClearMsg struct{}

// spinnerTickMsg advances the loading spinner animation.
type spinnerTickMsg struct{}

// spinnerFrames are the Braille dot animation frames for the loading spinner.
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// spinnerInterval is how fast the spinner animates.
const spinnerInterval = 80 * time.Millisecond

// flashDuration is how long flash messages are displayed.
const flashDuration = 4 * time.Second

// loadData loads one tab. With refresh the cached dataset is dropped first.
// Callers that issue a new load bump the tab's requestID first so late
// results of older loads are ignored.
func (m Model) loadData(tab int, refresh bool) tea.Cmd {
	ctrl := m.views[tab].ctrl
	requestID := m.views[tab].requestID
	return func() tea.Msg {
		ctx := context.Background()
		if refresh {
			err := ctrl.Refresh(ctx)
			return dataLoadedMsg{tab: tab, requestID: requestID, err: err}
		}
		fromCache, err := ctrl.LoadInitial(ctx)
		return dataLoadedMsg{tab: tab, requestID: requestID, fromCache: fromCache, err: err}
	}
}

// setSent persists a confirmed toggle.
func (m Model) setSent(req toggleRequest) tea.Cmd {
	coord := m.status
	kind := datasets[req.tab]
	return func() tea.Msg {
		if coord == nil {
			return statusChangedMsg{tab: req.tab, err: fmt.Errorf("status changes are not available")}
		}
		err := coord.SetSent(context.Background(), kind, req.record.ID, req.sent)
		return statusChangedMsg{tab: req.tab, name: record.Display(req.record.Name()), sent: req.sent, err: err}
	}
}

// runJob runs a blocking job operation off the update loop.
func runJob(op func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return jobUpdatedMsg{err: op(context.Background())}
	}
}

// spinnerTick returns a command that fires a spinnerTickMsg after the spinner interval.
func spinnerTick() tea.Cmd {
	return tea.Tick(spinnerInterval, func(time.Time) tea.Msg {
		return spinnerTickMsg{}
	})
}

// startSpinner returns a spinnerTick command if the spinner isn't already active.
func (m *Model) startSpinner() tea.Cmd {
	if m.spinnerActive {
		return nil
	}
	m.spinnerActive = true
	m.spinnerFrame = 0
	return spinnerTick()
}

// showFlash displays a temporary flash message.
func (m Model) showFlash(message string) (Model, tea.Cmd) {
	m.flashMessage = message
	m.flashExpiresAt = m.now().Add(flashDuration)
	return m, tea.Tick(flashDuration, func(time.Time) tea.Msg {
		return flashClearMsg{}
	})
}

// Update handles messages and returns the new model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		if m.modal != modalNone {
			return m.handleModalKeys(msg)
		}
		if m.searchActive {
			return m.handleSearchKeys(msg)
		}
		return m.handleListKeys(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.pageSize = m.height - headerLines - footerLines
		if m.pageSize < 1 {
			m.pageSize = 1
		}
		m.clampCursor()
		return m, nil

	case dataLoadedMsg:
		v := &m.views[msg.tab]
		if msg.requestID != v.requestID {
			return m, nil
		}
		v.pending = false
		if msg.err != nil {
			v.err = msg.err
			m.logger.Warn("load dataset", "dataset", v.kind.Name, "error", msg.err)
		} else {
			v.err = nil
			v.loaded = true
			v.fromCache = msg.fromCache
			v.rows = v.ctrl.Visible()
		}
		m.clampCursor()
		if msg.err != nil && msg.tab == m.active {
			return m.showFlash("Load failed: " + msg.err.Error())
		}
		return m, nil

	case statusChangedMsg:
		if msg.err != nil {
			return m.showFlash("Status update failed: " + msg.err.Error())
		}
		word := "sent"
		if !msg.sent {
			word = "NOT sent"
		}
		reload := m.reload(msg.tab, false)
		var flash tea.Cmd
		m, flash = m.showFlash(fmt.Sprintf("Marked %s as %s", msg.name, word))
		return m, tea.Batch(reload, flash)

	case jobUpdatedMsg:
		return m.handleJobUpdated(msg)

	case flashClearMsg:
		if !m.now().Before(m.flashExpiresAt) || m.flashExpiresAt.IsZero() {
			m.flashMessage = ""
		}
		return m, nil

	case spinnerTickMsg:
		if m.isLoading() || m.jobBusy {
			m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
			return m, spinnerTick()
		}
		m.spinnerActive = false
		return m, nil
	}
	return m, nil
}

// handleJobUpdated reflects the job state after Send, Next or Close.
func (m Model) handleJobUpdated(msg jobUpdatedMsg) (tea.Model, tea.Cmd) {
	m.jobBusy = false
	m.jobErr = ""
	if msg.err != nil {
		m.jobErr = msg.err.Error()
	}
	if m.job == nil {
		return m, nil
	}
	switch m.job.State() {
	case dispatch.StateCompleted, dispatch.StateClosed:
		m.summary = m.job.Summary()
		m.modal = modalSendSummary
		tab := m.send.tab
		m.job = nil
		cmd := m.reload(tab, false)
		return m, cmd
	}
	return m, nil
}

// quit cancels any open job and exits.
func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	if m.job != nil {
		job := m.job
		m.job = nil
		if err := job.Cancel(context.Background()); err != nil {
			m.logger.Warn("close job on quit", "job", job.ID(), "error", err)
		}
	}
	return m, tea.Quit
}

// reload starts a fresh load of one tab and supersedes any load in flight.
func (m *Model) reload(tab int, refresh bool) tea.Cmd {
	v := &m.views[tab]
	v.requestID++
	v.pending = true
	load := m.loadData(tab, refresh)
	return tea.Batch(load, m.startSpinner())
}

// isLoading reports whether any tab is waiting for data.
func (m Model) isLoading() bool {
	for _, v := range m.views {
		if v.pending {
			return true
		}
	}
	return false
}

// current returns the active tab.
func (m *Model) current() *viewState {
	return &m.views[m.active]
}

// selected returns the record under the cursor.
func (m Model) selected() (record.Record, bool) {
	v := m.views[m.active]
	if v.cursor < 0 || v.cursor >= len(v.rows) {
		return record.Record{}, false
	}
	return v.rows[v.cursor], true
}

// clampCursor keeps the cursor and scroll offset of every tab in range.
func (m *Model) clampCursor() {
	for i := range m.views {
		v := &m.views[i]
		if v.cursor >= len(v.rows) {
			v.cursor = len(v.rows) - 1
		}
		if v.cursor < 0 {
			v.cursor = 0
		}
		if v.scrollOffset > v.cursor {
			v.scrollOffset = v.cursor
		}
		if v.cursor >= v.scrollOffset+m.pageSize {
			v.scrollOffset = v.cursor - m.pageSize + 1
		}
		if v.scrollOffset < 0 {
			v.scrollOffset = 0
		}
	}
}
