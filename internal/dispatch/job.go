// Package dispatch walks an admin through sending templated email to a
// list of recipients, one compose window at a time.
//
// The job cannot observe whether a compose window was actually sent. Asking
// for the next step is taken as confirmation that the previous one was, and
// only then are its recipients marked sent in the document store.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/vstopensource-gif/CodeNexus-Admin/internal/batch"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/compose"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/docstore"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/record"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/status"
)

// State is the position of a job in its lifecycle.
type State string

const (
	StateReady                State = "ready"
	StateDispatched           State = "dispatched"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateCompleted            State = "completed"
	StateClosed               State = "closed"
)

// Mode selects how recipients are grouped into compose windows.
type Mode string

const (
	ModePersonalized Mode = "personalized" // one recipient per window, greeted by name
	ModeBCC          Mode = "bcc"          // one batch per window, in Bcc
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModePersonalized, ModeBCC:
		return m, nil
	}
	return "", fmt.Errorf("unknown dispatch mode %q (want %s or %s)", s, ModePersonalized, ModeBCC)
}

var (
	// ErrInvalidTransition is returned when an action is not allowed in the
	// job's current state.
	ErrInvalidTransition = errors.New("invalid dispatch transition")
	// ErrNoRecipients is returned by NewJob for an empty recipient list.
	ErrNoRecipients = errors.New("dispatch job has no recipients")
)

// Marker persists the sent flag for a set of records.
type Marker interface {
	SetSentBulk(ctx context.Context, kind record.Kind, ids []string, sent bool) error
}

var _ Marker = (*status.Coordinator)(nil)

// Launcher opens a compose link for the admin.
type Launcher interface {
	Launch(ctx context.Context, link string) error
}

// Cursor points at the next undispatched recipient or batch.
type Cursor struct {
	Batch int
	Item  int
}

// Summary reports the outcome of a job.
type Summary struct {
	JobID       string
	State       State
	Intended    int
	Confirmed   int
	Unconfirmed int
	Steps       int
}

func (s Summary) String() string {
	return fmt.Sprintf("Successfully sent %d out of %d emails", s.Confirmed, s.Intended)
}

// Job is one bulk send. It is safe for concurrent use, but only one job
// should run against a dataset at a time.
type Job struct {
	mu sync.Mutex

	id         string
	kind       record.Kind
	mode       Mode
	recipients []Recipient
	batches    [][]Recipient
	batchSize  int

	launcher Launcher
	marker   Marker
	logger   *slog.Logger
	progress Progress
	auto     bool
	subject  string
	template compose.Template

	state      State
	started    bool
	cursor     Cursor
	pending    []Recipient
	dispatched int
	confirmed  map[string]bool
	failed     map[string]bool
}

// Option configures a Job.
type Option func(*Job)

// WithBatchSize sets the partition size. BCC jobs are capped at
// compose.MaxTruncatedRecipients so no window is truncated.
func WithBatchSize(n int) Option {
	return func(j *Job) {
		j.batchSize = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(j *Job) {
		j.logger = logger
	}
}

// WithProgress sets the progress reporter.
func WithProgress(p Progress) Option {
	return func(j *Job) {
		j.progress = p
	}
}

// WithAutoDispatch makes Next open the following step immediately.
func WithAutoDispatch(auto bool) Option {
	return func(j *Job) {
		j.auto = auto
	}
}

// WithTemplate overrides the body template chosen for the kind.
func WithTemplate(t compose.Template) Option {
	return func(j *Job) {
		j.template = t
	}
}

// WithSubject overrides the subject chosen for the kind.
func WithSubject(subject string) Option {
	return func(j *Job) {
		j.subject = subject
	}
}

// NewJob creates a job in the Ready state.
func NewJob(kind record.Kind, recipients []Recipient, mode Mode, launcher Launcher, marker Marker, opts ...Option) (*Job, error) {
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}

	subject, tmpl := compose.TemplateFor(kind)
	j := &Job{
		id:         uuid.NewString(),
		kind:       kind,
		mode:       mode,
		recipients: append([]Recipient(nil), recipients...),
		batchSize:  batch.DefaultSize,
		launcher:   launcher,
		marker:     marker,
		logger:     slog.Default(),
		progress:   NullProgress{},
		subject:    subject,
		template:   tmpl,
		state:      StateReady,
		confirmed:  make(map[string]bool),
		failed:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(j)
	}
	if mode == ModeBCC && j.batchSize > compose.MaxTruncatedRecipients {
		j.batchSize = compose.MaxTruncatedRecipients
	}

	batches, err := batch.Partition(j.recipients, j.batchSize)
	if err != nil {
		return nil, fmt.Errorf("partition recipients: %w", err)
	}
	j.batches = batches
	return j, nil
}

// ID returns the job's unique identifier.
func (j *Job) ID() string { return j.id }

func (j *Job) Kind() record.Kind { return j.kind }

func (j *Job) Mode() Mode { return j.mode }

// State returns the current state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Cursor returns the position of the next undispatched step.
func (j *Job) Cursor() Cursor {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cursor
}

// Steps returns the number of compose windows the job will open.
func (j *Job) Steps() int {
	if j.mode == ModePersonalized {
		return len(j.recipients)
	}
	return len(j.batches)
}

// Step returns the 1-based number of the current step.
func (j *Job) Step() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stepNumber()
}

func (j *Job) stepNumber() int {
	if j.mode == ModePersonalized {
		return j.cursor.Batch*j.batchSize + j.cursor.Item + 1
	}
	return j.cursor.Batch + 1
}

// Pending returns the recipients of the dispatched, unconfirmed step.
func (j *Job) Pending() []Recipient {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Recipient(nil), j.pending...)
}

// Upcoming returns the recipients of the step Dispatch would open next.
func (j *Job) Upcoming() []Recipient {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.exhausted() {
		return nil
	}
	return append([]Recipient(nil), j.current()...)
}

// ConfirmedIDs returns the ids marked sent so far, in recipient order.
func (j *Job) ConfirmedIDs() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []string
	seen := make(map[string]bool, len(j.confirmed))
	for _, r := range j.recipients {
		if j.confirmed[r.ID] && !seen[r.ID] {
			seen[r.ID] = true
			out = append(out, r.ID)
		}
	}
	return out
}

// Summary reports intended versus confirmed recipients.
func (j *Job) Summary() Summary {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.summary()
}

func (j *Job) summary() Summary {
	return Summary{
		JobID:       j.id,
		State:       j.state,
		Intended:    len(j.recipients),
		Confirmed:   len(j.confirmed),
		Unconfirmed: len(j.recipients) - len(j.confirmed),
		Steps:       j.dispatched,
	}
}

// Dispatch opens the compose window for the current step. A launch failure
// leaves the job Ready so the step can be retried.
func (j *Job) Dispatch(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StateReady {
		return fmt.Errorf("%w: dispatch while %s", ErrInvalidTransition, j.state)
	}
	return j.dispatch(ctx)
}

func (j *Job) dispatch(ctx context.Context) error {
	step := j.current()
	link, err := j.link(step)
	if err != nil {
		return fmt.Errorf("build compose link: %w", err)
	}

	if !j.started {
		j.started = true
		j.progress.OnStart(len(j.recipients), j.Steps())
	}
	j.state = StateDispatched
	if err := j.launcher.Launch(ctx, link); err != nil {
		j.state = StateReady
		return fmt.Errorf("launch composer: %w", err)
	}

	n := j.stepNumber()
	j.pending = step
	j.dispatched++
	j.state = StateAwaitingConfirmation
	j.logger.Info("compose window opened",
		"job", j.id, "kind", j.kind.Name, "step", n, "steps", j.Steps(), "recipients", len(step))
	j.progress.OnStep(n, j.Steps(), step)
	return nil
}

// Next records the dispatched step as sent and moves to the following one.
// Persistence failures are logged and leave those recipients unconfirmed.
func (j *Job) Next(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StateAwaitingConfirmation {
		return fmt.Errorf("%w: next while %s", ErrInvalidTransition, j.state)
	}

	j.mark(ctx, ids(j.pending))
	j.pending = nil
	j.advance()

	if j.exhausted() {
		j.state = StateCompleted
		s := j.summary()
		j.logger.Info("dispatch completed",
			"job", j.id, "kind", j.kind.Name, "confirmed", s.Confirmed, "intended", s.Intended)
		j.progress.OnComplete(s)
		return nil
	}

	j.state = StateReady
	if j.auto {
		return j.dispatch(ctx)
	}
	return nil
}

// Cancel closes the job. When anything was dispatched, it makes one last
// attempt to mark the open step and any earlier failures as sent.
func (j *Job) Cancel(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch j.state {
	case StateCompleted:
		return fmt.Errorf("%w: cancel after completion", ErrInvalidTransition)
	case StateClosed:
		return nil
	}

	if j.dispatched > 0 {
		open := make(map[string]bool, len(j.pending))
		for _, r := range j.pending {
			open[r.ID] = true
		}
		var retry []string
		for _, r := range j.recipients {
			if open[r.ID] || j.failed[r.ID] {
				retry = append(retry, r.ID)
			}
		}
		j.mark(ctx, retry)
	}

	j.pending = nil
	j.state = StateClosed
	s := j.summary()
	j.logger.Info("dispatch closed",
		"job", j.id, "kind", j.kind.Name, "confirmed", s.Confirmed, "intended", s.Intended)
	return nil
}

// mark persists ids not yet confirmed. The marker never sees an id twice
// once it has been confirmed.
func (j *Job) mark(ctx context.Context, candidates []string) {
	seen := make(map[string]bool, len(candidates))
	var todo []string
	for _, id := range candidates {
		if j.confirmed[id] || seen[id] {
			continue
		}
		seen[id] = true
		todo = append(todo, id)
	}
	if len(todo) == 0 {
		return
	}

	err := j.marker.SetSentBulk(ctx, j.kind, todo, true)
	if err == nil {
		for _, id := range todo {
			j.confirmed[id] = true
			delete(j.failed, id)
		}
		return
	}

	failed := todo
	var perr *status.PersistenceError
	if errors.As(err, &perr) && perr.Failed != nil {
		failed = perr.Failed
	}
	bad := make(map[string]bool, len(failed))
	for _, id := range failed {
		bad[id] = true
	}
	for _, id := range todo {
		if bad[id] {
			j.failed[id] = true
			continue
		}
		j.confirmed[id] = true
		delete(j.failed, id)
	}
	j.logger.Warn("mark sent failed",
		"job", j.id, "kind", j.kind.Name, "ids", docstore.Summary(failed), "count", len(failed), "error", err)
}

func (j *Job) current() []Recipient {
	b := j.batches[j.cursor.Batch]
	if j.mode == ModePersonalized {
		return b[j.cursor.Item : j.cursor.Item+1]
	}
	return b
}

func (j *Job) advance() {
	if j.mode == ModePersonalized {
		j.cursor.Item++
		if j.cursor.Item < len(j.batches[j.cursor.Batch]) {
			return
		}
	}
	j.cursor.Batch++
	j.cursor.Item = 0
}

func (j *Job) exhausted() bool {
	return j.cursor.Batch >= len(j.batches)
}

func (j *Job) link(step []Recipient) (string, error) {
	if j.mode == ModePersonalized {
		r := step[0]
		return compose.IndividualURL(r.Email, j.subject, j.template(r.Name))
	}
	l, err := compose.ComposeLink(emails(step), j.subject, j.template(""), compose.FieldBCC)
	if err != nil {
		return "", err
	}
	if l.Truncated {
		j.logger.Warn("compose URL too long, truncating recipients",
			"job", j.id, "recipients", len(step), "kept", l.Kept)
	}
	return l.URL, nil
}
