package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/batch"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/compose"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/dispatch"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/record"
)

var (
	sendMode      string
	sendBatchSize int
	sendStart     int
	sendEnd       int
	sendAll       bool
	sendPrint     bool
	sendSearch    string
	sendAuto      bool
	sendRefresh   bool
)

var sendCmd = &cobra.Command{
	Use:   "send <users|registrations>",
	Short: "Send the welcome or seminar email through Gmail",
	Long: `Open Gmail compose windows for a dataset, one step at a time.

Users receive the welcome email, registrations the seminar email. In bcc
mode each window holds a batch of recipients in Bcc; in personalized mode
each window greets one recipient by name.

After each window you are asked whether it was sent. Answering "sent"
marks that step's recipients as sent and moves on. Closing marks the open
step as sent and stops. Records already marked as sent are skipped unless
--all is given.

Examples:
  codenexus-admin send users
  codenexus-admin send registrations --mode personalized --start 1 --end 20
  codenexus-admin send users --print --yes`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{record.Users.Name, record.Registrations.Name},
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := record.KindByName(args[0])
		if err != nil {
			return err
		}
		modeName := sendMode
		if modeName == "" {
			modeName = cfg.Email.Mode
		}
		mode, err := dispatch.ParseMode(modeName)
		if err != nil {
			return err
		}
		batchSize, err := resolveBatchSize(sendBatchSize, cfg.Email.BatchSize)
		if err != nil {
			return err
		}
		auto := sendAuto || cfg.Email.AutoDispatch

		b, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer b.Close()

		ctrl, err := b.loadRecords(cmd.Context(), kind, sendSearch, sendRefresh)
		if err != nil {
			return err
		}
		recipients := sendRecipients(kind, ctrl.Filtered(), sendAll)
		if len(recipients) == 0 {
			return errors.New("no recipients with a valid email")
		}

		start, end := sendStart, sendEnd
		if start == 0 {
			start = 1
		}
		if end == 0 {
			end = len(recipients)
		}
		selected, err := dispatch.SelectRange(recipients, start, end)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		var launcher dispatch.Launcher = compose.BrowserLauncher{}
		if sendPrint {
			launcher = compose.PrintLauncher{W: out}
		}

		if !assumeYes {
			if !isInteractive() {
				return errNeedsYes
			}
			title := fmt.Sprintf("Send the %s email to %d %s (%d-%d)?", kind.EmailLabel, len(selected), kind.Name, start, end)
			ok, err := confirm(cmd.Context(), title, fmt.Sprintf("Mode: %s", mode), "Start")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(out, "Cancelled.")
				return nil
			}
		}

		opts := []dispatch.Option{
			dispatch.WithLogger(logger),
			dispatch.WithProgress(&cliProgress{w: out, kind: kind}),
			dispatch.WithAutoDispatch(auto),
			dispatch.WithBatchSize(batchSize),
		}
		job, err := dispatch.NewJob(kind, selected, mode, launcher, b.newCoordinator(), opts...)
		if err != nil {
			return err
		}

		summary, err := runSend(cmd.Context(), job, askStep)
		printSendSummary(out, summary)
		return err
	},
}

// resolveBatchSize returns the --batch-size flag, or the configured size
// when the flag is unset.
func resolveBatchSize(flag, configured int) (int, error) {
	switch {
	case flag < 0:
		return 0, fmt.Errorf("--batch-size %d: %w", flag, batch.ErrInvalidChunkSize)
	case flag == 0:
		return configured, nil
	}
	return flag, nil
}

// sendRecipients returns the addressable recipients of rows, skipping
// already-sent records unless all is set.
func sendRecipients(kind record.Kind, rows []record.Record, all bool) []dispatch.Recipient {
	if !all {
		unsent := make([]record.Record, 0, len(rows))
		for _, r := range rows {
			if !r.Sent(kind) {
				unsent = append(unsent, r)
			}
		}
		rows = unsent
	}
	return dispatch.RecipientsFrom(rows)
}

// stepAsker asks whether the open compose window was sent.
type stepAsker func(ctx context.Context, title string) (stepChoice, error)

// runSend drives job to Completed or Closed. Any failure closes the job,
// so the open step is still recorded.
func runSend(ctx context.Context, job *dispatch.Job, ask stepAsker) (dispatch.Summary, error) {
	abort := func(cause error) (dispatch.Summary, error) {
		// The run context may already be cancelled; the last marking
		// attempt must still reach the store.
		if err := job.Cancel(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, dispatch.ErrInvalidTransition) {
			logger.Warn("close dispatch job", "job", job.ID(), "error", err)
		}
		return job.Summary(), cause
	}

	for {
		if err := ctx.Err(); err != nil {
			return abort(err)
		}
		switch state := job.State(); state {
		case dispatch.StateReady:
			if err := job.Dispatch(ctx); err != nil {
				return abort(err)
			}
		case dispatch.StateAwaitingConfirmation:
			title := fmt.Sprintf("Step %d of %d: was the email sent?", job.Step(), job.Steps())
			choice, err := ask(ctx, title)
			if err != nil {
				return abort(err)
			}
			if choice == choiceClose {
				return abort(nil)
			}
			if err := job.Next(ctx); err != nil {
				return abort(err)
			}
		case dispatch.StateCompleted, dispatch.StateClosed:
			return job.Summary(), nil
		default:
			return abort(fmt.Errorf("unexpected dispatch state %s", state))
		}
	}
}

func printSendSummary(w io.Writer, s dispatch.Summary) {
	if s.Intended == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, s.String())
	if s.Unconfirmed > 0 {
		fmt.Fprintf(w, "%d not marked as sent. Run send again to retry them.\n", s.Unconfirmed)
	}
}

// cliProgress implements dispatch.Progress for terminal output.
type cliProgress struct {
	w         io.Writer
	kind      record.Kind
	startTime time.Time
}

func (p *cliProgress) OnStart(recipients, steps int) {
	p.startTime = time.Now()
	fmt.Fprintf(p.w, "Sending the %s email to %d recipient(s) in %d step(s).\n", p.kind.EmailLabel, recipients, steps)
}

func (p *cliProgress) OnStep(step, steps int, recipients []dispatch.Recipient) {
	fmt.Fprintf(p.w, "Step %d/%d: compose window opened for %s\n", step, steps, describeRecipients(recipients, 3))
}

func (p *cliProgress) OnComplete(s dispatch.Summary) {
	if p.startTime.IsZero() {
		p.startTime = time.Now()
	}
	fmt.Fprintf(p.w, "All %d step(s) done in %s.\n", s.Steps, formatDuration(time.Since(p.startTime)))
}

// describeRecipients lists up to limit addresses and counts the rest.
func describeRecipients(rs []dispatch.Recipient, limit int) string {
	if len(rs) == 1 && rs[0].Name != "" {
		return fmt.Sprintf("%s <%s>", rs[0].Name, rs[0].Email)
	}
	var parts []string
	for i, r := range rs {
		if i == limit {
			parts = append(parts, fmt.Sprintf("and %d more", len(rs)-limit))
			break
		}
		parts = append(parts, r.Email)
	}
	return strings.Join(parts, ", ")
}

// formatDuration formats a duration as "Xm Ys" or "Xh Ym" for readability.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVar(&sendMode, "mode", "", "bcc or personalized (default from config)")
	sendCmd.Flags().IntVar(&sendBatchSize, "batch-size", 0, "recipients per bcc window (max 100)")
	sendCmd.Flags().IntVar(&sendStart, "start", 0, "first recipient, 1-based (default 1)")
	sendCmd.Flags().IntVar(&sendEnd, "end", 0, "last recipient, inclusive (default: last)")
	sendCmd.Flags().BoolVar(&sendAll, "all", false, "include records already marked as sent")
	sendCmd.Flags().BoolVar(&sendPrint, "print", false, "print compose links instead of opening a browser")
	sendCmd.Flags().StringVarP(&sendSearch, "search", "s", "", "only send to records matching this text")
	sendCmd.Flags().BoolVar(&sendAuto, "auto", false, "open the next window as soon as a step is confirmed")
	sendCmd.Flags().BoolVar(&sendRefresh, "refresh", false, "ignore the cache and fetch again")
}
