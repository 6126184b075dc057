package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/status"
)

// errNeedsYes is returned when a confirmation is required but stdin is not
// a terminal.
var errNeedsYes = errors.New("confirmation required: run in a terminal or pass --yes")

// isInteractive reports whether prompts can be shown.
func isInteractive() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// newConfirmer returns the confirmer for status changes in this run.
func newConfirmer() status.Confirmer {
	if assumeYes {
		return status.AlwaysConfirm
	}
	return status.ConfirmFunc(func(ctx context.Context, p status.Prompt) (bool, error) {
		if !isInteractive() {
			return false, errNeedsYes
		}
		title := p.Question
		if p.Warning {
			title = "⚠ " + title
		}
		return confirm(ctx, title, p.Detail, p.Action)
	})
}

// confirm shows a yes/no form. Aborting the form counts as no.
func confirm(ctx context.Context, title, description, affirmative string) (bool, error) {
	var ok bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Description(description).
			Affirmative(affirmative).
			Negative("Cancel").
			Value(&ok),
	))
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("prompt: %w", err)
	}
	return ok, nil
}

// stepChoice is the admin's answer after a compose window was opened.
type stepChoice string

const (
	choiceNext  stepChoice = "next"
	choiceClose stepChoice = "close"
)

// askStep asks whether the opened window was sent. With --yes every step
// is treated as sent.
func askStep(ctx context.Context, title string) (stepChoice, error) {
	if assumeYes {
		return choiceNext, nil
	}
	if !isInteractive() {
		return "", errNeedsYes
	}
	choice := choiceNext
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[stepChoice]().
			Title(title).
			Options(
				huh.NewOption("Sent, mark as sent and continue", choiceNext),
				huh.NewOption("Close (marks this step as sent, stops the job)", choiceClose),
			).
			Value(&choice),
	))
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return choiceClose, nil
		}
		return "", fmt.Errorf("prompt: %w", err)
	}
	return choice, nil
}
