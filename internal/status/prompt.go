package status

import (
	"context"
	"fmt"

	"github.com/vstopensource-gif/CodeNexus-Admin/internal/record"
)

// Prompt describes a pending status change to a human.
type Prompt struct {
	Title    string
	Question string
	Detail   string
	Action   string
	Count    int
	Sent     bool
	// Warning is set when demoting to unsent.
	Warning  bool
}

// Confirmer asks a human to approve a status change.
type Confirmer interface {
	Confirm(ctx context.Context, p Prompt) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, p Prompt) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, p Prompt) (bool, error) {
	return f(ctx, p)
}

// AlwaysConfirm approves everything. Used for --yes.
var AlwaysConfirm = ConfirmFunc(func(context.Context, Prompt) (bool, error) { return true, nil })

// PromptFor builds the confirmation text. name is used for single-record
// prompts and may be empty.
func PromptFor(kind record.Kind, name string, count int, sent bool) Prompt {
	direction := "mark as sent"
	action := "Yes, Mark as Sent"
	detail := "This will mark the email as sent. Use this if the email has been sent successfully."
	if !sent {
		direction = "mark as NOT sent"
		action = "Yes, Mark as NOT Sent"
		detail = "This will mark the email as NOT sent. Use this if the email was never sent or needs to be resent."
	}

	var target string
	switch {
	case count == 1 && name != "":
		target = name
	case count == 1:
		target = "this entry"
	default:
		target = fmt.Sprintf("%d %s", count, kind.Name)
	}

	return Prompt{
		Title:    "Confirm Status Change",
		Question: fmt.Sprintf("Are you sure you want to %s the %s email for %s?", direction, kind.EmailLabel, target),
		Detail:   detail,
		Action:   action,
		Count:    count,
		Sent:     sent,
		Warning:  !sent,
	}
}
