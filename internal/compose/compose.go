// Package compose builds webmail compose links and the message bodies
// placed in them.
package compose

import (
	"errors"
	"net/url"
	"strings"

	"github.com/vstopensource-gif/CodeNexus-Admin/internal/record"
)

const gmailComposeURL = "https://mail.google.com/mail/?view=cm&fs=1"

// Gmail truncates or rejects longer compose URLs.
const (
	MaxURLLength           = 2000
	MaxTruncatedRecipients = 100
)

// Field is the recipient header a compose link fills.
type Field string

const (
	FieldTo  Field = "to"
	FieldBCC Field = "bcc"
)

// ErrNoRecipients is returned when no valid address remains after filtering.
var ErrNoRecipients = errors.New("no valid email addresses")

// componentEscaper undoes the escapes url.QueryEscape applies that
// JavaScript's encodeURIComponent does not.
var componentEscaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

func escape(s string) string {
	return componentEscaper.Replace(url.QueryEscape(s))
}

// ValidAddresses trims addresses and drops invalid ones, preserving order.
func ValidAddresses(emails []string) []string {
	valid := make([]string, 0, len(emails))
	for _, e := range emails {
		e = strings.TrimSpace(e)
		if record.ValidEmail(e) {
			valid = append(valid, e)
		}
	}
	return valid
}

func build(field Field, addrs []string, subject, body string) string {
	var sb strings.Builder
	sb.WriteString(gmailComposeURL)
	sb.WriteString("&")
	sb.WriteString(string(field))
	sb.WriteString("=")
	sb.WriteString(escape(strings.Join(addrs, ",")))
	sb.WriteString("&su=")
	sb.WriteString(escape(subject))
	sb.WriteString("&body=")
	sb.WriteString(escape(body))
	return sb.String()
}

// Link is a built compose link.
type Link struct {
	URL string
	// Kept is the number of addresses in URL. It is less than the number of
	// valid addresses when the link was truncated.
	Kept      int
	Truncated bool
}

// ComposeLink builds a compose link addressed to every valid recipient. A
// link longer than MaxURLLength that names more than MaxTruncatedRecipients
// addresses keeps only the first MaxTruncatedRecipients.
func ComposeLink(recipients []string, subject, body string, field Field) (Link, error) {
	addrs := ValidAddresses(recipients)
	if len(addrs) == 0 {
		return Link{}, ErrNoRecipients
	}
	if field == "" {
		field = FieldBCC
	}

	link := build(field, addrs, subject, body)
	if len(link) > MaxURLLength && len(addrs) > MaxTruncatedRecipients {
		return Link{
			URL:       build(field, addrs[:MaxTruncatedRecipients], subject, body),
			Kept:      MaxTruncatedRecipients,
			Truncated: true,
		}, nil
	}
	return Link{URL: link, Kept: len(addrs)}, nil
}

// GmailURL is ComposeLink returning only the URL.
func GmailURL(recipients []string, subject, body string, field Field) (string, error) {
	l, err := ComposeLink(recipients, subject, body, field)
	return l.URL, err
}

// IndividualURL builds a compose link for one recipient in the To field.
func IndividualURL(email, subject, body string) (string, error) {
	return GmailURL([]string{email}, subject, body, FieldTo)
}
