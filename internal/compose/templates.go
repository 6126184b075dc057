package compose

import (
	"bytes"
	"embed"
	"strings"
	"text/template"

	"github.com/vstopensource-gif/CodeNexus-Admin/internal/record"
)

// Subjects used by the dashboard's two email flows.
const (
	WelcomeSubject = "Welcome to Code Nexus!"
	SeminarSubject = "🎉 You’re Registered for the GSoC Session! Here’s Your Zoom Link 🔗"
)

//go:embed templates/*.txt
var templateFS embed.FS

var bodies = template.Must(template.ParseFS(templateFS, "templates/*.txt"))

// Template renders a message body for a display name. An empty name
// produces the group greeting used for BCC sends.
type Template func(name string) string

func render(file, name string) string {
	greeting := "Hi there,"
	if name = strings.TrimSpace(name); name != "" && name != record.NotAvailable {
		greeting = "Hi " + name + ","
	}
	var buf bytes.Buffer
	// The templates are embedded and take only a string, so Execute
	// cannot fail at runtime.
	_ = bodies.ExecuteTemplate(&buf, file, struct{ Greeting string }{greeting})
	return strings.TrimSpace(buf.String())
}

// Welcome renders the welcome email sent to newly registered users.
func Welcome(name string) string {
	return render("welcome.txt", name)
}

// Seminar renders the event confirmation sent to registrants.
func Seminar(name string) string {
	return render("seminar.txt", name)
}

// TemplateFor returns the subject and body template for a dataset.
func TemplateFor(kind record.Kind) (string, Template) {
	if kind.Name == record.Registrations.Name {
		return SeminarSubject, Seminar
	}
	return WelcomeSubject, Welcome
}
