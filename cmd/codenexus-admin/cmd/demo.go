package cmd

import (
	"fmt"
	"time"

	"github.com/vstopensource-gif/CodeNexus-Admin/internal/docstore"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/record"
)

var demoColleges = []string{"VIT", "SRM", "IIT Madras", "", "Anna University"}

// demoStore returns an in-memory store with sample data for --offline runs.
// Writes made during the run are discarded on exit.
func demoStore() *docstore.Mock {
	m := docstore.NewMock()
	now := time.Now()

	for i := 1; i <= 12; i++ {
		fields := map[string]any{
			"name":         fmt.Sprintf("Demo User %d", i),
			"email":        fmt.Sprintf("user%d@example.com", i),
			"phone":        fmt.Sprintf("+91 98765 %05d", i),
			"college":      demoColleges[i%len(demoColleges)],
			"registeredAt": now.Add(-time.Duration(i*7) * time.Hour).UTC().Format(time.RFC3339),
		}
		if i%3 == 0 {
			fields[record.Users.SentField] = true
		}
		m.Add(record.Users.Collection, record.New(fmt.Sprintf("demo-u%d", i), fields))
	}

	for i := 1; i <= 8; i++ {
		fields := map[string]any{
			"name":      fmt.Sprintf("Demo Attendee %d", i),
			"email":     fmt.Sprintf("attendee%d@example.com", i),
			"phone":     fmt.Sprintf("+91 91234 %05d", i),
			"eventId":   "gsoc-2025",
			"timestamp": now.Add(-time.Duration(i*5) * time.Hour).UnixMilli(),
		}
		if i%2 == 0 {
			fields["university"] = demoColleges[i%len(demoColleges)]
		} else {
			fields["college"] = demoColleges[i%len(demoColleges)]
		}
		m.Add(record.Registrations.Collection, record.New(fmt.Sprintf("demo-r%d", i), fields))
	}

	m.Add(record.EventsCollection, record.New("gsoc-2025", map[string]any{
		"title":  "GSoC Orientation Session",
		"isOpen": true,
	}))
	return m
}
