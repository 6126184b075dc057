package record

import (
	"fmt"

	"github.com/vstopensource-gif/CodeNexus-Admin/internal/cache"
)

// Kind describes one managed dataset.
type Kind struct {
	Name        string
	Label       string
	Collection  string
	CacheKey    string
	SentField   string
	SentAtField string
	// EmailLabel names the email this dataset receives ("welcome").
	EmailLabel  string
}

var (
	Users = Kind{
		Name:        "users",
		Label:       "Users",
		Collection:  "users",
		CacheKey:    cache.KeyUsers,
		SentField:   "welcomeEmailSent",
		SentAtField: "welcomeEmailSentAt",
		EmailLabel:  "welcome",
	}
	Registrations = Kind{
		Name:        "registrations",
		Label:       "Registrations",
		Collection:  "event_registrations",
		CacheKey:    cache.KeyRegistrations,
		SentField:   "seminarEmailSent",
		SentAtField: "seminarEmailSentAt",
		EmailLabel:  "seminar",
	}
)

// Kinds lists every managed dataset.
var Kinds = []Kind{Users, Registrations}

// EventsCollection holds event definitions. It is read-only and uncached.
const EventsCollection = "events"

// KindByName looks up a dataset by its CLI name.
func KindByName(name string) (Kind, error) {
	for _, k := range Kinds {
		if k.Name == name {
			return k, nil
		}
	}
	return Kind{}, fmt.Errorf("unknown dataset %q (want users or registrations)", name)
}

func (k Kind) String() string {
	return k.Name
}
