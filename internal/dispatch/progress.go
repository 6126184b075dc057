package dispatch

// Progress reports dispatch progress.
type Progress interface {
	OnStart(recipients, steps int)
	OnStep(step, steps int, recipients []Recipient)
	OnComplete(s Summary)
}

// NullProgress is a no-op progress reporter.
type NullProgress struct{}

func (NullProgress) OnStart(recipients, steps int)                  {}
func (NullProgress) OnStep(step, steps int, recipients []Recipient) {}
func (NullProgress) OnComplete(s Summary)                           {}
