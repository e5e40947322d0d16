package harvester

// ProgressReporter receives one call per finished or skipped entry.
// Implementations must be safe for concurrent use.
type ProgressReporter interface {
	Advance(success bool)
	Skip()
}

type nopProgress struct{}

func (nopProgress) Advance(bool) {}
func (nopProgress) Skip()        {}
