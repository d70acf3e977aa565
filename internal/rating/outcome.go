package rating

import "fmt"

// Status classifies how a single record fared in a transfer.
type Status string

const (
	StatusSubmitted      Status = "Submitted"
	StatusNoMatch        Status = "NoMatch"
	StatusAmbiguousMatch Status = "AmbiguousMatch"
	StatusSubmitFailed   Status = "SubmitFailed"
	StatusAlreadyRated   Status = "AlreadyRated"
)

// AllStatuses lists every status in report order.
var AllStatuses = []Status{
	StatusSubmitted,
	StatusAlreadyRated,
	StatusNoMatch,
	StatusAmbiguousMatch,
	StatusSubmitFailed,
}

// Succeeded reports whether the destination ends up holding the rating.
func (s Status) Succeeded() bool {
	return s == StatusSubmitted || s == StatusAlreadyRated
}

// Outcome is the final result for one record.
type Outcome struct {
	Record   Record
	Status   Status
	TargetID string
	Detail   string
	Attempts int
}

func (o Outcome) String() string {
	if o.Detail == "" {
		return fmt.Sprintf("%s (%d): %s", o.Record.Title, o.Record.Year, o.Status)
	}
	return fmt.Sprintf("%s (%d): %s - %s", o.Record.Title, o.Record.Year, o.Status, o.Detail)
}
