package domain

import "fmt"

// Status is the outcome class of a test result. Values are ordered by
// severity so the worst status of a run is simply the maximum.
type Status int

const (
	StatusSuccess Status = iota
	StatusNotification
	StatusOmission
	StatusPending
	StatusFailure
	StatusError
	StatusCrash
)

var statusNames = [...]string{
	StatusSuccess:      "success",
	StatusNotification: "notification",
	StatusOmission:     "omission",
	StatusPending:      "pending",
	StatusFailure:      "failure",
	StatusError:        "error",
	StatusCrash:        "crash",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// IsCritical reports whether the status marks the test as not passed.
// Notifications and omissions are annotations; a test carrying only those
// still succeeds.
func (s Status) IsCritical() bool {
	return s >= StatusPending
}

// ParseStatus converts a status name back into a Status.
func ParseStatus(name string) (Status, error) {
	for i, n := range statusNames {
		if n == name {
			return Status(i), nil
		}
	}
	return StatusSuccess, fmt.Errorf("unknown status %q", name)
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
