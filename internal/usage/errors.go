package usage

import "fmt"

// MeasurementError reports a transfer whose size could not be measured or
// that could not be accounted at all. It is always recoverable: the recorder
// has already applied the estimation fallback (or skipped the event) when
// it is returned.
type MeasurementError struct {
	URL      string
	Category Category
	Reason   string
	// Estimated is the byte count that was accounted instead, 0 if the event was skipped.
	Estimated int64
	Err       error
}

func (e *MeasurementError) Error() string {
	msg := fmt.Sprintf("usage: %s %s: %s", e.Category, e.URL, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MeasurementError) Unwrap() error {
	return e.Err
}
