package failure

type Severity int

// caller control flow
const (
	SeverityFatal Severity = iota
	SeverityRecoverable
)

// ClassifiedError is returned by every pipeline stage. Callers branch on
// Severity, never on the concrete error message.
type ClassifiedError interface {
	error
	Severity() Severity
}

// IsRecoverable reports whether err carries a recoverable classification.
// Unclassified errors are treated as fatal.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	classified, ok := err.(ClassifiedError)
	if !ok {
		return false
	}
	return classified.Severity() == SeverityRecoverable
}
