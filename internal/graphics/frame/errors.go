package frame

import "fmt"

// FaultKind classifies a data integrity fault
type FaultKind int

const (
	FaultMissingObject FaultKind = iota
	FaultUnsupportedIndex
	FaultUnsupportedPrimitive
	FaultMissingSkyBox
	FaultInvalidLight
	FaultBackend
)

func (k FaultKind) String() string {
	switch k {
	case FaultMissingObject:
		return "missing object"
	case FaultUnsupportedIndex:
		return "unsupported index type"
	case FaultUnsupportedPrimitive:
		return "unsupported primitive"
	case FaultMissingSkyBox:
		return "missing skybox face"
	case FaultInvalidLight:
		return "invalid light"
	case FaultBackend:
		return "backend failure"
	}
	return "unknown fault"
}

// DataFaultError aborts a scene build. Subject names the offending node or
// resource.
type DataFaultError struct {
	Kind    FaultKind
	Subject string
	Reason  string
	Err     error
}

func (e *DataFaultError) Error() string {
	msg := fmt.Sprintf("scene data fault (%s) at %s", e.Kind, e.Subject)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataFaultError) Unwrap() error { return e.Err }

// Fault builds a *DataFaultError
func Fault(kind FaultKind, subject, reason string, err error) error {
	return &DataFaultError{Kind: kind, Subject: subject, Reason: reason, Err: err}
}
