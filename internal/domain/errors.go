package domain

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindAuthentication Kind = iota + 1
	KindFetch
	KindSummarization
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "AuthenticationError"
	case KindFetch:
		return "FetchError"
	case KindSummarization:
		return "SummarizationError"
	default:
		return "UnknownError"
	}
}

type Phase string

const (
	PhaseList      Phase = "list"
	PhaseDetail    Phase = "detail"
	PhaseSummarize Phase = "summarize"
)

// Sentinels for errors.Is; any *Error of the same kind matches.
var (
	ErrAuthentication = &Error{Kind: KindAuthentication}
	ErrFetch          = &Error{Kind: KindFetch}
	ErrSummarization  = &Error{Kind: KindSummarization}
)

// Error attributes a failure to a kind, a pipeline phase and, when known, an item.
type Error struct {
	Kind   Kind
	Phase  Phase
	ItemID string
	Origin string
	Err    error
}

func NewError(kind Kind, phase Phase, item *Item, err error) *Error {
	e := &Error{Kind: kind, Phase: phase, Err: err}
	if item != nil {
		e.ItemID = item.ID
		e.Origin = item.Origin
	}
	return e
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Phase != "" {
		msg += " (" + string(e.Phase)
		if e.ItemID != "" {
			msg += " " + e.ItemID
		}
		msg += ")"
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err.Error())
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Err == nil && t.Phase == "" && t.Kind == e.Kind
}

// AsFailure converts err into the record stored on a failed Result.
func AsFailure(err error) *Failure {
	if err == nil {
		return nil
	}

	var de *Error
	if errors.As(err, &de) {
		return &Failure{
			Kind:    de.Kind.String(),
			Phase:   string(de.Phase),
			Message: err.Error(),
		}
	}

	return &Failure{Kind: "UnknownError", Message: err.Error()}
}
