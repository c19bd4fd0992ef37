package session

import (
	"errors"
	"fmt"
)

// Failure classes. Negotiation and connect failures abort session start;
// produce and device failures degrade the local feature; consume failures
// are contained to one remote producer.
var (
	ErrNegotiation       = errors.New("negotiation failed")
	ErrConnect           = errors.New("transport connect rejected")
	ErrProduce           = errors.New("produce rejected")
	ErrConsume           = errors.New("consume failed")
	ErrDeviceAcquisition = errors.New("device acquisition failed")
)

var errNoSendTransport = errors.New("no send transport")

// Error ties an operation to its failure class while preserving the
// underlying cause for errors.Is/As.
type Error struct {
	Class error
	Op    string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("session: %s: %v: %v", e.Op, e.Class, e.Err)
}

func (e *Error) Unwrap() []error { return []error{e.Class, e.Err} }

func classify(class error, op string, err error) error {
	return &Error{Class: class, Op: op, Err: err}
}
