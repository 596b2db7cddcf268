package app

import (
	"errors"
	"fmt"
)

// Kind classifies a rejected initiation so transports can map it and the buyer
// can be told what to do next.
type Kind string

const (
	// KindValidation: bad or missing input; fix it and retry.
	KindValidation Kind = "validation"
	// KindCooldown: a request for the same order and email was accepted moments ago.
	KindCooldown Kind = "cooldown"
	// KindAlreadyPaid: the order is completed; send the buyer to order history.
	KindAlreadyPaid Kind = "already_paid"
	// KindOrderClosed: the order failed; a new checkout is required.
	KindOrderClosed Kind = "order_closed"
	// KindInternal: storage or other server-side failure.
	KindInternal Kind = "internal"
)

// Error is returned by Service.Initiate for every rejected request.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func validationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func internalError(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

var (
	errCooldown = &Error{
		Kind:    KindCooldown,
		Message: "a payment request for this order was just submitted, please wait a few seconds",
	}
	errAlreadyPaid = &Error{
		Kind:    KindAlreadyPaid,
		Message: "this order has already been paid",
	}
	errOrderClosed = &Error{
		Kind:    KindOrderClosed,
		Message: "payment for this order failed, please start a new checkout",
	}
)
