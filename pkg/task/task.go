// Package task maps free-form task text onto exactly one registered handler
// and turns the outcome into a uniform Envelope.
//
// Routing is first-match-wins over an ordered list of keyword predicates:
// the registration order is part of the contract, not an implementation
// detail. When two predicates match the same text, the one registered first
// runs, every time.
package task

import (
	"context"
	"strings"
)

// Request is the sole input of a task. Text keeps the caller's casing for
// parameter extraction; Lower is used for matching only.
type Request struct {
	ID    string
	Text  string
	Lower string
}

// NewRequest builds a Request from raw task text.
func NewRequest(id, text string) Request {
	return Request{
		ID:    id,
		Text:  text,
		Lower: strings.ToLower(text),
	}
}

// Result is what a handler reports on success.
type Result struct {
	// Detail is a short human-readable summary of what was done.
	Detail string
	// Output is the sandbox-relative path of the file written, if any.
	Output string
}

// Handler executes one task family. Implementations report every failure
// through a typed error from package taskerr.
type Handler interface {
	Execute(ctx context.Context, req Request) (*Result, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, req Request) (*Result, error)

func (f HandlerFunc) Execute(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}
