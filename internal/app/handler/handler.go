// Package handler provides a result type and chain function for command
// handlers.
package handler

// Result represents the outcome of a command handler.
type Result struct {
	Handled bool
	// Reply is shown to the user, if non-empty.
	Reply string
	Err   error
}

// NotHandled is returned when a handler doesn't recognize the command.
var NotHandled = Result{}

// Handled creates a Result indicating the command was handled with a reply.
func Handled(reply string) Result {
	return Result{Handled: true, Reply: reply}
}

// Failed creates a handled Result carrying err.
func Failed(err error) Result {
	return Result{Handled: true, Err: err}
}

// HandledNoReply is a convenience for handlers that have nothing to say.
var HandledNoReply = Result{Handled: true}

// Handler is a function that attempts to handle a command.
type Handler func() Result

// Chain runs handlers in order until one handles the command. The zero
// Result is returned when none does.
func Chain(handlers ...Handler) Result {
	for _, h := range handlers {
		if r := h(); r.Handled {
			return r
		}
	}
	return NotHandled
}
