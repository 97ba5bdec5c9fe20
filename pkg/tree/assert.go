package tree

import "fmt"

// InvariantError is the panic value raised when the Tree/Manager contract is
// violated. It signals a programming error (hook ordering, broken visibility
// symmetry, bad index) and is never returned as an ordinary error.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string {
	return "invariant violated: " + e.Msg
}

// Assert panics with an *InvariantError when cond is false.
func Assert(cond bool, format string, args ...any) {
	if cond {
		return
	}
	panic(&InvariantError{Msg: fmt.Sprintf(format, args...)})
}
