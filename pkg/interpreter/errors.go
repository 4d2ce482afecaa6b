package interpreter

import "errors"

// Every error below is fatal: it aborts the whole invocation chain and the
// engine makes no attempt to recover from it.
var (
	ErrNotInitialized        = errors.New("program not initialized")
	ErrArgCount              = errors.New("invalid number of arguments passed to function invocation")
	ErrStackOverflow         = errors.New("call stack depth exceeded")
	ErrMaxStepsExceeded      = errors.New("maximum steps exceeded")
	ErrUnsupportedType       = errors.New("unsupported type")
	ErrUnsupportedTerminator = errors.New("unsupported terminator instruction")
	ErrUnreachable           = errors.New("reached an unreachable instruction")
	ErrMissingIncoming       = errors.New("phi has no entry for predecessor")
	ErrUnknownBlock          = errors.New("unknown block")
	ErrUnboundValue          = errors.New("value read before it was bound")
	ErrUnknownGlobal         = errors.New("unknown global")
	ErrNotCallable           = errors.New("value is not callable")
	ErrUnknownOperation      = errors.New("unknown operation")
	ErrNotCurrentFrame       = errors.New("frame is not on top of the call stack")
	ErrDivisionByZero        = errors.New("division by zero")
	ErrOffsetOverflow        = errors.New("pointer offset overflows")
)
