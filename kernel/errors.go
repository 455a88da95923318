package kernel

import "errors"

// ErrSessionTimeout is recorded when a run outlives its session timeout.
var ErrSessionTimeout = errors.New("session timeout exceeded")

// ErrRoundTimeout is recorded when one model call outlives the round timeout.
var ErrRoundTimeout = errors.New("round timeout exceeded")
