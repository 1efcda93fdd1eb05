package aggregation

import (
	"github.com/pkg/errors"
)

// ErrContractViolation is the cause of every panic raised when a caller
// drives an aggregator function outside of its protocol.
var ErrContractViolation = errors.New("aggregator contract violation")

func contractViolation(format string, args ...any) {
	panic(errors.Wrapf(ErrContractViolation, format, args...))
}
