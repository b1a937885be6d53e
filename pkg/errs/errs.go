// Package errs defines the tagged error taxonomy shared across the node.
//
// Every recoverable error returned at a public-operation boundary carries a
// Kind so callers can branch on category without string matching, while
// still composing with the standard errors.Is/errors.As machinery via %w.
package errs

import "fmt"

// Kind tags an error with its taxonomy category (see spec §7).
type Kind string

const (
	KindInvalidAddress   Kind = "InvalidAddress"
	KindInvalidAmount    Kind = "InvalidAmount"
	KindMalformedMessage Kind = "MalformedMessage"
	KindUnknownContract  Kind = "UnknownContract"

	KindNotAuthenticated  Kind = "NotAuthenticated"
	KindNotOwner          Kind = "NotOwner"
	KindAlreadyRegistered Kind = "AlreadyRegistered"

	KindInsufficientBalance Kind = "InsufficientBalance"
	KindSelfTransfer        Kind = "SelfTransfer"
	KindPoolFull            Kind = "PoolFull"
	KindDuplicateBlock      Kind = "DuplicateBlock"

	KindChainLinkBroken Kind = "ChainLinkBroken"
	KindHashMismatch    Kind = "HashMismatch"
	KindTxInvalid       Kind = "TxInvalid"
	KindIndexSkip       Kind = "IndexSkip"

	KindUnsafeCode         Kind = "UnsafeCode"
	KindCompilationFailed  Kind = "CompilationFailed"
	KindExecutionTimeout   Kind = "ExecutionTimeout"
	KindMemoryExceeded     Kind = "MemoryExceeded"
	KindExecutionFailed    Kind = "ExecutionFailed"

	KindPeerUnreachable Kind = "PeerUnreachable"
	KindPeerTimeout     Kind = "PeerTimeout"
	KindPeerRejected    Kind = "PeerRejected"

	KindCodecFailed Kind = "CodecFailed"
	KindIOFailed    Kind = "IOFailed"
)

// E is a tagged error. It wraps an optional underlying cause so callers can
// still unwrap to the original error when one exists.
type E struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *E) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *E) Unwrap() error { return e.Err }

// New builds a tagged error with a message.
func New(kind Kind, msg string) error {
	return &E{Kind: kind, Msg: msg}
}

// Wrap builds a tagged error around an underlying cause.
func Wrap(kind Kind, msg string, cause error) error {
	return &E{Kind: kind, Msg: msg, Err: cause}
}

// Is reports whether err (or any error it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*E); ok {
			if e.Kind == kind {
				return true
			}
			err = e.Err
			continue
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
