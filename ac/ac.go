// Package ac defines the interfaces and constants the arithmetic coding algorithm requires.
// See its subpackages for particular finite precision realizations of the algorithm.
package ac

import (
	"fmt"

	"github.com/pkg/errors"
)

const (
	// NumSymbols is the size of the coded alphabet: the 256 byte values plus EOF.
	NumSymbols = 257

	// EOF is the symbol that terminates every coded stream.
	EOF = 256

	// Precision is the width in bits of the interval registers.
	Precision = 16

	// MaxTotal is the ceiling on the sum of all counts of a model.
	// Keeping it two bits below Precision guarantees that every symbol keeps a non-empty sub-interval,
	// since a renormalized interval is always wider than a quarter of the register range.
	MaxTotal = 1 << (Precision - 2)
)

var (
	// ErrModel is returned when a frequency table cannot be represented within MaxTotal,
	// or when a model is asked about a symbol outside of the alphabet.
	ErrModel = errors.New("model error")

	// ErrPrecision is returned when narrowing would leave a degenerate interval.
	ErrPrecision = errors.New("precision error")

	// ErrCorruptStream is returned when the decoder reconstructs a position that no symbol covers,
	// or when the stream ends before the end-of-stream symbol is decoded.
	ErrCorruptStream = errors.New("corrupt stream")
)

// An IOError is a failure of the underlying bit sink or source.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Cause returns the underlying I/O error, so that errors.Cause sees through an IOError.
func (e *IOError) Cause() error {
	return e.Err
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// A Model is a probabilistic model over the NumSymbols symbols, as expected by the arithmetic coding algorithm.
// Encoder and decoder must drive identical models through identical calls.
type Model interface {
	// Probability returns the cumulative range [low, high) of symbol, and the total count.
	Probability(symbol int) (low, high, total uint32, err error)

	// Symbol returns the symbol whose cumulative range contains scaled.
	// total must be the value returned by Total.
	Symbol(scaled, total uint32) (symbol int, low, high uint32, err error)

	// Total returns the sum of all counts.
	Total() uint32

	// Update informs the Model that symbol is observed from the sequence.
	Update(symbol int) error
}

// A BitWriter is the sink an encoder emits bits to.
// *bitio.Writer from github.com/icza/bitio satisfies it.
type BitWriter interface {
	WriteBool(b bool) error
}

// A BitReader is the source a decoder consumes bits from.
// ReadBool returns io.EOF once the source is exhausted.
// *bitio.Reader from github.com/icza/bitio satisfies it.
type BitReader interface {
	ReadBool() (bool, error)
}
