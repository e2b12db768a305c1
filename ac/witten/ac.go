// Package witten implements the arithmetic coding algorithm described in
// Witten, Ian H.; Neal, Radford M.; Cleary, John G. (June 1987). "Arithmetic Coding for Data Compression". Communications of the ACM 30 (6): 520–540.
//
// The registers are ac.Precision bits wide, and symbol ranges are given as cumulative counts whose total must not exceed ac.MaxTotal.
package witten

import (
	"io"

	"github.com/fumin/arcode/ac"
	"github.com/pkg/errors"
)

const (
	codeValueBits = ac.Precision
	topValue      = (uint32(1) << codeValueBits) - 1
	firstQtr      = topValue/4 + 1
	half          = 2 * firstQtr
	thirdQtr      = 3 * firstQtr
)

// ErrClosed is returned when an Encoder is used after Close.
var ErrClosed = errors.New("encoder closed")

type state int

const (
	idle state = iota
	active
	flushing
	done
)

// checkRange verifies that [low, high) is a non-empty range within a total the registers can resolve.
func checkRange(low, high, total uint32) error {
	if low >= high || high > total || total > ac.MaxTotal {
		return errors.Wrapf(ac.ErrPrecision, "range [%d, %d) of %d", low, high, total)
	}
	return nil
}

// narrow returns the sub-interval of [lo, hi] that corresponds to the range [low, high) of total.
// Truncating division is used, and the decoder must narrow identically.
func narrow(lo, hi, low, high, total uint32) (uint32, uint32, error) {
	arange := uint64(hi-lo) + 1
	if arange < uint64(total) {
		return 0, 0, errors.Wrapf(ac.ErrPrecision, "interval [%d, %d] narrower than total %d", lo, hi, total)
	}
	nhi := uint64(lo) + arange*uint64(high)/uint64(total) - 1
	nlo := uint64(lo) + arange*uint64(low)/uint64(total)
	if nhi < nlo || nhi > uint64(topValue) {
		return 0, 0, errors.Wrapf(ac.ErrPrecision, "degenerate interval [%d, %d]", nlo, nhi)
	}
	return uint32(nlo), uint32(nhi), nil
}

// An Encoder carries the state required to encode one stream.
type Encoder struct {
	w     ac.BitWriter
	low   uint32
	high  uint32
	fbits uint64
	state state
}

// NewEncoder returns an Encoder that emits bits to w.
// Callers remain responsible for flushing and closing w after Close.
func NewEncoder(w ac.BitWriter) *Encoder {
	e := &Encoder{w: w}
	e.high = topValue
	return e
}

func (e *Encoder) bitPlusFollow(bit bool) error {
	if err := e.w.WriteBool(bit); err != nil {
		return errors.WithStack(&ac.IOError{Op: "write bit", Err: err})
	}
	for e.fbits > 0 {
		if err := e.w.WriteBool(!bit); err != nil {
			return errors.WithStack(&ac.IOError{Op: "write bit", Err: err})
		}
		e.fbits -= 1
	}
	return nil
}

// Encode narrows the interval to the cumulative range [low, high) of total, and emits every bit that the narrowing settles.
func (e *Encoder) Encode(low, high, total uint32) error {
	if e.state == flushing || e.state == done {
		return ErrClosed
	}
	if err := checkRange(low, high, total); err != nil {
		return err
	}
	e.state = active

	var err error
	e.low, e.high, err = narrow(e.low, e.high, low, high, total)
	if err != nil {
		return err
	}

	for {
		if e.high < half {
			if err := e.bitPlusFollow(false); err != nil {
				return err
			}
		} else if e.low >= half {
			if err := e.bitPlusFollow(true); err != nil {
				return err
			}
			e.low -= half
			e.high -= half
		} else if e.low >= firstQtr && e.high < thirdQtr {
			e.fbits += 1
			e.low -= firstQtr
			e.high -= firstQtr
		} else {
			break
		}

		// Both registers are below half here, so doubling stays within topValue.
		e.low = 2 * e.low
		e.high = 2*e.high + 1
	}
	return nil
}

// Close emits the two bits that select a quarter lying inside the final interval, followed by any outstanding underflow bits.
func (e *Encoder) Close() error {
	if e.state == flushing || e.state == done {
		return ErrClosed
	}
	e.state = flushing

	e.fbits += 1
	if e.low < firstQtr {
		if err := e.bitPlusFollow(false); err != nil {
			return err
		}
	} else {
		if err := e.bitPlusFollow(true); err != nil {
			return err
		}
	}

	e.state = done
	return nil
}

// A Decoder carries the state required to decode one stream.
type Decoder struct {
	r     ac.BitReader
	low   uint32
	high  uint32
	value uint32

	garbageBits int
}

// NewDecoder returns a Decoder that has consumed the first ac.Precision bits of r.
func NewDecoder(r ac.BitReader) (*Decoder, error) {
	d := &Decoder{r: r}
	d.high = topValue
	for i := 1; i <= codeValueBits; i++ {
		inb, err := d.readDecBit()
		if err != nil {
			return nil, err
		}
		d.value = 2*d.value + inb
	}
	return d, nil
}

// readDecBit returns the next bit of the stream.
// The encoder stops after the bits that disambiguate its final interval, so a few bits past the end are read as zeros.
// A valid stream never needs more than codeValueBits-2 of them.
func (d *Decoder) readDecBit() (uint32, error) {
	b, err := d.r.ReadBool()
	if err == io.EOF {
		d.garbageBits++
		if d.garbageBits > codeValueBits-2 {
			return 0, errors.Wrap(ac.ErrCorruptStream, "insufficient bits sent to decoder")
		}
		return 0, nil
	}
	if err != nil {
		return 0, errors.WithStack(&ac.IOError{Op: "read bit", Err: err})
	}
	if b {
		return 1, nil
	}
	return 0, nil
}

// Count returns the position of the code value within the current interval, scaled to [0, total).
// The result is meant to be passed to a Model's Symbol method.
func (d *Decoder) Count(total uint32) (uint32, error) {
	if total == 0 || total > ac.MaxTotal {
		return 0, errors.Wrapf(ac.ErrPrecision, "total %d", total)
	}
	if d.value < d.low || d.value > d.high {
		return 0, errors.Wrapf(ac.ErrCorruptStream, "code %d outside [%d, %d]", d.value, d.low, d.high)
	}
	arange := uint64(d.high-d.low) + 1
	scaled := ((uint64(d.value-d.low)+1)*uint64(total) - 1) / arange
	if scaled >= uint64(total) {
		return 0, errors.Wrapf(ac.ErrCorruptStream, "scaled count %d of %d", scaled, total)
	}
	return uint32(scaled), nil
}

// Decode narrows the interval to the cumulative range [low, high) of total exactly as the Encoder did,
// and shifts in a new bit for every bit the Encoder emitted.
func (d *Decoder) Decode(low, high, total uint32) error {
	if err := checkRange(low, high, total); err != nil {
		return err
	}

	var err error
	d.low, d.high, err = narrow(d.low, d.high, low, high, total)
	if err != nil {
		return err
	}
	if d.value < d.low || d.value > d.high {
		return errors.Wrapf(ac.ErrCorruptStream, "code %d outside symbol range [%d, %d]", d.value, d.low, d.high)
	}

	// rescale interval
	for {
		if d.high < half {
			// do nothing
		} else if d.low >= half {
			d.value -= half
			d.low -= half
			d.high -= half
		} else if d.low >= firstQtr && d.high < thirdQtr {
			d.value -= firstQtr
			d.low -= firstQtr
			d.high -= firstQtr
		} else {
			break
		}

		d.low = 2 * d.low
		d.high = 2*d.high + 1
		inb, err := d.readDecBit()
		if err != nil {
			return err
		}
		d.value = 2*d.value + inb
	}
	return nil
}
