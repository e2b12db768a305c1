package witten

import (
	"bytes"
	"fmt"
	"os"
	"testing"

	"github.com/fumin/arcode/ac"
	"github.com/icza/bitio"
	"github.com/pkg/errors"
)

func TestEncodeTableModel(t *testing.T) {
	uniform := make([]uint32, ac.NumSymbols)
	for i := range uniform {
		uniform[i] = 1
	}
	testEncode(t, uniform)

	// A table skewed towards the space character.
	skewed := make([]uint32, ac.NumSymbols)
	for i := range skewed {
		skewed[i] = 1
	}
	skewed[' '] = 2000
	skewed['e'] = 900
	testEncode(t, skewed)

	// A table right at the precision ceiling, where one symbol takes almost the whole interval
	// and the remaining ones are as narrow as the registers allow.
	ceiling := make([]uint32, ac.NumSymbols)
	for i := range ceiling {
		ceiling[i] = 1
	}
	ceiling['t'] = ac.MaxTotal - (ac.NumSymbols - 1)
	testEncode(t, ceiling)
}

func testEncode(t *testing.T, counts []uint32) {
	contents, err := os.ReadFile("../../testdata/gettysburg.txt")
	if err != nil {
		t.Fatalf("%v", err)
	}
	model := newTableModel(counts)

	// Encode
	buf := bytes.NewBuffer(nil)
	bw := bitio.NewWriter(buf)
	enc := NewEncoder(bw)
	symbols := make([]int, 0, len(contents)+1)
	for _, bt := range contents {
		symbols = append(symbols, int(bt))
	}
	symbols = append(symbols, ac.EOF)
	for _, s := range symbols {
		low, high := model.rng(s)
		if err := enc.Encode(low, high, model.total); err != nil {
			t.Fatalf("%+v", err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("%+v", err)
	}
	if err := bw.Close(); err != nil {
		t.Fatalf("%+v", err)
	}
	t.Logf("encoded bytes: %d, original bytes: %d", buf.Len(), len(contents))

	// Decode
	dec, err := NewDecoder(bitio.NewReader(buf))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	decoded := []byte{}
	for {
		scaled, err := dec.Count(model.total)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		s := model.find(scaled)
		if s == ac.EOF {
			break
		}
		decoded = append(decoded, byte(s))
		low, high := model.rng(s)
		if err := dec.Decode(low, high, model.total); err != nil {
			t.Fatalf("%+v", err)
		}
	}

	if !bytes.Equal(contents, decoded) {
		t.Errorf("%q != %q", contents, decoded)
	}
}

func TestEncodeInvalidRange(t *testing.T) {
	tests := []struct {
		low, high, total uint32
	}{
		{low: 3, high: 3, total: 10},
		{low: 4, high: 3, total: 10},
		{low: 0, high: 11, total: 10},
		{low: 0, high: 1, total: 0},
		{low: 0, high: 1, total: ac.MaxTotal + 1},
	}
	for _, tc := range tests {
		enc := NewEncoder(bitio.NewWriter(bytes.NewBuffer(nil)))
		err := enc.Encode(tc.low, tc.high, tc.total)
		if errors.Cause(err) != ac.ErrPrecision {
			t.Errorf("%+v: %v", tc, err)
		}

		dec := &Decoder{high: topValue}
		err = dec.Decode(tc.low, tc.high, tc.total)
		if errors.Cause(err) != ac.ErrPrecision {
			t.Errorf("%+v: %v", tc, err)
		}
	}
}

func TestEncodeAfterClose(t *testing.T) {
	enc := NewEncoder(bitio.NewWriter(bytes.NewBuffer(nil)))
	if err := enc.Encode(0, 1, 2); err != nil {
		t.Fatalf("%+v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("%+v", err)
	}
	if err := enc.Encode(0, 1, 2); err != ErrClosed {
		t.Errorf("%v", err)
	}
	if err := enc.Close(); err != ErrClosed {
		t.Errorf("%v", err)
	}
}

// TestUnderflowBits checks that symbols straddling the midpoint defer their bits until the interval settles.
func TestUnderflowBits(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	bw := bitio.NewWriter(buf)
	enc := NewEncoder(bw)

	// The middle third of the interval lands in [firstQtr, thirdQtr) and can only be resolved by underflow bits.
	for i := 0; i < 5; i++ {
		if err := enc.Encode(1, 2, 3); err != nil {
			t.Fatalf("%+v", err)
		}
	}
	if enc.fbits == 0 {
		t.Errorf("no pending bits after encoding middle ranges")
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("%+v", err)
	}
	if enc.fbits != 0 {
		t.Errorf("%d pending bits after Close", enc.fbits)
	}
	if err := bw.Close(); err != nil {
		t.Fatalf("%+v", err)
	}

	dec, err := NewDecoder(bitio.NewReader(buf))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	for i := 0; i < 5; i++ {
		scaled, err := dec.Count(3)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		if scaled != 1 {
			t.Fatalf("%d: %d != 1", i, scaled)
		}
		if err := dec.Decode(1, 2, 3); err != nil {
			t.Fatalf("%+v", err)
		}
	}
}

func TestDecodeInsufficientBits(t *testing.T) {
	_, err := NewDecoder(bitio.NewReader(bytes.NewReader(nil)))
	if errors.Cause(err) != ac.ErrCorruptStream {
		t.Errorf("%v", err)
	}
}

type failWriter struct{}

func (failWriter) WriteBool(b bool) error {
	return fmt.Errorf("disk full")
}

type failReader struct{}

func (failReader) ReadBool() (bool, error) {
	return false, fmt.Errorf("disk on fire")
}

func TestIOError(t *testing.T) {
	enc := NewEncoder(failWriter{})
	err := enc.Encode(0, 1, 2)
	var ioErr *ac.IOError
	if !errors.As(err, &ioErr) {
		t.Errorf("%v", err)
	}

	_, err = NewDecoder(failReader{})
	if !errors.As(err, &ioErr) {
		t.Errorf("%v", err)
	}
}

// tableModel is a fixed cumulative frequency table.
type tableModel struct {
	cum   []uint32
	total uint32
}

func newTableModel(counts []uint32) *tableModel {
	m := &tableModel{}
	m.cum = make([]uint32, len(counts)+1)
	for i, c := range counts {
		m.cum[i+1] = m.cum[i] + c
	}
	m.total = m.cum[len(counts)]
	return m
}

func (m *tableModel) rng(s int) (uint32, uint32) {
	return m.cum[s], m.cum[s+1]
}

func (m *tableModel) find(scaled uint32) int {
	for s := 0; s < len(m.cum)-1; s++ {
		if scaled < m.cum[s+1] {
			return s
		}
	}
	return -1
}
