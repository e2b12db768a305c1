package arcode

import (
	"bufio"
	"io"

	"github.com/fumin/arcode/ac"
	"github.com/pkg/errors"
)

// A FrequencyTable holds a positive count for each of the ac.NumSymbols symbols,
// together with their cumulative counts.
type FrequencyTable struct {
	freq []uint32
	// cum[s] is the sum of the counts of all symbols below s, so that symbol s owns [cum[s], cum[s+1]).
	cum []uint32
}

func newFrequencyTable(freq []uint32) (*FrequencyTable, error) {
	if len(freq) != ac.NumSymbols {
		return nil, errors.Wrapf(ac.ErrModel, "%d counts, want %d", len(freq), ac.NumSymbols)
	}
	var total uint64
	for s, c := range freq {
		if c == 0 {
			return nil, errors.Wrapf(ac.ErrModel, "zero count for symbol %d", s)
		}
		total += uint64(c)
	}
	if total > ac.MaxTotal {
		return nil, errors.Wrapf(ac.ErrModel, "total count %d exceeds %d", total, ac.MaxTotal)
	}

	t := &FrequencyTable{}
	t.freq = make([]uint32, ac.NumSymbols)
	copy(t.freq, freq)
	t.cum = make([]uint32, ac.NumSymbols+1)
	t.accumulate()
	return t, nil
}

func (t *FrequencyTable) accumulate() {
	t.cum[0] = 0
	for s, c := range t.freq {
		t.cum[s+1] = t.cum[s] + c
	}
}

// Probability returns the cumulative range [low, high) of symbol and the total count.
func (t *FrequencyTable) Probability(symbol int) (low, high, total uint32, err error) {
	if symbol < 0 || symbol >= ac.NumSymbols {
		return 0, 0, 0, errors.Wrapf(ac.ErrModel, "symbol %d", symbol)
	}
	total = t.Total()
	if total > ac.MaxTotal {
		return 0, 0, 0, errors.Wrapf(ac.ErrModel, "total count %d exceeds %d", total, ac.MaxTotal)
	}
	return t.cum[symbol], t.cum[symbol+1], total, nil
}

// Symbol returns the symbol whose cumulative range contains scaled.
func (t *FrequencyTable) Symbol(scaled, total uint32) (symbol int, low, high uint32, err error) {
	if total != t.Total() {
		return 0, 0, 0, errors.Wrapf(ac.ErrCorruptStream, "total %d, model has %d", total, t.Total())
	}
	if scaled >= total {
		return 0, 0, 0, errors.Wrapf(ac.ErrCorruptStream, "scaled count %d of %d", scaled, total)
	}

	// Binary search for the last symbol whose lower bound is not above scaled.
	first, last := 0, ac.NumSymbols
	for first < last-1 {
		mid := (first + last) / 2
		if t.cum[mid] <= scaled {
			first = mid
		} else {
			last = mid
		}
	}
	return first, t.cum[first], t.cum[first+1], nil
}

// Total returns the sum of all counts.
func (t *FrequencyTable) Total() uint32 {
	return t.cum[ac.NumSymbols]
}

// Counts returns a copy of the counts of all symbols.
func (t *FrequencyTable) Counts() []uint32 {
	counts := make([]uint32, len(t.freq))
	copy(counts, t.freq)
	return counts
}

// A StaticModel is a FrequencyTable fixed before coding starts.
// StaticModel implements the ac.Model interface.
type StaticModel struct {
	*FrequencyTable
}

// ScanCounts counts the occurrences of each byte value in r.
// The returned slice has ac.NumSymbols entries, the last of which counts the single EOF symbol.
func ScanCounts(r io.Reader) ([]uint64, error) {
	counts := make([]uint64, ac.NumSymbols)
	br := bufio.NewReader(r)
	for {
		bt, err := br.ReadByte()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.WithStack(&ac.IOError{Op: "scan", Err: err})
		}
		counts[bt]++
	}
	counts[ac.EOF] = 1
	return counts, nil
}

// NewStaticModel returns a StaticModel built from raw symbol counts, as returned by ScanCounts.
// Counts are scaled down when their total does not fit within ac.MaxTotal,
// and every symbol gets a count of at least one.
func NewStaticModel(raw []uint64) (*StaticModel, error) {
	if len(raw) != ac.NumSymbols {
		return nil, errors.Wrapf(ac.ErrModel, "%d counts, want %d", len(raw), ac.NumSymbols)
	}
	var total uint64
	for _, c := range raw {
		total += c
	}

	// Each symbol gets at least one, so only what is left of MaxTotal is available for scaling.
	var rescale uint64 = 1
	if total+ac.NumSymbols > ac.MaxTotal {
		rescale = total/(ac.MaxTotal-ac.NumSymbols) + 1
	}
	freq := make([]uint32, ac.NumSymbols)
	for s, c := range raw {
		scaled := c / rescale
		if scaled == 0 {
			scaled = 1
		}
		freq[s] = uint32(scaled)
	}

	return NewStaticModelFromTable(freq)
}

// NewStaticModelFromTable returns a StaticModel with exactly the counts in freq.
// freq must hold ac.NumSymbols positive counts whose total is at most ac.MaxTotal.
func NewStaticModelFromTable(freq []uint32) (*StaticModel, error) {
	t, err := newFrequencyTable(freq)
	if err != nil {
		return nil, err
	}
	return &StaticModel{FrequencyTable: t}, nil
}

// Update does nothing, since a StaticModel never changes.
func (m *StaticModel) Update(symbol int) error {
	return nil
}

// An AdaptiveModel is a FrequencyTable that counts symbols as they are coded.
// AdaptiveModel implements the ac.Model interface.
//
// An AdaptiveModel is mutated by every symbol, so each encoding or decoding run needs a model of its own.
type AdaptiveModel struct {
	*FrequencyTable

	// rescales is the number of times the counts were halved.
	rescales int
}

// NewAdaptiveModel returns an AdaptiveModel in which every symbol has been seen once.
func NewAdaptiveModel() *AdaptiveModel {
	freq := make([]uint32, ac.NumSymbols)
	for i := range freq {
		freq[i] = 1
	}
	t, err := newFrequencyTable(freq)
	if err != nil {
		panic(err)
	}
	return &AdaptiveModel{FrequencyTable: t}
}

// Update increments the count of symbol.
// Once the total reaches ac.MaxTotal, all counts are halved.
func (m *AdaptiveModel) Update(symbol int) error {
	if symbol < 0 || symbol >= ac.NumSymbols {
		return errors.Wrapf(ac.ErrModel, "symbol %d", symbol)
	}
	m.freq[symbol]++
	for i := symbol + 1; i < len(m.cum); i++ {
		m.cum[i]++
	}

	if m.Total() >= ac.MaxTotal {
		m.halve()
	}
	return nil
}

// halve divides all counts by two, rounding up.
// Rounding up keeps every count positive and never swaps the order of two counts.
func (m *AdaptiveModel) halve() {
	for s, c := range m.freq {
		m.freq[s] = (c + 1) / 2
	}
	m.accumulate()
	m.rescales++
}
