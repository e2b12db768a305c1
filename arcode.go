// Package arcode compresses and decompresses byte streams with arithmetic coding.
// Bytes are modeled either by a static frequency table, counted in a pass over the input before coding and stored in the stream header,
// or by an adaptive table that is updated after every symbol.
// The coding itself is done by the finite precision coder in package ac/witten.
//
// Below is an example of using this package to compress Lincoln's Gettysburg address:
//    go run compress/main.go testdata/gettysburg.txt > gettys.ac
//    cat gettys.ac | go run decompress/main.go > gettys.dac
//    diff testdata/gettysburg.txt gettys.dac
//
// Reference:
// Witten, Ian H.; Neal, Radford M.; Cleary, John G. (June 1987). "Arithmetic Coding for Data Compression". Communications of the ACM 30 (6): 520–540.
package arcode

import (
	"bufio"
	"bytes"
	"io"
	"os"

	"github.com/fumin/arcode/ac"
	"github.com/fumin/arcode/ac/witten"
	"github.com/icza/bitio"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var log = logging.MustGetLogger("arcode")

// Config selects the model of a compression run.
// Decompression must use the same Config as compression.
type Config struct {
	// Static selects a frequency table counted from the whole input.
	// Otherwise the table adapts as symbols are coded.
	Static bool
}

// DefaultConfig returns the Config used when none is specified, which selects the static model.
func DefaultConfig() Config {
	return Config{Static: true}
}

func (cfg Config) kind() modelKind {
	if cfg.Static {
		return kindStatic
	}
	return kindAdaptive
}

// Compress writes the compressed contents of the file name to w.
// With a static model the file is read twice: once to count its bytes, and once to code them.
func Compress(w io.Writer, name string, cfg Config) error {
	var model ac.Model = NewAdaptiveModel()
	if cfg.Static {
		raw, err := scanFile(name)
		if err != nil {
			return errors.Wrap(err, "")
		}
		sm, err := NewStaticModel(raw)
		if err != nil {
			return errors.Wrap(err, "")
		}
		model = sm
	}

	f, err := os.Open(name)
	if err != nil {
		return errors.WithStack(&ac.IOError{Op: "open", Err: err})
	}
	defer f.Close()
	if err := encode(w, f, model); err != nil {
		return errors.Wrap(err, name)
	}
	return nil
}

func scanFile(name string) ([]uint64, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.WithStack(&ac.IOError{Op: "open", Err: err})
	}
	defer f.Close()
	raw, err := ScanCounts(f)
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	return raw, nil
}

// Decompress decodes the stream in r, which must have been compressed with cfg, and writes the original bytes to w.
// On error, the bytes already written to w are not a valid prefix of the original.
func Decompress(w io.Writer, r io.Reader, cfg Config) error {
	if err := decode(w, r, cfg); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// Encode returns the compressed form of src.
func Encode(src []byte, cfg Config) ([]byte, error) {
	var model ac.Model = NewAdaptiveModel()
	if cfg.Static {
		raw, err := ScanCounts(bytes.NewReader(src))
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		sm, err := NewStaticModel(raw)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		model = sm
	}

	buf := bytes.NewBuffer(nil)
	if err := encode(buf, bytes.NewReader(src), model); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return buf.Bytes(), nil
}

// Decode returns the original bytes of src, which must have been compressed with cfg.
func Decode(src []byte, cfg Config) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := decode(buf, bytes.NewReader(src), cfg); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return buf.Bytes(), nil
}

// encode writes the header for model followed by the coded bytes of r and the EOF symbol.
// A static model must already hold the counts of r.
func encode(w io.Writer, r io.Reader, model ac.Model) error {
	h := header{version: headerVersion, kind: kindAdaptive}
	if sm, ok := model.(*StaticModel); ok {
		h.kind = kindStatic
		h.counts = sm.Counts()
	}

	bufw := bufio.NewWriter(w)
	if err := writeHeader(bufw, h); err != nil {
		return errors.Wrap(err, "")
	}
	bw := bitio.NewWriter(bufw)
	enc := witten.NewEncoder(bw)

	encodeSymbol := func(s int) error {
		low, high, total, err := model.Probability(s)
		if err != nil {
			return errors.Wrap(err, "")
		}
		if err := enc.Encode(low, high, total); err != nil {
			return errors.Wrap(err, "")
		}
		if err := model.Update(s); err != nil {
			return errors.Wrap(err, "")
		}
		return nil
	}

	br := bufio.NewReader(r)
	var n int64
	for {
		bt, err := br.ReadByte()
		if err != nil {
			if err == io.EOF {
				break
			}
			return errors.WithStack(&ac.IOError{Op: "read", Err: err})
		}
		if err := encodeSymbol(int(bt)); err != nil {
			return errors.Wrapf(err, "byte %d", n)
		}
		n++
	}
	if err := encodeSymbol(ac.EOF); err != nil {
		return errors.Wrap(err, "EOF")
	}
	if err := enc.Close(); err != nil {
		return errors.Wrap(err, "")
	}

	if err := bw.Close(); err != nil {
		return errors.WithStack(&ac.IOError{Op: "flush", Err: err})
	}
	if err := bufw.Flush(); err != nil {
		return errors.WithStack(&ac.IOError{Op: "flush", Err: err})
	}
	logRun("encoded", h.kind, n, model)
	return nil
}

// decode reads the header and the coded bits in r until the EOF symbol, writing the decoded bytes to w.
func decode(w io.Writer, r io.Reader, cfg Config) error {
	br := bufio.NewReader(r)
	h, err := readHeader(br)
	if err != nil {
		return errors.Wrap(err, "")
	}
	model, err := h.newModel(cfg)
	if err != nil {
		return errors.Wrap(err, "")
	}

	dec, err := witten.NewDecoder(bitio.NewReader(br))
	if err != nil {
		return errors.Wrap(err, "")
	}
	bufw := bufio.NewWriter(w)
	var n int64
	for {
		total := model.Total()
		scaled, err := dec.Count(total)
		if err != nil {
			return errors.Wrapf(err, "byte %d", n)
		}
		s, low, high, err := model.Symbol(scaled, total)
		if err != nil {
			return errors.Wrapf(err, "byte %d", n)
		}
		if s == ac.EOF {
			break
		}

		if err := bufw.WriteByte(byte(s)); err != nil {
			return errors.WithStack(&ac.IOError{Op: "write", Err: err})
		}
		n++
		if err := dec.Decode(low, high, total); err != nil {
			return errors.Wrapf(err, "byte %d", n)
		}
		if err := model.Update(s); err != nil {
			return errors.Wrap(err, "")
		}
	}

	if err := bufw.Flush(); err != nil {
		return errors.WithStack(&ac.IOError{Op: "flush", Err: err})
	}
	logRun("decoded", h.kind, n, model)
	return nil
}

func logRun(op string, kind modelKind, n int64, model ac.Model) {
	switch m := model.(type) {
	case *AdaptiveModel:
		log.Debugf("%s %d bytes with %s model, total count %d, %d rescales", op, n, kind, m.Total(), m.rescales)
	default:
		log.Debugf("%s %d bytes with %s model, total count %d", op, n, kind, model.Total())
	}
}
