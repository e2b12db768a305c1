package arcode

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/fumin/arcode/ac"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	headerVersion = 1

	// maxHeaderSize bounds the header length a decoder is willing to read.
	maxHeaderSize = 4096

	fieldVersion protowire.Number = 1
	fieldKind    protowire.Number = 2
	fieldCounts  protowire.Number = 3
)

type modelKind uint64

const (
	kindAdaptive modelKind = 0
	kindStatic   modelKind = 1
)

func (k modelKind) String() string {
	switch k {
	case kindAdaptive:
		return "adaptive"
	case kindStatic:
		return "static"
	default:
		return "unknown"
	}
}

// A header precedes the coded bits of every stream.
// It is a length prefixed message in protobuf wire format.
type header struct {
	version uint64
	kind    modelKind
	// counts is the frequency table of a static model, nil for an adaptive one.
	counts []uint32
}

func (h header) marshal() []byte {
	var msg []byte
	msg = protowire.AppendTag(msg, fieldVersion, protowire.VarintType)
	msg = protowire.AppendVarint(msg, h.version)
	msg = protowire.AppendTag(msg, fieldKind, protowire.VarintType)
	msg = protowire.AppendVarint(msg, uint64(h.kind))
	if h.counts != nil {
		var packed []byte
		for _, c := range h.counts {
			packed = protowire.AppendVarint(packed, uint64(c))
		}
		msg = protowire.AppendTag(msg, fieldCounts, protowire.BytesType)
		msg = protowire.AppendBytes(msg, packed)
	}

	b := protowire.AppendVarint(nil, uint64(len(msg)))
	return append(b, msg...)
}

func unmarshalHeader(msg []byte) (header, error) {
	h := header{}
	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return header{}, errors.Wrap(ac.ErrCorruptStream, protowire.ParseError(n).Error())
		}
		msg = msg[n:]

		switch {
		case num == fieldVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(msg)
			if n < 0 {
				return header{}, errors.Wrap(ac.ErrCorruptStream, protowire.ParseError(n).Error())
			}
			h.version = v
			msg = msg[n:]
		case num == fieldKind && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(msg)
			if n < 0 {
				return header{}, errors.Wrap(ac.ErrCorruptStream, protowire.ParseError(n).Error())
			}
			h.kind = modelKind(v)
			msg = msg[n:]
		case num == fieldCounts && typ == protowire.BytesType:
			if h.counts != nil {
				return header{}, errors.Wrap(ac.ErrModel, "duplicate frequency table")
			}
			packed, n := protowire.ConsumeBytes(msg)
			if n < 0 {
				return header{}, errors.Wrap(ac.ErrCorruptStream, protowire.ParseError(n).Error())
			}
			counts, err := unpackCounts(packed)
			if err != nil {
				return header{}, err
			}
			h.counts = counts
			msg = msg[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, msg)
			if n < 0 {
				return header{}, errors.Wrap(ac.ErrCorruptStream, protowire.ParseError(n).Error())
			}
			msg = msg[n:]
		}
	}

	if h.version != headerVersion {
		return header{}, errors.Wrapf(ac.ErrCorruptStream, "unsupported header version %d", h.version)
	}
	return h, nil
}

func unpackCounts(packed []byte) ([]uint32, error) {
	counts := make([]uint32, 0, ac.NumSymbols)
	for len(packed) > 0 {
		v, n := protowire.ConsumeVarint(packed)
		if n < 0 {
			return nil, errors.Wrap(ac.ErrCorruptStream, protowire.ParseError(n).Error())
		}
		if v > ac.MaxTotal {
			return nil, errors.Wrapf(ac.ErrModel, "count %d exceeds %d", v, ac.MaxTotal)
		}
		counts = append(counts, uint32(v))
		packed = packed[n:]
	}
	return counts, nil
}

func writeHeader(w io.Writer, h header) error {
	if _, err := w.Write(h.marshal()); err != nil {
		return errors.WithStack(&ac.IOError{Op: "write header", Err: err})
	}
	return nil
}

func readHeader(r *bufio.Reader) (header, error) {
	size, err := binary.ReadUvarint(r)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return header{}, errors.Wrap(ac.ErrCorruptStream, "missing header")
		}
		return header{}, errors.Wrap(ac.ErrCorruptStream, err.Error())
	}
	if size > maxHeaderSize {
		return header{}, errors.Wrapf(ac.ErrCorruptStream, "header size %d", size)
	}
	msg := make([]byte, size)
	if _, err := io.ReadFull(r, msg); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return header{}, errors.Wrap(ac.ErrCorruptStream, "truncated header")
		}
		return header{}, errors.WithStack(&ac.IOError{Op: "read header", Err: err})
	}
	return unmarshalHeader(msg)
}

// newModel returns the model a header describes, checking that it is the one cfg asks for.
func (h header) newModel(cfg Config) (ac.Model, error) {
	want := cfg.kind()
	if h.kind != want {
		return nil, errors.Wrapf(ac.ErrModel, "stream uses %s model, configured for %s", h.kind, want)
	}

	switch h.kind {
	case kindStatic:
		if h.counts == nil {
			return nil, errors.Wrap(ac.ErrModel, "static stream without frequency table")
		}
		m, err := NewStaticModelFromTable(h.counts)
		if err != nil {
			return nil, errors.Wrap(err, "header")
		}
		return m, nil
	default:
		return NewAdaptiveModel(), nil
	}
}
