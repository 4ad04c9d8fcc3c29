package hprof

import (
	"bytes"
	"fmt"
)

// Magic is the format identifier every supported dump starts with, followed
// by a NUL byte.
const Magic = "JAVA PROFILE 1.0.2"

// TagHandler consumes one record body. The reader is positioned at the first
// body byte; the handler must consume exactly header.BodyByteSize bytes.
type TagHandler func(r *Reader, header RecordHeader) error

// SubTagHandler consumes one heap dump sub-record body, positioned right
// after the sub-tag byte.
type SubTagHandler func(r *Reader) error

// ParseDumpHeader verifies the magic and reads the fixed dump header. The
// magic must match as an exact prefix followed by a NUL terminator.
func ParseDumpHeader(r *Reader) (DumpHeader, error) {
	magic, err := r.Skip(len(Magic) + 1)
	if err != nil {
		return DumpHeader{}, ErrWrongFormat
	}
	if !bytes.Equal(magic, append([]byte(Magic), 0)) {
		return DumpHeader{}, ErrWrongFormat
	}

	var h DumpHeader
	if h.IdentifierSize, err = r.U32(); err != nil {
		return DumpHeader{}, err
	}
	if h.Millis, err = r.U64(); err != nil {
		return DumpHeader{}, err
	}
	if h.IdentifierSize == 0 || h.IdentifierSize > 8 {
		return DumpHeader{}, fmt.Errorf("%w %d", ErrUnsupportedIdentifierSize, h.IdentifierSize)
	}
	return h, nil
}

// ParseRecordHeader reads one record header: tag, microseconds since the
// header timestamp, and the body length.
func ParseRecordHeader(r *Reader) (RecordHeader, error) {
	tagByte, err := r.U8()
	if err != nil {
		return RecordHeader{}, err
	}
	var h RecordHeader
	if h.Tag, err = ValidateTag(tagByte); err != nil {
		return RecordHeader{}, err
	}
	if h.Micros, err = r.U32(); err != nil {
		return RecordHeader{}, err
	}
	if h.BodyByteSize, err = r.U32(); err != nil {
		return RecordHeader{}, err
	}
	return h, nil
}

// ParseBody iterates the top-level record stream until EOF, dispatching each
// record to the handler registered for its tag. Records without a handler are
// skipped by their declared body length. The reader is taken by value so the
// caller's cursor is unaffected.
func ParseBody(r Reader, handlers map[Tag]TagHandler) error {
	for !r.EOF() {
		header, err := ParseRecordHeader(&r)
		if err != nil {
			return err
		}
		if handler, ok := handlers[header.Tag]; ok {
			if err := handler(&r, header); err != nil {
				return err
			}
		} else if _, err := r.Skip(int(header.BodyByteSize)); err != nil {
			return err
		}
	}
	return nil
}
