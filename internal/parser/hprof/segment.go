package hprof

import "fmt"

// SkipClassDump advances past a CLASS DUMP sub-record body without
// materializing it.
func SkipClassDump(r *Reader, idSize int) error {
	// classObjectID, stackTraceSerial, super/loader/signers/protectionDomain,
	// reserved x2, instanceSize
	if _, err := r.Skip(idSize + 4 + idSize*6 + 4); err != nil {
		return err
	}

	nConstants, err := r.U16()
	if err != nil {
		return err
	}
	for i := 0; i < int(nConstants); i++ {
		if _, err := r.Skip(2); err != nil {
			return err
		}
		t, err := readBasicType(r)
		if err != nil {
			return err
		}
		if _, err := r.Skip(t.Size()); err != nil {
			return err
		}
	}

	nStatics, err := r.U16()
	if err != nil {
		return err
	}
	for i := 0; i < int(nStatics); i++ {
		if _, err := r.Skip(idSize); err != nil {
			return err
		}
		t, err := readBasicType(r)
		if err != nil {
			return err
		}
		if _, err := r.Skip(t.Size()); err != nil {
			return err
		}
	}

	nFields, err := r.U16()
	if err != nil {
		return err
	}
	_, err = r.Skip((idSize + 1) * int(nFields))
	return err
}

// SkipInstanceDump advances past an INSTANCE DUMP sub-record body.
func SkipInstanceDump(r *Reader, idSize int) error {
	if _, err := r.Skip(idSize + 4 + idSize); err != nil {
		return err
	}
	fieldsSize, err := r.U32()
	if err != nil {
		return err
	}
	_, err = r.Skip(int(fieldsSize))
	return err
}

// SkipObjectArrayDump advances past an OBJECT ARRAY DUMP sub-record body.
func SkipObjectArrayDump(r *Reader, idSize int) error {
	if _, err := r.Skip(idSize + 4); err != nil {
		return err
	}
	nElements, err := r.U32()
	if err != nil {
		return err
	}
	_, err = r.Skip(arrayClassIDSize + idSize*int(nElements))
	return err
}

// SkipPrimitiveArrayDump advances past a PRIMITIVE ARRAY DUMP sub-record body.
func SkipPrimitiveArrayDump(r *Reader, idSize int) error {
	if _, err := r.Skip(idSize + 4); err != nil {
		return err
	}
	nElements, err := r.U32()
	if err != nil {
		return err
	}
	t, err := readBasicType(r)
	if err != nil {
		return err
	}
	_, err = r.Skip(t.Size() * int(nElements))
	return err
}

func readBasicType(r *Reader) (BasicType, error) {
	b, err := r.U8()
	if err != nil {
		return 0, err
	}
	return ValidateBasicType(b)
}

// ParseHeapDumpSegment iterates the sub-record stream of one HEAP DUMP /
// HEAP DUMP SEGMENT body. Sub-records with a registered handler are delegated
// to it; statically sized ones are skipped by their table size, and the four
// dynamically sized heap object kinds fall back to the default skippers.
func ParseHeapDumpSegment(r *Reader, idSize int, handlers map[SubTag]SubTagHandler) error {
	for !r.EOF() {
		b, err := r.U8()
		if err != nil {
			return err
		}
		subTag, err := ValidateSubTag(b)
		if err != nil {
			return err
		}

		if handler, ok := handlers[subTag]; ok {
			if err := handler(r); err != nil {
				return err
			}
			continue
		}

		if size := subTag.Size(idSize); size != SizeDynamic {
			if _, err := r.Skip(size); err != nil {
				return err
			}
			continue
		}

		switch subTag {
		case SubTagClassDump:
			err = SkipClassDump(r, idSize)
		case SubTagInstanceDump:
			err = SkipInstanceDump(r, idSize)
		case SubTagObjectArrayDump:
			err = SkipObjectArrayDump(r, idSize)
		case SubTagPrimitiveArrayDump:
			err = SkipPrimitiveArrayDump(r, idSize)
		default:
			err = fmt.Errorf("unexpected dynamic %w %s (0x%02X)", ErrInvalidSubTag, subTag.Name(), uint8(subTag))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// SegmentHandler returns a TagHandler for HEAP DUMP / HEAP DUMP SEGMENT
// records. The record body is wrapped in a bounded sub-reader so that
// sub-record parsing cannot run past the declared body size; on completion
// the consumed byte count must equal the declared length exactly.
func SegmentHandler(idSize int, handlers map[SubTag]SubTagHandler) TagHandler {
	return func(r *Reader, header RecordHeader) error {
		sub, err := r.Sub(int(header.BodyByteSize))
		if err != nil {
			return err
		}
		if err := ParseHeapDumpSegment(&sub, idSize, handlers); err != nil {
			return err
		}
		if _, err := r.Skip(int(header.BodyByteSize)); err != nil {
			return err
		}
		if sub.Pos() != int(header.BodyByteSize) {
			return ErrBodySizeMismatch
		}
		return nil
	}
}
