package hprof

// Each pass below runs over the full record stream with its own copy of the
// body reader, installing handlers only for the records it materializes.
// Passes are independent and idempotent, so they can run in any order; on
// duplicate identifiers the last record wins.

// DumpSummary counts records and heap dump sub-records.
type DumpSummary struct {
	NumRecords   int
	NumSubTags   int
	TagCounts    map[Tag]int
	SubTagCounts map[SubTag]int
}

// Summarize counts every top-level tag and every sub-tag within heap dumps.
// It fully drains each heap dump segment, so it also verifies that sub-record
// consumption matches the declared body lengths across the whole file.
func Summarize(r Reader, idSize int) (DumpSummary, error) {
	summary := DumpSummary{
		TagCounts:    make(map[Tag]int),
		SubTagCounts: make(map[SubTag]int),
	}

	for !r.EOF() {
		header, err := ParseRecordHeader(&r)
		if err != nil {
			return summary, err
		}

		switch header.Tag {
		case TagHeapDump, TagHeapDumpSegment:
			sub, err := r.Sub(int(header.BodyByteSize))
			if err != nil {
				return summary, err
			}
			for !sub.EOF() {
				b, err := sub.U8()
				if err != nil {
					return summary, err
				}
				subTag, err := ValidateSubTag(b)
				if err != nil {
					return summary, err
				}
				summary.SubTagCounts[subTag]++
				summary.NumSubTags++

				if size := subTag.Size(idSize); size != SizeDynamic {
					if _, err := sub.Skip(size); err != nil {
						return summary, err
					}
					continue
				}
				switch subTag {
				case SubTagClassDump:
					err = SkipClassDump(&sub, idSize)
				case SubTagInstanceDump:
					err = SkipInstanceDump(&sub, idSize)
				case SubTagObjectArrayDump:
					err = SkipObjectArrayDump(&sub, idSize)
				case SubTagPrimitiveArrayDump:
					err = SkipPrimitiveArrayDump(&sub, idSize)
				}
				if err != nil {
					return summary, err
				}
			}
			if _, err := r.Skip(int(header.BodyByteSize)); err != nil {
				return summary, err
			}
			if sub.Pos() != int(header.BodyByteSize) {
				return summary, ErrBodySizeMismatch
			}
		default:
			if _, err := r.Skip(int(header.BodyByteSize)); err != nil {
				return summary, err
			}
		}

		summary.TagCounts[header.Tag]++
		summary.NumRecords++
	}
	return summary, nil
}

// ParseStrings materializes every STRING IN UTF8 record. String bodies are
// borrowed views into the file buffer.
func ParseStrings(r Reader, idSize int) (map[StringID]StringInUTF8, error) {
	strings := make(map[StringID]StringInUTF8)
	handlers := map[Tag]TagHandler{
		TagStringInUTF8: func(r *Reader, header RecordHeader) error {
			var s StringInUTF8
			var err error
			if s.ID, err = r.ID(idSize); err != nil {
				return err
			}
			if s.View, err = r.Skip(int(header.BodyByteSize) - idSize); err != nil {
				return err
			}
			strings[s.ID] = s
			return nil
		},
	}
	if err := ParseBody(r, handlers); err != nil {
		return nil, err
	}
	return strings, nil
}

// ParseLoadClasses materializes every LOAD CLASS record.
func ParseLoadClasses(r Reader, idSize int) (map[ClassObjectID]LoadClass, error) {
	loadClasses := make(map[ClassObjectID]LoadClass)
	handlers := map[Tag]TagHandler{
		TagLoadClass: func(r *Reader, _ RecordHeader) error {
			var c LoadClass
			var err error
			if c.ClassSerialNumber, err = r.U32(); err != nil {
				return err
			}
			if c.ClassObjectID, err = r.ID(idSize); err != nil {
				return err
			}
			if c.StackTraceSerialNumber, err = r.U32(); err != nil {
				return err
			}
			if c.NameStringID, err = r.ID(idSize); err != nil {
				return err
			}
			loadClasses[c.ClassObjectID] = c
			return nil
		},
	}
	if err := ParseBody(r, handlers); err != nil {
		return nil, err
	}
	return loadClasses, nil
}

// ParseClassDumps materializes every CLASS DUMP sub-record, including
// constants, statics and instance field declarations in order.
func ParseClassDumps(r Reader, idSize int) (map[ClassObjectID]ClassDump, error) {
	classDumps := make(map[ClassObjectID]ClassDump)
	subHandlers := map[SubTag]SubTagHandler{
		SubTagClassDump: func(r *Reader) error {
			var cd ClassDump
			var err error
			if cd.ClassObjectID, err = r.ID(idSize); err != nil {
				return err
			}
			if cd.StackTraceSerialNumber, err = r.U32(); err != nil {
				return err
			}
			if cd.SuperclassObjectID, err = r.ID(idSize); err != nil {
				return err
			}
			if cd.ClassLoaderObjectID, err = r.ID(idSize); err != nil {
				return err
			}
			if cd.SignersObjectID, err = r.ID(idSize); err != nil {
				return err
			}
			if cd.ProtectionDomainObjectID, err = r.ID(idSize); err != nil {
				return err
			}
			if _, err = r.Skip(idSize * 2); err != nil { // reserved
				return err
			}
			if cd.InstanceSizeBytes, err = r.U32(); err != nil {
				return err
			}

			nConstants, err := r.U16()
			if err != nil {
				return err
			}
			for i := 0; i < int(nConstants); i++ {
				var c Constant
				if c.PoolIndex, err = r.U16(); err != nil {
					return err
				}
				if c.Type, err = readBasicType(r); err != nil {
					return err
				}
				if c.Value, err = r.ID(c.Type.Size()); err != nil {
					return err
				}
				cd.Constants = append(cd.Constants, c)
			}

			nStatics, err := r.U16()
			if err != nil {
				return err
			}
			for i := 0; i < int(nStatics); i++ {
				var s Static
				if s.NameStringID, err = r.ID(idSize); err != nil {
					return err
				}
				if s.Type, err = readBasicType(r); err != nil {
					return err
				}
				if s.Value, err = r.ID(s.Type.Size()); err != nil {
					return err
				}
				cd.Statics = append(cd.Statics, s)
			}

			nFields, err := r.U16()
			if err != nil {
				return err
			}
			for i := 0; i < int(nFields); i++ {
				var f Field
				if f.NameStringID, err = r.ID(idSize); err != nil {
					return err
				}
				if f.Type, err = readBasicType(r); err != nil {
					return err
				}
				cd.Fields = append(cd.Fields, f)
			}

			classDumps[cd.ClassObjectID] = cd
			return nil
		},
	}
	if err := parseAllSegments(r, idSize, subHandlers); err != nil {
		return nil, err
	}
	return classDumps, nil
}

// CountInstances counts INSTANCE DUMP sub-records per class.
func CountInstances(r Reader, idSize int) (map[ClassObjectID]int, error) {
	counts := make(map[ClassObjectID]int)
	subHandlers := map[SubTag]SubTagHandler{
		SubTagInstanceDump: func(r *Reader) error {
			if _, err := r.Skip(idSize + 4); err != nil {
				return err
			}
			classObjectID, err := r.ID(idSize)
			if err != nil {
				return err
			}
			counts[classObjectID]++
			fieldsSize, err := r.U32()
			if err != nil {
				return err
			}
			_, err = r.Skip(int(fieldsSize))
			return err
		},
	}
	if err := parseAllSegments(r, idSize, subHandlers); err != nil {
		return nil, err
	}
	return counts, nil
}

// parseInstanceDump reads one INSTANCE DUMP sub-record body. The field bytes
// are retained as a borrowed view and decoded later against the class layout.
func parseInstanceDump(r *Reader, idSize int) (InstanceDump, error) {
	var i InstanceDump
	var err error
	if i.ObjectID, err = r.ID(idSize); err != nil {
		return i, err
	}
	if i.StackTraceSerialNumber, err = r.U32(); err != nil {
		return i, err
	}
	if i.ClassObjectID, err = r.ID(idSize); err != nil {
		return i, err
	}
	fieldsSize, err := r.U32()
	if err != nil {
		return i, err
	}
	if i.FieldsView, err = r.Skip(int(fieldsSize)); err != nil {
		return i, err
	}
	return i, nil
}

// ParseInstanceDumps materializes every INSTANCE DUMP sub-record.
func ParseInstanceDumps(r Reader, idSize int) (map[ObjectID]InstanceDump, error) {
	instances := make(map[ObjectID]InstanceDump)
	subHandlers := map[SubTag]SubTagHandler{
		SubTagInstanceDump: func(r *Reader) error {
			i, err := parseInstanceDump(r, idSize)
			if err != nil {
				return err
			}
			instances[i.ObjectID] = i
			return nil
		},
	}
	if err := parseAllSegments(r, idSize, subHandlers); err != nil {
		return nil, err
	}
	return instances, nil
}

// ParseAllInstanceLocations records, keyed by object ID, the offset within
// its segment body at which each INSTANCE DUMP sub-record body starts (just
// past the sub-tag byte).
func ParseAllInstanceLocations(r Reader, idSize int) (map[ObjectID]int, error) {
	locations := make(map[ObjectID]int)
	subHandlers := map[SubTag]SubTagHandler{
		SubTagInstanceDump: func(r *Reader) error {
			location := r.Pos()
			objectID, err := r.ID(idSize)
			if err != nil {
				return err
			}
			locations[objectID] = location
			if _, err := r.Skip(4 + idSize); err != nil {
				return err
			}
			fieldsSize, err := r.U32()
			if err != nil {
				return err
			}
			_, err = r.Skip(int(fieldsSize))
			return err
		},
	}
	if err := parseAllSegments(r, idSize, subHandlers); err != nil {
		return nil, err
	}
	return locations, nil
}

// ParseClassInstances materializes only the INSTANCE DUMP sub-records whose
// class matches target.
func ParseClassInstances(r Reader, idSize int, target ClassObjectID) (map[ObjectID]InstanceDump, error) {
	instances := make(map[ObjectID]InstanceDump)
	subHandlers := map[SubTag]SubTagHandler{
		SubTagInstanceDump: func(r *Reader) error {
			i, err := parseInstanceDump(r, idSize)
			if err != nil {
				return err
			}
			if i.ClassObjectID == target {
				instances[i.ObjectID] = i
			}
			return nil
		},
	}
	if err := parseAllSegments(r, idSize, subHandlers); err != nil {
		return nil, err
	}
	return instances, nil
}

// ParseObjectArrayDumps materializes every OBJECT ARRAY DUMP sub-record.
func ParseObjectArrayDumps(r Reader, idSize int) (map[ArrayObjectID]ObjectArrayDump, error) {
	objectArrays := make(map[ArrayObjectID]ObjectArrayDump)
	subHandlers := map[SubTag]SubTagHandler{
		SubTagObjectArrayDump: func(r *Reader) error {
			var a ObjectArrayDump
			var err error
			if a.ArrayObjectID, err = r.ID(idSize); err != nil {
				return err
			}
			if a.StackTraceSerialNumber, err = r.U32(); err != nil {
				return err
			}
			if a.NumberOfElements, err = r.U32(); err != nil {
				return err
			}
			if a.ArrayClassObjectID, err = r.ID(arrayClassIDSize); err != nil {
				return err
			}
			if a.ElementsView, err = r.Skip(idSize * int(a.NumberOfElements)); err != nil {
				return err
			}
			objectArrays[a.ArrayObjectID] = a
			return nil
		},
	}
	if err := parseAllSegments(r, idSize, subHandlers); err != nil {
		return nil, err
	}
	return objectArrays, nil
}

// ParsePrimitiveArrayDumps materializes every PRIMITIVE ARRAY DUMP sub-record.
func ParsePrimitiveArrayDumps(r Reader, idSize int) (map[ArrayObjectID]PrimitiveArrayDump, error) {
	primitiveArrays := make(map[ArrayObjectID]PrimitiveArrayDump)
	subHandlers := map[SubTag]SubTagHandler{
		SubTagPrimitiveArrayDump: func(r *Reader) error {
			var a PrimitiveArrayDump
			var err error
			if a.ArrayObjectID, err = r.ID(idSize); err != nil {
				return err
			}
			if a.StackTraceSerialNumber, err = r.U32(); err != nil {
				return err
			}
			if a.NumberOfElements, err = r.U32(); err != nil {
				return err
			}
			if a.ElementType, err = readBasicType(r); err != nil {
				return err
			}
			if a.ElementsView, err = r.Skip(a.ElementType.Size() * int(a.NumberOfElements)); err != nil {
				return err
			}
			primitiveArrays[a.ArrayObjectID] = a
			return nil
		},
	}
	if err := parseAllSegments(r, idSize, subHandlers); err != nil {
		return nil, err
	}
	return primitiveArrays, nil
}

// ParseStackFrames materializes every STACK FRAME record.
func ParseStackFrames(r Reader, idSize int) (map[StackFrameID]StackFrame, error) {
	frames := make(map[StackFrameID]StackFrame)
	handlers := map[Tag]TagHandler{
		TagStackFrame: func(r *Reader, _ RecordHeader) error {
			var f StackFrame
			var err error
			if f.StackFrameID, err = r.ID(idSize); err != nil {
				return err
			}
			if f.MethodNameStringID, err = r.ID(idSize); err != nil {
				return err
			}
			if f.MethodSignatureStringID, err = r.ID(idSize); err != nil {
				return err
			}
			if f.SourceFileNameStringID, err = r.ID(idSize); err != nil {
				return err
			}
			if f.ClassSerialNumber, err = r.U32(); err != nil {
				return err
			}
			if f.LineNumber, err = r.I32(); err != nil {
				return err
			}
			frames[f.StackFrameID] = f
			return nil
		},
	}
	if err := ParseBody(r, handlers); err != nil {
		return nil, err
	}
	return frames, nil
}

// ParseStackTraces materializes every STACK TRACE record.
func ParseStackTraces(r Reader, idSize int) (map[StackTraceSerialNumber]StackTrace, error) {
	traces := make(map[StackTraceSerialNumber]StackTrace)
	handlers := map[Tag]TagHandler{
		TagStackTrace: func(r *Reader, _ RecordHeader) error {
			var t StackTrace
			var err error
			if t.StackTraceSerialNumber, err = r.U32(); err != nil {
				return err
			}
			if t.ThreadSerialNumber, err = r.U32(); err != nil {
				return err
			}
			nFrames, err := r.U32()
			if err != nil {
				return err
			}
			for i := 0; i < int(nFrames); i++ {
				frameID, err := r.ID(idSize)
				if err != nil {
					return err
				}
				t.StackFrames = append(t.StackFrames, frameID)
			}
			traces[t.StackTraceSerialNumber] = t
			return nil
		},
	}
	if err := ParseBody(r, handlers); err != nil {
		return nil, err
	}
	return traces, nil
}

// parseAllSegments runs the given sub-record handlers over every HEAP DUMP
// and HEAP DUMP SEGMENT record in the stream.
func parseAllSegments(r Reader, idSize int, subHandlers map[SubTag]SubTagHandler) error {
	segmentHandler := SegmentHandler(idSize, subHandlers)
	return ParseBody(r, map[Tag]TagHandler{
		TagHeapDump:        segmentHandler,
		TagHeapDumpSegment: segmentHandler,
	})
}
