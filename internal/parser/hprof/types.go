// Package hprof parses JVM heap dump files in the HPROF binary format
// ("JAVA PROFILE 1.0.2"). The format is a self-describing stream of tagged
// records; HEAP_DUMP and HEAP_DUMP_SEGMENT record bodies are themselves
// streams of tagged sub-records. Records are parsed in independent passes
// because HPROF does not guarantee record ordering.
package hprof

import "fmt"

// Tag identifies a top-level record kind.
type Tag uint8

const (
	TagStringInUTF8    Tag = 0x01
	TagLoadClass       Tag = 0x02
	TagUnloadClass     Tag = 0x03
	TagStackFrame      Tag = 0x04
	TagStackTrace      Tag = 0x05
	TagAllocSites      Tag = 0x06
	TagHeapSummary     Tag = 0x07
	TagStartThread     Tag = 0x0A
	TagEndThread       Tag = 0x0B
	TagHeapDump        Tag = 0x0C
	TagCPUSamples      Tag = 0x0D
	TagControlSettings Tag = 0x0E
	TagHeapDumpSegment Tag = 0x1C
	TagHeapDumpEnd     Tag = 0x2C
)

// ValidateTag checks a raw tag byte against the known set.
func ValidateTag(b uint8) (Tag, error) {
	t := Tag(b)
	switch t {
	case TagStringInUTF8, TagLoadClass, TagUnloadClass, TagStackFrame,
		TagStackTrace, TagAllocSites, TagHeapSummary, TagStartThread,
		TagEndThread, TagHeapDump, TagCPUSamples, TagControlSettings,
		TagHeapDumpSegment, TagHeapDumpEnd:
		return t, nil
	}
	return 0, fmt.Errorf("%w 0x%02X", ErrInvalidTag, b)
}

// Name returns a human-readable name for the tag.
func (t Tag) Name() string {
	switch t {
	case TagStringInUTF8:
		return "STRING IN UTF8"
	case TagLoadClass:
		return "LOAD CLASS"
	case TagUnloadClass:
		return "UNLOAD CLASS"
	case TagStackFrame:
		return "STACK FRAME"
	case TagStackTrace:
		return "STACK TRACE"
	case TagAllocSites:
		return "ALLOC SITES"
	case TagHeapSummary:
		return "HEAP SUMMARY"
	case TagStartThread:
		return "START THREAD"
	case TagEndThread:
		return "END THREAD"
	case TagHeapDump:
		return "HEAP DUMP"
	case TagCPUSamples:
		return "CPU SAMPLES"
	case TagControlSettings:
		return "CONTROL SETTINGS"
	case TagHeapDumpSegment:
		return "HEAP DUMP SEGMENT"
	case TagHeapDumpEnd:
		return "HEAP DUMP END"
	}
	return fmt.Sprintf("UNKNOWN TAG 0x%02X", uint8(t))
}

// SubTag identifies a sub-record kind inside a heap dump body.
type SubTag uint8

const (
	SubTagRootUnknown        SubTag = 0xFF
	SubTagRootJNIGlobal      SubTag = 0x01
	SubTagRootJNILocal       SubTag = 0x02
	SubTagRootJavaFrame      SubTag = 0x03
	SubTagRootNativeStack    SubTag = 0x04
	SubTagRootStickyClass    SubTag = 0x05
	SubTagRootThreadBlock    SubTag = 0x06
	SubTagRootMonitorUsed    SubTag = 0x07
	SubTagRootThreadObject   SubTag = 0x08
	SubTagClassDump          SubTag = 0x20
	SubTagInstanceDump       SubTag = 0x21
	SubTagObjectArrayDump    SubTag = 0x22
	SubTagPrimitiveArrayDump SubTag = 0x23
)

// ValidateSubTag checks a raw sub-tag byte against the known set.
func ValidateSubTag(b uint8) (SubTag, error) {
	st := SubTag(b)
	switch st {
	case SubTagRootUnknown, SubTagRootJNIGlobal, SubTagRootJNILocal,
		SubTagRootJavaFrame, SubTagRootNativeStack, SubTagRootStickyClass,
		SubTagRootThreadBlock, SubTagRootMonitorUsed, SubTagRootThreadObject,
		SubTagClassDump, SubTagInstanceDump, SubTagObjectArrayDump,
		SubTagPrimitiveArrayDump:
		return st, nil
	}
	return 0, fmt.Errorf("%w 0x%02X", ErrInvalidSubTag, b)
}

// Name returns a human-readable name for the sub-tag.
func (st SubTag) Name() string {
	switch st {
	case SubTagRootUnknown:
		return "ROOT UNKNOWN"
	case SubTagRootJNIGlobal:
		return "ROOT JNI GLOBAL"
	case SubTagRootJNILocal:
		return "ROOT JNI LOCAL"
	case SubTagRootJavaFrame:
		return "ROOT JAVA FRAME"
	case SubTagRootNativeStack:
		return "ROOT NATIVE STACK"
	case SubTagRootStickyClass:
		return "ROOT STICKY CLASS"
	case SubTagRootThreadBlock:
		return "ROOT THREAD BLOCK"
	case SubTagRootMonitorUsed:
		return "ROOT MONITOR USED"
	case SubTagRootThreadObject:
		return "ROOT THREAD OBJECT"
	case SubTagClassDump:
		return "CLASS DUMP"
	case SubTagInstanceDump:
		return "INSTANCE DUMP"
	case SubTagObjectArrayDump:
		return "OBJECT ARRAY DUMP"
	case SubTagPrimitiveArrayDump:
		return "PRIMITIVE ARRAY DUMP"
	}
	return fmt.Sprintf("UNKNOWN SUB-TAG 0x%02X", uint8(st))
}

// SizeDynamic marks sub-records whose body size depends on their content.
const SizeDynamic = -1

// Size returns the body size in bytes of a statically sized sub-record, given
// the file's identifier size, or SizeDynamic for the four heap object kinds.
func (st SubTag) Size(idSize int) int {
	switch st {
	case SubTagRootUnknown:
		return idSize
	case SubTagRootJNIGlobal:
		return idSize * 2
	case SubTagRootJNILocal:
		return idSize + 8
	case SubTagRootJavaFrame:
		return idSize + 8
	case SubTagRootNativeStack:
		return idSize + 4
	case SubTagRootStickyClass:
		return idSize
	case SubTagRootThreadBlock:
		return idSize + 4
	case SubTagRootMonitorUsed:
		return idSize
	case SubTagRootThreadObject:
		return idSize + 8
	}
	return SizeDynamic
}

// BasicType identifies a JVM primitive (or object reference) value type.
type BasicType uint8

const (
	TypeObject  BasicType = 0x02
	TypeBoolean BasicType = 0x04
	TypeChar    BasicType = 0x05
	TypeFloat   BasicType = 0x06
	TypeDouble  BasicType = 0x07
	TypeByte    BasicType = 0x08
	TypeShort   BasicType = 0x09
	TypeInt     BasicType = 0x0A
	TypeLong    BasicType = 0x0B
)

// ValidateBasicType checks a raw type byte against the known set.
func ValidateBasicType(b uint8) (BasicType, error) {
	t := BasicType(b)
	switch t {
	case TypeObject, TypeBoolean, TypeChar, TypeFloat, TypeDouble,
		TypeByte, TypeShort, TypeInt, TypeLong:
		return t, nil
	}
	return 0, fmt.Errorf("%w 0x%02X", ErrInvalidBasicType, b)
}

// Name returns the Java name of the basic type.
func (t BasicType) Name() string {
	switch t {
	case TypeObject:
		return "object"
	case TypeBoolean:
		return "boolean"
	case TypeChar:
		return "char"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	case TypeByte:
		return "byte"
	case TypeShort:
		return "short"
	case TypeInt:
		return "int"
	case TypeLong:
		return "long"
	}
	return fmt.Sprintf("unknown type 0x%02X", uint8(t))
}

// Size returns the encoded width in bytes of a value of this type. Object
// references inside instance payloads and class dump values occupy 8 bytes in
// the format variant supported here, regardless of the identifier size.
func (t BasicType) Size() int {
	switch t {
	case TypeObject:
		return 8
	case TypeBoolean, TypeByte:
		return 1
	case TypeChar, TypeShort:
		return 2
	case TypeFloat, TypeInt:
		return 4
	case TypeDouble, TypeLong:
		return 8
	}
	return 0
}
