// Package testutil provides builders for synthetic HPROF dumps used in tests.
package testutil

import (
	"bytes"
	"encoding/binary"
)

// Tag and sub-tag codes, duplicated here so fixtures do not depend on the
// parser under test.
const (
	TagString          = 0x01
	TagLoadClass       = 0x02
	TagStackFrame      = 0x04
	TagStackTrace      = 0x05
	TagHeapDump        = 0x0C
	TagHeapDumpSegment = 0x1C

	SubTagRootUnknown        = 0xFF
	SubTagRootThreadObject   = 0x08
	SubTagClassDump          = 0x20
	SubTagInstanceDump       = 0x21
	SubTagObjectArrayDump    = 0x22
	SubTagPrimitiveArrayDump = 0x23

	TypeObject  = 0x02
	TypeBoolean = 0x04
	TypeInt     = 0x0A
)

// Magic is the header every synthetic dump starts with.
const Magic = "JAVA PROFILE 1.0.2"

// DumpBuilder assembles a synthetic HPROF byte stream: magic, dump header,
// then records appended by the fixture.
type DumpBuilder struct {
	buf    bytes.Buffer
	idSize int
}

// NewDumpBuilder starts a dump with the given identifier size and a zero
// timestamp.
func NewDumpBuilder(idSize int) *DumpBuilder {
	b := &DumpBuilder{idSize: idSize}
	b.buf.WriteString(Magic)
	b.buf.WriteByte(0)
	b.u32(uint32(idSize))
	b.u64(0) // millis
	return b
}

// Bytes returns the assembled dump.
func (b *DumpBuilder) Bytes() []byte {
	return b.buf.Bytes()
}

// Record appends one top-level record with micros = 0.
func (b *DumpBuilder) Record(tag uint8, body []byte) *DumpBuilder {
	b.buf.WriteByte(tag)
	b.u32(0)
	b.u32(uint32(len(body)))
	b.buf.Write(body)
	return b
}

// StringRecord appends a STRING IN UTF8 record.
func (b *DumpBuilder) StringRecord(id uint64, s string) *DumpBuilder {
	body := b.enc()
	body.id(id)
	body.WriteString(s)
	return b.Record(TagString, body.Bytes())
}

// LoadClassRecord appends a LOAD CLASS record.
func (b *DumpBuilder) LoadClassRecord(serial uint32, classID uint64, stackTraceSerial uint32, nameID uint64) *DumpBuilder {
	body := b.enc()
	body.u32(serial)
	body.id(classID)
	body.u32(stackTraceSerial)
	body.id(nameID)
	return b.Record(TagLoadClass, body.Bytes())
}

// StackFrameRecord appends a STACK FRAME record.
func (b *DumpBuilder) StackFrameRecord(frameID, methodNameID, signatureID, sourceFileID uint64, classSerial uint32, lineNumber int32) *DumpBuilder {
	body := b.enc()
	body.id(frameID)
	body.id(methodNameID)
	body.id(signatureID)
	body.id(sourceFileID)
	body.u32(classSerial)
	body.u32(uint32(lineNumber))
	return b.Record(TagStackFrame, body.Bytes())
}

// StackTraceRecord appends a STACK TRACE record.
func (b *DumpBuilder) StackTraceRecord(serial, threadSerial uint32, frameIDs ...uint64) *DumpBuilder {
	body := b.enc()
	body.u32(serial)
	body.u32(threadSerial)
	body.u32(uint32(len(frameIDs)))
	for _, id := range frameIDs {
		body.id(id)
	}
	return b.Record(TagStackTrace, body.Bytes())
}

// HeapDump appends one HEAP DUMP record whose body is the concatenation of
// the given sub-records.
func (b *DumpBuilder) HeapDump(subRecords ...[]byte) *DumpBuilder {
	return b.Record(TagHeapDump, bytes.Join(subRecords, nil))
}

// HeapDumpSegment appends one HEAP DUMP SEGMENT record.
func (b *DumpBuilder) HeapDumpSegment(subRecords ...[]byte) *DumpBuilder {
	return b.Record(TagHeapDumpSegment, bytes.Join(subRecords, nil))
}

// FieldSpec declares one instance field of a synthetic class.
type FieldSpec struct {
	NameID uint64
	Type   uint8
}

// ClassDump builds a CLASS DUMP sub-record without constants or statics.
func (b *DumpBuilder) ClassDump(classID, superclassID uint64, fields ...FieldSpec) []byte {
	e := b.enc()
	e.WriteByte(SubTagClassDump)
	e.id(classID)
	e.u32(0) // stack trace serial
	e.id(superclassID)
	e.id(0) // class loader
	e.id(0) // signers
	e.id(0) // protection domain
	e.id(0) // reserved
	e.id(0) // reserved
	e.u32(0) // instance size
	e.u16(0) // constants
	e.u16(0) // statics
	e.u16(uint16(len(fields)))
	for _, f := range fields {
		e.id(f.NameID)
		e.WriteByte(f.Type)
	}
	return e.Bytes()
}

// InstanceDump builds an INSTANCE DUMP sub-record with raw field bytes.
func (b *DumpBuilder) InstanceDump(objectID, classID uint64, fieldBytes []byte) []byte {
	e := b.enc()
	e.WriteByte(SubTagInstanceDump)
	e.id(objectID)
	e.u32(0) // stack trace serial
	e.id(classID)
	e.u32(uint32(len(fieldBytes)))
	e.Write(fieldBytes)
	return e.Bytes()
}

// ObjectArrayDump builds an OBJECT ARRAY DUMP sub-record. The array class ID
// occupies a fixed 8-byte slot; elements use the identifier size.
func (b *DumpBuilder) ObjectArrayDump(arrayID, arrayClassID uint64, elementIDs ...uint64) []byte {
	e := b.enc()
	e.WriteByte(SubTagObjectArrayDump)
	e.id(arrayID)
	e.u32(0) // stack trace serial
	e.u32(uint32(len(elementIDs)))
	e.u64(arrayClassID)
	for _, id := range elementIDs {
		e.id(id)
	}
	return e.Bytes()
}

// PrimitiveArrayDump builds a PRIMITIVE ARRAY DUMP sub-record from raw
// element bytes; count is the declared element count.
func (b *DumpBuilder) PrimitiveArrayDump(arrayID uint64, elementType uint8, count uint32, elementBytes []byte) []byte {
	e := b.enc()
	e.WriteByte(SubTagPrimitiveArrayDump)
	e.id(arrayID)
	e.u32(0) // stack trace serial
	e.u32(count)
	e.WriteByte(elementType)
	e.Write(elementBytes)
	return e.Bytes()
}

// RootUnknown builds a ROOT UNKNOWN sub-record.
func (b *DumpBuilder) RootUnknown(objectID uint64) []byte {
	e := b.enc()
	e.WriteByte(SubTagRootUnknown)
	e.id(objectID)
	return e.Bytes()
}

// ObjectValue encodes an object reference as it appears inside an instance
// payload: a fixed 8-byte big-endian slot.
func ObjectValue(id uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return buf[:]
}

// IntValue encodes an int32 field value.
func IntValue(v int32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v))
	return buf[:]
}

// BoolValue encodes a boolean field value.
func BoolValue(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

// enc is a byte-stream encoder carrying the dump's identifier size.
type enc struct {
	bytes.Buffer
	idSize int
}

func (b *DumpBuilder) enc() *enc {
	return &enc{idSize: b.idSize}
}

func (e *enc) u16(v uint16) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	e.Write(buf[:])
}

func (e *enc) u32(v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	e.Write(buf[:])
}

func (e *enc) u64(v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	e.Write(buf[:])
}

// id writes v in the dump's identifier width, big-endian.
func (e *enc) id(v uint64) {
	for i := e.idSize - 1; i >= 0; i-- {
		e.WriteByte(byte(v >> (8 * i)))
	}
}

func (b *DumpBuilder) u32(v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	b.buf.Write(buf[:])
}

func (b *DumpBuilder) u64(v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	b.buf.Write(buf[:])
}
