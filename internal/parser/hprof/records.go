package hprof

// ID is a raw 64-bit object identifier. The file's identifier size (1..8
// bytes) is declared once in the header; narrower identifiers are
// zero-extended on read. An ID of zero is null.
type ID = uint64

// Value is a 64-bit lane holding a field or constant value; the accompanying
// BasicType determines its interpretation.
type Value = uint64

// Kinded identifier aliases. The kinds are disjoint at the semantic level but
// drawn from the same 64-bit space; kind is determined by membership in the
// relevant map, not by bit pattern.
type (
	StringID               = ID
	ClassObjectID          = ID
	ObjectID               = ID
	ArrayObjectID          = ID
	StackFrameID           = ID
	StackTraceSerialNumber = uint32
)

// IsNull reports whether an identifier is the null sentinel.
func IsNull(id ID) bool {
	return id == 0
}

// DumpHeader is the fixed header following the format magic.
type DumpHeader struct {
	IdentifierSize uint32
	Millis         uint64
}

// RecordHeader frames one top-level record.
type RecordHeader struct {
	Tag          Tag
	Micros       uint32
	BodyByteSize uint32
}

// StringInUTF8 is a STRING IN UTF8 record. View borrows from the file buffer.
type StringInUTF8 struct {
	ID   StringID
	View []byte
}

// LoadClass is a LOAD CLASS record.
type LoadClass struct {
	ClassSerialNumber      uint32
	ClassObjectID          ClassObjectID
	StackTraceSerialNumber uint32
	NameStringID           StringID
}

// Constant is one constant pool entry of a class dump.
type Constant struct {
	PoolIndex uint16
	Type      BasicType
	Value     Value
}

// Static is one static field of a class dump, with its value.
type Static struct {
	NameStringID StringID
	Type         BasicType
	Value        Value
}

// Field is one instance field declaration of a class dump. Declaration order
// is significant: instance payloads are decoded by walking the fields of the
// class and then of each superclass, in order.
type Field struct {
	NameStringID StringID
	Type         BasicType
}

// ClassDump is a CLASS DUMP sub-record.
type ClassDump struct {
	ClassObjectID            ClassObjectID
	StackTraceSerialNumber   uint32
	SuperclassObjectID       ClassObjectID
	ClassLoaderObjectID      ID
	SignersObjectID          ID
	ProtectionDomainObjectID ID
	InstanceSizeBytes        uint32
	Constants                []Constant
	Statics                  []Static
	Fields                   []Field
}

// InstanceDump is an INSTANCE DUMP sub-record. FieldsView borrows the raw
// field bytes from the file buffer; they are decoded on demand against the
// class hierarchy's field layout.
type InstanceDump struct {
	ObjectID               ObjectID
	StackTraceSerialNumber uint32
	ClassObjectID          ClassObjectID
	FieldsView             []byte
}

// arrayClassIDSize is the encoded width of ObjectArrayDump.ArrayClassObjectID.
// It is a fixed 8 bytes, independent of the file's identifier size; the parse
// and skip paths both read it at this width.
const arrayClassIDSize = 8

// ObjectArrayDump is an OBJECT ARRAY DUMP sub-record. ElementsView holds
// NumberOfElements identifiers of the file's identifier width.
type ObjectArrayDump struct {
	ArrayObjectID          ArrayObjectID
	StackTraceSerialNumber StackTraceSerialNumber
	NumberOfElements       uint32
	ArrayClassObjectID     ID
	ElementsView           []byte
}

// PrimitiveArrayDump is a PRIMITIVE ARRAY DUMP sub-record. ElementsView holds
// NumberOfElements values of ElementType.Size() bytes each.
type PrimitiveArrayDump struct {
	ArrayObjectID          ArrayObjectID
	StackTraceSerialNumber StackTraceSerialNumber
	NumberOfElements       uint32
	ElementType            BasicType
	ElementsView           []byte
}

// StackFrame is a STACK FRAME record. Line numbers <= 0 encode special
// values (unknown, compiled, native).
type StackFrame struct {
	StackFrameID            StackFrameID
	MethodNameStringID      StringID
	MethodSignatureStringID StringID
	SourceFileNameStringID  StringID
	ClassSerialNumber       uint32
	LineNumber              int32
}

// StackTrace is a STACK TRACE record.
type StackTrace struct {
	StackTraceSerialNumber StackTraceSerialNumber
	ThreadSerialNumber     uint32
	StackFrames            []StackFrameID
}
