// Package heap materializes a parsed HPROF stream into an in-memory view of
// the dumped heap and exposes typed lookups over it: string resolution, class
// hierarchy walks, lazy instance field decoding and identifier kind
// discrimination.
package heap

import (
	"errors"
	"fmt"

	"github.com/hprof-analysis/internal/parser/hprof"
)

var (
	// ErrFieldNotFound is returned when a requested field is absent from an
	// instance's class hierarchy.
	ErrFieldNotFound = errors.New("field not found")

	// ErrUnknownObject is returned when an identifier cannot be resolved in
	// any object map.
	ErrUnknownObject = errors.New("unknown object")

	// ErrFieldLayoutMismatch is returned when decoding an instance's fields
	// through its class hierarchy does not consume its payload exactly.
	ErrFieldLayoutMismatch = errors.New("instance field bytes do not match class layout")
)

// Snapshot owns the maps produced by the parse passes and the identifier
// size they were parsed with. All views borrow from the file buffer, which
// must outlive the snapshot.
type Snapshot struct {
	IdentifierSize int

	Strings             map[hprof.StringID]hprof.StringInUTF8
	LoadClasses         map[hprof.ClassObjectID]hprof.LoadClass
	ClassDumps          map[hprof.ClassObjectID]hprof.ClassDump
	ClassInstanceCounts map[hprof.ClassObjectID]int
	Instances           map[hprof.ObjectID]hprof.InstanceDump
	ObjectArrays        map[hprof.ArrayObjectID]hprof.ObjectArrayDump
	PrimitiveArrays     map[hprof.ArrayObjectID]hprof.PrimitiveArrayDump
	StackFrames         map[hprof.StackFrameID]hprof.StackFrame
	StackTraces         map[hprof.StackTraceSerialNumber]hprof.StackTrace
}

// Build runs every materializing pass over the record stream and assembles
// the snapshot. Each pass receives its own copy of the body reader, so record
// ordering in the file does not matter.
func Build(body hprof.Reader, idSize int) (*Snapshot, error) {
	s := &Snapshot{IdentifierSize: idSize}
	var err error

	if s.Strings, err = hprof.ParseStrings(body, idSize); err != nil {
		return nil, fmt.Errorf("parse strings: %w", err)
	}
	if s.ClassDumps, err = hprof.ParseClassDumps(body, idSize); err != nil {
		return nil, fmt.Errorf("parse class dumps: %w", err)
	}
	if s.ClassInstanceCounts, err = hprof.CountInstances(body, idSize); err != nil {
		return nil, fmt.Errorf("count instances: %w", err)
	}
	if s.LoadClasses, err = hprof.ParseLoadClasses(body, idSize); err != nil {
		return nil, fmt.Errorf("parse load classes: %w", err)
	}
	if s.Instances, err = hprof.ParseInstanceDumps(body, idSize); err != nil {
		return nil, fmt.Errorf("parse instance dumps: %w", err)
	}
	if s.ObjectArrays, err = hprof.ParseObjectArrayDumps(body, idSize); err != nil {
		return nil, fmt.Errorf("parse object arrays: %w", err)
	}
	if s.PrimitiveArrays, err = hprof.ParsePrimitiveArrayDumps(body, idSize); err != nil {
		return nil, fmt.Errorf("parse primitive arrays: %w", err)
	}
	if s.StackFrames, err = hprof.ParseStackFrames(body, idSize); err != nil {
		return nil, fmt.Errorf("parse stack frames: %w", err)
	}
	if s.StackTraces, err = hprof.ParseStackTraces(body, idSize); err != nil {
		return nil, fmt.Errorf("parse stack traces: %w", err)
	}
	return s, nil
}

// IDKind discriminates what a raw identifier refers to.
type IDKind int

const (
	KindNull IDKind = iota
	KindClass
	KindObject
	KindObjectArray
	KindPrimitiveArray
	KindUnknown
)

// KindOf resolves an identifier against the object maps. Kind is determined
// by map membership; the bit pattern alone carries no kind information.
func (s *Snapshot) KindOf(id hprof.ID) IDKind {
	switch {
	case hprof.IsNull(id):
		return KindNull
	case s.IsObjectID(id):
		return KindObject
	case s.IsClassObjectID(id):
		return KindClass
	case s.IsObjectArrayID(id):
		return KindObjectArray
	case s.IsPrimitiveArrayID(id):
		return KindPrimitiveArray
	}
	return KindUnknown
}

// IsClassObjectID reports whether id refers to a dumped class.
func (s *Snapshot) IsClassObjectID(id hprof.ID) bool {
	_, ok := s.ClassDumps[id]
	return ok
}

// IsObjectID reports whether id refers to a dumped instance.
func (s *Snapshot) IsObjectID(id hprof.ID) bool {
	_, ok := s.Instances[id]
	return ok
}

// IsObjectArrayID reports whether id refers to a dumped object array.
func (s *Snapshot) IsObjectArrayID(id hprof.ID) bool {
	_, ok := s.ObjectArrays[id]
	return ok
}

// IsPrimitiveArrayID reports whether id refers to a dumped primitive array.
func (s *Snapshot) IsPrimitiveArrayID(id hprof.ID) bool {
	_, ok := s.PrimitiveArrays[id]
	return ok
}

// StringView resolves a string ID to its UTF-8 contents.
func (s *Snapshot) StringView(id hprof.StringID) (string, error) {
	str, ok := s.Strings[id]
	if !ok {
		return "", fmt.Errorf("%w: string id 0x%x", ErrUnknownObject, id)
	}
	return string(str.View), nil
}

// ClassName resolves a class object ID to its loaded name.
func (s *Snapshot) ClassName(id hprof.ClassObjectID) (string, error) {
	lc, ok := s.LoadClasses[id]
	if !ok {
		return "", fmt.Errorf("%w: class object id 0x%x", ErrUnknownObject, id)
	}
	return s.StringView(lc.NameStringID)
}

// ForEachSuperclass invokes f on the class and then on each superclass,
// walking up until the null superclass.
func (s *Snapshot) ForEachSuperclass(id hprof.ClassObjectID, f func(hprof.ClassDump) error) error {
	for !hprof.IsNull(id) {
		cd, ok := s.ClassDumps[id]
		if !ok {
			return fmt.Errorf("%w: class object id 0x%x", ErrUnknownObject, id)
		}
		if err := f(cd); err != nil {
			return err
		}
		id = cd.SuperclassObjectID
	}
	return nil
}

// ForEachClassField invokes f on every instance field declared by the class
// and its superclasses, own fields first.
func (s *Snapshot) ForEachClassField(id hprof.ClassObjectID, f func(hprof.Field) error) error {
	return s.ForEachSuperclass(id, func(cd hprof.ClassDump) error {
		for _, field := range cd.Fields {
			if err := f(field); err != nil {
				return err
			}
		}
		return nil
	})
}

// ForEachField decodes an instance's field payload in declaration order
// across the class hierarchy and invokes f with each field and its value.
// The payload must be consumed exactly by the hierarchy's field layout.
func (s *Snapshot) ForEachField(id hprof.ObjectID, f func(hprof.Field, hprof.Value) error) error {
	instance, ok := s.Instances[id]
	if !ok {
		return fmt.Errorf("%w: object id 0x%x", ErrUnknownObject, id)
	}
	fields := hprof.NewReader(instance.FieldsView)
	err := s.ForEachClassField(instance.ClassObjectID, func(field hprof.Field) error {
		value, err := fields.ID(field.Type.Size())
		if err != nil {
			return fmt.Errorf("%w: object id 0x%x: %v", ErrFieldLayoutMismatch, id, err)
		}
		return f(field, value)
	})
	if err != nil {
		return err
	}
	if !fields.EOF() {
		return fmt.Errorf("%w: object id 0x%x: %d bytes left over", ErrFieldLayoutMismatch, id, fields.Remaining())
	}
	return nil
}

// errStopIteration aborts a field walk early once a match is found.
var errStopIteration = errors.New("stop iteration")

// FieldValue returns the value of the first field in the instance's class
// hierarchy whose name matches.
func (s *Snapshot) FieldValue(id hprof.ObjectID, name string) (hprof.Value, error) {
	var value hprof.Value
	found := false
	err := s.ForEachField(id, func(f hprof.Field, v hprof.Value) error {
		fieldName, err := s.StringView(f.NameStringID)
		if err != nil {
			return err
		}
		if fieldName == name {
			value = v
			found = true
			return errStopIteration
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("%w: %q on object id 0x%x", ErrFieldNotFound, name, id)
	}
	return value, nil
}

// ClassInstances returns the IDs of all instances whose class matches.
func (s *Snapshot) ClassInstances(id hprof.ClassObjectID) []hprof.ObjectID {
	if hprof.IsNull(id) {
		return nil
	}
	var instances []hprof.ObjectID
	for objectID, instance := range s.Instances {
		if instance.ClassObjectID == id {
			instances = append(instances, objectID)
		}
	}
	return instances
}
