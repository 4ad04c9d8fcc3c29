package heap

import (
	"fmt"
	"io"
	"strings"

	"github.com/hprof-analysis/internal/parser/hprof"
)

// FormatID renders an identifier the way the rest of the output does: lower
// case hex without a 0x prefix.
func FormatID(id hprof.ID) string {
	return fmt.Sprintf("%02x", id)
}

// FormatValue renders a raw field value together with its hex form.
func FormatValue(value hprof.Value, _ hprof.BasicType) string {
	return fmt.Sprintf("%d (0x%X)", value, value)
}

// FormatInstance renders a one-line description of an instance: class name,
// optional field name, and identifier.
func (s *Snapshot) FormatInstance(id hprof.ObjectID, name string) (string, error) {
	instance, ok := s.Instances[id]
	if !ok {
		return "", fmt.Errorf("%w: object id 0x%x", ErrUnknownObject, id)
	}
	className, err := s.ClassName(instance.ClassObjectID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s = %s", className, name, FormatID(id)), nil
}

// DumpInstance writes an instance description to w, optionally recursing into
// object-valued fields. Already-visited instances are printed but not
// re-expanded, so reference cycles terminate.
func (s *Snapshot) DumpInstance(w io.Writer, id hprof.ObjectID, recurse bool, indent int) error {
	visited := make(map[hprof.ObjectID]struct{})
	return s.dumpInstance(w, id, recurse, indent, "", visited)
}

func (s *Snapshot) dumpInstance(w io.Writer, id hprof.ObjectID, recurse bool, indent int, name string, visited map[hprof.ObjectID]struct{}) error {
	pad := strings.Repeat(" ", indent)
	if hprof.IsNull(id) {
		fmt.Fprintf(w, "%snull object %s\n", pad, name)
		return nil
	}

	instance, ok := s.Instances[id]
	if !ok {
		return fmt.Errorf("%w: object id 0x%x", ErrUnknownObject, id)
	}
	className, err := s.ClassName(instance.ClassObjectID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s%s %s = %s (ST=%d)\n", pad, className, name, FormatID(id), instance.StackTraceSerialNumber)

	if _, seen := visited[id]; seen {
		return nil
	}
	visited[id] = struct{}{}

	if !recurse {
		return nil
	}

	return s.ForEachField(id, func(f hprof.Field, v hprof.Value) error {
		fieldName, err := s.StringView(f.NameStringID)
		if err != nil {
			return err
		}
		if f.Type == hprof.TypeObject {
			switch s.KindOf(v) {
			case KindObject:
				return s.dumpInstance(w, v, recurse, indent+2, fieldName, visited)
			case KindNull:
				fmt.Fprintf(w, "%s  null ", pad)
			case KindClass:
				fmt.Fprintf(w, "%s  class ", pad)
			case KindObjectArray:
				fmt.Fprintf(w, "%s  object array ", pad)
			case KindPrimitiveArray:
				fmt.Fprintf(w, "%s  primitive array ", pad)
			default:
				return fmt.Errorf("%w: id 0x%x", ErrUnknownObject, v)
			}
		} else {
			fmt.Fprintf(w, "%s  ", pad)
		}
		fmt.Fprintf(w, "%s %s = %s\n", f.Type.Name(), fieldName, FormatValue(v, f.Type))
		return nil
	})
}

// FormatStackFrame renders one stack frame as the method name directly
// followed by its signature, then " (source:line)", e.g. "run()V (Main.kt:42)".
// A null source file string ID means no source information is available; line
// numbers <= 0 carry no source line.
func (s *Snapshot) FormatStackFrame(id hprof.StackFrameID) (string, error) {
	frame, ok := s.StackFrames[id]
	if !ok {
		return "", fmt.Errorf("%w: stack frame id 0x%x", ErrUnknownObject, id)
	}

	methodName, err := s.StringView(frame.MethodNameStringID)
	if err != nil {
		return "", err
	}
	methodSignature, err := s.StringView(frame.MethodSignatureStringID)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(methodName)
	sb.WriteString(methodSignature)

	if !hprof.IsNull(frame.SourceFileNameStringID) {
		sourceFile, err := s.StringView(frame.SourceFileNameStringID)
		if err != nil {
			return "", err
		}
		sb.WriteString(" (")
		sb.WriteString(sourceFile)
		if frame.LineNumber > 0 {
			fmt.Fprintf(&sb, ":%d", frame.LineNumber)
		}
		sb.WriteString(")")
	} else {
		sb.WriteString(" no source information")
	}
	return sb.String(), nil
}

// WriteStackTrace writes every frame of a stack trace, one per line.
func (s *Snapshot) WriteStackTrace(w io.Writer, serial hprof.StackTraceSerialNumber, indent int) error {
	trace, ok := s.StackTraces[serial]
	if !ok {
		return fmt.Errorf("%w: stack trace serial %d", ErrUnknownObject, serial)
	}
	pad := strings.Repeat(" ", indent)
	for _, frameID := range trace.StackFrames {
		line, err := s.FormatStackFrame(frameID)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s%s\n", pad, line)
	}
	return nil
}

// ThreadName resolves a java.lang.Thread instance's name by following its
// name field to the String's value array and returning that array's element
// bytes unchanged. A byte array reads as text; a UTF-16 char array is not
// decoded.
func (s *Snapshot) ThreadName(threadObjectID hprof.ObjectID) (string, error) {
	nameID, err := s.FieldValue(threadObjectID, "name")
	if err != nil {
		return "", err
	}
	if !s.IsObjectID(nameID) {
		return "", fmt.Errorf("%w: thread name id 0x%x", ErrUnknownObject, nameID)
	}
	valueID, err := s.FieldValue(nameID, "value")
	if err != nil {
		return "", err
	}
	array, ok := s.PrimitiveArrays[valueID]
	if !ok {
		return "", fmt.Errorf("%w: string value id 0x%x", ErrUnknownObject, valueID)
	}
	return string(array.ElementsView), nil
}
