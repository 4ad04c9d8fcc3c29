package hprof

import "errors"

var (
	// ErrWrongFormat is returned when the file magic is not "JAVA PROFILE 1.0.2".
	ErrWrongFormat = errors.New("wrong dump format")

	// ErrUnsupportedIdentifierSize is returned when the header declares an
	// identifier size outside 1..8.
	ErrUnsupportedIdentifierSize = errors.New("unsupported identifier size")

	// ErrOutOfBounds is returned when a read runs past the reader's declared size.
	ErrOutOfBounds = errors.New("out of bounds read")

	// ErrInvalidWidth is returned when an identifier read is requested with a
	// width larger than 8 bytes.
	ErrInvalidWidth = errors.New("identifier width must be <= 8")

	// ErrInvalidTag is returned for an unknown top-level record tag.
	ErrInvalidTag = errors.New("unknown tag")

	// ErrInvalidSubTag is returned for an unknown heap dump sub-tag.
	ErrInvalidSubTag = errors.New("unknown sub-tag")

	// ErrInvalidBasicType is returned for an unknown basic type code.
	ErrInvalidBasicType = errors.New("unknown basic type")

	// ErrBodySizeMismatch is returned when heap dump sub-records do not cover
	// exactly the declared record body length.
	ErrBodySizeMismatch = errors.New("specified and actual record body sizes differ")
)
