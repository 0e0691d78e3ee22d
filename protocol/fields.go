package protocol

import (
	"strconv"
	"strings"
)

// fieldReader consumes the fields of a split line in order. The first
// failure sticks and later reads return zero values.
type fieldReader struct {
	fields []string
	err    error
}

func newFieldReader(fields []string) *fieldReader {
	return &fieldReader{fields: fields}
}

func (r *fieldReader) next() (string, bool) {
	if r.err != nil {
		return "", false
	}
	if len(r.fields) == 0 {
		r.err = ErrMissingField
		return "", false
	}
	f := r.fields[0]
	r.fields = r.fields[1:]
	return f, true
}

func (r *fieldReader) f32() float32 {
	s, ok := r.next()
	if !ok {
		return 0
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		r.err = ErrInvalidField
		return 0
	}
	return float32(v)
}

func (r *fieldReader) u32() uint32 {
	s, ok := r.next()
	if !ok {
		return 0
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		r.err = ErrInvalidField
		return 0
	}
	return uint32(v)
}

// boolean accepts only the two spellings the encoder produces.
func (r *fieldReader) boolean() bool {
	s, ok := r.next()
	if !ok {
		return false
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	r.err = ErrInvalidField
	return false
}

// finish reports the first error, or ErrTrailingField if fields remain.
func (r *fieldReader) finish() error {
	if r.err != nil {
		return r.err
	}
	if len(r.fields) != 0 {
		return ErrTrailingField
	}
	return nil
}

func appendF32(b []byte, v float32) []byte {
	b = append(b, ' ')
	return strconv.AppendFloat(b, float64(v), 'g', -1, 32)
}

func appendU32(b []byte, v uint32) []byte {
	b = append(b, ' ')
	return strconv.AppendUint(b, uint64(v), 10)
}

func appendBool(b []byte, v bool) []byte {
	b = append(b, ' ')
	return strconv.AppendBool(b, v)
}

// splitLine returns the token and remaining fields of a line.
func splitLine(line string) (string, []string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil, ErrEmptyLine
	}
	return fields[0], fields[1:], nil
}
