package formdata

import (
	"net/http"
	"sort"

	"github.com/pkg/errors"

	"github.com/lambertxiao/go-formstream/pkg/field"
	"github.com/lambertxiao/go-formstream/pkg/types"
)

// Field is one form entry. Value may be a string, []byte, *os.File,
// *bytes.Reader, *bytes.Buffer, *strings.Reader or a SizedSource.
//
// Without a Filename the field is sent as a plain value. With one, a missing
// ContentType is guessed from the filename extension.
type Field struct {
	Name        string
	Filename    string
	Value       interface{}
	ContentType string
	Headers     http.Header
}

// Value is a plain name/value field.
func Value(name string, v interface{}) Field {
	return Field{Name: name, Value: v}
}

// File is a (filename, value) field.
func File(name, filename string, v interface{}) Field {
	return Field{Name: name, Filename: filename, Value: v}
}

// FileWithType is a (filename, value, content type) field.
func FileWithType(name, filename string, v interface{}, contentType string) Field {
	return Field{Name: name, Filename: filename, Value: v, ContentType: contentType}
}

// FileWithHeaders is a (filename, value, content type, headers) field.
func FileWithHeaders(name, filename string, v interface{}, contentType string, headers http.Header) Field {
	return Field{Name: name, Filename: filename, Value: v, ContentType: contentType, Headers: headers}
}

// FieldFromTuple builds a file field from two to four elements:
//
//	filename, value
//	filename, value, content type
//	filename, value, content type, headers
//
// filename and content type are strings, headers an http.Header or a
// map[string]string.
func FieldFromTuple(name string, tuple ...interface{}) (Field, error) {
	f := Field{Name: name}
	switch len(tuple) {
	case 2, 3, 4:
	default:
		return f, errors.Wrapf(types.ErrUnsupportedFieldShape, "field %q has %d elements", name, len(tuple))
	}

	filename, ok := tuple[0].(string)
	if !ok && tuple[0] != nil {
		return f, errors.Wrapf(types.ErrUnsupportedFieldShape, "field %q: filename is %T", name, tuple[0])
	}
	f.Filename = filename
	f.Value = tuple[1]

	if len(tuple) > 2 {
		ct, ok := tuple[2].(string)
		if !ok && tuple[2] != nil {
			return f, errors.Wrapf(types.ErrUnsupportedFieldShape, "field %q: content type is %T", name, tuple[2])
		}
		f.ContentType = ct
	}

	if len(tuple) > 3 {
		switch h := tuple[3].(type) {
		case nil:
		case http.Header:
			f.Headers = h
		case map[string]string:
			f.Headers = make(http.Header, len(h))
			for k, v := range h {
				f.Headers.Set(k, v)
			}
		default:
			return f, errors.Wrapf(types.ErrUnsupportedFieldShape, "field %q: headers are %T", name, tuple[3])
		}
	}
	return f, nil
}

// FieldsFromMap converts a mapping into fields ordered by key. A value that is
// a []interface{} is read as a tuple, anything else as a plain value.
func FieldsFromMap(m map[string]interface{}) ([]Field, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]Field, 0, len(keys))
	for _, k := range keys {
		tuple, ok := m[k].([]interface{})
		if !ok {
			fields = append(fields, Value(k, m[k]))
			continue
		}
		f, err := FieldFromTuple(k, tuple...)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func (f Field) requestField() *field.RequestField {
	rf := field.New(f.Name, f.Value, f.Filename, f.Headers)
	ct := f.ContentType
	if ct == "" && f.Filename != "" {
		ct = field.GuessContentType(f.Filename)
	}
	rf.MakeMultipart("", ct, "")
	return rf
}
