package formdata

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lambertxiao/go-formstream/pkg/types"
)

func TestFieldFromTuple(t *testing.T) {
	f, err := FieldFromTuple("b", "f.txt", []byte("x"))
	assert.Nil(t, err)
	assert.Equal(t, File("b", "f.txt", []byte("x")), f)

	f, err = FieldFromTuple("c", "f.txt", "x", "text/plain")
	assert.Nil(t, err)
	assert.Equal(t, "text/plain", f.ContentType)

	f, err = FieldFromTuple("d", "f.txt", "x", "text/plain", map[string]string{"x-id": "7"})
	assert.Nil(t, err)
	assert.Equal(t, "7", f.Headers.Get("X-Id"))

	f, err = FieldFromTuple("e", nil, "x", nil, http.Header{"X-A": {"b"}})
	assert.Nil(t, err)
	assert.Empty(t, f.Filename)
	assert.Empty(t, f.ContentType)
	assert.Equal(t, "b", f.Headers.Get("X-A"))
}

func TestFieldFromTupleBadShapes(t *testing.T) {
	bad := [][]interface{}{
		{},
		{"1"},
		{"f", "x", "t", nil, "extra"},
		{42, "x"},
		{"f", "x", 42},
		{"f", "x", "t", []string{"no"}},
	}
	for _, tuple := range bad {
		_, err := FieldFromTuple("n", tuple...)
		assert.True(t, errors.Is(err, types.ErrUnsupportedFieldShape), "%v", tuple)
	}
}

func TestFieldsFromMapSortsKeys(t *testing.T) {
	fields, err := FieldsFromMap(map[string]interface{}{
		"zeta":  "last",
		"alpha": []interface{}{"a.txt", "first"},
		"mid":   []byte("m"),
	})
	assert.Nil(t, err)
	assert.Len(t, fields, 3)
	assert.Equal(t, "alpha", fields[0].Name)
	assert.Equal(t, "a.txt", fields[0].Filename)
	assert.Equal(t, "mid", fields[1].Name)
	assert.Equal(t, "zeta", fields[2].Name)

	_, err = FieldsFromMap(map[string]interface{}{"bad": []interface{}{}})
	assert.True(t, errors.Is(err, types.ErrUnsupportedFieldShape))

	_, err = FieldsFromMap(map[string]interface{}{"single": []interface{}{"1"}})
	assert.True(t, errors.Is(err, types.ErrUnsupportedFieldShape))
}

func TestRequestFieldContentType(t *testing.T) {
	rf := Value("plain", "v").requestField()
	assert.Empty(t, rf.Headers.Get("Content-Type"))

	rf = File("file", "image.png", []byte{}).requestField()
	assert.Equal(t, "image/png", rf.Headers.Get("Content-Type"))

	rf = File("file", "noext", []byte{}).requestField()
	assert.Equal(t, types.DEFAULT_CONTENT_TYPE, rf.Headers.Get("Content-Type"))

	rf = FileWithType("file", "image.png", []byte{}, "image/x-custom").requestField()
	assert.Equal(t, "image/x-custom", rf.Headers.Get("Content-Type"))
	assert.Equal(t, `form-data; name="file"; filename="image.png"`, rf.Headers.Get("Content-Disposition"))
}
