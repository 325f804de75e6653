package main

import (
	"bytes"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lambertxiao/go-formstream/pkg/formdata"
	"github.com/lambertxiao/go-formstream/pkg/types"
)

func TestParseFieldSpecValue(t *testing.T) {
	fs, err := ParseFieldSpec("a=1")
	require.NoError(t, err)
	assert.Equal(t, "a", fs.Name)
	assert.Equal(t, "1", fs.Value)
	assert.Empty(t, fs.Path)

	fs, err = ParseFieldSpec("empty=")
	require.NoError(t, err)
	assert.Equal(t, "", fs.Value)

	fs, err = ParseFieldSpec("eq=x=y")
	require.NoError(t, err)
	assert.Equal(t, "x=y", fs.Value)
}

func TestParseFieldSpecFile(t *testing.T) {
	fs, err := ParseFieldSpec("doc=@/tmp/dir/report.csv;type=text/csv;headers=X-Trace: 7")
	require.NoError(t, err)
	assert.True(t, fs.AsFile)
	assert.Equal(t, "/tmp/dir/report.csv", fs.Path)
	assert.Equal(t, "report.csv", fs.Filename)
	assert.Equal(t, "text/csv", fs.ContentType)
	assert.Equal(t, "7", fs.Headers.Get("X-Trace"))

	fs, err = ParseFieldSpec("doc=@a.bin;filename=renamed.bin")
	require.NoError(t, err)
	assert.Equal(t, "renamed.bin", fs.Filename)

	fs, err = ParseFieldSpec("text=<notes.txt")
	require.NoError(t, err)
	assert.False(t, fs.AsFile)
	assert.Equal(t, "notes.txt", fs.Path)
	assert.Empty(t, fs.Filename)
}

func TestParseFieldSpecErrors(t *testing.T) {
	for _, spec := range []string{
		"novalue",
		"=x",
		"f=@",
		"f=@a;bogus",
		"f=@a;size=1",
		"f=<a;filename=b",
		"f=@a;headers=nocolon",
	} {
		_, err := ParseFieldSpec(spec)
		assert.True(t, errors.Is(err, types.EINVAL), spec)
		assert.Equal(t, types.EINVAL, errors.Cause(err), spec)
	}
}

func TestBodyFactoryReopensFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	specs, err := ParseFieldSpecs([]string{"a=1", "b=@" + path + ";type=text/plain", "c=<" + path})
	require.NoError(t, err)
	factory := BodyFactory(specs, &formdata.Options{Boundary: "X"})

	var bodies [][]byte
	for i := 0; i < 2; i++ {
		enc, err := factory()
		require.NoError(t, err)
		var out bytes.Buffer
		n, err := enc.WriteTo(&out)
		require.NoError(t, err)
		assert.Equal(t, enc.Len(), n)
		require.NoError(t, enc.Close())
		bodies = append(bodies, out.Bytes())
	}
	assert.Equal(t, bodies[0], bodies[1])

	r := multipart.NewReader(bytes.NewReader(bodies[0]), "X")
	want := []struct{ name, filename, ctype, body string }{
		{"a", "", "", "1"},
		{"b", "f.txt", "text/plain", "hello"},
		{"c", "", "", "hello"},
	}
	for _, w := range want {
		p, err := r.NextPart()
		require.NoError(t, err)
		assert.Equal(t, w.name, p.FormName())
		assert.Equal(t, w.filename, p.FileName())
		assert.Equal(t, w.ctype, p.Header.Get("Content-Type"))
		data, err := io.ReadAll(p)
		require.NoError(t, err)
		assert.Equal(t, w.body, string(data))
	}
	_, err = r.NextPart()
	assert.Equal(t, io.EOF, err)
}

func TestBodyFactoryMissingFile(t *testing.T) {
	specs, err := ParseFieldSpecs([]string{"a=1", "b=@" + filepath.Join(t.TempDir(), "missing")})
	require.NoError(t, err)

	_, err = BodyFactory(specs, nil)()
	assert.True(t, os.IsNotExist(err))
}

func TestParseHeaders(t *testing.T) {
	h, err := parseHeaders([]string{"x-token: abc", "Accept:  */* "}, map[string]string{"X-Token": "old", "User-Agent": "ua"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"X-Token": "abc", "Accept": "*/*", "User-Agent": "ua"}, h)

	_, err = parseHeaders([]string{"broken"}, nil)
	assert.Equal(t, types.EINVAL, errors.Cause(err))
}

func TestParseMeta(t *testing.T) {
	m, err := parseMeta(nil)
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = parseMeta([]string{"owner=ops", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"owner": "ops", "empty": ""}, m)

	_, err = parseMeta([]string{"=x"})
	assert.Equal(t, types.EINVAL, errors.Cause(err))
}

func TestStorageClass(t *testing.T) {
	c, ok := StorageClass("ia")
	assert.True(t, ok)
	assert.Equal(t, "IA", c)

	c, ok = StorageClass("Standard")
	assert.True(t, ok)
	assert.Equal(t, "STANDARD", c)

	_, ok = StorageClass("glacier")
	assert.False(t, ok)
}
