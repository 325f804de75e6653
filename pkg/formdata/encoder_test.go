package formdata

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/lambertxiao/go-formstream/pkg/logg"
	"github.com/lambertxiao/go-formstream/pkg/types"
)

func TestEncoderSuite(t *testing.T) {
	suite.Run(t, new(EncoderSuite))
}

const scenarioBody = "--X\r\n" +
	"Content-Disposition: form-data; name=\"a\"\r\n" +
	"\r\n" +
	"1\r\n" +
	"--X\r\n" +
	"Content-Disposition: form-data; name=\"b\"; filename=\"f.txt\"\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"hello\r\n" +
	"--X--\r\n"

type EncoderSuite struct {
	suite.Suite
	dir string
}

func (s *EncoderSuite) SetupTest() {
	logg.InitLogger()
	s.dir = s.T().TempDir()
}

func (s *EncoderSuite) scenarioFields() []Field {
	return []Field{
		Value("a", "1"),
		FileWithType("b", "f.txt", []byte("hello"), "text/plain"),
	}
}

func (s *EncoderSuite) newEncoder(fields []Field, opts *Options) *Encoder {
	e, err := New(fields, opts)
	s.Require().NoError(err)
	return e
}

func (s *EncoderSuite) writeFile(name string, data []byte) string {
	path := filepath.Join(s.dir, name)
	s.Require().NoError(os.WriteFile(path, data, 0644))
	return path
}

func (s *EncoderSuite) mixedFields() []Field {
	big := bytes.Repeat([]byte("0123456789abcdef"), 4096)
	f, err := os.Open(s.writeFile("big.bin", big))
	s.Require().NoError(err)
	s.T().Cleanup(func() { f.Close() })

	return []Field{
		Value("title", "quarterly report"),
		File("attachment", "big.bin", f),
		FileWithType("notes", "notes.md", strings.NewReader("# notes\n"), "text/markdown"),
		FileWithHeaders("meta", "meta.json", bytes.NewBufferString(`{"k":1}`), "", http.Header{"X-Checksum": {"abc"}}),
		Value("empty", ""),
	}
}

func (s *EncoderSuite) TestScenarioBytes() {
	e := s.newEncoder(s.scenarioFields(), &Options{Boundary: "X"})

	s.Equal(int64(len(scenarioBody)), e.Len())
	out, err := e.ReadChunk(-1)
	s.Nil(err)
	s.Equal(scenarioBody, string(out))
	s.True(e.Finished())
}

func (s *EncoderSuite) TestScenarioByteAtATime() {
	e := s.newEncoder(s.scenarioFields(), &Options{Boundary: "X"})

	var got []byte
	for {
		b, err := e.ReadChunk(1)
		s.Require().NoError(err)
		if len(b) == 0 {
			break
		}
		s.Len(b, 1)
		got = append(got, b...)
	}
	s.Equal(scenarioBody, string(got))
}

func (s *EncoderSuite) TestLengthMatchesDrainedStream() {
	e := s.newEncoder(s.mixedFields(), nil)
	length := e.Len()

	out, err := io.ReadAll(e)
	s.Nil(err)
	s.Equal(length, int64(len(out)))
	s.Equal(e.ContentLength(), e.Headers().Get("Content-Length"))
}

func (s *EncoderSuite) TestChunkedEqualsSingleShot() {
	whole, err := s.newEncoder(s.scenarioFields(), &Options{Boundary: "X"}).ReadChunk(-1)
	s.Require().NoError(err)

	for size := 1; size <= len(whole)+5; size++ {
		e := s.newEncoder(s.scenarioFields(), &Options{Boundary: "X"})
		var got []byte
		for {
			b, err := e.ReadChunk(size)
			s.Require().NoError(err)
			if len(b) == 0 {
				break
			}
			s.LessOrEqual(len(b), size)
			got = append(got, b...)
		}
		s.Equal(whole, got, "chunk size %d", size)
	}
}

func (s *EncoderSuite) TestChunkedLargeBody() {
	length := s.newEncoder(s.mixedFields(), &Options{Boundary: "fixed"}).Len()

	for _, size := range []int{1, 7, 1000, 4096, 65536} {
		e := s.newEncoder(s.mixedFields(), &Options{Boundary: "fixed", ChunkSize: size})
		var got bytes.Buffer
		it := e.Chunks()
		for it.Next() {
			s.LessOrEqual(len(it.Bytes()), size)
			got.Write(it.Bytes())
		}
		s.Nil(it.Err())
		s.Equal(length, int64(got.Len()), "chunk size %d", size)
	}
}

func (s *EncoderSuite) TestExhaustionIsIdempotent() {
	e := s.newEncoder(s.scenarioFields(), &Options{Boundary: "X"})
	_, err := e.ReadChunk(-1)
	s.Require().NoError(err)

	for i := 0; i < 3; i++ {
		b, err := e.ReadChunk(10)
		s.Nil(err)
		s.Empty(b)
		b, err = e.ReadChunk(-1)
		s.Nil(err)
		s.Empty(b)
	}

	n, err := e.Read(make([]byte, 8))
	s.Equal(0, n)
	s.Equal(io.EOF, err)
	s.False(e.Chunks().Next())
}

func (s *EncoderSuite) TestZeroFields() {
	e := s.newEncoder(nil, &Options{Boundary: "X"})
	s.True(e.Finished())
	s.Equal(int64(len("--X--\r\n")), e.Len())

	out, err := io.ReadAll(e)
	s.Nil(err)
	s.Equal("--X--\r\n", string(out))
}

func (s *EncoderSuite) TestMatchesMimeMultipartWriter() {
	var want bytes.Buffer
	w := multipart.NewWriter(&want)
	s.Require().NoError(w.SetBoundary("stdlib-boundary"))
	s.Require().NoError(w.WriteField("first", "one"))
	s.Require().NoError(w.WriteField("second", "two"))
	s.Require().NoError(w.Close())

	e := s.newEncoder([]Field{Value("first", "one"), Value("second", []byte("two"))}, &Options{Boundary: "stdlib-boundary"})
	var got bytes.Buffer
	n, err := e.WriteTo(&got)
	s.Nil(err)
	s.Equal(int64(want.Len()), n)
	s.Equal(want.String(), got.String())
}

func (s *EncoderSuite) TestDecodesInOrder() {
	e := s.newEncoder(s.mixedFields(), nil)

	mediaType, params, err := mime.ParseMediaType(e.ContentType())
	s.Require().NoError(err)
	s.Equal("multipart/form-data", mediaType)
	s.Equal(e.BoundaryValue(), params["boundary"])

	r := multipart.NewReader(e, params["boundary"])
	var names []string
	for {
		p, err := r.NextPart()
		if err == io.EOF {
			break
		}
		s.Require().NoError(err)
		body, err := io.ReadAll(p)
		s.Require().NoError(err)
		names = append(names, p.FormName())

		switch p.FormName() {
		case "title":
			s.Equal("quarterly report", string(body))
			s.Empty(p.Header.Get("Content-Type"))
		case "attachment":
			s.Equal("big.bin", p.FileName())
			s.Equal(types.DEFAULT_CONTENT_TYPE, p.Header.Get("Content-Type"))
			s.Len(body, 16*4096)
		case "notes":
			s.Equal("text/markdown", p.Header.Get("Content-Type"))
			s.Equal("# notes\n", string(body))
		case "meta":
			s.Equal("application/json", p.Header.Get("Content-Type"))
			s.Equal("abc", p.Header.Get("X-Checksum"))
			s.Equal(`{"k":1}`, string(body))
		case "empty":
			s.Empty(body)
		}
	}
	s.Equal([]string{"title", "attachment", "notes", "meta", "empty"}, names)
}

func (s *EncoderSuite) TestPreAdvancedFile() {
	f, err := os.Open(s.writeFile("ten.txt", []byte("0123456789")))
	s.Require().NoError(err)
	defer f.Close()
	_, err = f.Seek(4, io.SeekStart)
	s.Require().NoError(err)

	e := s.newEncoder([]Field{FileWithType("f", "ten.txt", f, "text/plain")}, &Options{Boundary: "X"})
	out, err := e.ReadChunk(-1)
	s.Require().NoError(err)
	s.Equal(e.Len(), int64(len(out)))
	s.Contains(string(out), "\r\n\r\n456789\r\n--X--\r\n")
}

func (s *EncoderSuite) TestSizedReader() {
	body := strings.Repeat("z", 100)
	e := s.newEncoder([]Field{File("f", "z.bin", Sized(io.NopCloser(strings.NewReader(body)), 100))}, nil)

	out, err := io.ReadAll(e)
	s.Nil(err)
	s.Equal(e.Len(), int64(len(out)))
	s.Contains(string(out), body)
}

func (s *EncoderSuite) TestSizedReaderTruncatesToDeclaredLength() {
	e := s.newEncoder([]Field{Value("f", Sized(strings.NewReader("abcdef"), 3))}, &Options{Boundary: "X"})

	out, err := io.ReadAll(e)
	s.Nil(err)
	s.Equal(e.Len(), int64(len(out)))
	s.Contains(string(out), "\r\n\r\nabc\r\n--X--")
}

func (s *EncoderSuite) TestShortBody() {
	e := s.newEncoder([]Field{Value("f", Sized(strings.NewReader("abc"), 10))}, nil)

	_, err := e.ReadChunk(-1)
	s.True(errors.Is(err, io.ErrUnexpectedEOF))
}

func (s *EncoderSuite) TestBodyErrorPropagates() {
	boom := errors.New("disk on fire")
	e := s.newEncoder([]Field{Value("f", Sized(&failingReader{err: boom}, 10))}, nil)

	_, err := e.ReadChunk(-1)
	s.Equal(boom, err)
}

func (s *EncoderSuite) TestConstructionErrors() {
	_, err := New([]Field{Value("f", io.MultiReader(strings.NewReader("x")))}, nil)
	s.True(errors.Is(err, types.ErrSizeUnavailable))

	_, err = New([]Field{Value("f", 42)}, nil)
	s.True(errors.Is(err, types.ErrUnsupportedFieldShape))

	_, err = New([]Field{Value("f", nil)}, nil)
	s.True(errors.Is(err, types.ErrUnsupportedFieldShape))

	_, err = New(nil, &Options{Boundary: "bad\nboundary"})
	s.True(errors.Is(err, types.ErrInvalidBoundary))

	_, err = New(nil, &Options{Encoding: "no-such-charset"})
	s.True(errors.Is(err, types.ErrUnknownEncoding))
}

func (s *EncoderSuite) TestPipeHasNoSize() {
	r, w, err := os.Pipe()
	s.Require().NoError(err)
	defer r.Close()
	defer w.Close()

	_, err = New([]Field{File("f", "pipe", r)}, nil)
	s.True(errors.Is(err, types.ErrSizeUnavailable))
}

func (s *EncoderSuite) TestLatin1Encoding() {
	e := s.newEncoder([]Field{Value("name", "José")}, &Options{Boundary: "X", Encoding: "iso-8859-1"})
	s.Equal("iso-8859-1", e.Encoding())

	out, err := e.ReadChunk(-1)
	s.Require().NoError(err)
	s.Equal(e.Len(), int64(len(out)))
	s.Contains(string(out), "\r\n\r\nJos\xe9\r\n")
}

func (s *EncoderSuite) TestLengthMatchesDrainedStreamPerCharset() {
	for _, name := range []string{"", "utf-8", "latin1", "iso-8859-1", "windows-1252", "koi8-r", "shift_jis", "euc-kr"} {
		fields := []Field{
			Value("a", "1"),
			FileWithType("b", "f.txt", []byte("hello"), "text/plain"),
		}
		e, err := New(fields, &Options{Boundary: "X", Encoding: name})
		s.Require().NoError(err, name)

		out, err := io.ReadAll(e)
		s.Require().NoError(err, name)
		s.Equal(e.Len(), int64(len(out)), name)
		s.Equal(scenarioBody, string(out), name)
	}

	e, err := New(nil, &Options{Boundary: "X", Encoding: "latin1"})
	s.Require().NoError(err)
	out, err := io.ReadAll(e)
	s.Require().NoError(err)
	s.Equal(e.Len(), int64(len(out)))
}

func (s *EncoderSuite) TestWideCharsetRejected() {
	for _, name := range []string{"utf-16", "utf-16be"} {
		_, err := New([]Field{Value("a", "1")}, &Options{Boundary: "X", Encoding: name})
		s.True(errors.Is(err, types.ErrUnknownEncoding), name)
	}
}

func (s *EncoderSuite) TestHeadersAndAccessors() {
	e := s.newEncoder(s.scenarioFields(), &Options{Boundary: "X"})

	s.Equal("--X", e.Boundary())
	s.Equal("X", e.BoundaryValue())
	s.Equal("utf-8", e.Encoding())
	s.Equal(types.DEFAULT_CHUNK_SIZE, e.ChunkSize())
	s.Len(e.Fields(), 2)
	s.Equal("multipart/form-data; boundary=X", e.ContentType())

	h := e.Headers()
	s.Len(h, 2)
	s.Equal("multipart/form-data; boundary=X", h.Get("Content-Type"))
	s.Equal(e.ContentLength(), h.Get("Content-Length"))
	s.Contains(e.String(), "fields: [a b]")
}

func (s *EncoderSuite) TestRandomBoundary() {
	a := s.newEncoder(nil, nil)
	b := s.newEncoder(nil, nil)
	s.Len(a.BoundaryValue(), 32)
	s.NotEqual(a.BoundaryValue(), b.BoundaryValue())
}

func (s *EncoderSuite) TestBufferStaysBounded() {
	e := s.newEncoder(s.mixedFields(), nil)
	for {
		b, err := e.ReadChunk(1000)
		s.Require().NoError(err)
		if len(b) == 0 {
			break
		}
		s.Less(len(e.buf.buf), 4096)
	}
}

func (s *EncoderSuite) TestCloseClosesFiles() {
	f, err := os.Open(s.writeFile("c.txt", []byte("c")))
	s.Require().NoError(err)

	e := s.newEncoder([]Field{File("f", "c.txt", f), Value("v", "x")}, nil)
	s.Nil(e.Close())
	_, err = f.Read(make([]byte, 1))
	s.Error(err)
}

func (s *EncoderSuite) TestCloseAggregatesErrors() {
	c1, c2 := &failingCloser{err: errors.New("one")}, &failingCloser{err: errors.New("two")}
	e := s.newEncoder([]Field{Value("a", c1), Value("b", c2)}, nil)

	err := e.Close()
	s.Error(err)
	s.True(errors.Is(err, c1.err))
	s.True(errors.Is(err, c2.err))
}

type failingReader struct {
	err error
}

func (r *failingReader) Read(p []byte) (int, error) {
	return 0, r.err
}

type failingCloser struct {
	err error
}

func (c *failingCloser) Read(p []byte) (int, error) { return 0, io.EOF }
func (c *failingCloser) Len() int64                 { return 0 }
func (c *failingCloser) Close() error               { return c.err }
