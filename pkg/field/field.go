// Package field renders the header block of one multipart/form-data part.
package field

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lambertxiao/go-formstream/pkg/types"
)

const (
	HeaderContentDisposition = "Content-Disposition"
	HeaderContentType        = "Content-Type"
	HeaderContentLocation    = "Content-Location"
)

// rendered first and in this order, everything else follows sorted by name
var leadingHeaders = []string{HeaderContentDisposition, HeaderContentType, HeaderContentLocation}

// RequestField is one named form field: its data plus the headers that
// describe it inside the multipart body.
type RequestField struct {
	Name     string
	Filename string
	Data     interface{}
	Headers  http.Header
}

// New builds a field and copies headers so later changes by the caller do
// not leak into the rendered part.
func New(name string, data interface{}, filename string, headers http.Header) *RequestField {
	f := &RequestField{
		Name:     name,
		Filename: filename,
		Data:     data,
		Headers:  make(http.Header, len(headers)+2),
	}
	for k, vv := range headers {
		f.Headers[http.CanonicalHeaderKey(k)] = append([]string(nil), vv...)
	}
	return f
}

// MakeMultipart sets the Content-Disposition, Content-Type and
// Content-Location headers. An empty disposition means "form-data"; empty
// type or location leave the header out.
func (f *RequestField) MakeMultipart(disposition, contentType, location string) {
	if disposition == "" {
		disposition = "form-data"
	}
	params := []string{disposition, FormatParam("name", f.Name)}
	if f.Filename != "" {
		params = append(params, FormatParam("filename", f.Filename))
	}
	f.Headers.Set(HeaderContentDisposition, strings.Join(params, "; "))
	setOrDelete(f.Headers, HeaderContentType, contentType)
	setOrDelete(f.Headers, HeaderContentLocation, location)
}

func setOrDelete(h http.Header, key, value string) {
	if value == "" {
		h.Del(key)
		return
	}
	h.Set(key, value)
}

// RenderHeaders returns the header block: one CRLF terminated line per
// non-empty header and a closing blank line.
func (f *RequestField) RenderHeaders() string {
	var b strings.Builder
	seen := make(map[string]struct{}, len(leadingHeaders))
	for _, k := range leadingHeaders {
		seen[k] = struct{}{}
		writeHeader(&b, k, f.Headers[k])
	}

	keys := make([]string, 0, len(f.Headers))
	for k := range f.Headers {
		if _, ok := seen[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeHeader(&b, k, f.Headers[k])
	}
	b.WriteString("\r\n")
	return b.String()
}

func writeHeader(b *strings.Builder, key string, values []string) {
	for _, v := range values {
		if v == "" {
			continue
		}
		fmt.Fprintf(b, "%s: %s\r\n", key, v)
	}
}

// FormatParam renders name="value" the way HTML5 user agents do: quotes
// become %22, backslashes are doubled and control characters other than
// ESC are percent-encoded.
func FormatParam(name, value string) string {
	var b strings.Builder
	for _, r := range value {
		switch {
		case r == '"':
			b.WriteString("%22")
		case r == '\\':
			b.WriteString(`\\`)
		case r < 0x20 && r != 0x1b:
			fmt.Fprintf(&b, "%%%02X", r)
		default:
			b.WriteRune(r)
		}
	}
	return fmt.Sprintf(`%s="%s"`, name, b.String())
}

// GuessContentType infers a media type from the filename extension.
func GuessContentType(filename string) string {
	if filename == "" {
		return types.DEFAULT_CONTENT_TYPE
	}
	t := mime.TypeByExtension(filepath.Ext(filename))
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	if t != "" {
		return t
	}
	return types.DEFAULT_CONTENT_TYPE
}
