package main

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/lambertxiao/go-formstream/pkg/formdata"
	"github.com/lambertxiao/go-formstream/pkg/types"
)

// FieldSpec is one -F argument, curl style:
//
//	name=value
//	name=@path[;type=mime][;filename=name][;headers=Key: value]
//	name=<path[;type=mime][;headers=Key: value]
//
// @ uploads the file as a file part, < sends its content as a plain value.
type FieldSpec struct {
	Name        string
	Value       string
	Path        string
	AsFile      bool
	Filename    string
	ContentType string
	Headers     http.Header
}

func ParseFieldSpec(spec string) (*FieldSpec, error) {
	eq := strings.IndexByte(spec, '=')
	if eq <= 0 {
		return nil, errors.Wrapf(types.EINVAL, "field %q must look like name=value", spec)
	}
	fs := &FieldSpec{Name: spec[:eq]}
	rest := spec[eq+1:]

	if rest == "" || (rest[0] != '@' && rest[0] != '<') {
		fs.Value = rest
		return fs, nil
	}

	fs.AsFile = rest[0] == '@'
	params := strings.Split(rest[1:], ";")
	fs.Path = params[0]
	if fs.Path == "" {
		return nil, errors.Wrapf(types.EINVAL, "field %q has no path", fs.Name)
	}

	for _, p := range params[1:] {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return nil, errors.Wrapf(types.EINVAL, "field %q: bad parameter %q", fs.Name, p)
		}
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "type":
			fs.ContentType = v
		case "filename":
			if !fs.AsFile {
				return nil, errors.Wrapf(types.EINVAL, "field %q: filename needs @", fs.Name)
			}
			fs.Filename = v
		case "headers":
			hk, hv, ok := strings.Cut(v, ":")
			if !ok {
				return nil, errors.Wrapf(types.EINVAL, "field %q: bad header %q", fs.Name, v)
			}
			if fs.Headers == nil {
				fs.Headers = make(http.Header)
			}
			fs.Headers.Add(strings.TrimSpace(hk), strings.TrimSpace(hv))
		default:
			return nil, errors.Wrapf(types.EINVAL, "field %q: unknown parameter %q", fs.Name, k)
		}
	}

	if fs.AsFile && fs.Filename == "" {
		fs.Filename = filepath.Base(fs.Path)
	}
	return fs, nil
}

// Open builds the field, opening the file if there is one. The encoder
// closes it.
func (fs *FieldSpec) Open() (formdata.Field, error) {
	if fs.Path == "" {
		return formdata.Value(fs.Name, fs.Value), nil
	}

	f, err := os.Open(fs.Path)
	if err != nil {
		return formdata.Field{}, err
	}
	if fs.AsFile {
		return formdata.FileWithHeaders(fs.Name, fs.Filename, f, fs.ContentType, fs.Headers), nil
	}
	return formdata.Field{Name: fs.Name, Value: f, ContentType: fs.ContentType, Headers: fs.Headers}, nil
}

func ParseFieldSpecs(specs []string) ([]*FieldSpec, error) {
	out := make([]*FieldSpec, 0, len(specs))
	for _, s := range specs {
		fs, err := ParseFieldSpec(s)
		if err != nil {
			return nil, err
		}
		out = append(out, fs)
	}
	return out, nil
}

// BodyFactory reopens every file on each call so a retry starts from the
// beginning of each file.
func BodyFactory(specs []*FieldSpec, opts *formdata.Options) formdata.Factory {
	return func() (*formdata.Encoder, error) {
		fields := make([]formdata.Field, 0, len(specs))
		closeAll := func() {
			for _, f := range fields {
				if c, ok := f.Value.(*os.File); ok {
					c.Close()
				}
			}
		}
		for _, fs := range specs {
			f, err := fs.Open()
			if err != nil {
				closeAll()
				return nil, err
			}
			fields = append(fields, f)
		}

		enc, err := formdata.New(fields, opts)
		if err != nil {
			closeAll()
			return nil, err
		}
		return enc, nil
	}
}
