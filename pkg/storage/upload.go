package storage

import (
	"time"

	"github.com/pkg/errors"

	"github.com/lambertxiao/go-formstream/pkg/formdata"
	"github.com/lambertxiao/go-formstream/pkg/logg"
	"github.com/lambertxiao/go-formstream/pkg/types"
)

const RETRY_INTERVAL = 500 * time.Millisecond

type UploadFormRequest struct {
	Key      string
	Body     formdata.Factory
	MetaData map[string]string
	Retry    int
}

type UploadFormReply struct {
	Etag     string
	Size     int64
	Boundary string
}

// Uploader stores a multipart body as one object and checks the stored size
// against the precomputed length.
type Uploader struct {
	sto       Storage
	sleepFunc func(time.Duration)
}

func NewUploader(sto Storage) *Uploader {
	return &Uploader{sto: sto, sleepFunc: time.Sleep}
}

// WithSleep replaces the pause between attempts.
func (u *Uploader) WithSleep(f func(time.Duration)) *Uploader {
	u.sleepFunc = f
	return u
}

func (u *Uploader) UploadForm(req *UploadFormRequest) (*UploadFormReply, error) {
	if req.Key == "" || req.Body == nil {
		return nil, errors.Wrap(types.ErrInvalidArguments, "key and body are required")
	}

	var reply *UploadFormReply
	err := u.make_request(req.Retry, func() error {
		var err error
		reply, err = u.uploadOnce(req)
		return err
	})
	return reply, err
}

func (u *Uploader) uploadOnce(req *UploadFormRequest) (*UploadFormReply, error) {
	enc, err := req.Body()
	if err != nil {
		return nil, err
	}
	defer enc.Close()

	size := enc.Len()
	put, err := u.sto.PutFile(&PutFileRequest{
		Body:        enc,
		Size:        size,
		Key:         req.Key,
		ContentType: enc.ContentType(),
		MetaData:    req.MetaData,
	})
	if err != nil {
		return nil, err
	}

	head, err := u.sto.HeadFile(&HeadFileRequest{Key: req.Key})
	if err != nil {
		return nil, err
	}
	if int64(head.Info.Size) != size {
		logg.Dlog.Errorf("%s stored %d bytes, expected %d", req.Key, head.Info.Size, size)
		if _, derr := u.sto.DeleteFile(&DeleteFileRequest{Key: req.Key}); derr != nil {
			logg.Dlog.Errorf("delete %s: %v", req.Key, derr)
		}
		return nil, errors.Wrapf(types.ErrSizeMismatch, "%s: stored %d, expected %d", req.Key, head.Info.Size, size)
	}

	return &UploadFormReply{
		Etag:     put.Etag,
		Size:     size,
		Boundary: enc.BoundaryValue(),
	}, nil
}

// make_request runs f up to retry+1 times, doubling the pause each time.
// Errors that a new attempt cannot fix are returned at once.
func (u *Uploader) make_request(retry int, f func() error) error {
	interval := RETRY_INTERVAL
	var err error
	for i := 0; i <= retry; i++ {
		err = f()
		if err == nil {
			break
		}
		if !retryable(err) {
			return err
		}
		logg.Dlog.Warnf("attempt %d failed: %v", i+1, err)
		if i < retry {
			u.sleepFunc(interval)
			interval = interval * time.Duration(2)
		}
	}
	return err
}

func retryable(err error) bool {
	for _, target := range []error{
		types.ErrInvalidArguments,
		types.ErrSizeUnavailable,
		types.ErrUnsupportedFieldShape,
		types.ErrInvalidBoundary,
		types.ErrUnknownEncoding,
	} {
		if errors.Is(err, target) {
			return false
		}
	}
	return true
}
