package types

import "errors"

var (
	EINVAL = errors.New("invalid argument")
	EIO    = errors.New("input/output error")
)

var (
	ErrSizeUnavailable       = errors.New("unable to compute size")
	ErrUnsupportedFieldShape = errors.New("unsupported field shape")
	ErrInvalidBoundary       = errors.New("invalid boundary")
	ErrUnknownEncoding       = errors.New("unknown text encoding")
)

var (
	ErrServerFail       = errors.New("server error")
	ErrInvalidArguments = errors.New("invalid arguments")
	ErrObjectNotFound   = errors.New("object not found")
	ErrSizeMismatch     = errors.New("stored size does not match content length")
)
