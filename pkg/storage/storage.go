package storage

import (
	"io"
	"time"
)

var Instance Storage

func InitStorage(sto Storage) {
	Instance = sto
}

type Storage interface {
	HeadFile(*HeadFileRequest) (*HeadFileReply, error)
	PutFile(*PutFileRequest) (*PutFileReply, error)
	DeleteFile(*DeleteFileRequest) (*DeleteFileReply, error)
}

type ObjectInfo struct {
	Key           string
	Size          uint64
	ContentType   string
	Etag          string
	Mtime         time.Time
	Metadata      map[string]string
	Storage_class string
}

type HeadFileRequest struct {
	Key string
}
type HeadFileReply struct {
	Info ObjectInfo
}

type PutFileRequest struct {
	Body        io.Reader
	Size        int64
	Key         string
	ContentType string
	MetaData    map[string]string
}
type PutFileReply struct {
	Etag string
	Size int64
}

type DeleteFileRequest struct {
	Key string
}

type DeleteFileReply struct {
}
