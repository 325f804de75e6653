package storage

import (
	"context"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lambertxiao/go-formstream/pkg/config"
	"github.com/lambertxiao/go-formstream/pkg/logg"
	"github.com/lambertxiao/go-formstream/pkg/types"
)

type S3Storage struct {
	minioClient *minio.Core
	conf        config.StorageConf

	objectReqsHistogram *prometheus.HistogramVec
	objectDataBytes     *prometheus.CounterVec
}

func NewS3Storage(conf config.StorageConf, reg prometheus.Registerer) (*S3Storage, error) {
	if conf.Bucket == "" {
		return nil, errors.Wrap(types.ErrInvalidArguments, "bucket is required")
	}
	if conf.Endpoint == "" {
		return nil, errors.Wrap(types.ErrInvalidArguments, "endpoint is required")
	}

	sto := &S3Storage{
		conf: conf,
	}

	minioClient, err := minio.NewCore(conf.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.AccessKey, conf.SecretKey, ""),
		Secure: conf.Secure,
	})
	if err != nil {
		return nil, err
	}

	sto.minioClient = minioClient
	sto.initMetrics(reg)
	return sto, nil
}

func (s *S3Storage) initMetrics(reg prometheus.Registerer) {
	s.objectReqsHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "object_request_durations_histogram_seconds",
		Help:    "Object requests latency distributions.",
		Buckets: prometheus.ExponentialBuckets(0.01, 1.5, 25),
	}, []string{"method"})

	s.objectDataBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "object_request_data_bytes",
		Help: "Object requests size in bytes.",
	}, []string{"method"})

	if reg == nil {
		return
	}

	reg.MustRegister(s.objectReqsHistogram)
	reg.MustRegister(s.objectDataBytes)
}

func (u *S3Storage) objectKey(key string) string {
	return u.conf.Prefix + key
}

func (u *S3Storage) HeadFile(req *HeadFileRequest) (*HeadFileReply, error) {
	st := time.Now()
	obj, err := u.minioClient.StatObject(context.Background(), u.conf.Bucket, u.objectKey(req.Key), minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, errors.Wrapf(types.ErrObjectNotFound, "%s", req.Key)
		}
		return nil, err
	}
	u.objectReqsHistogram.WithLabelValues("HEAD").Observe(time.Since(st).Seconds())

	reply := &HeadFileReply{}
	reply.Info.Key = req.Key
	reply.Info.Size = uint64(obj.Size)
	reply.Info.ContentType = obj.ContentType
	reply.Info.Etag = obj.ETag
	reply.Info.Mtime = obj.LastModified
	reply.Info.Storage_class = obj.StorageClass

	reply.Info.Metadata = make(map[string]string)
	for k, v := range obj.Metadata {
		if strings.HasPrefix(strings.ToLower(k), "x-amz-meta-") && len(v) > 0 {
			reply.Info.Metadata[k] = v[0]
		}
	}
	return reply, nil
}

// PutFile streams req.Body as a single object of exactly req.Size bytes.
func (u *S3Storage) PutFile(req *PutFileRequest) (*PutFileReply, error) {
	st := time.Now()
	logg.Dlog.Infof("putFile %s size %d contentType %s", req.Key, req.Size, req.ContentType)

	info, err := u.minioClient.PutObject(
		context.Background(),
		u.conf.Bucket,
		u.objectKey(req.Key),
		req.Body,
		req.Size,
		"", "",
		minio.PutObjectOptions{
			UserMetadata: req.MetaData,
			ContentType:  req.ContentType,
			StorageClass: u.conf.Storage_class,
		},
	)
	if err != nil {
		return nil, err
	}

	reply := &PutFileReply{
		Etag: info.ETag,
		Size: info.Size,
	}

	used := time.Since(st)
	u.objectReqsHistogram.WithLabelValues("WRITE").Observe(used.Seconds())
	u.objectDataBytes.WithLabelValues("WRITE").Add(float64(info.Size))
	return reply, nil
}

func (u *S3Storage) DeleteFile(req *DeleteFileRequest) (*DeleteFileReply, error) {
	logg.Dlog.Infof("deleteObject %v", req.Key)
	err := u.minioClient.RemoveObject(
		context.Background(),
		u.conf.Bucket,
		u.objectKey(req.Key),
		minio.RemoveObjectOptions{},
	)
	if err != nil {
		return nil, err
	}
	return &DeleteFileReply{}, nil
}
