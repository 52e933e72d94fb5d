package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/pointstore/blobstore"
	minioblob "github.com/hupe1980/pointstore/blobstore/minio"
	"github.com/hupe1980/pointstore/blobstore/s3"
)

// storeURL is a parsed --store value.
type storeURL struct {
	scheme string
	host   string
	bucket string
	prefix string
	path   string
}

// parseStoreURL accepts a local directory, s3://bucket/prefix or
// minio://host[:port]/bucket/prefix.
func parseStoreURL(raw string) (storeURL, error) {
	if !strings.Contains(raw, "://") {
		return storeURL{scheme: "file", path: raw}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return storeURL{}, err
	}
	rest := strings.Trim(u.Path, "/")
	switch u.Scheme {
	case "file":
		return storeURL{scheme: "file", path: u.Host + u.Path}, nil
	case "s3":
		if u.Host == "" {
			return storeURL{}, fmt.Errorf("store %q: missing bucket", raw)
		}
		return storeURL{scheme: "s3", bucket: u.Host, prefix: rest}, nil
	case "minio":
		bucket, prefix, _ := strings.Cut(rest, "/")
		if u.Host == "" || bucket == "" {
			return storeURL{}, fmt.Errorf("store %q: want minio://host/bucket[/prefix]", raw)
		}
		return storeURL{scheme: "minio", host: u.Host, bucket: bucket, prefix: prefix}, nil
	default:
		return storeURL{}, fmt.Errorf("store %q: unsupported scheme %q", raw, u.Scheme)
	}
}

func openStore(ctx context.Context, raw string) (blobstore.BlobStore, error) {
	su, err := parseStoreURL(raw)
	if err != nil {
		return nil, err
	}
	switch su.scheme {
	case "s3":
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return s3.NewStore(awss3.NewFromConfig(cfg), su.bucket, su.prefix), nil
	case "minio":
		client, err := minio.New(su.host, &minio.Options{
			Creds:  credentials.NewStaticV4(os.Getenv("MINIO_ACCESS_KEY"), os.Getenv("MINIO_SECRET_KEY"), ""),
			Secure: os.Getenv("MINIO_SECURE") == "true",
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return minioblob.NewStore(client, su.bucket, su.prefix), nil
	default:
		return blobstore.NewLocalStore(su.path), nil
	}
}
