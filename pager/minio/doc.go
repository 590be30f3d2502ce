// Package minio serves page files stored in MinIO or any S3-compatible
// object storage reachable through the minio-go client.
//
// # Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	})
//
//	src, err := miniosrc.New(ctx, client, "indexes", "docs.vpg")
//	f, err := pager.OpenFile(src)
package minio
