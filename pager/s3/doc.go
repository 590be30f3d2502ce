// Package s3 serves page files stored as Amazon S3 objects.
//
// # Usage
//
//	src, err := s3.NewFromDefaultConfig(ctx, "my-bucket", "indexes/docs.vpg")
//	if err != nil { ... }
//
//	f, err := pager.OpenFile(src)
//
// # Features
//
//   - Ranged GetObject per cache miss, no local copy of the file
//   - Streaming uploads through the S3 upload manager
//   - Narrow client interface for testing against mocks
package s3
