// Package vecscan provides query-time approximate nearest neighbor search
// over prebuilt HNSW graphs.
//
// Vecscan separates the graph from the payloads it indexes: an hnsw.Graph
// orders candidate nodes by distance, and a pager resolves their record
// refs to payload bytes from slotted page files. The page file can live on
// local disk, in memory, behind mmap, or in object storage (S3, MinIO),
// and pages are fetched and cached on demand.
//
// # Quick Start
//
//	g, _ := hnsw.NewMemoryGraph(128)
//	mem := pager.NewMemory()
//	for i, v := range vectors {
//	    ref := mem.Append(payloads[i])
//	    _, _ = g.Insert(ctx, v, ref)
//	}
//
//	e, _ := vecscan.New(g, mem)
//	defer e.Close()
//
//	for rec, err := range e.Search(ctx, query, 10) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(rec.Ref, rec.Distance)
//	}
//
// # Cursors
//
// Search is a convenience wrapper around the cursor API. A cursor runs
// the graph descent lazily on the first Next, streams records in
// ascending distance order, and keeps the page of the current record
// pinned until it moves on:
//
//	cur, _ := e.Open()
//	defer cur.Close()
//
//	_ = cur.Rescan(query)
//	for cur.Next(ctx) {
//	    rec := cur.Record()
//	    use(rec.Payload) // valid until the next cursor call
//	}
//	if err := cur.Err(); err != nil {
//	    return err
//	}
//
// Rescan rewinds an open cursor for a new query without rebuilding it.
//
// # Key Features
//
//   - HNSW layered descent with bounded best-first beam at layer zero
//   - Streaming cursor with pin-disciplined page access
//   - Slotted page files with per-page checksums and optional LZ4 compression
//   - Graph snapshots (zstd-compressed, checksummed)
//   - Remote page sources (S3, MinIO) with ranged reads
//   - Manifest catalog on filesystem or DynamoDB
package vecscan
