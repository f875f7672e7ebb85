/*
Package sessionkit is the clustered web-session caching core: many concurrent request
goroutines share, mutate and replicate one web session through a cache backend, while the
replicated form stays compact and the in-process API keeps single-node semantics.

Each session is mapped onto three cache entries: a creation entry (creation time, timeout),
an access entry (last access relative to creation) and an attribute map. Metadata entries
are encoded field by field with protobuf wire primitives and default values omitted, so the
entry written on every request is usually a few bytes.

# Usage

	kit, err := sessionkit.New(sessionkit.WithDefaultTimeout(20 * time.Minute))
	if err != nil {
		log.Fatal(err)
	}
	defer kit.Close()

	ctx, batch, err := kit.Batcher.CreateBatch(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	s, err := kit.Manager.CreateSession(ctx, kit.Manager.CreateIdentifier())
	if err != nil {
		log.Fatal(err)
	}
	s.Attributes().Set("user", "alice")
	s.Close(ctx)
	batch.Close(ctx)

Backends are selected with WithStore or WithRedis; WithEncryption seals every entry with
AES-256-GCM and WithLocking keeps a session exclusive to one node while it is in use.
The pkg/adapters/http package binds sessions to HTTP requests.
*/
package sessionkit
