// Package persist saves store values to a backend and restores them.
//
// A Backend stores opaque snapshots by key:
//
//	backend := persist.NewFileBackend(".vstore")
//	// or
//	backend := persist.NewS3Backend(s3Client, "my-bucket", "stores/")
//	// or (tests, single process)
//	backend := persist.NewMemoryBackend()
//
// Bind restores a store from its snapshot and saves every later value:
//
//	cart := store.New([]Item{})
//	binding, err := persist.Bind(ctx, cart, backend, "cart")
//	if err != nil {
//	    return err
//	}
//	defer binding.Close()
//
// Values are encoded inside the store notification and written by a
// background goroutine. Bursts of changes collapse into one write of the
// latest value.
package persist
