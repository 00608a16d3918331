// Package storage provides the storage abstraction layer for legisport.
//
// This package defines repository interfaces that decouple storage
// implementation from pipeline logic: the checkpoint store tracking
// per-(type, year) ingestion progress, and the fetch cache persisting
// one entry per retrieved URL with a TTL.
//
// Public constructors in implementation packages return these
// interfaces to enforce abstraction:
//
//	repo, err := badger.NewCheckpointRepository(backend)  // storage.CheckpointRepository
//
// All repository implementations must be thread-safe; the checkpoint
// store in particular is the pipeline's only shared mutable state and
// is accessed concurrently from every worker.
package storage
