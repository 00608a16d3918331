package badger

// NewMemoryRepositories creates in-memory repositories for testing
// and for the dry-run pipeline mode. Data is lost on Close.
func NewMemoryRepositories() (*CheckpointRepository, *FetchCacheRepository, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, nil, err
	}
	return NewCheckpointRepository(backend), NewFetchCacheRepository(backend), backend, nil
}
