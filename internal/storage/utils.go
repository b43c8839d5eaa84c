package storage

// InitStore opens the journal database and applies pending migrations.
func InitStore(dsn string) (*SQLStore, error) {
	store, err := NewSQLStore(dsn)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}
