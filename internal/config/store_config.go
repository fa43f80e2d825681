package config

import "time"

type StoreConfig interface {
	GetDatabaseURL() string
	GetStoreTimeout() time.Duration
	GetMaxOpenConns() int
	GetMaxIdleConns() int
}

type Store struct{}

var _ StoreConfig = Store{}

func (Store) GetDatabaseURL() string {
	return GetEnv(databaseURL, "")
}

// GetStoreTimeout bounds every session-store round trip.
func (Store) GetStoreTimeout() time.Duration {
	return 3 * time.Second
}

func (Store) GetMaxOpenConns() int {
	return 10
}

func (Store) GetMaxIdleConns() int {
	return 5
}
