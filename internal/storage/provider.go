package storage

import "loopmix/internal/ports"

// Provider is the storage contract the worker publishes through. It is an
// alias to ports.StorageProvider to keep call-sites simple.
type Provider = ports.StorageProvider
