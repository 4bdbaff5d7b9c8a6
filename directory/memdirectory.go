package directory

import (
	"context"
)

/*
memDirectory is an in-memory implementation of the directory interface. It is
only suitable for usage in testing.
*/

////////////////////////////////////////////////////////////////////////////////

type memDirectory struct {
	catalog
}

// NewMemDirectory returns an empty in-memory directory.
func NewMemDirectory() Directory {
	return &memDirectory{catalog: newCatalog()}
}

func (m *memDirectory) Register(_ context.Context, d Descriptor) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if err := m.check(d); err != nil {
		return err
	}
	m.shards = append(m.shards, d)
	return nil
}

func (m *memDirectory) Resolve(i uint64) (Location, error) {
	return m.resolve(i), nil
}

func (m *memDirectory) List() []Descriptor {
	return m.list()
}
