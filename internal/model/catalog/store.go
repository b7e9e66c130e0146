package catalog

// Store exposes model lookup for handlers and the terminal UI.
type Store interface {
	List() []Model
	FindByID(id string) (Model, bool)
	Default() Model
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Model
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied models.
func NewMemoryStore(items []Model) *MemoryStore {
	return &MemoryStore{items: append([]Model(nil), items...)}
}

// List returns the models in dropdown order.
func (s *MemoryStore) List() []Model {
	return append([]Model(nil), s.items...)
}

// FindByID looks up a model by identifier.
func (s *MemoryStore) FindByID(id string) (Model, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Model{}, false
}

// Default returns the first model, or the zero Model for an empty store.
func (s *MemoryStore) Default() Model {
	if len(s.items) == 0 {
		return Model{}
	}
	return s.items[0]
}

// Next returns the model after id, wrapping around. Unknown ids yield the default.
func (s *MemoryStore) Next(id string) Model {
	for i, item := range s.items {
		if item.ID == id {
			return s.items[(i+1)%len(s.items)]
		}
	}
	return s.Default()
}
