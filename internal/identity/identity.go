// Package identity persists the local player's identity across restarts. The
// record is created once, on the first successful registration, and never
// mutated afterwards; re-registering replaces it wholesale.
package identity

// LocalIdentity is the stable identity of the local player. ID is assigned by
// the authority on registration and is the only key that survives reconnects.
type LocalIdentity struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
}

// Store loads and saves the single local identity record. Load returns
// (nil, nil) when no identity has been persisted yet.
type Store interface {
	Load() (*LocalIdentity, error)
	Save(*LocalIdentity) error
}

// MemStore is an in-memory Store for tests.
type MemStore struct {
	ident *LocalIdentity
}

func NewMemStore(ident *LocalIdentity) *MemStore {
	return &MemStore{ident: ident}
}

func (s *MemStore) Load() (*LocalIdentity, error) {
	if s.ident == nil {
		return nil, nil
	}
	cp := *s.ident
	return &cp, nil
}

func (s *MemStore) Save(ident *LocalIdentity) error {
	cp := *ident
	s.ident = &cp
	return nil
}
