package tracker

// UserIDKey is the storage key holding the signed in user's identifier.
const UserIDKey = "userId"

// Storage is the host's persistent key/value store (localStorage in a browser).
type Storage interface {
	Get(key string) (string, bool)
}

// MapStorage is an in-memory Storage.
type MapStorage map[string]string

func (m MapStorage) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func storedUserID(s Storage) *string {
	if s == nil {
		return nil
	}
	v, ok := s.Get(UserIDKey)
	if !ok || v == "" {
		return nil
	}
	return &v
}
