package gallery

import (
	"slices"

	"github.com/puzpuzpuz/xsync/v3"
)

// Store keeps image bytes in memory, keyed by file name. It is read by every
// worker and written by uploads and rescans.
type Store struct {
	images *xsync.MapOf[string, []byte]
}

func NewStore() *Store {
	return &Store{
		images: xsync.NewMapOf[string, []byte](),
	}
}

func (store *Store) Get(name string) ([]byte, bool) {
	return store.images.Load(name)
}

// Add stores content under name unless the name is taken. It reports whether
// content was stored.
func (store *Store) Add(name string, content []byte) bool {
	_, loaded := store.images.LoadOrStore(name, content)
	return !loaded
}

func (store *Store) Has(name string) bool {
	_, ok := store.images.Load(name)
	return ok
}

func (store *Store) Delete(name string) {
	store.images.Delete(name)
}

func (store *Store) Len() int {
	return store.images.Size()
}

// Names returns the stored names in lexical order.
func (store *Store) Names() []string {
	names := make([]string, 0, store.images.Size())
	store.images.Range(func(name string, _ []byte) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)
	return names
}
