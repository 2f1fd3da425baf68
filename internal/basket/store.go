// Package basket accumulates per-customer product sets from transaction rows.
package basket

// Store holds baskets: the distinct products bought by each customer.
//
// Implementations must iterate customers in the order they were first added,
// and each basket's products in the order they were first added to it. The
// graph build relies on this for reproducible output.
type Store interface {
	// Add records that user bought product. Repeated pairs are ignored.
	Add(user, product string) error
	// Basket returns the products bought by user, or nil if user is unknown.
	Basket(user string) ([]string, error)
	// Each calls fn once per customer.
	Each(fn func(user string, products []string) error) error
	// Customers returns the number of distinct customers.
	Customers() int
	Close() error
}

// MemoryStore keeps every basket resident. Memory is proportional to
// distinct customers times average basket size.
type MemoryStore struct {
	users   []string
	baskets map[string]*productSet
}

// productSet is an insertion-ordered set.
type productSet struct {
	order []string
	seen  map[string]struct{}
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{baskets: make(map[string]*productSet)}
}

// Add implements Store.
func (m *MemoryStore) Add(user, product string) error {
	set, ok := m.baskets[user]
	if !ok {
		set = &productSet{seen: make(map[string]struct{})}
		m.baskets[user] = set
		m.users = append(m.users, user)
	}
	if _, dup := set.seen[product]; dup {
		return nil
	}
	set.seen[product] = struct{}{}
	set.order = append(set.order, product)
	return nil
}

// Basket implements Store.
func (m *MemoryStore) Basket(user string) ([]string, error) {
	set, ok := m.baskets[user]
	if !ok {
		return nil, nil
	}
	return set.order, nil
}

// Each implements Store.
func (m *MemoryStore) Each(fn func(user string, products []string) error) error {
	for _, user := range m.users {
		if err := fn(user, m.baskets[user].order); err != nil {
			return err
		}
	}
	return nil
}

// Customers implements Store.
func (m *MemoryStore) Customers() int {
	return len(m.users)
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.baskets = nil
	m.users = nil
	return nil
}
