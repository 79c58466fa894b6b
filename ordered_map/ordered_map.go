package orderedmap

// OrderedMap is a map that iterates in insertion order. Overwriting a key
// keeps its original position.
type OrderedMap[K comparable, V any] struct {
	underlying map[K]V
	order      []K
}

func NewOrderedMap[K comparable, V any]() *OrderedMap[K, V] {
	return &OrderedMap[K, V]{
		underlying: make(map[K]V),
		order:      make([]K, 0),
	}
}

func (m *OrderedMap[K, V]) Set(key K, value V) {
	if _, ok := m.underlying[key]; !ok {
		m.order = append(m.order, key)
	}
	m.underlying[key] = value
}

// SetIfAbsent stores value only when key is new and reports whether it did
func (m *OrderedMap[K, V]) SetIfAbsent(key K, value V) bool {
	if _, ok := m.underlying[key]; ok {
		return false
	}
	m.underlying[key] = value
	m.order = append(m.order, key)
	return true
}

func (m *OrderedMap[K, V]) Get(key K) (V, bool) {
	value, ok := m.underlying[key]
	return value, ok
}

func (m *OrderedMap[K, V]) Has(key K) bool {
	_, ok := m.underlying[key]
	return ok
}

// Index returns the insertion position of key, or -1
func (m *OrderedMap[K, V]) Index(key K) int {
	for i, k := range m.order {
		if k == key {
			return i
		}
	}

	return -1
}

func (m *OrderedMap[K, V]) Keys() []K {
	return m.order
}

func (m *OrderedMap[K, V]) Values() []V {
	values := make([]V, len(m.order))
	for i, k := range m.order {
		values[i] = m.underlying[k]
	}
	return values
}

func (m *OrderedMap[K, V]) Len() int {
	return len(m.order)
}
