package describe

import "sync"

// audioCache is a thread-safe LRU cache of synthesized audio artifacts,
// keyed by alert content fingerprint. A bounded cache keeps repeat requests
// for the same warning off the synthesis engine without letting long-lived
// processes accumulate every artifact ever spoken.
type audioCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value AudioRef
	prev  *entry
	next  *entry
}

func newAudioCache(maxEntries int) *audioCache {
	return &audioCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *audioCache) get(key string) (AudioRef, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return AudioRef{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *audioCache) put(key string, value AudioRef) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *audioCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *audioCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *audioCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *audioCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
