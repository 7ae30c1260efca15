package conversation

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// DefaultMaxNodes bounds the number of cached message nodes.
const DefaultMaxNodes = 500

// Cache is the keyed store of message nodes. The map itself is guarded by a
// short-lived cache mutex; every node carries its own lock for population and
// mutation, so concurrent conversations only contend on nodes they share.
type Cache struct {
	mu       sync.Mutex
	nodes    map[NodeID]*Node
	maxNodes int
}

func NewCache(maxNodes int) *Cache {
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}
	return &Cache{
		nodes:    make(map[NodeID]*Node),
		maxNodes: maxNodes,
	}
}

// GetOrCreate returns the node for id, inserting a fresh empty node if none
// exists. Insertion is atomic: concurrent callers for the same key always get
// the same node object.
func (c *Cache) GetOrCreate(id NodeID) *Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	if node, ok := c.nodes[id]; ok {
		return node
	}
	node := &Node{}
	c.nodes[id] = node
	return node
}

// Get returns the node for id without creating one.
func (c *Cache) Get(id NodeID) (*Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	node, ok := c.nodes[id]
	return node, ok
}

// Len returns the number of cached nodes, for diagnostics.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.nodes)
}

// EvictToCapacity removes the lowest-keyed (oldest) nodes until at most
// maxNodes remain. Each victim's lock is taken before removal so a node is
// never destroyed mid-population; the cache mutex is only held for the brief
// map operations, never across a node lock acquisition.
func (c *Cache) EvictToCapacity() {
	c.mu.Lock()
	overflow := len(c.nodes) - c.maxNodes
	if overflow <= 0 {
		c.mu.Unlock()
		return
	}
	keys := make([]NodeID, 0, len(c.nodes))
	for id := range c.nodes {
		keys = append(keys, id)
	}
	c.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	evicted := 0
	for _, id := range keys[:overflow] {
		node, ok := c.Get(id)
		if !ok {
			// already gone, e.g. removed by a concurrent eviction
			continue
		}
		node.Lock()
		c.mu.Lock()
		if _, still := c.nodes[id]; still {
			delete(c.nodes, id)
			evicted++
		}
		c.mu.Unlock()
		node.Unlock()
	}

	if evicted > 0 {
		log.Debug().Int("evicted", evicted).Int("remaining", c.Len()).Msg("evicted oldest message nodes")
	}
}
