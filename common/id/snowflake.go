package id

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

// DefaultNodeID is used when New is called before Init, as in tests and the
// single-process workspace CLI.
const DefaultNodeID = 1

var (
	mu     sync.Mutex
	node   *snowflake.Node
	nodeID int64
)

// Init initializes the Snowflake node with the given node ID. Calling it
// again with the same ID is a no-op; a different ID is an error, including
// when New already created the default node.
func Init(id int64) error {
	mu.Lock()
	defer mu.Unlock()

	if node != nil {
		if id != nodeID {
			return fmt.Errorf("snowflake node already created with id %d, cannot switch to %d", nodeID, id)
		}
		return nil
	}

	n, err := snowflake.NewNode(id)
	if err != nil {
		return fmt.Errorf("creating snowflake node %d: %w", id, err)
	}
	node, nodeID = n, id
	return nil
}

// New generates a new globally unique int64 ID using the Snowflake algorithm.
// IDs are time-ordered and unique across distributed instances.
func New() int64 {
	return current().Generate().Int64()
}

// NewString is New rendered in base 10, the form used on the wire.
func NewString() string {
	return current().Generate().String()
}

func current() *snowflake.Node {
	mu.Lock()
	defer mu.Unlock()
	if node == nil {
		node, _ = snowflake.NewNode(DefaultNodeID)
		nodeID = DefaultNodeID
	}
	return node
}
