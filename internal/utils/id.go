package utils

import (
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

// DefaultNode is used until SetSnowflakeNode is called.
const DefaultNode int64 = 1

var (
	nodeMu sync.Mutex
	node   *snowflake.Node
)

// NewKSUID returns a random, time-ordered, URL-safe identifier.
func NewKSUID() string { return ksuid.New().String() }

// SetSnowflakeNode selects the node number (0..1023) embedded in every
// id generated afterwards.  Processes sharing a broker need distinct
// nodes.
func SetSnowflakeNode(n int64) error {
	nd, err := snowflake.NewNode(n)
	if err != nil {
		return err
	}
	nodeMu.Lock()
	node = nd
	nodeMu.Unlock()
	return nil
}

// NewSnowflakeID returns a Snowflake id as a decimal string.
func NewSnowflakeID() string {
	nodeMu.Lock()
	if node == nil {
		node, _ = snowflake.NewNode(DefaultNode)
	}
	nd := node
	nodeMu.Unlock()
	return nd.Generate().String()
}
