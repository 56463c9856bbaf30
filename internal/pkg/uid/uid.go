// Package uid generates notification ids (snowflake) and correlation ids (UUIDv7).
package uid

import (
	"hash/fnv"
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

type NumberID interface {
	Generate() int64
}

type StringID interface {
	Generate() string
}

// Snowflake ids sort by creation time, which keeps the newest-first list
// query on the primary key.
type Snowflake struct {
	node *snowflake.Node
}

// NewSnowflake derives the node number (0-1023) from the hostname so replicas
// do not collide.
func NewSnowflake() (*Snowflake, error) {
	node := int64(1)
	if host, err := os.Hostname(); err == nil && host != "" {
		h := fnv.New32a()
		_, _ = h.Write([]byte(host))
		node = int64(h.Sum32() % 1024)
	}

	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, err
	}
	return &Snowflake{node: n}, nil
}

func (s *Snowflake) Generate() int64 {
	return s.node.Generate().Int64()
}

type UUID struct{}

func NewUUID() UUID { return UUID{} }

// Generate returns a UUIDv7, falling back to v4 if the clock source fails.
func (UUID) Generate() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
