// Package idgen 基于 snowflake 生成全局递增的 int64 ID
package idgen

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Generator ID 生成接口
type Generator interface {
	NextID() int64
}

// Snowflake snowflake 节点
type Snowflake struct {
	node *snowflake.Node
}

// New 创建节点，nodeID 取值 0-1023
func New(nodeID int64) (*Snowflake, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node %d: %w", nodeID, err)
	}
	return &Snowflake{node: node}, nil
}

// NextID 生成下一个 ID
func (s *Snowflake) NextID() int64 {
	return s.node.Generate().Int64()
}
