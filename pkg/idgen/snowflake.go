// 文件: pkg/idgen/snowflake.go
// 运行 ID 生成器
// 使用开源库: github.com/bwmarrin/snowflake

package idgen

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Generator 按节点生成全局唯一、大致按时间递增的 ID
type Generator struct {
	node *snowflake.Node
}

// New 创建生成器
// nodeID: 节点ID (0-1023)，同一集群内每个进程必须不同
func New(nodeID int64) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("create snowflake node %d: %w", nodeID, err)
	}
	return &Generator{node: node}, nil
}

// NextID 生成字符串形式的 ID，JSON 里用字符串避免前端丢精度
func (g *Generator) NextID() string {
	return g.node.Generate().String()
}

// NextInt64 生成整数形式的 ID
func (g *Generator) NextInt64() int64 {
	return g.node.Generate().Int64()
}
