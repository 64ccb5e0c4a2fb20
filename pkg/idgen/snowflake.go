package idgen

import (
	"fmt"
	"sync"
	"time"

	sf "github.com/bwmarrin/snowflake"
)

// Node 雪花ID生成节点。同一节点生成的ID严格递增
type Node struct {
	node *sf.Node
}

var (
	defaultNode *Node
	defaultMu   sync.RWMutex
)

// New 创建ID生成节点，machineID 取值 0-1023
func New(machineID int64) (*Node, error) {
	node, err := sf.NewNode(machineID)
	if err != nil {
		return nil, fmt.Errorf("创建雪花节点失败: %w", err)
	}
	return &Node{node: node}, nil
}

// MustNew 创建ID生成节点，失败时panic
func MustNew(machineID int64) *Node {
	n, err := New(machineID)
	if err != nil {
		panic(err)
	}
	return n
}

// Next 生成下一个ID
func (n *Node) Next() int64 {
	return n.node.Generate().Int64()
}

// Init 初始化全局节点
// startTime: 起始时间，格式："2006-01-02"
// machineID: 机器ID (0-1023)
func Init(startTime string, machineID int64) error {
	st, err := time.Parse("2006-01-02", startTime)
	if err != nil {
		return fmt.Errorf("解析雪花起始时间失败: %w", err)
	}
	sf.Epoch = st.UnixMilli()

	n, err := New(machineID)
	if err != nil {
		return err
	}

	defaultMu.Lock()
	defaultNode = n
	defaultMu.Unlock()
	return nil
}

// Default 获取全局节点
func Default() *Node {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultNode
}
