package snowflake

import (
	"errors"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	errInvalidMachineID    = errors.New("invalid snowflake machine id")
	errInvalidDataCenterID = errors.New("invalid snowflake datacenter id")
)

// Generator 生成请求 ID
type Generator struct {
	node *snowflake.Node
}

// NewGenerator datacenterID 和 machineID 都是 0~31
func NewGenerator(machineID, dataCenterID int64) (*Generator, error) {
	if machineID < 0 || machineID > 31 {
		return nil, errInvalidMachineID
	}
	if dataCenterID < 0 || dataCenterID > 31 {
		return nil, errInvalidDataCenterID
	}

	node, err := snowflake.NewNode((dataCenterID << 5) | machineID)
	if err != nil {
		return nil, err
	}

	return &Generator{node: node}, nil
}

func (g *Generator) NextID() int64 {
	return g.node.Generate().Int64()
}

func (g *Generator) NextString() string {
	return strconv.FormatInt(g.NextID(), 10)
}

var (
	defaultGen *Generator
	once       sync.Once
	initErr    error
)

// Init 初始化进程级默认生成器
func Init(machineID, dataCenterID int64) error {
	once.Do(func() {
		defaultGen, initErr = NewGenerator(machineID, dataCenterID)
	})

	return initErr
}

// Default 返回 Init 创建的生成器，未初始化时为 nil
func Default() *Generator {
	return defaultGen
}
