package client

import (
	"context"
	"net/http"

	"github.com/brianvoe/gofakeit/v7"

	"OTelDemo/internal/model"
)

// gofakeit 的种子为 0 时使用随机种子
const zeroIDSeed = 0x9e3779b97f4a7c15

// FakerClient 按 id 生成确定的假用户，总是返回 200
type FakerClient struct{}

func NewFakerClient() *FakerClient {
	return &FakerClient{}
}

func (FakerClient) GetUser(_ context.Context, id int64) (*model.User, int) {
	seed := uint64(id)
	if seed == 0 {
		seed = zeroIDSeed
	}

	f := gofakeit.New(seed)

	return &model.User{
		ID:      id,
		Name:    f.Name(),
		Address: f.Address().Address,
	}, http.StatusOK
}
