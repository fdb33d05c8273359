package otel

import (
	"github.com/cloudwego/hertz/pkg/protocol"
	"go.opentelemetry.io/otel/propagation"
)

var _ propagation.TextMapCarrier = HeaderCarrier{}

// HeaderCarrier 让 propagator 直接读写 Hertz 请求头
type HeaderCarrier struct {
	header *protocol.RequestHeader
}

func NewHeaderCarrier(header *protocol.RequestHeader) HeaderCarrier {
	return HeaderCarrier{header: header}
}

func (c HeaderCarrier) Get(key string) string {
	return string(c.header.Peek(key))
}

func (c HeaderCarrier) Set(key, value string) {
	c.header.Set(key, value)
}

func (c HeaderCarrier) Keys() []string {
	keys := make([]string, 0, 8)
	c.header.VisitAll(func(k, _ []byte) {
		keys = append(keys, string(k))
	})
	return keys
}
