package rpc

import (
	"github.com/sugawarayuuta/sonnet"
	"google.golang.org/grpc/encoding"
)

// CodecName content-subtype，请求头为 application/grpc+json
const CodecName = "json"

// jsonCodec 消息直接用 JSON 编码，和 HTTP 接口共用同一套结构
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return sonnet.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return sonnet.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
