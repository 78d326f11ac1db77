package sitingv1

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName подтип content-type для gRPC и кодек для connect
const CodecName = "json"

// Codec JSON кодек сообщений сервиса. Подходит и для grpc (encoding.Codec),
// и для connect (connect.Codec).
type Codec struct{}

// Name имя кодека
func (Codec) Name() string { return CodecName }

// Marshal кодирует сообщение
func (Codec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal декодирует сообщение
func (Codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func init() {
	encoding.RegisterCodec(Codec{})
}
