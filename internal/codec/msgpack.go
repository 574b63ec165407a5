// Package codec encodes websocket frames as MessagePack.
package codec

import (
	"fmt"

	"github.com/dkeye/Hexo/internal/core"
	"github.com/dkeye/Hexo/internal/domain"
	ugcodec "github.com/ugorji/go/codec"
)

var mh = newHandle()

func newHandle() *ugcodec.MsgpackHandle {
	h := &ugcodec.MsgpackHandle{}
	h.WriteExt = true
	h.RawToString = true
	return h
}

func Marshal(v any) ([]byte, error) {
	var out []byte
	if err := ugcodec.NewEncoderBytes(&out, mh).Encode(v); err != nil {
		return nil, fmt.Errorf("msgpack encode: %w", err)
	}
	return out, nil
}

func Unmarshal(data []byte, v any) error {
	if err := ugcodec.NewDecoderBytes(data, mh).Decode(v); err != nil {
		return fmt.Errorf("msgpack decode: %w", err)
	}
	return nil
}

func EncodeEvent(ev domain.Event) (core.Frame, error) {
	b, err := Marshal(ev)
	if err != nil {
		return nil, err
	}
	return core.Frame(b), nil
}

func DecodeRequest(f core.Frame) (domain.Request, error) {
	var req domain.Request
	err := Unmarshal(f, &req)
	return req, err
}

func DecodeHandshake(f core.Frame) (domain.Handshake, error) {
	var hs domain.Handshake
	err := Unmarshal(f, &hs)
	return hs, err
}
