package ledger

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// codec compresses snapshot bodies. Encoders and decoders are pooled.
type codec struct {
	minSize  int
	encoders sync.Pool
	decoders sync.Pool
}

func newCodec(minSize int) (*codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating encoder: %w", err)
	}
	enc.Close()

	return &codec{
		minSize: minSize,
		encoders: sync.Pool{
			New: func() any {
				enc, _ := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
				return enc
			},
		},
		decoders: sync.Pool{
			New: func() any {
				dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
				return dec
			},
		},
	}, nil
}

// compress returns content unchanged when it is below minSize.
func (c *codec) compress(content []byte) []byte {
	if len(content) < c.minSize {
		return content
	}
	enc := c.encoders.Get().(*zstd.Encoder)
	defer c.encoders.Put(enc)
	return enc.EncodeAll(content, nil)
}

func (c *codec) decompress(data []byte) ([]byte, error) {
	if len(data) < len(zstdMagic) || !bytes.Equal(data[:len(zstdMagic)], zstdMagic) {
		return data, nil
	}
	dec := c.decoders.Get().(*zstd.Decoder)
	defer c.decoders.Put(dec)

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing: %w", err)
	}
	return out, nil
}
