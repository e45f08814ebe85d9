package repositories

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
)

func compress(value []byte) []byte {
	return encoder.EncodeAll(value, make([]byte, 0, len(value)))
}

func decompress(stored []byte) ([]byte, error) {
	value, err := decoder.DecodeAll(stored, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress value: %v", err)
	}
	return value, nil
}
