package cache

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// Payload layout: one format byte, the uncompressed length as a big-endian
// uint32, then the msgpack body, lz4 block compressed unless it did not shrink.
const (
	formatRaw byte = 0
	formatLZ4 byte = 1

	headerSize = 5
)

func encodeEntry(e *Entry) ([]byte, error) {
	msgpackData, err := msgpack.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode MessagePack: %w", err)
	}

	compressedData := make([]byte, headerSize+lz4.CompressBlockBound(len(msgpackData)))
	var hashTable [1 << 16]int
	n, err := lz4.CompressBlock(msgpackData, compressedData[headerSize:], hashTable[:])
	if err != nil {
		return nil, fmt.Errorf("failed to compress data: %w", err)
	}

	binary.BigEndian.PutUint32(compressedData[1:headerSize], uint32(len(msgpackData)))
	if n == 0 || n >= len(msgpackData) {
		compressedData[0] = formatRaw
		return append(compressedData[:headerSize], msgpackData...), nil
	}
	compressedData[0] = formatLZ4
	return compressedData[:headerSize+n], nil
}

func decodeEntry(payload []byte) (*Entry, error) {
	if len(payload) < headerSize {
		return nil, fmt.Errorf("cache payload too small: %d bytes", len(payload))
	}
	size := int(binary.BigEndian.Uint32(payload[1:headerSize]))
	body := payload[headerSize:]

	switch payload[0] {
	case formatRaw:
	case formatLZ4:
		decompressedData := make([]byte, size)
		n, err := lz4.UncompressBlock(body, decompressedData)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress data: %w", err)
		}
		body = decompressedData[:n]
	default:
		return nil, fmt.Errorf("unknown cache payload format %d", payload[0])
	}
	if len(body) != size {
		return nil, fmt.Errorf("cache payload length mismatch: got %d, want %d", len(body), size)
	}

	dec := msgpack.NewDecoder(bytes.NewReader(body))
	dec.UseLooseInterfaceDecoding(true)
	var e Entry
	if err := dec.Decode(&e); err != nil {
		return nil, fmt.Errorf("failed to decode MessagePack: %w", err)
	}
	return &e, nil
}
