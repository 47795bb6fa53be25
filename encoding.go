package termpix

import (
	"encoding/base64"
	"sync"
)

const (
	// ChunkSize is the kitty protocol's maximum escape-sequence payload.
	ChunkSize = 4096
	// base64ChunkSize is the raw byte count that base64-encodes to ChunkSize.
	base64ChunkSize = 3 * ChunkSize / 4
)

// Base64 encoder pool to reuse encoding buffers across frames.
var base64EncoderPool = sync.Pool{
	New: func() any {
		buf := make([]byte, 0, ChunkSize*2)
		return &buf
	},
}

// base64Encode encodes with buffer reuse; encode jobs run hot when a widget
// resizes continuously.
func base64Encode(src []byte) string {
	bufPtr := base64EncoderPool.Get().(*[]byte)
	defer base64EncoderPool.Put(bufPtr)

	encodedLen := base64.StdEncoding.EncodedLen(len(src))
	if cap(*bufPtr) < encodedLen {
		*bufPtr = make([]byte, encodedLen)
	} else {
		*bufPtr = (*bufPtr)[:encodedLen]
	}

	base64.StdEncoding.Encode(*bufPtr, src)
	return string(*bufPtr)
}

// chunkBase64 base64-encodes data and splits the result into chunks of at
// most chunkSize characters. Splitting happens on raw-byte boundaries that
// are multiples of three, so every chunk is independently valid base64 and
// their concatenation decodes to the original data.
func chunkBase64(data []byte, chunkSize int) []string {
	rawChunk := chunkSize / 4 * 3
	if rawChunk <= 0 {
		rawChunk = base64ChunkSize
	}

	numChunks := (len(data) + rawChunk - 1) / rawChunk
	if numChunks == 0 {
		numChunks = 1
	}
	results := make([]string, 0, numChunks)
	if len(data) == 0 {
		return append(results, "")
	}

	for i := 0; i < len(data); i += rawChunk {
		end := min(i+rawChunk, len(data))
		results = append(results, base64Encode(data[i:end]))
	}
	return results
}
