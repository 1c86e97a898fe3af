package embed

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// tensorInfo is one entry of the safetensors JSON header.
type tensorInfo struct {
	DType       string  `json:"dtype"`
	Shape       []int   `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// Matrix is a dense row-major float32 embedding table.
type Matrix struct {
	Rows int
	Cols int
	data []float32
}

// Row returns row i of the matrix. The slice aliases the table; callers
// must not modify it.
func (m *Matrix) Row(i int) []float32 {
	return m.data[i*m.Cols : (i+1)*m.Cols]
}

// LoadMatrix reads the named tensor from a safetensors payload on disk.
// Payloads ending in .zst are decompressed transparently.
func LoadMatrix(path, tensorName string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening model payload: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("opening zstd payload: %w", err)
		}
		defer dec.Close()
		r = dec
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading model payload: %w", err)
	}

	return ParseMatrix(payload, tensorName)
}

// ParseMatrix extracts the named 2-D float32 tensor from a safetensors
// payload: an 8-byte little-endian header length, the JSON header, then
// the raw tensor bytes referenced by the header's data offsets.
func ParseMatrix(payload []byte, tensorName string) (*Matrix, error) {
	if len(payload) < 8 {
		return nil, fmt.Errorf("payload truncated: %d bytes", len(payload))
	}

	headerLen := binary.LittleEndian.Uint64(payload[:8])
	if headerLen > uint64(len(payload)-8) {
		return nil, fmt.Errorf("header length %d exceeds payload", headerLen)
	}

	var header map[string]json.RawMessage
	if err := json.Unmarshal(payload[8:8+headerLen], &header); err != nil {
		return nil, fmt.Errorf("parsing tensor header: %w", err)
	}

	raw, ok := header[tensorName]
	if !ok {
		return nil, fmt.Errorf("tensor %q not present in payload", tensorName)
	}

	var info tensorInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("parsing tensor %q: %w", tensorName, err)
	}

	if info.DType != "F32" {
		return nil, fmt.Errorf("tensor %q has dtype %s, want F32", tensorName, info.DType)
	}
	if len(info.Shape) != 2 {
		return nil, fmt.Errorf("tensor %q has rank %d, want 2", tensorName, len(info.Shape))
	}

	rows, cols := info.Shape[0], info.Shape[1]
	start := 8 + int64(headerLen) + info.DataOffsets[0]
	end := 8 + int64(headerLen) + info.DataOffsets[1]
	if start < 0 || end > int64(len(payload)) || end < start {
		return nil, fmt.Errorf("tensor %q data offsets out of range", tensorName)
	}
	if end-start != int64(rows*cols*4) {
		return nil, fmt.Errorf("tensor %q has %d bytes, want %d", tensorName, end-start, rows*cols*4)
	}

	data := make([]float32, rows*cols)
	buf := payload[start:end]
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}

	return &Matrix{Rows: rows, Cols: cols, data: data}, nil
}
