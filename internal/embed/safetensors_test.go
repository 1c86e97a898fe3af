package embed

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
)

// buildPayload assembles a safetensors payload with one F32 tensor.
func buildPayload(t *testing.T, name string, rows, cols int, values []float32) []byte {
	t.Helper()
	if len(values) != rows*cols {
		t.Fatalf("buildPayload: %d values for %dx%d", len(values), rows, cols)
	}

	data := make([]byte, 4*len(values))
	for i, f := range values {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(f))
	}

	header := fmt.Sprintf(
		`{"%s":{"dtype":"F32","shape":[%d,%d],"data_offsets":[0,%d]}}`,
		name, rows, cols, len(data),
	)

	payload := make([]byte, 8, 8+len(header)+len(data))
	binary.LittleEndian.PutUint64(payload, uint64(len(header)))
	payload = append(payload, header...)
	payload = append(payload, data...)
	return payload
}

func TestParseMatrix(t *testing.T) {
	values := []float32{1, 2, 3, 4, 5, 6}
	payload := buildPayload(t, "weights", 2, 3, values)

	m, err := ParseMatrix(payload, "weights")
	if err != nil {
		t.Fatalf("ParseMatrix() error = %v", err)
	}
	if m.Rows != 2 || m.Cols != 3 {
		t.Fatalf("shape = %dx%d, want 2x3", m.Rows, m.Cols)
	}

	row := m.Row(1)
	for i, want := range []float32{4, 5, 6} {
		if row[i] != want {
			t.Errorf("Row(1)[%d] = %v, want %v", i, row[i], want)
		}
	}
}

func TestParseMatrixErrors(t *testing.T) {
	good := buildPayload(t, "weights", 1, 2, []float32{1, 2})

	tests := []struct {
		name    string
		payload []byte
		tensor  string
		wantIn  string
	}{
		{"truncated", []byte{1, 2, 3}, "weights", "truncated"},
		{"header overruns", append([]byte{255, 255, 255, 255, 255, 255, 255, 255}, 'x'), "weights", "exceeds payload"},
		{"missing tensor", good, "other", "not present"},
		{"bad json", func() []byte {
			p := make([]byte, 8, 12)
			binary.LittleEndian.PutUint64(p, 4)
			return append(p, "{{{{"...)
		}(), "weights", "parsing tensor header"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMatrix(tt.payload, tt.tensor)
			if err == nil {
				t.Fatal("ParseMatrix() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantIn) {
				t.Errorf("error = %q, want substring %q", err, tt.wantIn)
			}
		})
	}
}

func TestParseMatrixWrongDType(t *testing.T) {
	header := `{"w":{"dtype":"F16","shape":[1,1],"data_offsets":[0,2]}}`
	payload := make([]byte, 8, 8+len(header)+2)
	binary.LittleEndian.PutUint64(payload, uint64(len(header)))
	payload = append(payload, header...)
	payload = append(payload, 0, 0)

	_, err := ParseMatrix(payload, "w")
	if err == nil || !strings.Contains(err.Error(), "F32") {
		t.Errorf("ParseMatrix(F16) error = %v, want dtype complaint", err)
	}
}

func TestParseMatrixWrongRank(t *testing.T) {
	header := `{"w":{"dtype":"F32","shape":[4],"data_offsets":[0,16]}}`
	payload := make([]byte, 8, 8+len(header)+16)
	binary.LittleEndian.PutUint64(payload, uint64(len(header)))
	payload = append(payload, header...)
	payload = append(payload, make([]byte, 16)...)

	_, err := ParseMatrix(payload, "w")
	if err == nil || !strings.Contains(err.Error(), "rank") {
		t.Errorf("ParseMatrix(rank 1) error = %v, want rank complaint", err)
	}
}

func TestParseMatrixByteCountMismatch(t *testing.T) {
	header := `{"w":{"dtype":"F32","shape":[2,2],"data_offsets":[0,8]}}`
	payload := make([]byte, 8, 8+len(header)+8)
	binary.LittleEndian.PutUint64(payload, uint64(len(header)))
	payload = append(payload, header...)
	payload = append(payload, make([]byte, 8)...)

	_, err := ParseMatrix(payload, "w")
	if err == nil || !strings.Contains(err.Error(), "want 16") {
		t.Errorf("ParseMatrix(short data) error = %v, want byte count complaint", err)
	}
}

func TestLoadMatrixPlainFile(t *testing.T) {
	payload := buildPayload(t, "weights", 2, 2, []float32{1, 2, 3, 4})
	path := filepath.Join(t.TempDir(), "model.safetensors")
	if err := os.WriteFile(path, payload, 0644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadMatrix(path, "weights")
	if err != nil {
		t.Fatalf("LoadMatrix() error = %v", err)
	}
	if m.Rows != 2 || m.Cols != 2 {
		t.Errorf("shape = %dx%d, want 2x2", m.Rows, m.Cols)
	}
}

func TestLoadMatrixZstd(t *testing.T) {
	payload := buildPayload(t, "weights", 2, 2, []float32{1, 2, 3, 4})
	path := filepath.Join(t.TempDir(), "model.safetensors.zst")

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Write(payload); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	m, err := LoadMatrix(path, "weights")
	if err != nil {
		t.Fatalf("LoadMatrix(.zst) error = %v", err)
	}
	if m.Row(1)[1] != 4 {
		t.Errorf("Row(1)[1] = %v, want 4", m.Row(1)[1])
	}
}
