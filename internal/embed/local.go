package embed

import (
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// Manifest describes an embedding model directory (model.toml).
type Manifest struct {
	Model struct {
		Weights      string `toml:"weights"`
		Vocab        string `toml:"vocab"`
		Tensor       string `toml:"tensor"`
		UnknownToken string `toml:"unknown_token"`
		Continuation string `toml:"continuation"`
		MaxWordChars int    `toml:"max_word_chars"`
	} `toml:"model"`
}

// LoadManifest reads model.toml from a model directory.
func LoadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, "model.toml"))
	if err != nil {
		return nil, fmt.Errorf("reading model manifest: %w", err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing model manifest: %w", err)
	}
	if m.Model.Weights == "" || m.Model.Vocab == "" {
		return nil, fmt.Errorf("model manifest must name weights and vocab files")
	}
	if m.Model.Tensor == "" {
		m.Model.Tensor = "embeddings.word_embeddings.weight"
	}
	return &m, nil
}

// Local is the production backend: wordpiece tokenization over a dense
// embedding table with mean pooling and L2 normalization.
type Local struct {
	vocab  *Vocab
	matrix *Matrix
}

// NewLocal builds a backend from an already-loaded vocabulary and
// table. The table must have one row per vocabulary id.
func NewLocal(vocab *Vocab, matrix *Matrix) (*Local, error) {
	if matrix.Rows < vocab.Size() {
		return nil, fmt.Errorf("embedding table has %d rows for %d vocabulary pieces",
			matrix.Rows, vocab.Size())
	}
	return &Local{vocab: vocab, matrix: matrix}, nil
}

// LoadLocal builds a backend from a model directory containing
// model.toml, the weights payload, and the vocabulary file.
func LoadLocal(dir string) (*Local, error) {
	manifest, err := LoadManifest(dir)
	if err != nil {
		return nil, err
	}

	vocab, err := LoadVocab(filepath.Join(dir, manifest.Model.Vocab), &VocabOptions{
		UnknownToken: manifest.Model.UnknownToken,
		Continuation: manifest.Model.Continuation,
		MaxWordChars: manifest.Model.MaxWordChars,
	})
	if err != nil {
		return nil, err
	}

	matrix, err := LoadMatrix(filepath.Join(dir, manifest.Model.Weights), manifest.Model.Tensor)
	if err != nil {
		return nil, err
	}

	return NewLocal(vocab, matrix)
}

// Dims returns the embedding dimensionality.
func (l *Local) Dims() int {
	return l.matrix.Cols
}

// Embed runs the full pipeline for one text.
func (l *Local) Embed(text string) ([]float32, error) {
	ids := l.vocab.Tokenize(text)

	rows := make([][]float32, 0, len(ids))
	for _, id := range ids {
		if id < 0 || id >= l.matrix.Rows {
			continue
		}
		rows = append(rows, l.matrix.Row(id))
	}

	return l2Normalize(meanPool(rows, l.matrix.Cols)), nil
}

// EmbedBatch embeds each text independently.
func (l *Local) EmbedBatch(texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := l.Embed(text)
		if err != nil {
			continue
		}
		out[i] = v
	}
	return out, nil
}
