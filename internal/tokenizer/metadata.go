package tokenizer

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// Type identifies the tokenizer model inside a fast tokenizer.json.
type Type string

const (
	// TypeBPE indicates Byte-Pair Encoding.
	TypeBPE Type = "BPE"

	// TypeWordPiece indicates WordPiece (BERT-style).
	TypeWordPiece Type = "WordPiece"

	// TypeUnigram indicates Unigram (SentencePiece-style, what T5 uses).
	TypeUnigram Type = "Unigram"

	// TypeUnknown indicates an unrecognized tokenizer model.
	TypeUnknown Type = "Unknown"
)

// Metadata summarizes a fast tokenizer.json file.
type Metadata struct {
	Type      Type
	VocabSize int
	ModelName string // raw "type" string from the file
}

// fastTokenizerFile is the partial shape of tokenizer.json we read.
// Unigram stores vocab as an array of [token, score] pairs, BPE and
// WordPiece as an object, so vocab stays raw until the type is known.
type fastTokenizerFile struct {
	Model struct {
		Type  string          `json:"type"`
		Vocab json.RawMessage `json:"vocab"`
	} `json:"model"`
	AddedTokens []struct {
		ID      int    `json:"id"`
		Content string `json:"content"`
	} `json:"added_tokens"`
}

// DetectType reads tokenizer.json and reports the tokenizer model type
// and vocabulary size. Used both to verify a copied fast tokenizer and
// to size dummy inputs when config.json is missing a vocab.
func DetectType(path string) (*Metadata, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Tokenizer path comes from user input.
	if err != nil {
		return nil, fmt.Errorf("failed to read tokenizer.json: %w", err)
	}

	var file fastTokenizerFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse tokenizer.json: %w", err)
	}

	meta := &Metadata{Type: TypeUnknown, ModelName: file.Model.Type}
	switch file.Model.Type {
	case "BPE":
		meta.Type = TypeBPE
	case "WordPiece":
		meta.Type = TypeWordPiece
	case "Unigram":
		meta.Type = TypeUnigram
	}

	meta.VocabSize = vocabLen(meta.Type, file.Model.Vocab)
	return meta, nil
}

// vocabLen counts vocabulary entries in either representation.
func vocabLen(t Type, raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	if t == TypeUnigram {
		var pairs []json.RawMessage
		if err := json.Unmarshal(raw, &pairs); err == nil {
			return len(pairs)
		}
		return 0
	}
	var vocab map[string]int
	if err := json.Unmarshal(raw, &vocab); err == nil {
		return len(vocab)
	}
	return 0
}
