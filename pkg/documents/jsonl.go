package documents

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// maxLineSize bounds a single document line.
const maxLineSize = 4 << 20

// JSONLSource streams documents of type T from a JSON-lines file. Files ending
// in ".gz" are decompressed on the fly. Blank lines are skipped.
type JSONLSource[T any] struct {
	path    string
	closer  []io.Closer
	scanner *bufio.Scanner
	line    int
}

// OpenJSONL opens path for streaming.
func OpenJSONL[T any](path string) (*JSONLSource[T], error) {
	s := &JSONLSource[T]{path: path}
	r, err := s.open()
	if err != nil {
		return nil, err
	}
	s.scanner = newScanner(r)
	return s, nil
}

// OpenRelations opens a relation document file.
func OpenRelations(path string) (*JSONLSource[RelationDocument], error) {
	return OpenJSONL[RelationDocument](path)
}

// OpenEntities opens an entity document file.
func OpenEntities(path string) (*JSONLSource[EntityDocument], error) {
	return OpenJSONL[EntityDocument](path)
}

func (s *JSONLSource[T]) open() (io.Reader, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	s.closer = append(s.closer, f)

	if !strings.HasSuffix(s.path, ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(bufio.NewReader(f))
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to read gzip header of %s: %w", s.path, err)
	}
	s.closer = append(s.closer, gz)
	return gz, nil
}

func newScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	return sc
}

// Count returns the number of documents in the file. It reads the file
// independently of the streaming position.
func (s *JSONLSource[T]) Count(ctx context.Context) (int64, error) {
	counter := &JSONLSource[T]{path: s.path}
	r, err := counter.open()
	if err != nil {
		return 0, err
	}
	defer counter.Close()

	sc := newScanner(r)
	var n int64
	for sc.Scan() {
		if n%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		if len(bytes.TrimSpace(sc.Bytes())) > 0 {
			n++
		}
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("failed to count documents in %s: %w", s.path, err)
	}
	return n, nil
}

// Next decodes up to limit documents. It returns io.EOF once the file is
// exhausted and no documents remain.
func (s *JSONLSource[T]) Next(ctx context.Context, limit int) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch := make([]T, 0, limit)
	for len(batch) < limit && s.scanner.Scan() {
		s.line++
		raw := bytes.TrimSpace(s.scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var doc T
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("%s:%d: invalid document: %w", s.path, s.line, err)
		}
		batch = append(batch, doc)
	}
	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	if len(batch) == 0 {
		return nil, io.EOF
	}
	return batch, nil
}

// Close releases the underlying file.
func (s *JSONLSource[T]) Close() error {
	var firstErr error
	for i := len(s.closer) - 1; i >= 0; i-- {
		if err := s.closer[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closer = nil
	return firstErr
}
