// Package batch splits ordered lists into bounded chunks.
package batch

import (
	"errors"
	"fmt"
)

// DefaultSize is the chunk size used for bulk email.
const DefaultSize = 100

// ErrInvalidChunkSize is returned for a chunk size below 1.
var ErrInvalidChunkSize = errors.New("chunk size must be positive")

// Partition splits items into consecutive chunks of size elements. Every
// chunk but the last is full; concatenating the chunks yields items.
// The chunks share items' backing array.
func Partition[T any](items []T, size int) ([][]T, error) {
	if size <= 0 {
		return nil, fmt.Errorf("partition into %d: %w", size, ErrInvalidChunkSize)
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end:end])
	}
	return chunks, nil
}

// Count returns how many chunks Partition would produce.
func Count(n, size int) int {
	if n <= 0 || size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}
