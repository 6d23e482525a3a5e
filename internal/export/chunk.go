package export

import "errors"

var ErrInvalidChunkSize = errors.New("export: chunk size must be positive")

// Chunk is a 1-based inclusive item range that maps onto one backend page
// of ChunkSize items.
type Chunk struct {
	Start int `json:"start"`
	End   int `json:"end"`
	Page  int `json:"page"`
}

// Size is the number of items the chunk covers.
func (c Chunk) Size() int { return c.End - c.Start + 1 }

// Chunks covers totalItems with disjoint, gap-free chunks of size items.
// The last chunk is short when size does not divide totalItems.
func Chunks(totalItems int64, size int) ([]Chunk, error) {
	if size <= 0 {
		return nil, ErrInvalidChunkSize
	}
	chunks := []Chunk{}
	for start, page := int64(1), 1; start <= totalItems; start, page = start+int64(size), page+1 {
		end := start + int64(size) - 1
		if end > totalItems {
			end = totalItems
		}
		chunks = append(chunks, Chunk{Start: int(start), End: int(end), Page: page})
	}
	return chunks, nil
}

// ChunkForPage returns the descriptor for one page, or false when the page
// lies outside the collection.
func ChunkForPage(totalItems int64, size, page int) (Chunk, bool) {
	if size <= 0 || page < 1 {
		return Chunk{}, false
	}
	start := int64(page-1)*int64(size) + 1
	if start > totalItems {
		return Chunk{}, false
	}
	end := start + int64(size) - 1
	if end > totalItems {
		end = totalItems
	}
	return Chunk{Start: int(start), End: int(end), Page: page}, true
}
