package model

// Document is raw text extracted from one source before chunking.
type Document struct {
	Source string
	Text   string
}

// Chunk is a contiguous span of one document's text. It gets its ID when inserted into the index.
type Chunk struct {
	Source string
	Text   string
}
