package domain

import "time"

// PassageMetadata is the payload attached to every vector store entry.
// The shape is stable across the gateway's lifetime.
type PassageMetadata struct {
	DocumentID  string    `json:"document_id"`
	Filename    string    `json:"filename"`
	FileType    string    `json:"file_type"`
	Page        int       `json:"page,omitempty"`
	Section     string    `json:"section,omitempty"`
	ChunkIndex  int       `json:"chunk_index"`
	TotalChunks int       `json:"total_chunks"`
	SourceType  string    `json:"source_type"`
	ImageIndex  int       `json:"image_index,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Candidate is one nearest-neighbor hit from the vector store.
type Candidate struct {
	PointID  string          `json:"point_id"`
	Content  string          `json:"content"`
	Score    float64         `json:"score"`
	Metadata PassageMetadata `json:"metadata"`
}

// RerankResult carries the cross-encoder score for one input document.
// Index refers back to the position in the rerank input slice.
type RerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// RetrievalResult is one ranked passage returned to the caller.
// RerankScore is nil when reranking was skipped or fell back.
type RetrievalResult struct {
	Content     string          `json:"content"`
	VectorScore float64         `json:"vector_score"`
	RerankScore *float64        `json:"rerank_score,omitempty"`
	Metadata    PassageMetadata `json:"metadata"`
}

// RetrievalSet is the full answer of one retrieval call. Degraded is
// set when the embedding backend produced a zero query vector or when
// reranking failed and the vector ordering was returned instead.
type RetrievalSet struct {
	Results  []RetrievalResult `json:"results"`
	Reranked bool              `json:"reranked"`
	Degraded bool              `json:"degraded"`
}

// ExistsResult reports whether a document already has live passages.
type ExistsResult struct {
	Exists     bool `json:"exists"`
	ChunkCount int  `json:"chunk_count"`
}

// ReplaceResult reports what a replace-by-identity upsert did.
type ReplaceResult struct {
	Deleted  int `json:"deleted"`
	Uploaded int `json:"uploaded"`
}

// RetrieveOptions tunes one retrieval call.
type RetrieveOptions struct {
	TopK           int     `json:"top_k"`
	ScoreThreshold float64 `json:"score_threshold"`
	Rerank         bool    `json:"rerank"`
}
