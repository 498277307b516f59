package domain

import "time"

type IngestStatus string

const (
	StatusIngested IngestStatus = "ingested"
	StatusFailed   IngestStatus = "failed"
)

// UnitKind marks whether a content unit came from a text stream or
// from OCR over an embedded image.
type UnitKind string

const (
	UnitText  UnitKind = "text"
	UnitImage UnitKind = "image"
)

// ContentUnit is one ordered piece of extracted content. A file yields
// an ordered sequence of units; units are never mutated after extraction.
type ContentUnit struct {
	Text          string   `json:"text"`
	SourcePage    int      `json:"source_page,omitempty"`
	SourceSection string   `json:"source_section,omitempty"`
	OriginKind    UnitKind `json:"origin_kind"`
	ImageIndex    int      `json:"image_index,omitempty"`
}

// Extraction is the result of running one file through an extractor.
type Extraction struct {
	Units  []ContentUnit
	Pages  int
	Images int
}

// Passage is a chunk of extracted text sized and overlapped for
// retrieval. CharStart/CharEnd are rune offsets into the normalized
// source text; CharEnd is always greater than CharStart and sequence
// indices are contiguous from zero within a document.
type Passage struct {
	Text          string `json:"text"`
	SequenceIndex int    `json:"sequence_index"`
	CharStart     int    `json:"char_start"`
	CharEnd       int    `json:"char_end"`
}

// DocumentRecord is the registry row for one ingested document.
// DocumentID is the stable identity (the filename); re-ingesting the
// same filename supersedes the previous passage set.
type DocumentRecord struct {
	DocumentID   string       `json:"document_id"`
	FileType     string       `json:"file_type"`
	PassageCount int          `json:"passage_count"`
	Status       IngestStatus `json:"status"`
	Error        string       `json:"error,omitempty"`
	UploadedAt   time.Time    `json:"uploaded_at"`
}

// FileReport is the per-file outcome of an ingestion run.
type FileReport struct {
	File     string       `json:"file"`
	Status   IngestStatus `json:"status"`
	Reason   string       `json:"reason,omitempty"`
	Deleted  int          `json:"deleted"`
	Uploaded int          `json:"uploaded"`
}

// OCRResult is what the text-recognition backend returns for one image.
type OCRResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// DocumentPassage pairs a chunked passage with the provenance of the
// content unit it was cut from, which ends up in the vector payload.
type DocumentPassage struct {
	Passage
	SourcePage    int      `json:"source_page,omitempty"`
	SourceSection string   `json:"source_section,omitempty"`
	SourceType    UnitKind `json:"source_type"`
	ImageIndex    int      `json:"image_index,omitempty"`
}
