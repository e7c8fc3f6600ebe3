package rag

import "time"

// Document is one uploaded RFQ/RFP (or historical bid) after text
// extraction. Processed flips to true only when the chunk/embed/store
// pipeline finished; until then the document is invisible to similarity
// search.
type Document struct {
	ID         uint64    `gorm:"primaryKey" json:"id"`
	ProjectID  uint64    `gorm:"not null;index:idx_project_document" json:"project_id"`
	FileName   string    `gorm:"size:255;not null" json:"file_name"`
	FileType   string    `gorm:"size:32" json:"file_type"`
	Collection string    `gorm:"size:32;not null;default:'rfq_documents'" json:"collection"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Processed  bool      `gorm:"not null;default:false" json:"processed"`
	ArchiveURL string    `gorm:"size:512" json:"archive_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Document) TableName() string {
	return "rag_documents"
}

// Chunk is the relational bookkeeping row for one embedded window of a
// document. Seq is 0-based and contiguous per document; each row's text is
// the substring the chunker produced at that ordinal. The vector itself
// lives in the vector store under VectorID.
type Chunk struct {
	ID         uint64    `gorm:"primaryKey" json:"id"`
	DocumentID uint64    `gorm:"not null;index:idx_document_seq" json:"document_id"`
	ProjectID  uint64    `gorm:"not null;index" json:"project_id"`
	Seq        int       `gorm:"not null;index:idx_document_seq" json:"seq"`
	Text       string    `gorm:"type:text;not null" json:"text"`
	VectorID   string    `gorm:"size:128;not null;uniqueIndex" json:"vector_id"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Chunk) TableName() string {
	return "rag_chunks"
}
