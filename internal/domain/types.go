// Package domain holds the types shared across the rag-lab packages.
package domain

import "time"

// Collection groups documents into one searchable knowledge base.
type Collection struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	DocumentCount int       `json:"docCount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Document is an uploaded file that belongs to a collection.
type Document struct {
	ID           string    `json:"id"`
	CollectionID string    `json:"collectionId"`
	FileName     string    `json:"fileName"`
	OriginalName string    `json:"originalName"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mimeType"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DocumentStatus is a document together with its current chunk count.
type DocumentStatus struct {
	Document
	ChunkCount int  `json:"chunkCount"`
	Embedded   bool `json:"embedded"`
}

// Chunk is a contiguous piece of a document's text. Index is unique and
// sequential within the document, starting at 0.
type Chunk struct {
	ID            string    `json:"id"`
	DocumentID    string    `json:"documentId"`
	Index         int       `json:"chunkIndex"`
	Content       string    `json:"content"`
	TokenEstimate int       `json:"tokenEstimate"`
	CreatedAt     time.Time `json:"createdAt"`
}

// IngestResult summarizes one run of the ingestion pipeline.
type IngestResult struct {
	DocumentID    string `json:"documentId"`
	ChunksCreated int    `json:"chunksCreated"`
	Dimensions    int    `json:"dimensions"`
}

// Source is a document cited by an answer.
type Source struct {
	DocumentName string `json:"documentName"`
	Excerpt      string `json:"excerpt"`
}

// Answer is the result of a grounded query.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// SearchHit is a similarity search result enriched with its document name.
type SearchHit struct {
	ChunkID      string  `json:"chunkId"`
	DocumentID   string  `json:"documentId"`
	DocumentName string  `json:"documentName"`
	Content      string  `json:"content"`
	Distance     float64 `json:"distance"`
}

// CollectionStats counts what has been ingested into a collection.
type CollectionStats struct {
	Documents  int `json:"documents"`
	Chunks     int `json:"chunks"`
	Embeddings int `json:"embeddings"`
}

// HealthStatus reports whether a model backend is reachable and has the
// models the pipelines need.
type HealthStatus struct {
	Available bool     `json:"available"`
	Models    []string `json:"models"`
	Missing   []string `json:"missing,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}
