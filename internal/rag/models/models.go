package models

// Chunk types attached to chunk metadata.
const (
	TypeStructuredData = "structured_data"
	TypeSection        = "section"
	TypeTable          = "table"
	TypeList           = "list"
	TypeText           = "text"
)

// Document is one unit of scraped source content. Documents are immutable
// once persisted by the scraper.
type Document struct {
	Title    string            `json:"title"`
	URL      string            `json:"url"`
	PageID   string            `json:"page_id"`
	Text     string            `json:"text"`
	Infobox  map[string]string `json:"infobox"`
	Sections map[string]string `json:"sections"`
	Tables   []Table           `json:"tables"`
	Lists    []List            `json:"lists"`
}

// Table is a scraped table: a header row plus ordered data rows.
type Table struct {
	Section string     `json:"section"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// List is a scraped bulleted list.
type List struct {
	Section string   `json:"section"`
	Items   []string `json:"items"`
}

// ChunkMetadata is the provenance attached to every chunk.
type ChunkMetadata struct {
	PageTitle   string `json:"page_title"`
	URL         string `json:"url"`
	PageID      string `json:"page_id"`
	Section     string `json:"section"`
	Type        string `json:"type"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
}

// Chunk is the retrieval unit. Created once during document processing and
// immutable thereafter.
type Chunk struct {
	Text       string        `json:"text"`
	Metadata   ChunkMetadata `json:"metadata"`
	TokenCount int           `json:"token_count,omitempty"`
}

// RetrievedChunk is a chunk plus its similarity score, produced at query
// time. Scores are in [0,1]; higher means more relevant.
type RetrievedChunk struct {
	Text       string        `json:"text"`
	Metadata   ChunkMetadata `json:"metadata"`
	Similarity float64       `json:"similarity"`
}

// QueryResult is the response contract of the query engine. Every query
// produces one, including rejections and failures.
type QueryResult struct {
	Answer   string           `json:"answer"`
	Sources  []string         `json:"sources"`
	Chunks   []RetrievedChunk `json:"chunks"`
	Error    string           `json:"error,omitempty"`
	Rejected bool             `json:"rejected,omitempty"`
	WaitTime float64          `json:"wait_time,omitempty"`
}

// LogEntry is one persisted query audit record. The query text itself is not
// stored; only a hash, its length, and a short preview.
type LogEntry struct {
	Timestamp       string   `json:"timestamp"`
	UserID          string   `json:"user_id"`
	QueryHash       string   `json:"query_hash"`
	QueryLength     int      `json:"query_length"`
	QueryPreview    string   `json:"query_preview"`
	Sanitized       bool     `json:"sanitized"`
	ResponseLength  int      `json:"response_length"`
	SourcesCount    int      `json:"sources_count"`
	Sources         []string `json:"sources"`
	ChunksRetrieved int      `json:"chunks_retrieved"`
}
