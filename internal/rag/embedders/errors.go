package embedders

import "errors"

var (
	ErrModelRequired   = errors.New("embedding model is required")
	ErrInvalidBaseURL  = errors.New("invalid base URL")
	ErrContentEmpty    = errors.New("content is empty")
	ErrNoEmbeddingData = errors.New("no embedding data in response")
)
