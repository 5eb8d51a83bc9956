package indexer

import "errors"

var (
	// ErrEmbedding is fatal for a run: a document without a vector is never indexed.
	ErrEmbedding = errors.New("embedding failed")
	// ErrIndex wraps vector-store failures for ensure, upsert and delete.
	ErrIndex = errors.New("index operation failed")
)
