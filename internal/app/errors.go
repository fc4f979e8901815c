package app

import "errors"

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrEmptyCorpus      = errors.New("knowledge base is empty; process source urls first")
	ErrIngestInProgress = errors.New("another ingestion is in progress")
)
