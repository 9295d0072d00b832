package corpus

import "errors"

// ErrInvalidInput is returned when an operation's arguments fail validation.
var ErrInvalidInput = errors.New("corpus: invalid input")

// ErrNotFound is returned when a job, file, or source does not exist.
var ErrNotFound = errors.New("corpus: not found")

// ErrFileTooLarge is returned when an upload exceeds the size limit.
var ErrFileTooLarge = errors.New("corpus: file too large")

// ErrUnsupportedType is returned for uploads with no usable extractor.
var ErrUnsupportedType = errors.New("corpus: unsupported file type")

// ErrFileMissing is returned when a reprocess finds the stored bytes gone.
var ErrFileMissing = errors.New("corpus: stored file missing")
