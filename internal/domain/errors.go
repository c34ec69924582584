package domain

import "errors"

var (
	// ErrValidation signals a request that failed input validation.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidImage signals an upload that could not be decoded as an image.
	ErrInvalidImage = errors.New("invalid image")
	// ErrDocumentNotFound signals a missing knowledge document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrModelNotReady signals that the vision service has not loaded its checkpoints.
	ErrModelNotReady = errors.New("model not ready")

	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrTokenQuotaExceeded signals an exhausted provider token budget.
	ErrTokenQuotaExceeded = errors.New("token quota exceeded")

	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrChatProviderError signals a chat completion provider failure.
	ErrChatProviderError = errors.New("chat provider error")
	// ErrVisionProviderError signals a vision inference service failure.
	ErrVisionProviderError = errors.New("vision provider error")
)
