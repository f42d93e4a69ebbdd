// Service interface - the abstract interface for the remote model service.
// The implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Provider-specific error handling
// - Retry logic for transient failures

package llm

import "context"

// Service defines the abstract interface for the remote model service.
type Service interface {
	// Name returns the service name (for logging/debugging).
	Name() string

	// Model returns the default model being used.
	Model() string

	// CreateResponse sends one response creation request and waits for
	// the complete result.
	CreateResponse(ctx context.Context, req Request) (Response, error)

	// StreamResponse opens an incremental event feed for one request,
	// forwarding text deltas to chunks as they arrive, and returns the
	// reconstructed complete response captured from the terminal event.
	// The channel is not closed by the implementation.
	StreamResponse(ctx context.Context, req Request, chunks chan<- string) (Response, error)
}
