package httpclient

import "context"

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
}

// Client abstracts HTTP calls so callers can inject mocks or different transports.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
	// Post sends body as JSON unless headers override the content type.
	Post(ctx context.Context, url string, headers map[string]string, body any) (Response, error)
}

// IsSuccess reports whether the response carries a 2xx status.
func IsSuccess(resp Response) bool {
	return resp != nil && resp.StatusCode() >= 200 && resp.StatusCode() < 300
}
