package oracle

import (
	"context"
	"sync"
)

// MockResponse is a canned reply for Mock.
type MockResponse struct {
	Text        string
	BlockReason string
	Err         error
}

// Mock replays canned responses in FIFO order and records requests.
type Mock struct {
	mu        sync.Mutex
	responses []MockResponse
	Calls     []Request
}

func NewMock(responses ...MockResponse) *Mock {
	return &Mock{responses: responses}
}

func (m *Mock) Generate(_ context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)

	if len(m.responses) == 0 {
		return nil, ErrUnavailable
	}

	resp := m.responses[0]
	m.responses = m.responses[1:]

	if resp.Err != nil {
		return nil, resp.Err
	}

	return &Response{
		Text:        resp.Text,
		BlockReason: resp.BlockReason,
		Model:       "mock",
	}, nil
}

func (m *Mock) ID() string    { return "mock" }
func (m *Mock) Model() string { return "mock" }

func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
