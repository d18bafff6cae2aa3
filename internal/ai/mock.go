package ai

import "context"

// MockGenerator returns canned output, for tests and for running without an
// API key.
type MockGenerator struct {
	Response string
	Err      error
	Requests []Request
}

func (m *MockGenerator) Complete(ctx context.Context, req Request) (string, error) {
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}
