package llm

import (
	"context"
	"io"
	"strings"
)

// Mock is a canned-reply Client for tests and local development.
type Mock struct {
	Reply string
	Err   error
}

// NewMock returns a Mock that always answers with reply.
func NewMock(reply string) *Mock {
	return &Mock{Reply: reply}
}

func (m *Mock) Complete(_ context.Context, _ Request) (Reply, error) {
	if m.Err != nil {
		return Reply{}, m.Err
	}
	return Reply{Content: m.Reply}, nil
}

func (m *Mock) Stream(_ context.Context, _ Request) (Stream, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return &mockStream{fragments: strings.SplitAfter(m.Reply, " ")}, nil
}

type mockStream struct {
	fragments []string
	pos       int
}

func (s *mockStream) Recv() (string, error) {
	if s.pos >= len(s.fragments) {
		return "", io.EOF
	}
	frag := s.fragments[s.pos]
	s.pos++
	return frag, nil
}

func (s *mockStream) Close() error { return nil }
