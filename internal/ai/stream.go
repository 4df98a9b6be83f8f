package ai

import (
	"bufio"
	"io"
	"net/http"
	"strings"
	"sync"
)

// sseStream adapts a server-sent-events HTTP response into an ITokenStream.
// parse extracts the token fragment from one data payload; it returns
// done=true when the payload terminates the stream and skip=true for
// payloads that carry no token (pings, role deltas, usage frames).
type sseStream struct {
	resp    *http.Response
	scanner *bufio.Scanner
	parse   func(data string) (token string, done bool, skip bool, err error)

	closeOnce sync.Once
}

func newSSEStream(resp *http.Response, parse func(string) (string, bool, bool, error)) *sseStream {
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &sseStream{resp: resp, scanner: scanner, parse: parse}
}

func (s *sseStream) Recv() (string, error) {
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		token, done, skip, err := s.parse(strings.TrimSpace(data))
		if err != nil {
			s.Close()
			return "", err
		}
		if done {
			s.Close()
			return "", io.EOF
		}
		if skip || token == "" {
			continue
		}
		return token, nil
	}
	if err := s.scanner.Err(); err != nil {
		s.Close()
		return "", err
	}
	s.Close()
	return "", io.EOF
}

func (s *sseStream) Close() error {
	s.closeOnce.Do(func() {
		s.resp.Body.Close()
	})
	return nil
}

// chanStream bridges push-style producers (SDK iterators, NDJSON readers)
// into the pull-based ITokenStream shape. The producer goroutine calls send
// and finish; Close unblocks a stuck producer through the stop channel.
type chanStream struct {
	tokens chan string
	errCh  chan error
	stop   chan struct{}

	closeOnce sync.Once
	fin       func()
}

func newChanStream(fin func()) *chanStream {
	return &chanStream{
		tokens: make(chan string),
		errCh:  make(chan error, 1),
		stop:   make(chan struct{}),
		fin:    fin,
	}
}

// send delivers one token to the consumer; it returns false once the
// consumer has closed the stream.
func (s *chanStream) send(token string) bool {
	select {
	case s.tokens <- token:
		return true
	case <-s.stop:
		return false
	}
}

// finish terminates the stream; err may be nil for normal exhaustion.
func (s *chanStream) finish(err error) {
	if err != nil {
		s.errCh <- err
	}
	close(s.tokens)
}

func (s *chanStream) Recv() (string, error) {
	token, ok := <-s.tokens
	if !ok {
		select {
		case err := <-s.errCh:
			return "", err
		default:
			return "", io.EOF
		}
	}
	return token, nil
}

func (s *chanStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		if s.fin != nil {
			s.fin()
		}
	})
	return nil
}
