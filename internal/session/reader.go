package session

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"queryconsole/internal/log"
)

// readLoop blocks on one line at a time from r and queues each line tagged
// with src. A trailing fragment without a newline is delivered as is.
// The loop ends at EOF; any other read error is queued as a notice while the
// session is still running, and swallowed after Terminate.
func (s *Session) readLoop(r io.ReadCloser, src Source) {
	defer func() { _ = r.Close() }()

	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			s.messages.Put(Message{Source: src, Text: line})
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) || !s.running.Load() {
			log.Debug(log.CatPipe, "reader finished", "session", s.id, "stream", src)
			return
		}
		log.ErrorErr(log.CatPipe, "read failed", err, "session", s.id, "stream", src)
		s.messages.Put(Message{
			Source: SourceNotice,
			Text:   fmt.Sprintf("Error in output monitoring: %v\n", err),
		})
		return
	}
}
