package session

// Source identifies where a transcript message came from.
type Source int

const (
	// SourceStdout is a line read from the child's standard output.
	SourceStdout Source = iota
	// SourceStderr is a line read from the child's standard error.
	SourceStderr
	// SourceNotice is a diagnostic produced by this program, not the child.
	SourceNotice
)

// Tag returns the label a message from this source is prefixed with.
func (s Source) Tag() string {
	switch s {
	case SourceStderr:
		return "Error"
	default:
		return ""
	}
}

func (s Source) String() string {
	switch s {
	case SourceStdout:
		return "stdout"
	case SourceStderr:
		return "stderr"
	case SourceNotice:
		return "notice"
	default:
		return "unknown"
	}
}

// Message is one line of child output waiting to be shown.
// Text keeps its line terminator when the child wrote one.
type Message struct {
	Source Source
	Text   string
}

// Format renders the message the way it appears in the transcript:
// ": line" for stdout, "Error: line" for stderr, raw text for notices.
func (m Message) Format() string {
	if m.Source == SourceNotice {
		return m.Text
	}
	return m.Source.Tag() + ": " + m.Text
}
