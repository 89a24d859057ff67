package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// wire is the one-line-per-event envelope used in log files.
type wire struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode renders one event as a single JSON line (without the trailing
// newline).
func Encode(e Event) ([]byte, error) {
	var payload json.RawMessage
	if c, ok := e.(Custom); ok {
		payload = c.Payload
	} else {
		b, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("encode %s event: %w", e.Kind(), err)
		}
		payload = b
	}
	line, err := json.Marshal(wire{Kind: e.Kind(), Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", e.Kind(), err)
	}
	return line, nil
}

// Decode parses one JSON line into an event. Unknown kinds decode as Custom;
// only malformed JSON is an error.
func Decode(line []byte) (Event, error) {
	var w wire
	if err := json.Unmarshal(line, &w); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}

	var (
		e   Event
		err error
	)
	switch w.Kind {
	case KindExecutionStart:
		e, err = decodePayload[ExecutionStart](w.Payload)
	case KindExecutionEnd:
		e, err = decodePayload[ExecutionEnd](w.Payload)
	case KindAdaptivePlanUpdate:
		e, err = decodePayload[AdaptivePlanUpdate](w.Payload)
	case KindDriverAccumUpdate:
		e, err = decodePayload[DriverAccumUpdate](w.Payload)
	case KindJobStart:
		e, err = decodePayload[JobStart](w.Payload)
	case KindJobEnd:
		e, err = decodePayload[JobEnd](w.Payload)
	case KindStageSubmitted:
		e, err = decodePayload[StageSubmitted](w.Payload)
	case KindStageCompleted:
		e, err = decodePayload[StageCompleted](w.Payload)
	case KindTaskStart:
		e, err = decodePayload[TaskStart](w.Payload)
	case KindTaskEnd:
		e, err = decodePayload[TaskEnd](w.Payload)
	case KindDatasetUnpersist:
		e, err = decodePayload[DatasetUnpersist](w.Payload)
	case KindExecutorMetricsUpdate:
		e, err = decodePayload[ExecutorMetricsUpdate](w.Payload)
	case KindStageExecutorMetrics:
		e, err = decodePayload[StageExecutorMetrics](w.Payload)
	default:
		e = Custom{Name: string(w.Kind), Payload: w.Payload}
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", w.Kind, err)
	}
	return e, nil
}

func decodePayload[T Event](payload json.RawMessage) (Event, error) {
	var e T
	if len(payload) == 0 {
		return e, nil
	}
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, err
	}
	return e, nil
}

// Record is one line of an event log: the raw bytes as read, plus the
// decoded event, or a nil Event when the line did not decode.
type Record struct {
	Line  []byte
	Event Event
}

// Reader yields event records from a JSON-lines log, one per call.
type Reader struct {
	s *bufio.Scanner
}

// NewReader wraps r as an event-log reader.
func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	// Event lines can exceed the scanner's default 64KiB token limit.
	s.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Reader{s: s}
}

// Next returns the next record, or io.EOF after the last line. A line that
// fails to decode is returned with a nil Event and no error; the caller
// decides its fate.
func (r *Reader) Next() (Record, error) {
	for r.s.Scan() {
		line := append([]byte(nil), r.s.Bytes()...)
		if len(line) == 0 {
			continue
		}
		e, err := Decode(line)
		if err != nil {
			return Record{Line: line}, nil
		}
		return Record{Line: line, Event: e}, nil
	}
	if err := r.s.Err(); err != nil {
		return Record{}, err
	}
	return Record{}, io.EOF
}

// Writer appends events to a JSON-lines log.
type Writer struct {
	w *bufio.Writer
}

// NewWriter wraps w as an event-log writer. Call Flush before closing the
// underlying writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write appends one encoded event line.
func (w *Writer) Write(e Event) error {
	line, err := Encode(e)
	if err != nil {
		return err
	}
	return w.WriteRaw(line)
}

// WriteRaw appends one already-encoded line verbatim.
func (w *Writer) WriteRaw(line []byte) error {
	if _, err := w.w.Write(line); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Flush writes any buffered lines to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
