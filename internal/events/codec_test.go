package events

import (
	"bytes"
	"encoding/json"
	"io"
	"reflect"
	"strings"
	"testing"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	cases := []Event{
		ExecutionStart{ExecutionID: 1},
		ExecutionEnd{ExecutionID: 2},
		AdaptivePlanUpdate{ExecutionID: 3},
		DriverAccumUpdate{ExecutionID: 4},
		JobStart{JobID: 10, Props: map[string]string{ExecutionIDProp: "1"}, StageIDs: []int{100, 101}},
		JobEnd{JobID: 10},
		StageSubmitted{StageID: 100, DatasetIDs: []int{1000}},
		StageCompleted{StageID: 100},
		TaskStart{StageID: 100, TaskID: 9999},
		TaskEnd{StageID: 100, TaskID: 9999},
		DatasetUnpersist{DatasetID: 1000},
		ExecutorMetricsUpdate{ExecutorID: "exec-1"},
		StageExecutorMetrics{StageID: 100},
	}
	for _, in := range cases {
		line, err := Encode(in)
		if err != nil {
			t.Fatalf("Encode(%s): %v", in.Kind(), err)
		}
		out, err := Decode(line)
		if err != nil {
			t.Fatalf("Decode(%s): %v", in.Kind(), err)
		}
		if !reflect.DeepEqual(in, out) {
			t.Errorf("%s round trip: got %#v, want %#v", in.Kind(), out, in)
		}
	}
}

func TestDecode_UnknownKindBecomesCustom(t *testing.T) {
	line := []byte(`{"kind":"block_manager_added","payload":{"block_manager_id":"bm-7"}}`)
	e, err := Decode(line)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	c, ok := e.(Custom)
	if !ok {
		t.Fatalf("got %T, want Custom", e)
	}
	if c.Name != "block_manager_added" {
		t.Errorf("name = %q, want %q", c.Name, "block_manager_added")
	}

	// The payload must survive re-encoding byte for byte.
	reencoded, err := Encode(c)
	if err != nil {
		t.Fatalf("Encode(Custom): %v", err)
	}
	var got, want map[string]any
	if err := json.Unmarshal(reencoded, &got); err != nil {
		t.Fatalf("unmarshal reencoded: %v", err)
	}
	if err := json.Unmarshal(line, &want); err != nil {
		t.Fatalf("unmarshal original: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("reencoded = %v, want %v", got, want)
	}
}

func TestDecode_MalformedLine(t *testing.T) {
	if _, err := Decode([]byte("not json")); err == nil {
		t.Fatal("expected error for malformed line")
	}
}

func TestJobStart_ExecutionID(t *testing.T) {
	tests := []struct {
		name   string
		props  map[string]string
		wantID int64
		wantOK bool
	}{
		{"valid", map[string]string{ExecutionIDProp: "42"}, 42, true},
		{"absent", nil, 0, false},
		{"other props only", map[string]string{"spark.app.name": "q1"}, 0, false},
		{"unparsable", map[string]string{ExecutionIDProp: "abc"}, 0, false},
		{"empty value", map[string]string{ExecutionIDProp: ""}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := JobStart{JobID: 1, Props: tt.props}.ExecutionID()
			if ok != tt.wantOK || id != tt.wantID {
				t.Errorf("ExecutionID() = (%d, %v), want (%d, %v)", id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestReaderWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.Write(ExecutionStart{ExecutionID: 1}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Write(TaskStart{StageID: 100, TaskID: 9999}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	r := NewReader(&buf)
	rec, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if _, ok := rec.Event.(ExecutionStart); !ok {
		t.Fatalf("first event = %T, want ExecutionStart", rec.Event)
	}
	rec, err = r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if _, ok := rec.Event.(TaskStart); !ok {
		t.Fatalf("second event = %T, want TaskStart", rec.Event)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("Next at end = %v, want io.EOF", err)
	}
}

func TestReader_UndecodableLine(t *testing.T) {
	input := `{"kind":"execution_start","payload":{"execution_id":1}}
garbage line
{"kind":"execution_end","payload":{"execution_id":1}}
`
	r := NewReader(strings.NewReader(input))

	rec, err := r.Next()
	if err != nil || rec.Event == nil {
		t.Fatalf("first record: event=%v err=%v", rec.Event, err)
	}

	rec, err = r.Next()
	if err != nil {
		t.Fatalf("undecodable line should not error, got %v", err)
	}
	if rec.Event != nil {
		t.Fatalf("undecodable line decoded to %T", rec.Event)
	}
	if string(rec.Line) != "garbage line" {
		t.Errorf("raw line = %q, want %q", rec.Line, "garbage line")
	}

	rec, err = r.Next()
	if err != nil || rec.Event == nil {
		t.Fatalf("third record: event=%v err=%v", rec.Event, err)
	}
}

func TestReader_SkipsBlankLines(t *testing.T) {
	input := "\n\n" + `{"kind":"job_end","payload":{"job_id":5}}` + "\n\n"
	r := NewReader(strings.NewReader(input))
	rec, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if e, ok := rec.Event.(JobEnd); !ok || e.JobID != 5 {
		t.Fatalf("got %#v, want JobEnd{5}", rec.Event)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("Next = %v, want io.EOF", err)
	}
}
