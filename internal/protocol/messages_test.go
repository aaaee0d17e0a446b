package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ent0n29/voiceforge/internal/pipeline"
)

func TestParseClientMessageRetry(t *testing.T) {
	raw := []byte(`{"type":"client_control","job_id":"j1","action":"Retry","index":2}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	control, ok := msg.(ClientControl)
	if !ok {
		t.Fatalf("message type = %T, want ClientControl", msg)
	}
	if control.JobID != "j1" || control.Action != ActionRetry {
		t.Fatalf("unexpected client control: %+v", control)
	}
	if control.Index == nil || *control.Index != 2 {
		t.Fatalf("Index = %v, want 2", control.Index)
	}
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"wat"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientMessageValidatesControl(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"missing job", `{"type":"client_control","action":"retry_failed"}`},
		{"retry without index", `{"type":"client_control","job_id":"j1","action":"retry"}`},
		{"negative index", `{"type":"client_control","job_id":"j1","action":"retry","index":-1}`},
		{"bad mode", `{"type":"client_control","job_id":"j1","action":"finalize","mode":"zip"}`},
		{"unknown action", `{"type":"client_control","job_id":"j1","action":"stop"}`},
		{"bad json", `{"type":`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseClientMessage([]byte(tc.raw)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestParseClientMessageFinalize(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"client_control","job_id":"j1","action":"finalize","mode":"separate"}`))
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	if control := msg.(ClientControl); control.Mode != "separate" {
		t.Fatalf("Mode = %q, want separate", control.Mode)
	}
}

func TestJobSnapshotEncoding(t *testing.T) {
	raw, err := json.Marshal(NewJobSnapshot(pipeline.Snapshot{
		ID:     "j1",
		State:  pipeline.StatePartial,
		Chunks: []pipeline.Chunk{{Index: 0, Text: "hi", Status: pipeline.ChunkFailed, Audio: []byte{1, 2}}},
	}))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	s := string(raw)
	if !strings.Contains(s, `"type":"job_snapshot"`) || !strings.Contains(s, `"state":"partial"`) {
		t.Fatalf("snapshot json = %s", s)
	}
	if strings.Contains(s, "AQI=") {
		t.Fatalf("chunk audio must not be serialized: %s", s)
	}
}

func BenchmarkParseClientMessageRetry(b *testing.B) {
	raw := []byte(`{"type":"client_control","job_id":"j1","action":"retry","index":7}`)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		msg, err := ParseClientMessage(raw)
		if err != nil {
			b.Fatalf("ParseClientMessage() error = %v", err)
		}
		if _, ok := msg.(ClientControl); !ok {
			b.Fatalf("message type = %T, want ClientControl", msg)
		}
	}
}
