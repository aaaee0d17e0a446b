package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ent0n29/voiceforge/internal/pipeline"
)

// MessageType identifies websocket payload variants. Job progress events
// are forwarded as pipeline.Event, whose types (chunk_status, job_state,
// job_finalized, job_error) share this namespace.
type MessageType string

const (
	TypeClientControl MessageType = "client_control"
	TypeJobSnapshot   MessageType = "job_snapshot"
	TypeControlAck    MessageType = "control_ack"
	TypeErrorEvent    MessageType = "error_event"
)

// Control actions a client may send over the job stream.
const (
	ActionRetry       = "retry"
	ActionRetryFailed = "retry_failed"
	ActionFinalize    = "finalize"
	ActionSnapshot    = "snapshot"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

type ClientControl struct {
	Type   MessageType `json:"type"`
	JobID  string      `json:"job_id"`
	Action string      `json:"action"`
	// Index is the zero-based chunk for ActionRetry.
	Index *int `json:"index,omitempty"`
	// Mode is the finalize mode for ActionFinalize; empty means merge.
	Mode string `json:"mode,omitempty"`
}

type JobSnapshot struct {
	Type MessageType       `json:"type"`
	Job  pipeline.Snapshot `json:"job"`
}

type ControlAck struct {
	Type   MessageType `json:"type"`
	JobID  string      `json:"job_id"`
	Action string      `json:"action"`
	// Retried is set for retry_failed.
	Retried int `json:"retried,omitempty"`
	// ClipIDs is set for finalize.
	ClipIDs []string `json:"clip_ids,omitempty"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	JobID     string      `json:"job_id"`
	Code      string      `json:"code"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

func NewJobSnapshot(s pipeline.Snapshot) JobSnapshot {
	return JobSnapshot{Type: TypeJobSnapshot, Job: s}
}

func NewErrorEvent(jobID, code, detail string, retryable bool) ErrorEvent {
	return ErrorEvent{Type: TypeErrorEvent, JobID: jobID, Code: code, Detail: detail, Retryable: retryable}
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		msg.Action = strings.ToLower(strings.TrimSpace(msg.Action))
		if msg.JobID == "" || msg.Action == "" {
			return nil, errors.New("invalid client_control")
		}
		switch msg.Action {
		case ActionRetry:
			if msg.Index == nil || *msg.Index < 0 {
				return nil, errors.New("invalid client_control: retry needs a chunk index")
			}
		case ActionFinalize:
			if _, err := pipeline.ParseFinalizeMode(msg.Mode); err != nil {
				return nil, fmt.Errorf("invalid client_control: %w", err)
			}
		case ActionRetryFailed, ActionSnapshot:
		default:
			return nil, fmt.Errorf("invalid client_control: unknown action %q", msg.Action)
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
