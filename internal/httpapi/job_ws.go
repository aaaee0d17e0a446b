package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/voiceforge/internal/pipeline"
	"github.com/ent0n29/voiceforge/internal/protocol"
	"github.com/ent0n29/voiceforge/internal/voice"
)

// handleJobWS streams job events and accepts retry and finalize controls.
// The first frame is always a job_snapshot.
func (s *Server) handleJobWS(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobFromRequest(w, r)
	if !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, unsubscribe := job.Subscribe()
	defer unsubscribe()

	outbound := make(chan any, 256)
	outbound <- protocol.NewJobSnapshot(job.Snapshot())

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			var msg any
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					// Job discarded.
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job discarded"),
						time.Now().Add(time.Second))
					cancel()
					return
				}
				msg = evt
			case m := <-outbound:
				msg = m
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				cancel()
				return
			}
			if s.metrics != nil {
				s.metrics.WSMessages.WithLabelValues("outbound", messageTypeOf(msg)).Inc()
			}
		}
	}()

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for ctx.Err() == nil {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.enqueue(outbound, protocol.NewErrorEvent(job.ID(), "invalid_client_message", err.Error(), false))
			continue
		}
		control := parsed.(protocol.ClientControl)
		if s.metrics != nil {
			s.metrics.WSMessages.WithLabelValues("inbound", control.Action).Inc()
		}
		if control.JobID != job.ID() {
			s.enqueue(outbound, protocol.NewErrorEvent(job.ID(), "job_mismatch", "control addressed to another job", false))
			continue
		}
		// Controls block on provider calls; progress still streams meanwhile.
		go s.runControl(job, control, outbound)
	}

	cancel()
	<-writerDone
}

func (s *Server) runControl(job *pipeline.Job, control protocol.ClientControl, outbound chan<- any) {
	ack := protocol.ControlAck{Type: protocol.TypeControlAck, JobID: job.ID(), Action: control.Action}
	var err error
	switch control.Action {
	case protocol.ActionSnapshot:
		s.enqueue(outbound, protocol.NewJobSnapshot(job.Snapshot()))
		return
	case protocol.ActionRetry, protocol.ActionRetryFailed:
		var synth voice.Synthesizer
		synth, err = s.synthesizer(s.baseCtx, job.Snapshot().Provider)
		if err != nil {
			break
		}
		if control.Action == protocol.ActionRetry {
			err = job.Retry(s.baseCtx, *control.Index, synth)
		} else {
			ack.Retried, err = job.RetryFailed(s.baseCtx, synth)
		}
	case protocol.ActionFinalize:
		mode, _ := pipeline.ParseFinalizeMode(control.Mode)
		_, err = job.Finalize(s.baseCtx, mode)
		ack.ClipIDs = job.Snapshot().ClipIDs
	}
	if err != nil {
		s.enqueue(outbound, protocol.NewErrorEvent(job.ID(), "control_failed", err.Error(), errors.Is(err, pipeline.ErrBusy)))
		return
	}
	s.enqueue(outbound, ack)
}

// enqueue keeps websocket writes single-threaded; it drops the message when
// the outbound queue is saturated.
func (s *Server) enqueue(outbound chan<- any, msg any) {
	select {
	case outbound <- msg:
	default:
		if s.metrics != nil {
			s.metrics.WSMessages.WithLabelValues("outbound_dropped", messageTypeOf(msg)).Inc()
		}
	}
}

func messageTypeOf(v any) string {
	switch m := v.(type) {
	case pipeline.Event:
		return string(m.Type)
	case protocol.JobSnapshot:
		return string(m.Type)
	case protocol.ControlAck:
		return string(m.Type)
	case protocol.ErrorEvent:
		return string(m.Type)
	default:
		return "unknown"
	}
}
