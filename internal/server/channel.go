package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/voxlate/voxlate/internal/observe"
	"github.com/voxlate/voxlate/internal/pipeline"
	"github.com/voxlate/voxlate/internal/session"
	"github.com/voxlate/voxlate/pkg/audio"
)

var _ session.Sink = (*wsEmitter)(nil)

// maxMessageBytes bounds a single upstream binary message. The largest frame
// an accumulator can emit is ten seconds of PCM; anything bigger is a
// protocol violation.
const maxMessageBytes = 10*audio.SampleRate*audio.BytesPerSample + 1024

// writeTimeout bounds one downstream send so a stalled client cannot block
// its session's processing goroutine indefinitely.
const writeTimeout = 5 * time.Second

// Downstream message type discriminators.
const (
	msgConnectionSuccess = "connection_success"
	msgTranslationResult = "translation_result"
	msgProcessingError   = "processing_error"
)

// connectionSuccessMessage is sent once, immediately after accept.
type connectionSuccessMessage struct {
	Type           string `json:"type"`
	SessionID      string `json:"sessionId"`
	TargetLanguage string `json:"targetLanguage"`
}

// translationResultMessage carries one finished caption.
type translationResultMessage struct {
	Type             string `json:"type"`
	Original         string `json:"original"`
	Translated       string `json:"translated"`
	DetectedLanguage string `json:"detectedLanguage"`
}

// processingErrorMessage reports a frame-local failure. The channel stays
// open; only the affected frame is lost.
type processingErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// handleChannel upgrades the request to a WebSocket and runs one caption
// session over it. Each binary message is one complete PCM frame and is
// enqueued as-is; the session serializes pipeline executions and pushes
// results back through the connection.
func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		observe.Logger(r.Context()).Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxMessageBytes)

	target := r.URL.Query().Get("target")
	if target == "" {
		target = s.cfg.Pipeline.TargetLanguage
	}

	emitter := &wsEmitter{conn: conn}
	sess := s.sessions.Create(r.Context(), target, emitter)

	// Destroy synchronously before the handler returns, even when the
	// request context is already cancelled.
	defer s.sessions.Remove(context.WithoutCancel(r.Context()), sess.ID())

	log := observe.Logger(r.Context()).With("session_id", sess.ID(), "target", target)
	log.Info("caption channel opened")

	welcome := connectionSuccessMessage{
		Type:           msgConnectionSuccess,
		SessionID:      sess.ID(),
		TargetLanguage: target,
	}
	if err := emitter.send(r.Context(), welcome); err != nil {
		log.Warn("caption channel handshake failed", "error", err)
		return
	}

	for {
		typ, data, err := conn.Read(r.Context())
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				log.Info("caption channel closed")
			default:
				log.Warn("caption channel read failed", "error", err)
			}
			return
		}
		if typ != websocket.MessageBinary {
			// Only binary messages carry audio.
			continue
		}

		frame := audio.Frame{Data: data, SampleRate: audio.SampleRate}
		if err := sess.Enqueue(frame); err != nil {
			emitter.Error(r.Context(), err)
		}
	}
}

// wsEmitter delivers session outcomes over the WebSocket connection. Session
// callbacks arrive one at a time from the processing goroutine, but the
// handshake write from the handler goroutine can overlap with them, hence the
// mutex. Send failures are logged and swallowed: a broken transport must
// never propagate into session state.
type wsEmitter struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (e *wsEmitter) Caption(ctx context.Context, c pipeline.Caption) {
	msg := translationResultMessage{
		Type:             msgTranslationResult,
		Original:         c.Original,
		Translated:       c.Translated,
		DetectedLanguage: c.DetectedLanguage,
	}
	if err := e.send(ctx, msg); err != nil {
		observe.Logger(ctx).Warn("caption send failed", "error", err)
	}
}

func (e *wsEmitter) Error(ctx context.Context, procErr error) {
	msg := processingErrorMessage{
		Type:    msgProcessingError,
		Message: procErr.Error(),
	}
	if err := e.send(ctx, msg); err != nil {
		observe.Logger(ctx).Warn("processing error send failed", "error", err)
	}
}

func (e *wsEmitter) send(ctx context.Context, v any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	e.mu.Lock()
	defer e.mu.Unlock()
	return wsjson.Write(ctx, e.conn, v)
}
