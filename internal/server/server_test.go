package server_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/voxlate/voxlate/internal/config"
	"github.com/voxlate/voxlate/internal/observe"
	"github.com/voxlate/voxlate/internal/pipeline"
	"github.com/voxlate/voxlate/internal/server"
	"github.com/voxlate/voxlate/internal/session"
	"github.com/voxlate/voxlate/pkg/audio"
	"github.com/voxlate/voxlate/pkg/provider/recognize"
	recognizemock "github.com/voxlate/voxlate/pkg/provider/recognize/mock"
	"github.com/voxlate/voxlate/pkg/provider/translate"
	translatemock "github.com/voxlate/voxlate/pkg/provider/translate/mock"
)

// downstreamMessage decodes any message the server sends.
type downstreamMessage struct {
	Type             string `json:"type"`
	SessionID        string `json:"sessionId"`
	TargetLanguage   string `json:"targetLanguage"`
	Original         string `json:"original"`
	Translated       string `json:"translated"`
	DetectedLanguage string `json:"detectedLanguage"`
	Message          string `json:"message"`
}

func newMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

// newCaptionServer mounts a fully wired server on an httptest listener with
// mock providers and no detector, so the fallback language "en" is assumed
// for every caption.
func newCaptionServer(t *testing.T, rec *recognizemock.Provider, tr *translatemock.Provider) (*httptest.Server, *session.Manager) {
	t.Helper()

	m := newMetrics(t)
	proc, err := pipeline.New(rec, nil, tr, pipeline.WithMetrics(m))
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	mgr := session.NewManager(proc, m)

	cfg := &config.Config{}
	cfg.Pipeline.TargetLanguage = "en"

	srv := httptest.NewServer(server.New(cfg, mgr, m).Handler())
	t.Cleanup(srv.Close)
	return srv, mgr
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// dial opens a caption channel and consumes the connection_success handshake.
func dial(t *testing.T, srv *httptest.Server, query string) (*websocket.Conn, downstreamMessage) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(srv)+"/ws"+query, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })

	welcome := readMessage(t, conn)
	if welcome.Type != "connection_success" {
		t.Fatalf("first message type = %q, want connection_success", welcome.Type)
	}
	return conn, welcome
}

func readMessage(t *testing.T, conn *websocket.Conn) downstreamMessage {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var msg downstreamMessage
	if err := wsjson.Read(ctx, conn, &msg); err != nil {
		t.Fatalf("read message: %v", err)
	}
	return msg
}

func sendFrame(t *testing.T, conn *websocket.Conn, pcm []byte) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.Write(ctx, websocket.MessageBinary, pcm); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

// numberedFrame returns a minimum-length PCM frame whose first byte tags it.
func numberedFrame(n byte) []byte {
	pcm := make([]byte, audio.MinFrameBytes)
	pcm[0] = n
	return pcm
}

func TestChannel_HandshakeCarriesSessionAndTarget(t *testing.T) {
	t.Parallel()

	srv, mgr := newCaptionServer(t, &recognizemock.Provider{}, &translatemock.Provider{})

	_, welcome := dial(t, srv, "?target=fr")

	if welcome.SessionID == "" {
		t.Error("welcome carries no session id")
	}
	if welcome.TargetLanguage != "fr" {
		t.Errorf("welcome target = %q, want fr", welcome.TargetLanguage)
	}
	if mgr.Get(welcome.SessionID) == nil {
		t.Error("session id from welcome is not registered")
	}
}

func TestChannel_DefaultsTargetLanguage(t *testing.T) {
	t.Parallel()

	rec := &recognizemock.Provider{Result: recognize.Result{Text: "hello"}}
	tr := &translatemock.Provider{}
	srv, _ := newCaptionServer(t, rec, tr)

	conn, welcome := dial(t, srv, "")
	if welcome.TargetLanguage != "en" {
		t.Fatalf("welcome target = %q, want config default en", welcome.TargetLanguage)
	}

	// Assumed source en == target en, so the caption passes through
	// untranslated.
	sendFrame(t, conn, numberedFrame(1))
	msg := readMessage(t, conn)

	if msg.Type != "translation_result" {
		t.Fatalf("message type = %q, want translation_result", msg.Type)
	}
	if msg.Translated != "hello" || msg.Original != "hello" {
		t.Errorf("caption = %q/%q, want hello/hello", msg.Original, msg.Translated)
	}
	if got := tr.CallCount(); got != 0 {
		t.Errorf("translator called %d times for same-language caption, want 0", got)
	}
}

func TestChannel_EmitsCaptionsInArrivalOrder(t *testing.T) {
	t.Parallel()

	rec := &recognizemock.Provider{
		ResultFunc: func(req recognize.Request) (recognize.Result, error) {
			// Slow down the first frame so the others queue behind it.
			if req.PCM[0] == 1 {
				time.Sleep(100 * time.Millisecond)
			}
			return recognize.Result{Text: fmt.Sprintf("frame-%d", req.PCM[0])}, nil
		},
	}
	tr := &translatemock.Provider{
		TranslateFunc: func(req translate.Request) (string, error) {
			return "fr:" + req.Text, nil
		},
	}
	srv, _ := newCaptionServer(t, rec, tr)

	conn, _ := dial(t, srv, "?target=fr")
	for n := byte(1); n <= 3; n++ {
		sendFrame(t, conn, numberedFrame(n))
	}

	for n := 1; n <= 3; n++ {
		msg := readMessage(t, conn)
		if msg.Type != "translation_result" {
			t.Fatalf("message %d type = %q, want translation_result", n, msg.Type)
		}
		want := fmt.Sprintf("fr:frame-%d", n)
		if msg.Translated != want {
			t.Errorf("caption %d = %q, want %q", n, msg.Translated, want)
		}
		if msg.DetectedLanguage != "en" {
			t.Errorf("caption %d detected = %q, want fallback en", n, msg.DetectedLanguage)
		}
	}
}

func TestChannel_RecognitionFailureDoesNotCloseChannel(t *testing.T) {
	t.Parallel()

	rec := &recognizemock.Provider{
		ResultFunc: func(req recognize.Request) (recognize.Result, error) {
			if req.PCM[0] == 1 {
				return recognize.Result{}, errors.New("upstream unavailable")
			}
			return recognize.Result{Text: "recovered"}, nil
		},
	}
	srv, _ := newCaptionServer(t, rec, &translatemock.Provider{})

	conn, _ := dial(t, srv, "")
	sendFrame(t, conn, numberedFrame(1))
	sendFrame(t, conn, numberedFrame(2))

	failure := readMessage(t, conn)
	if failure.Type != "processing_error" {
		t.Fatalf("first message type = %q, want processing_error", failure.Type)
	}
	if failure.Message == "" {
		t.Error("processing_error carries no message")
	}

	caption := readMessage(t, conn)
	if caption.Type != "translation_result" || caption.Original != "recovered" {
		t.Errorf("second message = %+v, want recovered caption", caption)
	}
}

func TestChannel_ShortFrameIsRejectedBeforeRecognition(t *testing.T) {
	t.Parallel()

	rec := &recognizemock.Provider{Result: recognize.Result{Text: "never"}}
	srv, _ := newCaptionServer(t, rec, &translatemock.Provider{})

	conn, _ := dial(t, srv, "")
	sendFrame(t, conn, make([]byte, audio.MinFrameBytes-2))

	msg := readMessage(t, conn)
	if msg.Type != "processing_error" {
		t.Fatalf("message type = %q, want processing_error", msg.Type)
	}
	if got := rec.CallCount(); got != 0 {
		t.Errorf("recognizer called %d times for a short frame, want 0", got)
	}
}

func TestChannel_SilentFrameEmitsNothing(t *testing.T) {
	t.Parallel()

	rec := &recognizemock.Provider{
		ResultFunc: func(req recognize.Request) (recognize.Result, error) {
			if req.PCM[0] == 1 {
				return recognize.Result{}, nil // no speech
			}
			return recognize.Result{Text: "speech"}, nil
		},
	}
	srv, _ := newCaptionServer(t, rec, &translatemock.Provider{})

	conn, _ := dial(t, srv, "")
	sendFrame(t, conn, numberedFrame(1))
	sendFrame(t, conn, numberedFrame(2))

	// The only downstream message is the second frame's caption.
	msg := readMessage(t, conn)
	if msg.Type != "translation_result" || msg.Original != "speech" {
		t.Errorf("message = %+v, want caption for the voiced frame only", msg)
	}
}

func TestChannel_DisconnectDestroysSession(t *testing.T) {
	t.Parallel()

	srv, mgr := newCaptionServer(t, &recognizemock.Provider{}, &translatemock.Provider{})

	conn, welcome := dial(t, srv, "")
	if mgr.Get(welcome.SessionID) == nil {
		t.Fatal("session not registered after connect")
	}

	conn.Close(websocket.StatusNormalClosure, "")

	deadline := time.Now().Add(2 * time.Second)
	for mgr.Get(welcome.SessionID) != nil {
		if time.Now().After(deadline) {
			t.Fatal("session still registered after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestChannel_DisconnectDoesNotCancelInFlightFrame(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	finished := make(chan struct{})
	rec := &recognizemock.Provider{
		ResultFunc: func(req recognize.Request) (recognize.Result, error) {
			close(started)
			<-release
			close(finished)
			return recognize.Result{Text: "held"}, nil
		},
	}
	srv, mgr := newCaptionServer(t, rec, &translatemock.Provider{})

	conn, welcome := dial(t, srv, "")
	sendFrame(t, conn, numberedFrame(1))

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("recognizer never started")
	}

	// Disconnect while the frame is mid-pipeline and wait until the
	// handler has returned and torn the session down. At that point
	// net/http has cancelled the request context.
	conn.Close(websocket.StatusNormalClosure, "")
	deadline := time.Now().Add(2 * time.Second)
	for mgr.Get(welcome.SessionID) != nil {
		if time.Now().After(deadline) {
			t.Fatal("session still registered after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}

	close(release)
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("recognizer never finished")
	}

	// The provider call must run to completion: its context stays live
	// across the disconnect, only the result delivery is suppressed.
	if err := rec.Calls[0].Ctx.Err(); err != nil {
		t.Fatalf("in-flight provider context after disconnect: got %v, want nil", err)
	}
}

func TestServer_OperationalEndpoints(t *testing.T) {
	t.Parallel()

	srv, _ := newCaptionServer(t, &recognizemock.Provider{}, &translatemock.Provider{})

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
	}
}
