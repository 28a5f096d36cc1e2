package asr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	internalasr "github.com/leep66666/smart-job-assistant-backend/internal/asr"
)

func TestRTASRSignedURL(t *testing.T) {
	now := time.Unix(1700000000, 0)
	signed := rtasrSignedURL("ws://rtasr.example.com/v1/ws", "myapp", "secret", now)

	u, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	q := u.Query()
	if q.Get("appid") != "myapp" {
		t.Fatalf("unexpected appid: %q", q.Get("appid"))
	}
	if q.Get("ts") != "1700000000" {
		t.Fatalf("unexpected ts: %q", q.Get("ts"))
	}
	// HMAC-SHA1(secret, md5hex("myapp" + "1700000000")), base64
	if got, want := q.Get("signa"), "AjVoVJ80s9w1+P1X1wVPii3A85Y="; got != want {
		t.Fatalf("unexpected signature: got %q want %q", got, want)
	}
}

func TestParseRTASRResult(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		wantText  string
		wantFinal bool
	}{
		{
			name:      "settled window",
			data:      `{"cn":{"st":{"type":"0","rt":[{"ws":[{"cw":[{"w":"我"}]},{"cw":[{"w":"叫"}]}]}]}},"ls":false}`,
			wantText:  "我叫",
			wantFinal: true,
		},
		{
			name:      "rolling correction",
			data:      `{"cn":{"st":{"type":"1","rt":[{"ws":[{"cw":[{"w":"我"}]}]}]}},"ls":false}`,
			wantText:  "我",
			wantFinal: false,
		},
		{
			name:     "empty payload",
			data:     "",
			wantText: "",
		},
		{
			name:     "no words",
			data:     `{"cn":{"st":{"type":"0","rt":[]}}}`,
			wantText: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isFinal, err := parseRTASRResult(tt.data)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if text != tt.wantText || isFinal != tt.wantFinal {
				t.Fatalf("got (%q, %v), want (%q, %v)", text, isFinal, tt.wantText, tt.wantFinal)
			}
		})
	}

	if _, _, err := parseRTASRResult("not json"); err == nil {
		t.Fatal("expected error on malformed payload")
	}
}

type recordingReceiver struct {
	mu      sync.Mutex
	results []internalasr.Result
	errs    []error
	closed  bool
}

func (r *recordingReceiver) OnResult(res internalasr.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recordingReceiver) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recordingReceiver) OnClosed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *recordingReceiver) snapshot() ([]internalasr.Result, []error, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]internalasr.Result(nil), r.results...), append([]error(nil), r.errs...), r.closed
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, message string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(message)
}

func TestRTASRStream_ResultsWindowingAndDrain(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("appid") == "" || r.URL.Query().Get("signa") == "" {
			http.Error(w, "missing signature", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"started","code":"0","sid":"test"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"result","code":"0","data":"{\"cn\":{\"st\":{\"type\":\"1\",\"rt\":[{\"ws\":[{\"cw\":[{\"w\":\"你\"}]}]}]}}}"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"result","code":"0","data":"{\"cn\":{\"st\":{\"type\":\"0\",\"rt\":[{\"ws\":[{\"cw\":[{\"w\":\"你好\"}]}]}]}}}"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"result","code":"0","data":"{\"cn\":{\"st\":{\"type\":\"0\",\"rt\":[{\"ws\":[{\"cw\":[{\"w\":\"世界\"}]}]}]}}}"}`))

		// wait for the end tag, then confirm completion
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.TextMessage && strings.Contains(string(msg), "end") {
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"finished","code":"0"}`))
				return
			}
		}
	}))
	defer server.Close()

	channel := NewRTASRChannel(RTASRConfig{
		AppID:    "app",
		APIKey:   "key",
		Endpoint: "ws" + strings.TrimPrefix(server.URL, "http"),
	})
	receiver := &recordingReceiver{}
	stream, err := channel.Open(context.Background(), "s-1", receiver)
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	defer stream.Close()

	if err := stream.Send(make([]byte, 2000)); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if err := stream.CloseSend(); err != nil {
		t.Fatalf("unexpected close-send error: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		_, _, closed := receiver.snapshot()
		return closed
	}, "expected drain confirmation from server")

	results, errs, _ := receiver.snapshot()
	if len(errs) != 0 {
		t.Fatalf("unexpected receiver errors: %v", errs)
	}
	want := []internalasr.Result{
		{WindowID: 0, Text: "你", IsFinal: false},
		{WindowID: 0, Text: "你好", IsFinal: true},
		{WindowID: 1, Text: "世界", IsFinal: true},
	}
	if len(results) != len(want) {
		t.Fatalf("unexpected result count: got %d want %d (%+v)", len(results), len(want), results)
	}
	for i := range want {
		if results[i] != want[i] {
			t.Fatalf("result %d mismatch: got %+v want %+v", i, results[i], want[i])
		}
	}
}

func TestRTASRStream_ServerErrorReachesReceiver(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"error","code":"10800","desc":"over max connect limit"}`))
	}))
	defer server.Close()

	channel := NewRTASRChannel(RTASRConfig{
		AppID:    "app",
		APIKey:   "key",
		Endpoint: "ws" + strings.TrimPrefix(server.URL, "http"),
	})
	receiver := &recordingReceiver{}
	stream, err := channel.Open(context.Background(), "s-1", receiver)
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	defer stream.Close()

	waitFor(t, 2*time.Second, func() bool {
		_, errs, _ := receiver.snapshot()
		return len(errs) > 0
	}, "expected recognizer error to reach receiver")

	_, errs, _ := receiver.snapshot()
	if !strings.Contains(errs[0].Error(), "10800") {
		t.Fatalf("unexpected error: %v", errs[0])
	}
}
