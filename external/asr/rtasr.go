package asr

import (
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/leep66666/smart-job-assistant-backend/internal/asr"
)

const (
	rtasrEndpoint = "ws://rtasr.xfyun.cn/v1/ws"
	// 1280 bytes of 16kHz 16bit mono PCM is 40ms of audio; the service
	// expects frames paced at real time.
	rtasrFrameSize     = 1280
	rtasrFrameInterval = 40 * time.Millisecond
	rtasrEndTag        = `{"end": true}`
)

type RTASRConfig struct {
	AppID    string
	APIKey   string
	Endpoint string
}

// RTASRChannel streams PCM audio to the iFlytek realtime transcription
// service over a signed websocket connection.
type RTASRChannel struct {
	appID    string
	apiKey   string
	endpoint string
	dialer   *websocket.Dialer
}

func NewRTASRChannel(cfg RTASRConfig) asr.Channel {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = rtasrEndpoint
	}
	return &RTASRChannel{
		appID:    cfg.AppID,
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		dialer:   websocket.DefaultDialer,
	}
}

func (c *RTASRChannel) Open(ctx context.Context, sessionID string, receiver asr.Receiver) (asr.Stream, error) {
	signedURL := rtasrSignedURL(c.endpoint, c.appID, c.apiKey, time.Now())
	slog.Info("dialing realtime transcription service", "session_id", sessionID, "endpoint", c.endpoint)

	conn, _, err := c.dialer.DialContext(ctx, signedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial recognizer: %w", err)
	}

	s := &rtasrStream{
		conn:      conn,
		receiver:  receiver,
		sessionID: sessionID,
		draining:  make(chan struct{}),
		closed:    make(chan struct{}),
	}
	go s.sendLoop()
	go s.readLoop()
	return s, nil
}

// rtasrSignedURL builds the handshake URL. The signature is the
// base64-encoded HMAC-SHA1 of md5hex(appid+ts), keyed with the API key.
func rtasrSignedURL(endpoint, appID, apiKey string, now time.Time) string {
	ts := strconv.FormatInt(now.Unix(), 10)
	digest := md5.Sum([]byte(appID + ts))
	mac := hmac.New(sha1.New, []byte(apiKey))
	mac.Write([]byte(hex.EncodeToString(digest[:])))
	signa := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	params := url.Values{}
	params.Set("appid", appID)
	params.Set("ts", ts)
	params.Set("signa", signa)
	return endpoint + "?" + params.Encode()
}

type rtasrStream struct {
	conn      *websocket.Conn
	receiver  asr.Receiver
	sessionID string

	bufMu sync.Mutex
	buf   []byte

	writeMu sync.Mutex

	// windowID is touched only by the read loop
	windowID int

	drainOnce sync.Once
	draining  chan struct{}
	closeOnce sync.Once
	closed    chan struct{}
}

// Send buffers audio; the send loop paces it out in fixed-size frames.
func (s *rtasrStream) Send(frame []byte) error {
	select {
	case <-s.closed:
		return fmt.Errorf("stream closed")
	default:
	}
	s.bufMu.Lock()
	s.buf = append(s.buf, frame...)
	s.bufMu.Unlock()
	return nil
}

func (s *rtasrStream) CloseSend() error {
	s.drainOnce.Do(func() { close(s.draining) })
	return nil
}

func (s *rtasrStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.conn.Close()
	})
	return err
}

func (s *rtasrStream) sendLoop() {
	ticker := time.NewTicker(rtasrFrameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.writeNextFrame(); err != nil {
				s.reportWriteError(err)
				return
			}
		case <-s.draining:
			if err := s.flushAndFinish(); err != nil {
				s.reportWriteError(err)
			}
			return
		case <-s.closed:
			return
		}
	}
}

func (s *rtasrStream) writeNextFrame() error {
	s.bufMu.Lock()
	if len(s.buf) == 0 {
		s.bufMu.Unlock()
		return nil
	}
	n := len(s.buf)
	if n > rtasrFrameSize {
		n = rtasrFrameSize
	}
	frame := s.buf[:n]
	s.buf = s.buf[n:]
	s.bufMu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// flushAndFinish drains whatever audio is still buffered and sends the
// end tag so the service emits its remaining results.
func (s *rtasrStream) flushAndFinish() error {
	for {
		s.bufMu.Lock()
		remaining := len(s.buf)
		s.bufMu.Unlock()
		if remaining == 0 {
			break
		}
		if err := s.writeNextFrame(); err != nil {
			return err
		}
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	slog.Debug("sending end-of-audio tag", "session_id", s.sessionID)
	return s.conn.WriteMessage(websocket.TextMessage, []byte(rtasrEndTag))
}

func (s *rtasrStream) reportWriteError(err error) {
	select {
	case <-s.closed:
		return
	default:
	}
	s.receiver.OnError(fmt.Errorf("write audio frame: %w", err))
}

func (s *rtasrStream) readLoop() {
	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closed:
				return
			default:
			}
			s.receiver.OnError(fmt.Errorf("read recognizer message: %w", err))
			return
		}
		if done := s.handleMessage(message); done {
			return
		}
	}
}

type rtasrMessage struct {
	Action string      `json:"action"`
	Code   json.Number `json:"code"`
	Desc   string      `json:"desc"`
	Data   string      `json:"data"`
	SID    string      `json:"sid"`
}

type rtasrResultData struct {
	CN struct {
		ST struct {
			Type string `json:"type"`
			RT   []struct {
				WS []struct {
					CW []struct {
						W string `json:"w"`
					} `json:"cw"`
				} `json:"ws"`
			} `json:"rt"`
		} `json:"st"`
	} `json:"cn"`
}

func (s *rtasrStream) handleMessage(raw []byte) bool {
	var msg rtasrMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		slog.Warn("unparseable recognizer message", "error", err, "session_id", s.sessionID)
		return false
	}
	// the service reports errors both as action=error and as a nonzero
	// code on any message
	if code := msg.Code.String(); code != "" && code != "0" {
		s.receiver.OnError(fmt.Errorf("recognizer rejected stream: code=%s desc=%s", code, msg.Desc))
		return true
	}

	switch msg.Action {
	case "started":
		slog.Info("recognizer handshake confirmed", "session_id", s.sessionID, "sid", msg.SID)
	case "result":
		text, isFinal, err := parseRTASRResult(msg.Data)
		if err != nil {
			slog.Warn("unparseable recognition result", "error", err, "session_id", s.sessionID)
			return false
		}
		if text == "" {
			return false
		}
		s.receiver.OnResult(asr.Result{WindowID: s.windowID, Text: text, IsFinal: isFinal})
		if isFinal {
			s.windowID++
		}
	case "error":
		s.receiver.OnError(fmt.Errorf("recognizer error: code=%s desc=%s", msg.Code.String(), msg.Desc))
		return true
	case "finished", "closed":
		slog.Info("recognizer finished", "session_id", s.sessionID)
		s.receiver.OnClosed()
		return true
	}
	return false
}

// parseRTASRResult extracts the concatenated words from the nested
// result payload. The st.type field distinguishes a settled window ("0")
// from a rolling correction ("1").
func parseRTASRResult(data string) (string, bool, error) {
	if data == "" {
		return "", false, nil
	}
	var result rtasrResultData
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return "", false, fmt.Errorf("decode result payload: %w", err)
	}
	var text string
	for _, rt := range result.CN.ST.RT {
		for _, ws := range rt.WS {
			for _, cw := range ws.CW {
				text += cw.W
			}
		}
	}
	return text, result.CN.ST.Type == "0", nil
}
