package asr

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/leep66666/smart-job-assistant-backend/internal/asr"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	speechAPIEndpointPort = 443
	audioSampleRateHertz  = 16000
	audioChannelCount     = 1
)

type CloudSpeechConfig struct {
	ProjectID       string
	CredentialsJSON string
	Language        string
	Location        string
	Model           string
}

// CloudSpeechChannel streams audio to Google Cloud Speech-to-Text v2.
// The gRPC stream has a hard duration cap, so sends transparently
// reconnect when the service aborts an aged stream.
type CloudSpeechChannel struct {
	projectID       string
	credentialsJSON string
	language        string
	location        string
	model           string
}

func NewCloudSpeechChannel(cfg CloudSpeechConfig) asr.Channel {
	return &CloudSpeechChannel{
		projectID:       cfg.ProjectID,
		credentialsJSON: cfg.CredentialsJSON,
		language:        cfg.Language,
		location:        strings.TrimSpace(cfg.Location),
		model:           strings.TrimSpace(cfg.Model),
	}
}

func (c *CloudSpeechChannel) Open(ctx context.Context, sessionID string, receiver asr.Receiver) (asr.Stream, error) {
	slog.Info("starting cloud speech streaming", "session_id", sessionID, "location", c.location, "language", c.language, "model", c.model)

	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(c.credentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}

	opts := []option.ClientOption{
		option.WithAuthCredentials(creds),
	}
	if c.location != "" && c.location != "global" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:%d", c.location, speechAPIEndpointPort)))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	streamCtx, cancelStream := context.WithCancel(context.WithoutCancel(ctx))

	recognizer := fmt.Sprintf("projects/%s/locations/%s/recognizers/_", c.projectID, c.location)
	sendConfig := func(s speechpb.Speech_StreamingRecognizeClient) error {
		return s.Send(&speechpb.StreamingRecognizeRequest{
			Recognizer: recognizer,
			StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
				StreamingConfig: &speechpb.StreamingRecognitionConfig{
					Config: &speechpb.RecognitionConfig{
						Model:         c.model,
						LanguageCodes: []string{c.language},
						DecodingConfig: &speechpb.RecognitionConfig_ExplicitDecodingConfig{
							ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
								Encoding:          speechpb.ExplicitDecodingConfig_LINEAR16,
								SampleRateHertz:   audioSampleRateHertz,
								AudioChannelCount: audioChannelCount,
							},
						},
						Features: &speechpb.RecognitionFeatures{},
					},
					StreamingFeatures: &speechpb.StreamingRecognitionFeatures{InterimResults: true},
				},
			},
		})
	}

	stream, err := client.StreamingRecognize(streamCtx)
	if err != nil {
		cancelStream()
		_ = client.Close()
		return nil, err
	}
	if err := sendConfig(stream); err != nil {
		_ = stream.CloseSend()
		cancelStream()
		_ = client.Close()
		return nil, err
	}
	slog.Info("cloud speech stream initialized", "session_id", sessionID)

	s := &cloudSpeechStream{
		sessionID: sessionID,
		stream:    stream,
		receiver:  receiver,
		newStreamFn: func() (speechpb.Speech_StreamingRecognizeClient, error) {
			next, err := client.StreamingRecognize(streamCtx)
			if err != nil {
				return nil, err
			}
			if err := sendConfig(next); err != nil {
				_ = next.CloseSend()
				return nil, err
			}
			return next, nil
		},
		closeFn: func() error {
			cancelStream()
			return client.Close()
		},
	}
	s.startReceiver(stream)

	return s, nil
}

type cloudSpeechStream struct {
	sessionID   string
	receiver    asr.Receiver
	newStreamFn func() (speechpb.Speech_StreamingRecognizeClient, error)
	closeFn     func() error

	mu       sync.Mutex
	closed   bool
	draining bool
	stream   speechpb.Speech_StreamingRecognizeClient

	winMu    sync.Mutex
	windowID int
}

func (s *cloudSpeechStream) Send(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.draining {
		return io.ErrClosedPipe
	}
	req := &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_Audio{
			Audio: pcm,
		},
	}
	if err := s.stream.Send(req); err != nil {
		if !isReconnectableStreamError(err) {
			return err
		}
		slog.Warn("cloud speech send failed with reconnectable error; reconnecting", "error", err, "session_id", s.sessionID)
		if err := s.reconnectLocked(); err != nil {
			return fmt.Errorf("reconnect stream: %w", err)
		}
		return s.stream.Send(req)
	}
	return nil
}

func (s *cloudSpeechStream) CloseSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.draining {
		return nil
	}
	s.draining = true
	return s.stream.CloseSend()
}

func (s *cloudSpeechStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if !s.draining {
		_ = s.stream.CloseSend()
	}
	return s.closeFn()
}

func (s *cloudSpeechStream) reconnectLocked() error {
	slog.Warn("cloud speech stream aborted; reconnecting", "session_id", s.sessionID)
	_ = s.stream.CloseSend()
	next, err := s.newStreamFn()
	if err != nil {
		slog.Error("failed to reconnect cloud speech stream", "error", err, "session_id", s.sessionID)
		return err
	}
	s.stream = next
	s.startReceiver(next)
	slog.Info("cloud speech stream reconnected", "session_id", s.sessionID)
	return nil
}

func (s *cloudSpeechStream) startReceiver(stream speechpb.Speech_StreamingRecognizeClient) {
	go func() {
		for {
			resp, err := stream.Recv()
			if err != nil {
				s.handleRecvError(err)
				return
			}
			for _, result := range resp.GetResults() {
				if len(result.GetAlternatives()) == 0 {
					continue
				}
				text := result.GetAlternatives()[0].GetTranscript()
				if text == "" {
					continue
				}
				isFinal := result.GetIsFinal()
				s.receiver.OnResult(asr.Result{
					WindowID: s.nextWindow(isFinal),
					Text:     text,
					IsFinal:  isFinal,
				})
			}
		}
	}()
}

func (s *cloudSpeechStream) handleRecvError(err error) {
	s.mu.Lock()
	closed, draining := s.closed, s.draining
	s.mu.Unlock()
	if closed {
		return
	}
	if err == io.EOF {
		if draining {
			// the service has flushed everything it will flush
			s.receiver.OnClosed()
			return
		}
		slog.Warn("cloud speech receive loop ended early", "session_id", s.sessionID)
		return
	}
	if strings.Contains(err.Error(), "context canceled") {
		slog.Info("cloud speech receive loop stopped", "session_id", s.sessionID, "reason", err.Error())
		return
	}
	if isReconnectableStreamError(err) {
		slog.Warn("cloud speech receive loop ended with reconnectable abort", "error", err, "session_id", s.sessionID)
		return
	}
	s.receiver.OnError(err)
}

// nextWindow hands out the window for a result and advances past it once
// the window is settled by a final.
func (s *cloudSpeechStream) nextWindow(isFinal bool) int {
	s.winMu.Lock()
	defer s.winMu.Unlock()
	w := s.windowID
	if isFinal {
		s.windowID++
	}
	return w
}

func isReconnectableStreamError(err error) bool {
	if err == io.EOF || strings.Contains(strings.ToLower(err.Error()), "eof") {
		return true
	}
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Aborted {
		return false
	}
	msg := strings.ToLower(st.Message())
	return strings.Contains(msg, "max duration of 5 minutes") ||
		strings.Contains(msg, "stream timed out after receiving no more client requests")
}
