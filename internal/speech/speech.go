// Package speech reads replies aloud and turns recorded audio into text
// through the OpenAI audio endpoints.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/TravelAgent/client/internal/infrastructure/logging"
)

const (
	DefaultTTSModel = "gpt-4o-mini-tts"
	DefaultSTTModel = openai.Whisper1
	DefaultVoice    = "alloy"
	DefaultLanguage = "ro"
)

var (
	ErrEmptyText       = errors.New("nothing to synthesize")
	ErrEmptyTranscript = errors.New("empty transcription")
)

// Config selects models and voice
type Config struct {
	APIKey string
	// BaseURL overrides the API endpoint, e.g. for a proxy
	BaseURL  string
	TTSModel string
	STTModel string
	Voice    string
	Language string
}

// Service wraps the OpenAI client for speech in both directions
type Service struct {
	client *openai.Client
	cfg    Config
	logger *zap.Logger
}

// New creates a speech service
func New(cfg Config, logger *zap.Logger) *Service {
	if cfg.TTSModel == "" {
		cfg.TTSModel = DefaultTTSModel
	}
	if cfg.STTModel == "" {
		cfg.STTModel = DefaultSTTModel
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &Service{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		logger: logging.OrNop(logger),
	}
}

// Synthesize returns MP3 audio of text. The caller closes the reader.
func (s *Service) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	audio, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.cfg.TTSModel),
		Input:          text,
		Voice:          openai.SpeechVoice(s.cfg.Voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		s.logger.Error("Speech synthesis failed", zap.String("model", s.cfg.TTSModel), zap.Error(err))
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}

	s.logger.Debug("Speech synthesized", zap.Int("chars", len(text)))
	return audio, nil
}

// Transcribe converts recorded audio to text. filename carries the audio
// format (e.g. "voice.webm").
func (s *Service) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	if filename == "" {
		filename = "audio.webm"
	}

	resp, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    s.cfg.STTModel,
		Reader:   audio,
		FilePath: filename,
		Language: s.cfg.Language,
	})
	if err != nil {
		s.logger.Error("Transcription failed", zap.String("model", s.cfg.STTModel), zap.Error(err))
		return "", fmt.Errorf("transcribe audio: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}
