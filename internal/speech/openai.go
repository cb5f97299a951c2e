package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/abhisek/lingo/internal/audio"
)

var openaiVoices = []string{
	string(openai.VoiceAlloy),
	string(openai.VoiceNova),
	string(openai.VoiceEcho),
	string(openai.VoiceShimmer),
	string(openai.VoiceOnyx),
	string(openai.VoiceFable),
}

func newOpenAIClient(cfg OpenAIConfig) (*openai.Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(config), nil
}

// OpenAISynthesizer implements Synthesizer with the OpenAI speech endpoint.
type OpenAISynthesizer struct {
	client *openai.Client
	model  string
}

// NewOpenAISynthesizer creates a synthesizer.
func NewOpenAISynthesizer(cfg OpenAIConfig) (*OpenAISynthesizer, error) {
	client, err := newOpenAIClient(cfg)
	if err != nil {
		return nil, err
	}
	model := cfg.TTSModel
	if model == "" {
		model = string(openai.TTSModel1)
	}
	return &OpenAISynthesizer{client: client, model: model}, nil
}

func (s *OpenAISynthesizer) Name() string { return "openai" }

func (s *OpenAISynthesizer) Voices() []string { return openaiVoices }

func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string, voice Voice) (*audio.Clip, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	v := voice.ID
	if v == "" {
		v = openaiVoices[0]
	}

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.SpeechVoice(v),
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          voice.Speed,
	})
	if err != nil {
		return nil, mapOpenAIError("synthesize", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, &Error{Provider: "openai", Op: "synthesize", Retryable: true, Err: fmt.Errorf("read audio: %w", err)}
	}
	if len(data) == 0 {
		return nil, &Error{Provider: "openai", Op: "synthesize", Retryable: true, Err: errors.New("empty audio")}
	}
	return &audio.Clip{Text: text, Data: data, Format: "mp3"}, nil
}

// OpenAITranscriber implements Transcriber with Whisper.
type OpenAITranscriber struct {
	client   *openai.Client
	model    string
	language string
}

// NewOpenAITranscriber creates a transcriber.
func NewOpenAITranscriber(cfg OpenAIConfig) (*OpenAITranscriber, error) {
	client, err := newOpenAIClient(cfg)
	if err != nil {
		return nil, err
	}
	model := cfg.STTModel
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAITranscriber{client: client, model: model, language: cfg.Language}, nil
}

func (t *OpenAITranscriber) Name() string { return "openai" }

func (t *OpenAITranscriber) Transcribe(ctx context.Context, rec *audio.Recording) (string, error) {
	if rec == nil || len(rec.Audio) == 0 {
		return "", nil
	}
	format := rec.Format
	if format == "" {
		format = "wav"
	}

	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: "turn." + format,
		Reader:   bytes.NewReader(rec.Audio),
		Language: t.language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", mapOpenAIError("transcribe", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// mapOpenAIError marks rate limits, server errors and transport failures
// as retryable. Other API errors (bad key, bad input) are not.
func mapOpenAIError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	retryable := true
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		retryable = apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	case errors.As(err, &reqErr):
		retryable = reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return &Error{Provider: "openai", Op: op, Retryable: retryable, Err: err}
}
