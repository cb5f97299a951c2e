package speech

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/lingo/internal/audio"
)

// Observer receives the outcome of every speech call, e.g. for metrics.
type Observer interface {
	ObserveSpeech(provider, op string, d time.Duration, err error)
}

type loggingSynthesizer struct {
	inner    Synthesizer
	timeout  time.Duration
	logger   *zap.Logger
	observer Observer
}

// WithSynthLogging wraps s with a per-call timeout, structured logs and an
// optional observer.
func WithSynthLogging(s Synthesizer, timeout time.Duration, logger *zap.Logger, obs Observer) Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &loggingSynthesizer{inner: s, timeout: timeout, logger: logger, observer: obs}
}

func (l *loggingSynthesizer) Name() string     { return l.inner.Name() }
func (l *loggingSynthesizer) Voices() []string { return l.inner.Voices() }

func (l *loggingSynthesizer) Synthesize(ctx context.Context, text string, voice Voice) (*audio.Clip, error) {
	ctx, cancel := withTimeout(ctx, l.timeout)
	defer cancel()

	start := time.Now()
	clip, err := l.inner.Synthesize(ctx, text, voice)
	d := time.Since(start)

	fields := []zap.Field{
		zap.String("provider", l.inner.Name()),
		zap.String("voice", voice.ID),
		zap.Int("chars", len(text)),
		zap.Duration("latency", d),
	}
	if err != nil {
		l.logger.Warn("synthesis failed", append(fields, zap.Error(err))...)
	} else {
		l.logger.Debug("synthesized line", append(fields, zap.Int("bytes", len(clip.Data)))...)
	}
	if l.observer != nil {
		l.observer.ObserveSpeech(l.inner.Name(), "synthesize", d, err)
	}
	return clip, err
}

type loggingTranscriber struct {
	inner    Transcriber
	timeout  time.Duration
	logger   *zap.Logger
	observer Observer
}

// WithTranscribeLogging wraps t like WithSynthLogging.
func WithTranscribeLogging(t Transcriber, timeout time.Duration, logger *zap.Logger, obs Observer) Transcriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &loggingTranscriber{inner: t, timeout: timeout, logger: logger, observer: obs}
}

func (l *loggingTranscriber) Name() string { return l.inner.Name() }

func (l *loggingTranscriber) Transcribe(ctx context.Context, rec *audio.Recording) (string, error) {
	ctx, cancel := withTimeout(ctx, l.timeout)
	defer cancel()

	start := time.Now()
	text, err := l.inner.Transcribe(ctx, rec)
	d := time.Since(start)

	fields := []zap.Field{
		zap.String("provider", l.inner.Name()),
		zap.Duration("audio", rec.Duration()),
		zap.Duration("latency", d),
	}
	if err != nil {
		l.logger.Warn("transcription failed", append(fields, zap.Bool("retryable", IsRetryable(err)), zap.Error(err))...)
	} else {
		l.logger.Debug("transcribed turn", append(fields, zap.Int("chars", len(text)))...)
	}
	if l.observer != nil {
		l.observer.ObserveSpeech(l.inner.Name(), "transcribe", d, err)
	}
	return text, err
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
