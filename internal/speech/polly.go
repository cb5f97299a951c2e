package speech

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"

	"github.com/abhisek/lingo/internal/audio"
)

var pollyVoices = []string{"Joanna", "Matthew", "Amy", "Brian", "Ivy", "Justin"}

type synthClient interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// PollySynthesizer implements Synthesizer with Amazon Polly. Credentials
// come from the default AWS chain and are loaded on first use.
type PollySynthesizer struct {
	cfg PollyConfig

	mu     sync.Mutex
	client synthClient
}

// NewPollySynthesizer creates a synthesizer. client may be nil.
func NewPollySynthesizer(cfg PollyConfig, client synthClient) *PollySynthesizer {
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "us-east-1"
	}
	if strings.TrimSpace(cfg.Engine) == "" {
		cfg.Engine = "neural"
	}
	return &PollySynthesizer{cfg: cfg, client: client}
}

func (p *PollySynthesizer) Name() string { return "polly" }

func (p *PollySynthesizer) Voices() []string { return pollyVoices }

func (p *PollySynthesizer) Synthesize(ctx context.Context, text string, voice Voice) (*audio.Clip, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	client, err := p.resolveClient(ctx)
	if err != nil {
		return nil, &Error{Provider: "polly", Op: "synthesize", Err: err}
	}

	engine := pollytypes.EngineStandard
	if strings.EqualFold(p.cfg.Engine, "neural") {
		engine = pollytypes.EngineNeural
	}
	voiceID := voice.ID
	if voiceID == "" {
		voiceID = pollyVoices[0]
	}

	input := &polly.SynthesizeSpeechInput{
		Engine:       engine,
		OutputFormat: pollytypes.OutputFormatMp3,
		Text:         aws.String(text),
		TextType:     pollytypes.TextTypeText,
		VoiceId:      pollytypes.VoiceId(voiceID),
	}
	if voice.Speed > 0 && voice.Speed != 1.0 {
		input.Text = aws.String(prosodySSML(text, voice.Speed))
		input.TextType = pollytypes.TextTypeSsml
	}

	out, err := client.SynthesizeSpeech(ctx, input)
	if err != nil {
		return nil, normalizePollyError(err)
	}
	if out == nil || out.AudioStream == nil {
		return nil, &Error{Provider: "polly", Op: "synthesize", Retryable: true, Err: errors.New("empty audio")}
	}
	defer out.AudioStream.Close()

	data, err := io.ReadAll(out.AudioStream)
	if err != nil {
		return nil, &Error{Provider: "polly", Op: "synthesize", Retryable: true, Err: fmt.Errorf("read audio: %w", err)}
	}
	return &audio.Clip{Text: text, Data: data, Format: "mp3"}, nil
}

// prosodySSML wraps text in an SSML rate change.
func prosodySSML(text string, speed float64) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(text))
	return fmt.Sprintf(`<speak><prosody rate="%d%%">%s</prosody></speak>`, int(math.Round(speed*100)), b.String())
}

func normalizePollyError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Provider: "polly", Op: "synthesize", Retryable: true, Err: err}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "InvalidSsmlException", "TextLengthExceededException", "LexiconNotFoundException",
			"MarksNotSupportedForFormatException", "InvalidSampleRateException", "EngineNotSupportedException":
			return &Error{Provider: "polly", Op: "synthesize", Retryable: false, Err: err}
		default:
			return &Error{Provider: "polly", Op: "synthesize", Retryable: true, Err: err}
		}
	}
	return &Error{Provider: "polly", Op: "synthesize", Retryable: true, Err: err}
}

func (p *PollySynthesizer) resolveClient(ctx context.Context) (synthClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(p.cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	p.client = polly.NewFromConfig(awsCfg)
	return p.client, nil
}
