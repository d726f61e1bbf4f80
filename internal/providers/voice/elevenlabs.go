// Package voice synthesizes shot narration through the ElevenLabs
// text-to-speech API.
package voice

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storyboard/internal/domain"
	"storyboard/internal/infra"
)

const (
	ContentTypeMPEG = "audio/mpeg"
	ContentTypeWAV  = "audio/wav"
)

type Options struct {
	APIKey          string
	APIURL          string
	ModelID         string
	Stability       float64
	SimilarityBoost float64
	HTTPClient      *http.Client
	Logger          infra.Logger
}

// Client calls ElevenLabs. Without an API key it renders a short
// deterministic WAV tone so local runs produce playable artifacts.
type Client struct {
	apiKey          string
	apiURL          string
	modelID         string
	stability       float64
	similarityBoost float64
	httpClient      *http.Client
	logger          infra.Logger
}

type Request struct {
	Text    string
	VoiceID string
	ModelID string
}

type elevenLabsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 90 * time.Second}
	}
	apiURL := strings.TrimRight(opts.APIURL, "/")
	if apiURL == "" {
		apiURL = "https://api.elevenlabs.io/v1/text-to-speech"
	}
	modelID := opts.ModelID
	if modelID == "" {
		modelID = "eleven_multilingual_v2"
	}
	stability := opts.Stability
	if stability == 0 {
		stability = 0.5
	}
	boost := opts.SimilarityBoost
	if boost == 0 {
		boost = 0.75
	}
	return &Client{
		apiKey:          strings.TrimSpace(opts.APIKey),
		apiURL:          apiURL,
		modelID:         modelID,
		stability:       stability,
		similarityBoost: boost,
		httpClient:      client,
		logger:          opts.Logger.With().Str("component", "voice").Logger(),
	}
}

// DefaultModel is used when a request names no model.
func (c *Client) DefaultModel() string {
	return c.modelID
}

// ContentType is the MIME type Synthesize will return.
func (c *Client) ContentType() string {
	if c.apiKey == "" {
		return ContentTypeWAV
	}
	return ContentTypeMPEG
}

// Synthesize returns encoded speech for req.Text.
func (c *Client) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: narration text is empty", domain.ErrValidation)
	}
	if strings.TrimSpace(req.VoiceID) == "" {
		return nil, fmt.Errorf("%w: voice id is required", domain.ErrValidation)
	}
	modelID := req.ModelID
	if modelID == "" {
		modelID = c.modelID
	}
	if c.apiKey == "" {
		c.logger.Debug().Str("voice_id", req.VoiceID).Msg("voice: synthetic narration")
		return syntheticWAV(req.Text, req.VoiceID, modelID), nil
	}

	body, err := json.Marshal(elevenLabsRequest{
		Text:    req.Text,
		ModelID: modelID,
		VoiceSettings: voiceSettings{
			Stability:       c.stability,
			SimilarityBoost: c.similarityBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	endpoint := c.apiURL + "/" + req.VoiceID
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", ContentTypeMPEG)
	httpReq.Header.Set("xi-api-key", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: elevenlabs request: %w", domain.ErrUpstreamProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: elevenlabs status %d: %s", domain.ErrUpstreamProvider, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read elevenlabs audio: %w", domain.ErrUpstreamProvider, err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: elevenlabs returned no audio", domain.ErrUpstreamProvider)
	}
	c.logger.Debug().Str("voice_id", req.VoiceID).Int("bytes", len(audio)).Msg("voice: synthesized narration")
	return audio, nil
}

// syntheticWAV renders a mono 8 kHz square tone whose pitch and length are
// derived from the inputs.
func syntheticWAV(text, voiceID, modelID string) []byte {
	const sampleRate = 8000
	sum := sha256.Sum256([]byte(text + "|" + voiceID + "|" + modelID))
	freq := 220 + int(sum[0])*2
	words := len(strings.Fields(text))
	seconds := words / 3
	if seconds < 1 {
		seconds = 1
	}
	if seconds > 20 {
		seconds = 20
	}
	samples := sampleRate * seconds
	period := sampleRate / freq
	if period < 2 {
		period = 2
	}

	var buf bytes.Buffer
	dataLen := uint32(samples)
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, 36+dataLen)
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(8))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, dataLen)
	for i := 0; i < samples; i++ {
		if (i/(period/2))%2 == 0 {
			buf.WriteByte(160)
		} else {
			buf.WriteByte(96)
		}
	}
	return buf.Bytes()
}
