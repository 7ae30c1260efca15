package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrNotConfigured is returned when the Stability provider has no base URL or
// API key.
var ErrNotConfigured = errors.New("media generation is not configured")

const (
	DefaultTimeout = 120 * time.Second

	audioPath = "/v2beta/audio/stable-audio-2/text-to-audio"
	// AudioModel is the Stability model used for text-to-audio requests.
	AudioModel = "stable-audio-2.5"
	// DefaultAudioDuration is the generated clip length in seconds.
	DefaultAudioDuration = 20
)

// StabilityClient calls the Stability AI generation APIs. The v1 generation
// endpoints take JSON and return base64 artifacts; the v2beta endpoints take
// multipart form data.
type StabilityClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewStabilityClient(baseURL, apiKey string) *StabilityClient {
	return &StabilityClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
}

// Configured reports whether the client has an endpoint and a key.
func (s *StabilityClient) Configured() bool {
	return s != nil && s.baseURL != "" && s.apiKey != ""
}

// GenerateImage renders the prompt through the engine at the given API path
// and returns the PNG bytes.
func (s *StabilityClient) GenerateImage(ctx context.Context, prompt string, enginePath string) ([]byte, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	if enginePath == "" {
		return nil, errors.New("no engine configured")
	}
	if strings.HasPrefix(enginePath, "/v2beta") {
		return s.generateImageV2(ctx, prompt, enginePath)
	}
	return s.generateImageV1(ctx, prompt, enginePath)
}

func (s *StabilityClient) generateImageV1(ctx context.Context, prompt string, enginePath string) ([]byte, error) {
	payload := map[string]interface{}{
		"text_prompts": []map[string]string{{"text": prompt}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal image generation payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+enginePath, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build image generation request")
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	data, err := s.do(req)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Artifacts []struct {
			Base64 string `json:"base64"`
		} `json:"artifacts"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, errors.Wrap(err, "failed to decode image generation response")
	}
	if len(parsed.Artifacts) == 0 {
		return nil, errors.New("image generation response contained no artifacts")
	}
	return base64.StdEncoding.DecodeString(parsed.Artifacts[0].Base64)
}

func (s *StabilityClient) generateImageV2(ctx context.Context, prompt string, enginePath string) ([]byte, error) {
	fields := map[string]string{
		"prompt":       prompt,
		"mode":         "text-to-image",
		"aspect_ratio": "1:1",
	}
	body, contentType, err := multipartForm(fields)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+enginePath, body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build image generation request")
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", contentType)

	data, err := s.do(req)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Image string `json:"image"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, errors.Wrap(err, "failed to decode image generation response")
	}
	return base64.StdEncoding.DecodeString(parsed.Image)
}

// GenerateAudio renders the prompt through the Stable Audio endpoint and
// returns the raw audio bytes. durationSeconds of zero picks the default.
func (s *StabilityClient) GenerateAudio(ctx context.Context, prompt string, durationSeconds int) ([]byte, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	if durationSeconds <= 0 {
		durationSeconds = DefaultAudioDuration
	}

	fields := map[string]string{
		"prompt":   prompt,
		"duration": strconv.Itoa(durationSeconds),
		"model":    AudioModel,
	}
	body, contentType, err := multipartForm(fields)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+audioPath, body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build audio generation request")
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "audio/*")
	req.Header.Set("Content-Type", contentType)

	return s.do(req)
}

func (s *StabilityClient) do(req *http.Request) ([]byte, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "stability request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read stability response")
	}
	if resp.StatusCode != http.StatusOK {
		log.Error().
			Int("status", resp.StatusCode).
			Str("body", string(data)).
			Msg("stability API error")
		return nil, errors.Errorf("stability API returned status %d", resp.StatusCode)
	}
	return data, nil
}

func multipartForm(fields map[string]string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", errors.Wrap(err, "failed to write multipart field")
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", errors.Wrap(err, "failed to finalize multipart form")
	}
	return body, writer.FormDataContentType(), nil
}
