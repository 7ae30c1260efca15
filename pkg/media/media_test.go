package media

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchGenerateImage(t *testing.T) {
	query, ok := MatchGenerateImage("please draw a picture of a red fox")
	require.True(t, ok)
	assert.Equal(t, "a red fox", query)

	query, ok = MatchGenerateImage("imagine a castle in the clouds")
	require.True(t, ok)
	assert.Equal(t, "a castle in the clouds", query)

	_, ok = MatchGenerateImage("what do you think about foxes")
	assert.False(t, ok)

	// slash commands are never treated as media requests
	_, ok = MatchGenerateImage("/imagine a castle")
	assert.False(t, ok)
}

func TestMatchSearchImage(t *testing.T) {
	query, ok := MatchSearchImage("image: golden gate bridge")
	require.True(t, ok)
	assert.Equal(t, "golden gate bridge", query)

	query, ok = MatchSearchImage("can you show me a photo of saturn")
	require.True(t, ok)
	assert.Equal(t, "saturn", query)

	_, ok = MatchSearchImage("tell me about saturn")
	assert.False(t, ok)
}

func TestMatchGenerateMusic(t *testing.T) {
	query, ok := MatchGenerateMusic("compose a song about the sea")
	require.True(t, ok)
	assert.Equal(t, "the sea", query)

	query, ok = MatchGenerateMusic("music: upbeat jazz")
	require.True(t, ok)
	assert.Equal(t, "upbeat jazz", query)

	_, ok = MatchGenerateMusic("I like this song")
	assert.False(t, ok)
}

func TestGenerateImageV1(t *testing.T) {
	png := []byte("fake png bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/generation/sd-v1-6/text-to-image", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload struct {
			TextPrompts []struct {
				Text string `json:"text"`
			} `json:"text_prompts"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Len(t, payload.TextPrompts, 1)
		assert.Equal(t, "a red fox", payload.TextPrompts[0].Text)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"artifacts": []map[string]string{
				{"base64": base64.StdEncoding.EncodeToString(png)},
			},
		})
	}))
	defer server.Close()

	client := NewStabilityClient(server.URL, "test-key")
	data, err := client.GenerateImage(context.Background(), "a red fox", "/v1/generation/sd-v1-6/text-to-image")
	require.NoError(t, err)
	assert.Equal(t, png, data)
}

func TestGenerateImageV2UsesMultipart(t *testing.T) {
	png := []byte("v2 image")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2beta/stable-image/generate/sd3", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "a red fox", r.FormValue("prompt"))
		assert.Equal(t, "text-to-image", r.FormValue("mode"))
		assert.Equal(t, "1:1", r.FormValue("aspect_ratio"))

		_ = json.NewEncoder(w).Encode(map[string]string{
			"image": base64.StdEncoding.EncodeToString(png),
		})
	}))
	defer server.Close()

	client := NewStabilityClient(server.URL, "test-key")
	data, err := client.GenerateImage(context.Background(), "a red fox", "/v2beta/stable-image/generate/sd3")
	require.NoError(t, err)
	assert.Equal(t, png, data)
}

func TestGenerateImageUnconfigured(t *testing.T) {
	client := NewStabilityClient("", "")
	_, err := client.GenerateImage(context.Background(), "prompt", "/v1/engine")
	assert.ErrorIs(t, err, ErrNotConfigured)

	client = NewStabilityClient("http://localhost", "key")
	_, err = client.GenerateImage(context.Background(), "prompt", "")
	assert.Error(t, err)
}

func TestGenerateImageServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad prompt", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewStabilityClient(server.URL, "test-key")
	_, err := client.GenerateImage(context.Background(), "prompt", "/v1/engine")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestGenerateAudio(t *testing.T) {
	audio := []byte("mp3 bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2beta/audio/stable-audio-2/text-to-audio", r.URL.Path)
		assert.Equal(t, "audio/*", r.Header.Get("Accept"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "upbeat jazz", r.FormValue("prompt"))
		assert.Equal(t, "30", r.FormValue("duration"))
		assert.Equal(t, AudioModel, r.FormValue("model"))

		_, _ = w.Write(audio)
	}))
	defer server.Close()

	client := NewStabilityClient(server.URL, "test-key")
	data, err := client.GenerateAudio(context.Background(), "upbeat jazz", 30)
	require.NoError(t, err)
	assert.Equal(t, audio, data)
}

func TestGoogleImageSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "golden gate bridge", r.URL.Query().Get("q"))
		assert.Equal(t, "image", r.URL.Query().Get("searchType"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "test-cx", r.URL.Query().Get("cx"))

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []map[string]string{{"link": "https://example.com/bridge.jpg"}},
		})
	}))
	defer server.Close()

	search := NewGoogleImageSearch("test-key", "test-cx")
	search.searchURL = server.URL

	link, err := search.FirstImageURL(context.Background(), "golden gate bridge")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/bridge.jpg", link)
}

func TestGoogleImageSearchNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{})
	}))
	defer server.Close()

	search := NewGoogleImageSearch("test-key", "test-cx")
	search.searchURL = server.URL

	link, err := search.FirstImageURL(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Empty(t, link)
}

func TestGoogleImageSearchUnconfigured(t *testing.T) {
	search := NewGoogleImageSearch("", "")
	_, err := search.FirstImageURL(context.Background(), "query")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
