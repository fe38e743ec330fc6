package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	stdimage "image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pandarelay/internal/domain"
)

func samplePNG(t *testing.T, size int) []byte {
	t.Helper()
	img := stdimage.NewRGBA(stdimage.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, color.RGBA{R: 30, G: 144, B: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

type editCapture struct {
	calls  atomic.Int32
	mu     sync.Mutex
	prompt string
	model  string
	format string
	n      string
	size   string
	auth   string
	image  []byte
}

func newEditServer(t *testing.T, capture *editCapture, status int, body any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capture.calls.Add(1)
		if r.URL.Path != "/v1/images/edits" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		capture.mu.Lock()
		capture.prompt = r.FormValue("prompt")
		capture.model = r.FormValue("model")
		capture.format = r.FormValue("response_format")
		capture.n = r.FormValue("n")
		capture.size = r.FormValue("size")
		capture.auth = r.Header.Get("Authorization")
		if file, _, err := r.FormFile("image"); err == nil {
			capture.image, _ = io.ReadAll(file)
			file.Close()
		}
		capture.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestEditor(srv *httptest.Server, apiKey string, timeout time.Duration) *Editor {
	base := "http://127.0.0.1:0/v1"
	if srv != nil {
		base = srv.URL + "/v1"
	}
	return NewEditor(Options{
		APIKey:  apiKey,
		BaseURL: base,
		Timeout: timeout,
	})
}

func TestEditReturnsStubOutput(t *testing.T) {
	output := base64.StdEncoding.EncodeToString(samplePNG(t, 2))
	capture := &editCapture{}
	srv := newEditServer(t, capture, http.StatusOK, map[string]any{
		"created": 1,
		"data":    []any{map[string]any{"b64_json": output}},
	})
	editor := newTestEditor(srv, "sk-test", 5*time.Second)

	src := base64.StdEncoding.EncodeToString(samplePNG(t, 10))
	got, err := editor.Refine(context.Background(), Source{Base64: src}, "make it red")
	if err != nil {
		t.Fatalf("Refine returned error: %v", err)
	}
	if got != output {
		t.Fatalf("image_base64 = %q, want stub output", got)
	}
	capture.mu.Lock()
	defer capture.mu.Unlock()
	if capture.prompt != "make it red" {
		t.Fatalf("prompt = %q", capture.prompt)
	}
	if capture.model != "gpt-image-1" || capture.n != "1" || capture.size != "1024x1024" {
		t.Fatalf("unexpected form fields: model=%q n=%q size=%q", capture.model, capture.n, capture.size)
	}
	if capture.auth != "Bearer sk-test" {
		t.Fatalf("Authorization = %q", capture.auth)
	}
	decoded, format, err := stdimage.Decode(bytes.NewReader(capture.image))
	if err != nil {
		t.Fatalf("uploaded image not decodable: %v", err)
	}
	if format != "png" {
		t.Fatalf("uploaded format = %q, want png", format)
	}
	if b := decoded.Bounds(); b.Dx() != 10 || b.Dy() != 10 {
		t.Fatalf("uploaded bounds = %v, want 10x10", b)
	}
	if capture.format != "" {
		t.Fatalf("response_format = %q, want unset for gpt-image models", capture.format)
	}
	if len(capture.image) < 26 || capture.image[25] != 6 {
		t.Fatalf("uploaded png must carry an alpha channel (colour type 6)")
	}
}

func TestEditDallERequestsBase64(t *testing.T) {
	output := base64.StdEncoding.EncodeToString(samplePNG(t, 2))
	capture := &editCapture{}
	srv := newEditServer(t, capture, http.StatusOK, map[string]any{
		"data": []any{map[string]any{"b64_json": output}},
	})
	editor := NewEditor(Options{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "dall-e-2", Size: "512x512", Timeout: 5 * time.Second})

	src := base64.StdEncoding.EncodeToString(samplePNG(t, 8))
	if _, err := editor.Refine(context.Background(), Source{Base64: src}, "x"); err != nil {
		t.Fatalf("Refine returned error: %v", err)
	}
	capture.mu.Lock()
	defer capture.mu.Unlock()
	if capture.model != "dall-e-2" || capture.format != "b64_json" || capture.size != "512x512" {
		t.Fatalf("unexpected form fields: model=%q response_format=%q size=%q", capture.model, capture.format, capture.size)
	}
}

func TestEditMissingAPIKeySkipsNetwork(t *testing.T) {
	capture := &editCapture{}
	srv := newEditServer(t, capture, http.StatusOK, map[string]any{})
	editor := newTestEditor(srv, "", time.Second)

	_, err := editor.Refine(context.Background(), Source{Base64: "aGVsbG8="}, "x")
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}
	if err.Error() != "OpenAI API key missing" {
		t.Fatalf("message = %q", err.Error())
	}
	if capture.calls.Load() != 0 {
		t.Fatalf("upstream called %d times, want 0", capture.calls.Load())
	}
}

func TestEditRejectsMalformedBase64(t *testing.T) {
	capture := &editCapture{}
	srv := newEditServer(t, capture, http.StatusOK, map[string]any{})
	editor := newTestEditor(srv, "sk-test", time.Second)

	_, err := editor.Refine(context.Background(), Source{Base64: "%%% not base64 %%%"}, "x")
	if err == nil {
		t.Fatalf("expected decode error")
	}
	if domain.KindOf(err) != domain.KindData {
		t.Fatalf("kind = %q, want data", domain.KindOf(err))
	}
	if !strings.Contains(err.Error(), "Invalid image data") {
		t.Fatalf("message = %q, want decode failure", err.Error())
	}
	if capture.calls.Load() != 0 {
		t.Fatalf("upstream should not be called for undecodable input")
	}
}

func TestEditRejectsUnreadableImage(t *testing.T) {
	editor := newTestEditor(nil, "sk-test", time.Second)
	src := base64.StdEncoding.EncodeToString([]byte("plain text, not pixels"))

	_, err := editor.Refine(context.Background(), Source{Base64: src}, "x")
	if domain.KindOf(err) != domain.KindData {
		t.Fatalf("kind = %q, want data (err=%v)", domain.KindOf(err), err)
	}
}

func TestEditEmptyResults(t *testing.T) {
	cases := []struct {
		name string
		body any
		want string
	}{
		{"no data", map[string]any{"created": 1, "data": []any{}}, "OpenAI returned no image"},
		{"empty b64", map[string]any{"created": 1, "data": []any{map[string]any{"b64_json": ""}}}, "OpenAI returned an empty image"},
		{"not base64", map[string]any{"created": 1, "data": []any{map[string]any{"b64_json": "@@@"}}}, "OpenAI returned an invalid image"},
		{"not an image", map[string]any{"created": 1, "data": []any{map[string]any{"b64_json": base64.StdEncoding.EncodeToString([]byte("plain text"))}}}, "OpenAI returned an invalid image"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newEditServer(t, &editCapture{}, http.StatusOK, tc.body)
			editor := newTestEditor(srv, "sk-test", 5*time.Second)
			src := base64.StdEncoding.EncodeToString(samplePNG(t, 4))

			_, err := editor.Refine(context.Background(), Source{Base64: src}, "x")
			if err == nil || err.Error() != tc.want {
				t.Fatalf("err = %v, want %q", err, tc.want)
			}
			if domain.KindOf(err) != domain.KindEmptyResult {
				t.Fatalf("kind = %q, want empty_result", domain.KindOf(err))
			}
		})
	}
}

func TestEditMapsAPIError(t *testing.T) {
	srv := newEditServer(t, &editCapture{}, http.StatusBadRequest, map[string]any{
		"error": map[string]any{
			"message": "Invalid image file",
			"type":    "invalid_request_error",
		},
	})
	editor := newTestEditor(srv, "sk-test", 5*time.Second)
	src := base64.StdEncoding.EncodeToString(samplePNG(t, 4))

	_, err := editor.Refine(context.Background(), Source{Base64: src}, "x")
	if err == nil {
		t.Fatalf("expected api error")
	}
	if err.Error() != "OpenAI API error: Invalid image file" {
		t.Fatalf("message = %q", err.Error())
	}
	var de *domain.Error
	if !errors.As(err, &de) || de.Kind != domain.KindUpstream || de.Status != http.StatusBadRequest {
		t.Fatalf("unexpected domain error: %#v", de)
	}
}

func TestEditTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	editor := NewEditor(Options{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Timeout: 50 * time.Millisecond})
	src := base64.StdEncoding.EncodeToString(samplePNG(t, 4))

	_, err := editor.Refine(context.Background(), Source{Base64: src}, "x")
	if err == nil || err.Error() != "OpenAI request timed out" {
		t.Fatalf("err = %v, want timeout", err)
	}
	if domain.KindOf(err) != domain.KindTimeout {
		t.Fatalf("kind = %q, want timeout", domain.KindOf(err))
	}
}

func TestRefineFromURL(t *testing.T) {
	source := samplePNG(t, 6)
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(source)
	}))
	t.Cleanup(origin.Close)

	output := base64.StdEncoding.EncodeToString(samplePNG(t, 2))
	capture := &editCapture{}
	srv := newEditServer(t, capture, http.StatusOK, map[string]any{
		"data": []any{map[string]any{"b64_json": output}},
	})
	editor := newTestEditor(srv, "sk-test", 5*time.Second)

	got, err := editor.Refine(context.Background(), Source{URL: origin.URL + "/product.png"}, "brighter")
	if err != nil {
		t.Fatalf("Refine returned error: %v", err)
	}
	if got != output {
		t.Fatalf("unexpected output")
	}
	capture.mu.Lock()
	defer capture.mu.Unlock()
	if len(capture.image) == 0 {
		t.Fatalf("downloaded image was not forwarded")
	}
}

func TestRefineRequiresSource(t *testing.T) {
	editor := newTestEditor(nil, "sk-test", time.Second)
	_, err := editor.Refine(context.Background(), Source{}, "x")
	if domain.KindOf(err) != domain.KindInvalidInput {
		t.Fatalf("kind = %q, want invalid_input", domain.KindOf(err))
	}
}
