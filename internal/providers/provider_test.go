package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"genstudio/internal/domain"
)

func TestEveryKindConstructs(t *testing.T) {
	for _, k := range Kinds() {
		p, err := New(k, Config{})
		if err != nil {
			t.Fatalf("New(%s) error: %v", k, err)
		}
		if p.Kind() != k {
			t.Fatalf("New(%s).Kind() = %s", k, p.Kind())
		}
		supported := 0
		for _, rt := range domain.ResourceTypes() {
			if p.Supports(rt) {
				supported++
			}
		}
		if supported == 0 {
			t.Fatalf("%s supports no resource type", k)
		}
	}
}

func TestNewRejectsUnknownKind(t *testing.T) {
	if _, err := New(Kind("midjourney"), Config{}); !errors.Is(err, domain.ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
	if _, ok := ParseKind(" DALLE "); !ok {
		t.Fatalf("expected ParseKind to accept DALLE")
	}
	if _, ok := ParseKind("other"); ok {
		t.Fatalf("expected ParseKind to reject other")
	}
}

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry(Config{})
	if err != nil {
		t.Fatalf("NewRegistry error: %v", err)
	}
	for _, k := range Kinds() {
		if _, err := reg.Get(k); err != nil {
			t.Fatalf("Get(%s) error: %v", k, err)
		}
	}
	if _, err := NewRegistryOf(NewMock()).Get(KindDalle); !errors.Is(err, domain.ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestMockAssets(t *testing.T) {
	m := NewMock()
	img, err := m.Generate(context.Background(), Request{Type: domain.ResourceImage, Prompt: "sunset"})
	if err != nil {
		t.Fatalf("image error: %v", err)
	}
	if img.Asset.Kind != domain.AssetKindURL || !strings.HasPrefix(img.Asset.Value, "https://picsum.photos/1024/1024?random=") {
		t.Fatalf("unexpected image asset %+v", img.Asset)
	}
	vid, err := m.Generate(context.Background(), Request{Type: domain.ResourceVideo, Prompt: "waves"})
	if err != nil {
		t.Fatalf("video error: %v", err)
	}
	if vid.Asset.Value != mockVideoURL {
		t.Fatalf("unexpected video asset %+v", vid.Asset)
	}
}

func TestDallePayloadAndResult(t *testing.T) {
	var got dalleRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/generations" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = io.WriteString(w, `{"created":1,"data":[{"url":"https://img.example.com/a.png"}]}`)
	}))
	defer srv.Close()

	p, _ := New(KindDalle, Config{OpenAIAPIKey: "sk-test", OpenAIBaseURL: srv.URL, HTTPClient: srv.Client()})
	res, err := p.Generate(context.Background(), Request{Type: domain.ResourceImage, Prompt: "a fox", Params: Params{Style: "natural"}})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if res.Asset.Value != "https://img.example.com/a.png" || res.Asset.Kind != domain.AssetKindURL {
		t.Fatalf("unexpected asset %+v", res.Asset)
	}
	want := dalleRequest{Model: "dall-e-3", Prompt: "a fox", N: 1, Size: "1024x1024", Quality: "standard", Style: "natural"}
	if got != want {
		t.Fatalf("payload = %+v, want %+v", got, want)
	}
}

func TestDalleErrorBecomesProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"content policy violation","code":"content_policy"}}`)
	}))
	defer srv.Close()

	p, _ := New(KindDalle, Config{OpenAIAPIKey: "sk", OpenAIBaseURL: srv.URL})
	_, err := p.Generate(context.Background(), Request{Type: domain.ResourceImage, Prompt: "x"})
	var pe *domain.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %T %v", err, err)
	}
	if pe.Provider != "dalle" || !strings.Contains(pe.Message, "content policy violation") {
		t.Fatalf("unexpected error %+v", pe)
	}
}

func TestMissingKeyBecomesProviderError(t *testing.T) {
	p, _ := New(KindStability, Config{})
	_, err := p.Generate(context.Background(), Request{Type: domain.ResourceImage, Prompt: "x"})
	var pe *domain.ProviderError
	if !errors.As(err, &pe) || !strings.Contains(pe.Message, "api key") {
		t.Fatalf("expected api key ProviderError, got %v", err)
	}
}

type staticKeys map[string]string

func (s staticKeys) Resolve(ctx context.Context, provider, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	return s[provider], nil
}

func TestStabilityInlineAssetWithStoredKey(t *testing.T) {
	var got stabilityRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generation/stable-diffusion-xl-1024-v1-0/text-to-image" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer stored-key" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"artifacts":[{"base64":"aGVsbG8=","seed":42,"finishReason":"SUCCESS"}]}`)
	}))
	defer srv.Close()

	p, _ := New(KindStability, Config{StabilityBaseURL: srv.URL, Keys: staticKeys{"stability": "stored-key"}})
	res, err := p.Generate(context.Background(), Request{Type: domain.ResourceImage, Prompt: "castle"})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if res.Asset.Kind != domain.AssetKindInline || res.Asset.Reference() != "data:image/png;base64,aGVsbG8=" {
		t.Fatalf("unexpected asset %+v", res.Asset)
	}
	if len(got.TextPrompts) != 1 || got.TextPrompts[0].Text != "castle" || got.TextPrompts[0].Weight != 1 {
		t.Fatalf("unexpected prompts %+v", got.TextPrompts)
	}
	if got.CFGScale != 7 || got.Steps != 30 || got.Samples != 1 || got.Width != 1024 || got.Height != 1024 {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestStabilityRejectsVideo(t *testing.T) {
	p, _ := New(KindStability, Config{StabilityAPIKey: "k"})
	_, err := p.Generate(context.Background(), Request{Type: domain.ResourceVideo, Prompt: "x"})
	var pe *domain.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
}

func TestReplicatePollsUntilSucceeded(t *testing.T) {
	var polls atomic.Int32
	var created replicateRequest
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/predictions", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token r8-test" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&created)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"pred1","status":"starting","urls":{"get":"`+srv.URL+`/predictions/pred1"}}`)
	})
	mux.HandleFunc("/predictions/pred1", func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) < 2 {
			_, _ = io.WriteString(w, `{"id":"pred1","status":"processing"}`)
			return
		}
		_, _ = io.WriteString(w, `{"id":"pred1","status":"succeeded","output":["https://cdn.example.com/v.mp4"]}`)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	p, _ := New(KindReplicate, Config{
		ReplicateAPIToken:     "r8-test",
		ReplicateBaseURL:      srv.URL,
		ReplicateModelVersion: "v1",
		ReplicatePollInterval: time.Millisecond,
	})
	res, err := p.Generate(context.Background(), Request{Type: domain.ResourceVideo, Prompt: "waves"})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if res.ID != "pred1" || res.Asset.Value != "https://cdn.example.com/v.mp4" {
		t.Fatalf("unexpected result %+v", res)
	}
	if created.Version != "v1" || created.Input.NumFrames != 24 || created.Input.Width != 768 || created.Input.Height != 768 {
		t.Fatalf("unexpected create payload %+v", created)
	}
}

func TestReplicateFailedPrediction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"p","status":"failed","error":"NSFW content detected"}`)
	}))
	defer srv.Close()

	p, _ := New(KindReplicate, Config{ReplicateAPIToken: "t", ReplicateBaseURL: srv.URL, ReplicateModelVersion: "v"})
	_, err := p.Generate(context.Background(), Request{Type: domain.ResourceVideo, Prompt: "x", Params: Params{Duration: 48}})
	var pe *domain.ProviderError
	if !errors.As(err, &pe) || pe.Message != "NSFW content detected" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestReplicateDeadlineWhilePolling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"p","status":"processing"}`)
	}))
	defer srv.Close()

	p, _ := New(KindReplicate, Config{
		ReplicateAPIToken:     "t",
		ReplicateBaseURL:      srv.URL,
		ReplicateModelVersion: "v",
		ReplicatePollInterval: 5 * time.Millisecond,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := p.Generate(ctx, Request{Type: domain.ResourceVideo, Prompt: "x"})
	var pe *domain.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline cause, got %v", err)
	}
}

func TestFirstOutputURL(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`"https://a"`, "https://a"},
		{`["", "https://b"]`, "https://b"},
		{`null`, ""},
		{`{"video":"x"}`, ""},
	}
	for _, tc := range tests {
		if got := firstOutputURL(json.RawMessage(tc.raw)); got != tc.want {
			t.Fatalf("firstOutputURL(%s) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}
