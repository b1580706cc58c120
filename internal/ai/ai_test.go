package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/scorpion-security/hub/internal/config"
)

func TestCannedReplyKeywords(t *testing.T) {
	cases := []struct {
		message string
		topic   string
	}{
		{"How do I spot a phishing email?", "phishing"},
		{"We got hit by ransomware, what now?", "ransomware"},
		{"When should I patch servers?", "patching"},
		{"Is MFA worth the hassle?", "mfa"},
		{"Walk me through incident response", "incident"},
		{"Thoughts on network segmentation?", "network"},
		{"What should we monitor?", "monitoring"},
		{"Least privilege access question", "privilege"},
	}
	for _, tc := range cases {
		if got := CannedReply(tc.message); got != securityTips[tc.topic] {
			t.Errorf("CannedReply(%q) matched wrong topic", tc.message)
		}
	}
}

func TestCannedReplyDefault(t *testing.T) {
	got := CannedReply("hello there")
	if got != securityTips["default"] {
		t.Errorf("expected default tip, got %q", got)
	}
	if CannedReply("HELLO PHISHING") != securityTips["phishing"] {
		t.Error("keyword matching should be case-insensitive")
	}
}

func TestReplyWithoutProvidersUsesKnowledgeBase(t *testing.T) {
	r := NewResponder(config.AIConfig{})
	got := r.Reply(context.Background(), "tell me about ransomware", "auto")
	if got != securityTips["ransomware"] {
		t.Errorf("reply = %q", got)
	}
}

func TestReplyPrefersService(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"reply":"from service"}`))
	}))
	defer server.Close()

	r := NewResponder(config.AIConfig{ServiceURL: server.URL})
	if got := r.Reply(context.Background(), "anything", "auto"); got != "from service" {
		t.Errorf("reply = %q", got)
	}
}

func TestReplyFallsBackPastBrokenService(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	r := NewResponder(config.AIConfig{ServiceURL: server.URL})
	got := r.Reply(context.Background(), "phishing help", "auto")
	if got != securityTips["phishing"] {
		t.Errorf("reply = %q", got)
	}
}

func TestReplyUsesOpenAIWhenServiceFails(t *testing.T) {
	service := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer service.Close()

	openAI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization = %q", got)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"from openai"}}]}`))
	}))
	defer openAI.Close()

	saved := openAIEndpoint
	openAIEndpoint = openAI.URL
	defer func() { openAIEndpoint = saved }()

	r := NewResponder(config.AIConfig{ServiceURL: service.URL, OpenAIAPIKey: "sk-test"})
	if got := r.Reply(context.Background(), "anything", "auto"); got != "from openai" {
		t.Errorf("reply = %q", got)
	}
}

func TestReplySkipsOpenAIForCannedProvider(t *testing.T) {
	openAI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("openai should not be called")
	}))
	defer openAI.Close()

	saved := openAIEndpoint
	openAIEndpoint = openAI.URL
	defer func() { openAIEndpoint = saved }()

	r := NewResponder(config.AIConfig{OpenAIAPIKey: "sk-test"})
	got := r.Reply(context.Background(), "mfa question", "canned")
	if got != securityTips["mfa"] {
		t.Errorf("reply = %q", got)
	}
}

func TestReplyNeverEmpty(t *testing.T) {
	r := NewResponder(config.AIConfig{})
	if got := r.Reply(context.Background(), "   ", "auto"); strings.TrimSpace(got) == "" {
		t.Error("empty reply")
	}
}
