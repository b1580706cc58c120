// Package ai answers chat messages through an ordered fallback chain: the
// external AI service first, then the OpenAI API directly, then a canned
// security knowledge base. Callers never receive an error; the worst case is
// a static reply.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/scorpion-security/hub/internal/config"
	"github.com/scorpion-security/hub/internal/util"
)

// securityTips is the canned knowledge base keyed by topic.
var securityTips = map[string]string{
	"phishing":   "Phishing remains a top vector. Train staff to spot suspicious links and never share credentials.",
	"ransomware": "Back up critical data regularly and test restores. Ransomware recovery depends on it.",
	"patching":   "Keep systems patched. Most breaches exploit known vulnerabilities that have fixes available.",
	"mfa":        "For stronger security, enable MFA on all critical accounts and use a password manager.",
	"incident":   "Have an incident response plan and run tabletop exercises so the team knows their roles.",
	"network":    "Segment your network so a compromise in one area does not expose the entire organization.",
	"monitoring": "Monitor logs and set up alerts for unusual logins, data access, or configuration changes.",
	"privilege":  "Use the principle of least privilege: grant only the access users need to do their jobs.",
	"default":    "For stronger security, enable MFA on critical accounts, keep systems patched, and have an incident response plan.",
}

// keywordTopics maps message keywords onto knowledge-base topics.
var keywordTopics = []struct {
	keys  []string
	topic string
}{
	{[]string{"phish", "email"}, "phishing"},
	{[]string{"backup", "ransom"}, "ransomware"},
	{[]string{"patch", "update"}, "patching"},
	{[]string{"mfa", "password"}, "mfa"},
	{[]string{"incident", "response"}, "incident"},
	{[]string{"network", "segment"}, "network"},
	{[]string{"monitor", "log"}, "monitoring"},
	{[]string{"privilege", "access"}, "privilege"},
}

// Responder resolves chat messages against the configured providers.
type Responder struct {
	serviceURL string
	openAIKey  string
	client     *http.Client
}

// NewResponder constructs a Responder from config.
func NewResponder(cfg config.AIConfig) *Responder {
	serviceURL := strings.TrimRight(strings.TrimSpace(cfg.ServiceURL), "/")
	if key := strings.TrimSpace(cfg.OpenAIAPIKey); key != "" {
		log.Infof("ai: openai fallback enabled with key %s", util.HideAPIKey(key))
	}
	return &Responder{
		serviceURL: serviceURL,
		openAIKey:  strings.TrimSpace(cfg.OpenAIAPIKey),
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Reply resolves a message through the fallback chain and always returns a
// non-empty reply.
func (r *Responder) Reply(ctx context.Context, message, provider string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		return securityTips["default"]
	}
	if provider == "" {
		provider = "auto"
	}

	if r.serviceURL != "" {
		reply, err := r.callService(ctx, message, provider)
		if err == nil && strings.TrimSpace(reply) != "" {
			return strings.TrimSpace(reply)
		}
		if err != nil {
			log.WithError(err).Warn("ai: service call failed")
		}
	}

	if r.openAIKey != "" && (provider == "auto" || provider == "openai") {
		reply, err := r.callOpenAI(ctx, message)
		if err == nil && strings.TrimSpace(reply) != "" {
			return strings.TrimSpace(reply)
		}
		if err != nil {
			log.WithError(err).Warn("ai: openai call failed")
		}
	}

	return CannedReply(message)
}

// CannedReply returns the knowledge-base tip best matching the message.
func CannedReply(message string) string {
	lower := strings.ToLower(message)
	for _, entry := range keywordTopics {
		for _, key := range entry.keys {
			if strings.Contains(lower, key) {
				return securityTips[entry.topic]
			}
		}
	}
	return securityTips["default"]
}

// callService forwards the message to the external AI service.
func (r *Responder) callService(ctx context.Context, message, provider string) (string, error) {
	payload, errMarshal := json.Marshal(map[string]string{
		"message":  message,
		"provider": provider,
	})
	if errMarshal != nil {
		return "", errMarshal
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, r.serviceURL+"/chat", bytes.NewReader(payload))
	if errReq != nil {
		return "", errReq
	}
	req.Header.Set("Content-Type", "application/json")

	resp, errDo := r.client.Do(req)
	if errDo != nil {
		return "", errDo
	}
	defer func() { _ = resp.Body.Close() }()

	body, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		return "", errRead
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ai service error: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out struct {
		Reply string `json:"reply"`
	}
	if errDecode := json.Unmarshal(body, &out); errDecode != nil {
		return "", errDecode
	}
	return out.Reply, nil
}

// openAIEndpoint is overridable in tests.
var openAIEndpoint = "https://api.openai.com/v1/chat/completions"

// callOpenAI asks the OpenAI chat completions API directly.
func (r *Responder) callOpenAI(ctx context.Context, message string) (string, error) {
	payload, errMarshal := json.Marshal(map[string]any{
		"model": "gpt-4o-mini",
		"messages": []map[string]string{
			{
				"role":    "system",
				"content": "You are a concise cybersecurity assistant for Scorpion Security Hub. Answer in 2-4 sentences. Focus on practical security advice, threats, and best practices.",
			},
			{"role": "user", "content": message},
		},
		"max_tokens": 200,
	})
	if errMarshal != nil {
		return "", errMarshal
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, openAIEndpoint, bytes.NewReader(payload))
	if errReq != nil {
		return "", errReq
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.openAIKey)

	resp, errDo := r.client.Do(req)
	if errDo != nil {
		return "", errDo
	}
	defer func() { _ = resp.Body.Close() }()

	body, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		return "", errRead
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai error: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if errDecode := json.Unmarshal(body, &out); errDecode != nil {
		return "", errDecode
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}
