// Package contentfilter implements the §4.I content-filter processor:
// toxicity/spam scoring, category classification, sentiment, and language
// detection for a sighting's title+description, in three tiers — a remote
// Gemini model, a hosted classification API, and a mandatory local keyword
// fallback. Grounded on pkg/enricher_providers/ai_description.go's genai
// client usage (generation errors trapped into the result, never returned)
// and generalised from description generation into text classification.
package contentfilter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"google.golang.org/api/option"

	"github.com/ufobeep/beepnet/internal/enrichment"
)

// Provider implements enrichment.Processor for content safety/classification.
type Provider struct {
	geminiAPIKey string
	hostedURL    string
	hostedAPIKey string
	httpClient   *http.Client
}

// New builds the content-filter processor. geminiAPIKey and hostedURL may be
// empty; the processor degrades to the next available tier, down to the
// mandatory keyword fallback, which always runs.
func New(geminiAPIKey, hostedURL, hostedAPIKey string, httpClient *http.Client) *Provider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Provider{geminiAPIKey: geminiAPIKey, hostedURL: hostedURL, hostedAPIKey: hostedAPIKey, httpClient: httpClient}
}

func (p *Provider) Name() string                     { return "content_analysis" }
func (p *Provider) Priority() int                    { return 4 }
func (p *Provider) TimeoutSeconds() int              { return 30 }
func (p *Provider) IsAvailable(context.Context) bool { return true }

func (p *Provider) Process(ctx context.Context, ectx enrichment.Context) enrichment.Result {
	text := strings.TrimSpace(ectx.Title + "\n" + ectx.Description)
	if text == "" {
		return enrichment.Result{Success: true, Data: keywordFallback(""), Confidence: 0.3}
	}

	apiKey := p.geminiAPIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey != "" {
		if data, err := p.classifyWithGemini(ctx, apiKey, text); err == nil {
			return enrichment.Result{Success: true, Data: data, Confidence: 0.85}
		}
	}

	if p.hostedURL != "" {
		if data, err := p.classifyWithHostedAPI(ctx, text); err == nil {
			return enrichment.Result{Success: true, Data: data, Confidence: 0.7}
		}
	}

	return enrichment.Result{Success: true, Data: keywordFallback(text), Confidence: 0.3}
}

func (p *Provider) classifyWithGemini(ctx context.Context, apiKey, text string) (map[string]any, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel("gemini-2.0-flash")
	model.SetTemperature(0.1)
	model.SetMaxOutputTokens(200)

	prompt := fmt.Sprintf(`Classify the following user-submitted sighting report. Respond with strict JSON only:
{"is_safe": bool, "toxicity_score": 0..1, "spam_score": 0..1, "predicted_category": string, "category_confidence": {category: score}, "sentiment_polarity": -1..1, "sentiment_subjectivity": 0..1, "language": "ISO 639-1 code"}

Text:
%s`, text)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no content generated")
	}

	var raw string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			raw += string(t)
		}
	}
	raw = strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), "`"))
	raw = strings.TrimPrefix(raw, "json")

	var parsed struct {
		IsSafe                bool               `json:"is_safe"`
		ToxicityScore         float64            `json:"toxicity_score"`
		SpamScore             float64            `json:"spam_score"`
		PredictedCategory     string             `json:"predicted_category"`
		CategoryConfidence    map[string]float64 `json:"category_confidence"`
		SentimentPolarity     float64            `json:"sentiment_polarity"`
		SentimentSubjectivity float64            `json:"sentiment_subjectivity"`
		Language              string             `json:"language"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	return map[string]any{
		"is_safe":        parsed.IsSafe,
		"toxicity_score": parsed.ToxicityScore,
		"spam_score":     parsed.SpamScore,
		"classification": map[string]any{
			"predicted_category":  parsed.PredictedCategory,
			"category_confidence": parsed.CategoryConfidence,
		},
		"sentiment": map[string]any{
			"polarity":     parsed.SentimentPolarity,
			"subjectivity": parsed.SentimentSubjectivity,
		},
		"language_detected": parsed.Language,
		"analysis_method":   "gemini",
	}, nil
}

func (p *Provider) classifyWithHostedAPI(ctx context.Context, text string) (map[string]any, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.hostedURL, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.hostedAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.hostedAPIKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hosted classifier status %d", resp.StatusCode)
	}

	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}
	data["analysis_method"] = "hosted_api"
	return data, nil
}

// spamKeywords and toxicKeywords back the mandatory local fallback tier.
var (
	spamKeywords  = []string{"click here", "free money", "subscribe now", "http://", "https://", "buy now", "limited offer"}
	toxicKeywords = []string{"hate", "kill", "stupid", "idiot"}
)

var languageCandidates = []language.Tag{language.English, language.Spanish, language.French, language.German, language.Portuguese}
var languageMatcher = language.NewMatcher(languageCandidates)

// keywordFallback is the mandatory local-only tier (§4.I: "a keyword-based
// fallback MUST be implemented even when no remote model is available").
func keywordFallback(text string) map[string]any {
	normalized := cases.Fold().String(text)

	spamScore := 0.0
	for _, kw := range spamKeywords {
		if strings.Contains(normalized, kw) {
			spamScore += 0.2
		}
	}
	if spamScore > 1 {
		spamScore = 1
	}

	toxicityScore := 0.0
	for _, kw := range toxicKeywords {
		if strings.Contains(normalized, kw) {
			toxicityScore += 0.3
		}
	}
	if toxicityScore > 1 {
		toxicityScore = 1
	}

	tag, _, _ := languageMatcher.Match(language.Make(detectLanguageHint(normalized)))
	base, _ := tag.Base()

	return map[string]any{
		"is_safe":        toxicityScore < 0.5,
		"toxicity_score": toxicityScore,
		"spam_score":     spamScore,
		"classification": map[string]any{
			"predicted_category":  "unclassified",
			"category_confidence": map[string]float64{},
		},
		"sentiment": map[string]any{
			"polarity":     0.0,
			"subjectivity": 0.0,
		},
		"language_detected": base.String(),
		"analysis_method":   "keyword_fallback",
	}
}

// detectLanguageHint is a deliberately crude heuristic: English is assumed
// unless the text contains accented characters common to the other
// candidate languages. Good enough to pick a plausible BCP-47 tag for the
// matcher above without pulling in a statistical language-ID model, which no
// example repo in the corpus uses.
func detectLanguageHint(normalized string) string {
	for _, r := range normalized {
		switch r {
		case 'é', 'è', 'ê', 'à', 'ç':
			return "fr"
		case 'ñ', 'á', 'í', 'ó', 'ú':
			return "es"
		case 'ä', 'ö', 'ü', 'ß':
			return "de"
		case 'ã', 'õ':
			return "pt"
		}
	}
	return "en"
}

var _ enrichment.Processor = (*Provider)(nil)
