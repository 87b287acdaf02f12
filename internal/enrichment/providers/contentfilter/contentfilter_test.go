package contentfilter

import "testing"

func TestKeywordFallback_FlagsSpamKeywords(t *testing.T) {
	data := keywordFallback("Click here for free money, buy now!")
	if data["spam_score"].(float64) <= 0 {
		t.Errorf("expected nonzero spam_score, got %v", data["spam_score"])
	}
	if data["analysis_method"] != "keyword_fallback" {
		t.Errorf("expected keyword_fallback method, got %v", data["analysis_method"])
	}
}

func TestKeywordFallback_FlagsToxicity(t *testing.T) {
	data := keywordFallback("I hate this stupid thing")
	if data["toxicity_score"].(float64) <= 0 {
		t.Errorf("expected nonzero toxicity_score, got %v", data["toxicity_score"])
	}
	if data["is_safe"].(bool) {
		t.Errorf("expected is_safe=false for highly toxic text")
	}
}

func TestKeywordFallback_CleanTextIsSafe(t *testing.T) {
	data := keywordFallback("A bright light moved silently over the treeline.")
	if !data["is_safe"].(bool) {
		t.Errorf("expected is_safe=true for clean text")
	}
	if data["toxicity_score"].(float64) != 0 {
		t.Errorf("expected zero toxicity_score, got %v", data["toxicity_score"])
	}
}

func TestDetectLanguageHint(t *testing.T) {
	tests := []struct {
		text     string
		expected string
	}{
		{"hello there", "en"},
		{"une lumière étrange", "fr"},
		{"una luz extraña", "es"},
		{"ein seltsames licht über dem wald", "de"},
	}
	for _, tt := range tests {
		if got := detectLanguageHint(tt.text); got != tt.expected {
			t.Errorf("detectLanguageHint(%q) = %s, expected %s", tt.text, got, tt.expected)
		}
	}
}

func TestKeywordFallback_EmptyText(t *testing.T) {
	data := keywordFallback("")
	if !data["is_safe"].(bool) {
		t.Errorf("expected empty text to be classified as safe")
	}
}
