package engines

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"coupon-market/api/internal/config"
	"coupon-market/api/internal/logger"
	"coupon-market/api/internal/verify"
	"coupon-market/api/internal/verify/gemini"
	"coupon-market/api/internal/verify/openai"
	"coupon-market/api/internal/verify/yandex"
)

const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderTesseract = "tesseract"
	ProviderYandex    = "yandex"
)

var ErrNoBackends = errors.New("no usable verification backends configured")

// Candidate is one parsed entry of the configured model list.
type Candidate struct {
	Provider string
	Model    string
}

// ParseCandidate reads "model", "gemini:model", "openai:model",
// "yandex", "yandex:model" or "tesseract".
func ParseCandidate(s string) (Candidate, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Candidate{}, errors.New("empty candidate")
	}
	if strings.EqualFold(s, ProviderTesseract) {
		return Candidate{Provider: ProviderTesseract}, nil
	}
	if strings.EqualFold(s, ProviderYandex) {
		return Candidate{Provider: ProviderYandex}, nil
	}
	provider, model, found := strings.Cut(s, ":")
	if !found {
		return Candidate{Provider: ProviderGemini, Model: s}, nil
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	model = strings.TrimSpace(model)
	switch provider {
	case ProviderGemini, ProviderOpenAI, ProviderYandex:
	case "gpt":
		provider = ProviderOpenAI
	default:
		return Candidate{}, fmt.Errorf("unknown provider %q in %q", provider, s)
	}
	if model == "" {
		return Candidate{}, fmt.Errorf("missing model name in %q", s)
	}
	return Candidate{Provider: provider, Model: model}, nil
}

// Build turns cfg.Models into backends, keeping the configured order.
// Duplicates are dropped, and so are candidates whose provider has no API key.
func Build(cfg *config.Config) ([]verify.Backend, error) {
	log := logger.Named("engines")

	names := lo.Uniq(lo.Filter(cfg.Models, func(s string, _ int) bool {
		return strings.TrimSpace(s) != ""
	}))

	var out []verify.Backend
	for _, name := range names {
		c, err := ParseCandidate(name)
		if err != nil {
			return nil, err
		}
		switch c.Provider {
		case ProviderGemini:
			if cfg.GeminiAPIKey == "" {
				log.Warn().Str("model", c.Model).Msg("GEMINI_API_KEY not set, skipping candidate")
				continue
			}
			out = append(out, gemini.New(cfg.GeminiAPIKey, c.Model))
		case ProviderOpenAI:
			if cfg.OpenAIAPIKey == "" {
				log.Warn().Str("model", c.Model).Msg("OPENAI_API_KEY not set, skipping candidate")
				continue
			}
			out = append(out, openai.New(cfg.OpenAIAPIKey, c.Model))
		case ProviderYandex:
			if cfg.YCOAuthToken == "" || cfg.YCFolderID == "" {
				log.Warn().Str("model", c.Model).Msg("YC_OAUTH_TOKEN/YC_FOLDER_ID not set, skipping candidate")
				continue
			}
			out = append(out, yandex.New(cfg.YCOAuthToken, cfg.YCFolderID, c.Model, cfg.YandexLanguages...))
		case ProviderTesseract:
			b, err := newTesseract(cfg.TesseractLanguages)
			if err != nil {
				log.Warn().Err(err).Msg("skipping tesseract candidate")
				continue
			}
			out = append(out, b)
		}
	}

	// the same backend can be reached through two spellings, e.g. "x" and "gemini:x",
	// or "yandex" and "yandex:page"
	out = lo.UniqBy(out, func(b verify.Backend) string { return b.ID() })
	if len(out) == 0 {
		return nil, ErrNoBackends
	}
	log.Info().Strs("candidates", lo.Map(out, func(b verify.Backend, _ int) string { return b.ID() })).
		Msg("verification backends ready")
	return out, nil
}
