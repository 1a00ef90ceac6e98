package lisan

import (
	"fmt"
	"strings"

	"github.com/andratama/lisan/pkg/adapters/translate"
	"github.com/andratama/lisan/pkg/configutil"
	"github.com/andratama/lisan/pkg/providers/deepgram"
	"github.com/andratama/lisan/pkg/providers/mock"
	"github.com/andratama/lisan/pkg/providers/openairt"
)

// ProviderFactory builds a translation provider from its settings map.
type ProviderFactory func(settings map[string]any) (translate.Provider, error)

type ProviderRegistry struct {
	factories map[string]ProviderFactory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{factories: make(map[string]ProviderFactory)}
}

func (r *ProviderRegistry) Register(name string, factory ProviderFactory) {
	r.factories[strings.ToLower(strings.TrimSpace(name))] = factory
}

func (r *ProviderRegistry) Build(name string, settings map[string]any) (translate.Provider, error) {
	factory := r.factories[strings.ToLower(strings.TrimSpace(name))]
	if factory == nil {
		return nil, fmt.Errorf("translation provider not registered: %s", name)
	}
	return factory(settings)
}

// DefaultRegistry registers the built-in providers.
func DefaultRegistry() *ProviderRegistry {
	r := NewProviderRegistry()
	r.Register("openairt", buildOpenAIRT)
	r.Register("deepgram", buildDeepgram)
	r.Register("mock", buildMock)
	return r
}

func buildOpenAIRT(settings map[string]any) (translate.Provider, error) {
	if err := configutil.ValidateSettings(settings, configutil.Schema{
		Required: []string{"api_key"},
		Optional: []string{"base_url", "model"},
	}); err != nil {
		return nil, fmt.Errorf("openairt settings: %w", err)
	}
	var s struct {
		APIKey  string `mapstructure:"api_key"`
		BaseURL string `mapstructure:"base_url"`
		Model   string `mapstructure:"model"`
	}
	if err := configutil.DecodeSettings(settings, &s); err != nil {
		return nil, fmt.Errorf("openairt settings: %w", err)
	}
	if err := configutil.RequireString(s.APIKey, "provider.settings.api_key"); err != nil {
		return nil, err
	}
	return openairt.NewProvider(openairt.ProviderConfig{
		APIKey:  s.APIKey,
		BaseURL: s.BaseURL,
		Model:   s.Model,
	}), nil
}

func buildDeepgram(settings map[string]any) (translate.Provider, error) {
	if err := configutil.ValidateSettings(settings, configutil.Schema{
		Required: []string{"api_key"},
		Optional: []string{"model"},
	}); err != nil {
		return nil, fmt.Errorf("deepgram settings: %w", err)
	}
	var s struct {
		APIKey string `mapstructure:"api_key"`
		Model  string `mapstructure:"model"`
	}
	if err := configutil.DecodeSettings(settings, &s); err != nil {
		return nil, fmt.Errorf("deepgram settings: %w", err)
	}
	if err := configutil.RequireString(s.APIKey, "provider.settings.api_key"); err != nil {
		return nil, err
	}
	return deepgram.NewProvider(deepgram.ProviderConfig{
		APIKey: s.APIKey,
		Model:  s.Model,
	}), nil
}

func buildMock(settings map[string]any) (translate.Provider, error) {
	var s struct {
		FramesPerTurn int    `mapstructure:"frames_per_turn"`
		Transcript    string `mapstructure:"transcript"`
	}
	if err := configutil.DecodeSettings(settings, &s); err != nil {
		return nil, fmt.Errorf("mock settings: %w", err)
	}
	return mock.NewProvider(mock.Script{
		FramesPerTurn: s.FramesPerTurn,
		Transcript:    s.Transcript,
	}), nil
}
