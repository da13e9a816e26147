package catalog

import "strings"

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

var providerAliases = map[string]string{
	"open_ai":    ProviderOpenAI,
	"open-ai":    ProviderOpenAI,
	"claude":     ProviderAnthropic,
	"custom api": "custom",
	"custom_api": "custom",
}

// NormalizeProviderSlug canonicalizes provider names so lookups and stored rows agree.
func NormalizeProviderSlug(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	if slug == "" {
		return ""
	}
	if canonical, ok := providerAliases[slug]; ok {
		return canonical
	}
	return slug
}
