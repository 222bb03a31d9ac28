package credentials

import (
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/leofalp/chatwire/core/llmerr"
)

// Provider tags which wire protocol a set of credentials speaks. The set is
// closed: encoders and decoders switch over it exhaustively.
type Provider int

const (
	OpenAI Provider = iota
	Anthropic
)

const (
	DefaultOpenAIBaseURL    = "https://api.openai.com/v1/"
	DefaultAnthropicBaseURL = "https://api.anthropic.com/v1/"
)

func (p Provider) String() string {
	switch p {
	case OpenAI:
		return "openai"
	case Anthropic:
		return "anthropic"
	default:
		return "unknown"
	}
}

// ParseProvider accepts "openai" or "anthropic" in any case.
func ParseProvider(name string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "openai":
		return OpenAI, nil
	case "anthropic":
		return Anthropic, nil
	default:
		return 0, llmerr.Configuration("provider", "unknown provider %q", name)
	}
}

// DefaultBaseURL returns the public endpoint of p.
func (p Provider) DefaultBaseURL() string {
	if p == Anthropic {
		return DefaultAnthropicBaseURL
	}
	return DefaultOpenAIBaseURL
}

// envVars returns the key and base URL variable names for p.
func (p Provider) envVars() (keyVar, baseURLVar string) {
	if p == Anthropic {
		return "ANTHROPIC_KEY", "ANTHROPIC_BASE_URL"
	}
	return "OPENAI_KEY", "OPENAI_BASE_URL"
}

// Credentials is an API key and base URL bound to one provider.
type Credentials struct {
	apiKey   string
	baseURL  string
	provider Provider
}

// New builds credentials for provider. An empty baseURL selects the
// provider's public endpoint; the only validation is a non-empty key.
func New(apiKey, baseURL string, provider Provider) (Credentials, error) {
	if provider != OpenAI && provider != Anthropic {
		return Credentials{}, llmerr.Configuration("provider", "unknown provider %d", int(provider))
	}
	if apiKey == "" {
		return Credentials{}, llmerr.Configuration("api_key", "must not be empty")
	}
	if baseURL == "" {
		baseURL = provider.DefaultBaseURL()
	}
	return Credentials{
		apiKey:   apiKey,
		baseURL:  normalizeBaseURL(baseURL),
		provider: provider,
	}, nil
}

// Infer builds credentials whose provider is recognized from the base URL
// host ("openai" or "anthropic").
func Infer(apiKey, baseURL string) (Credentials, error) {
	lowered := strings.ToLower(baseURL)
	switch {
	case strings.Contains(lowered, "openai"):
		return New(apiKey, baseURL, OpenAI)
	case strings.Contains(lowered, "anthropic"):
		return New(apiKey, baseURL, Anthropic)
	default:
		return Credentials{}, llmerr.Configuration("base_url", "cannot infer provider from %q", baseURL)
	}
}

// FromEnv reads the credentials of provider from the environment. A missing
// key variable is a configuration error naming it.
func FromEnv(provider Provider) (Credentials, error) {
	return fromLookup(provider, os.LookupEnv)
}

// Load reads dotenv files (".env" when none is given) and resolves the
// credentials of provider. Values already present in the process environment
// take precedence over the files; a missing file is not an error.
func Load(provider Provider, files ...string) (Credentials, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}

	fileValues := map[string]string{}
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		values, err := godotenv.Read(file)
		if err != nil {
			return Credentials{}, llmerr.Configuration("env_file", "reading %s: %v", file, err)
		}
		for key, value := range values {
			if _, seen := fileValues[key]; !seen {
				fileValues[key] = value
			}
		}
	}

	return fromLookup(provider, func(key string) (string, bool) {
		if value, ok := os.LookupEnv(key); ok {
			return value, true
		}
		value, ok := fileValues[key]
		return value, ok
	})
}

func fromLookup(provider Provider, lookup func(string) (string, bool)) (Credentials, error) {
	keyVar, baseURLVar := provider.envVars()

	apiKey, ok := lookup(keyVar)
	if !ok || apiKey == "" {
		return Credentials{}, llmerr.Configuration(keyVar, "environment variable is not set")
	}
	baseURL, _ := lookup(baseURLVar)
	return New(apiKey, baseURL, provider)
}

// APIKey returns the secret key.
func (c Credentials) APIKey() string { return c.apiKey }

// BaseURL returns the base URL, always ending in "/".
func (c Credentials) BaseURL() string { return c.baseURL }

// Provider returns the provider tag.
func (c Credentials) Provider() Provider { return c.provider }

// IsZero reports whether c is the zero value (never constructed).
func (c Credentials) IsZero() bool { return c == Credentials{} }

// Endpoint joins the base URL and a relative operation path.
func (c Credentials) Endpoint(path string) string {
	return c.baseURL + strings.TrimPrefix(path, "/")
}

// String never prints the key.
func (c Credentials) String() string {
	return c.provider.String() + " " + c.baseURL
}

func normalizeBaseURL(baseURL string) string {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return baseURL
}
