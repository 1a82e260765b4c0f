package config

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/temirov/news-digest/internal/roles"
)

const (
	// DigestRecipeType marks recipes handled by the news digest task.
	DigestRecipeType = "task/digest"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	defaultDigestChannel                     = "#general"
	defaultDigestSheetRange                  = "Sheet1!A:D"
	defaultDigestSearchEndpoint              = "https://google.serper.dev/search"
	defaultOpenAIAPIKeyEnv                   = "OPENAI_API_KEY"
	defaultSearchAPIKeyEnv                   = "SERPER_API_KEY"
	defaultChatWebhookEnv                    = "SLACK_WEBHOOK_URL"
	defaultSheetsCredentialsEnv              = "GCP_CREDENTIALS_B64"
	defaultSpreadsheetIDEnv                  = "SPREADSHEET_ID"
	emptyModelsErrorMessage                  = "config.models is empty"
	missingDefaultModelErrorMessage          = "no default model found (set models[].default: true)"
	unknownProviderErrorFormat               = "model %s: unknown provider %q"
	rootConfigurationEmptyContentErrorFormat = "root configuration %s is empty"
	rootConfigurationUnmarshalErrorFormat    = "unmarshal root configuration %s: %w"
	mapDigestMarshalErrorFormat              = "marshal digest recipe: %w"
	mapDigestUnmarshalErrorFormat            = "map digest recipe: %w"
	mapDigestTypeErrorFormat                 = "recipe %s has type %q, expected %q"
	missingDigestTopicErrorFormat            = "recipe %s: topic is required"
)

type Root struct {
	Common  Common   `yaml:"common"`
	Models  []Model  `yaml:"models"`
	Recipes []Recipe `yaml:"recipes"`
}

type Common struct {
	API struct {
		Endpoint  string `yaml:"endpoint"`
		APIKeyEnv string `yaml:"api_key_env"`
	} `yaml:"api"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
	Defaults struct {
		TimeoutSeconds int `yaml:"timeout_seconds"`
	} `yaml:"defaults"`
	Secrets SecretNames `yaml:"secrets"`
}

// SecretNames lists the environment variables each secret is read from.
type SecretNames struct {
	SearchAPIKey      string `yaml:"search_api_key_env"`
	ChatWebhookURL    string `yaml:"chat_webhook_url_env"`
	SheetsCredentials string `yaml:"sheets_credentials_env"`
	SpreadsheetID     string `yaml:"spreadsheet_id_env"`
}

type Model struct {
	Name                string  `yaml:"name"`
	Provider            string  `yaml:"provider"`
	ModelID             string  `yaml:"model_id"`
	APIKeyEnv           string  `yaml:"api_key_env"`
	Default             bool    `yaml:"default"`
	SupportsTemperature bool    `yaml:"supports_temperature"`
	DefaultTemperature  float64 `yaml:"default_temperature"`
	MaxCompletionTokens int     `yaml:"max_completion_tokens"`
}

type Recipe struct {
	Name    string `yaml:"name"`
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	Type    string `yaml:"type"`

	Body map[string]any `yaml:",inline"`
}

// LoadRoot parses the provided configuration source and validates required fields.
func LoadRoot(source RootConfigurationSource) (Root, error) {
	if len(source.Content) == 0 {
		return Root{}, fmt.Errorf(rootConfigurationEmptyContentErrorFormat, source.Reference)
	}

	var rootConfiguration Root
	if err := yaml.Unmarshal(source.Content, &rootConfiguration); err != nil {
		return Root{}, fmt.Errorf(rootConfigurationUnmarshalErrorFormat, source.Reference, err)
	}

	if len(rootConfiguration.Models) == 0 {
		return Root{}, errors.New(emptyModelsErrorMessage)
	}
	if _, ok := rootConfiguration.DefaultModel(); !ok {
		return Root{}, errors.New(missingDefaultModelErrorMessage)
	}
	for index := range rootConfiguration.Models {
		modelConfiguration := &rootConfiguration.Models[index]
		modelConfiguration.Provider = strings.ToLower(strings.TrimSpace(modelConfiguration.Provider))
		if modelConfiguration.Provider == "" {
			modelConfiguration.Provider = ProviderOpenAI
		}
		if modelConfiguration.Provider != ProviderOpenAI && modelConfiguration.Provider != ProviderGemini {
			return Root{}, fmt.Errorf(unknownProviderErrorFormat, modelConfiguration.Name, modelConfiguration.Provider)
		}
	}
	rootConfiguration.Common.applyDefaults()
	return rootConfiguration, nil
}

func (common *Common) applyDefaults() {
	if common.API.APIKeyEnv == "" {
		common.API.APIKeyEnv = defaultOpenAIAPIKeyEnv
	}
	if common.Secrets.SearchAPIKey == "" {
		common.Secrets.SearchAPIKey = defaultSearchAPIKeyEnv
	}
	if common.Secrets.ChatWebhookURL == "" {
		common.Secrets.ChatWebhookURL = defaultChatWebhookEnv
	}
	if common.Secrets.SheetsCredentials == "" {
		common.Secrets.SheetsCredentials = defaultSheetsCredentialsEnv
	}
	if common.Secrets.SpreadsheetID == "" {
		common.Secrets.SpreadsheetID = defaultSpreadsheetIDEnv
	}
}

func (root Root) DefaultModel() (Model, bool) {
	for _, modelConfiguration := range root.Models {
		if modelConfiguration.Default {
			return modelConfiguration, true
		}
	}
	return Model{}, false
}

func (root Root) FindModel(name string) (Model, bool) {
	for _, modelConfiguration := range root.Models {
		if modelConfiguration.Name == name {
			return modelConfiguration, true
		}
	}
	return Model{}, false
}

func (root Root) FindRecipe(name string) (Recipe, bool) {
	for _, recipe := range root.Recipes {
		if recipe.Name == name {
			return recipe, true
		}
	}
	return Recipe{}, false
}

// APIKeyEnvOr names the environment variable holding this model's key.
func (model Model) APIKeyEnvOr(fallback string) string {
	if strings.TrimSpace(model.APIKeyEnv) != "" {
		return model.APIKeyEnv
	}
	return fallback
}

// DigestTask is one templated step of the digest recipe.
type DigestTask struct {
	Name           string `yaml:"name"`
	Role           string `yaml:"role"`
	Description    string `yaml:"description"`
	ExpectedOutput string `yaml:"expected_output"`
}

type DigestConfig struct {
	Topic   string `yaml:"topic"`
	Channel string `yaml:"channel"`
	Sheet   struct {
		Range    string `yaml:"range"`
		Endpoint string `yaml:"endpoint"`
	} `yaml:"sheet"`
	Search struct {
		Endpoint string `yaml:"endpoint"`
	} `yaml:"search"`
	LLM struct {
		Temperature float64 `yaml:"temperature"`
		MaxTokens   int     `yaml:"max_tokens"`
	} `yaml:"llm"`
	Roles []roles.Role `yaml:"roles"`
	Tasks []DigestTask `yaml:"tasks"`
}

// MapDigest converts a recipe into the digest task configuration and fills defaults.
func MapDigest(recipe Recipe) (DigestConfig, error) {
	var digestConfiguration DigestConfig
	if recipe.Type != DigestRecipeType {
		return digestConfiguration, fmt.Errorf(mapDigestTypeErrorFormat, recipe.Name, recipe.Type, DigestRecipeType)
	}
	encodedRecipeBody, marshalError := yaml.Marshal(recipe.Body)
	if marshalError != nil {
		return digestConfiguration, fmt.Errorf(mapDigestMarshalErrorFormat, marshalError)
	}
	if err := yaml.Unmarshal(encodedRecipeBody, &digestConfiguration); err != nil {
		return digestConfiguration, fmt.Errorf(mapDigestUnmarshalErrorFormat, err)
	}
	digestConfiguration.Topic = strings.TrimSpace(digestConfiguration.Topic)
	if digestConfiguration.Topic == "" {
		return digestConfiguration, fmt.Errorf(missingDigestTopicErrorFormat, recipe.Name)
	}
	if strings.TrimSpace(digestConfiguration.Channel) == "" {
		digestConfiguration.Channel = defaultDigestChannel
	}
	if strings.TrimSpace(digestConfiguration.Sheet.Range) == "" {
		digestConfiguration.Sheet.Range = defaultDigestSheetRange
	}
	if strings.TrimSpace(digestConfiguration.Search.Endpoint) == "" {
		digestConfiguration.Search.Endpoint = defaultDigestSearchEndpoint
	}
	if digestConfiguration.LLM.MaxTokens <= 0 {
		digestConfiguration.LLM.MaxTokens = 2000
	}
	return digestConfiguration, nil
}
