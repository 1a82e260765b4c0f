package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	searchAPIKeySecret      = "search_api_key"
	chatWebhookURLSecret    = "chat_webhook_url"
	sheetsCredentialsSecret = "sheets_credentials"
	spreadsheetIDSecret     = "spreadsheet_id"
	modelAPIKeySecret       = "model_api_key"

	loadEnvironmentFileErrorFormat = "load environment file: %w"
	bindSecretErrorFormat          = "bind secret %s to %s: %w"
)

// Secrets is the process configuration read once at start and handed to constructors.
// Empty values are reported by the component that needs them.
type Secrets struct {
	SearchAPIKey      string
	ChatWebhookURL    string
	SheetsCredentials string
	SpreadsheetID     string
	ModelAPIKey       string

	names       SecretNames
	modelKeyEnv string
}

// Names returns the environment variables the secrets were read from.
func (s Secrets) Names() SecretNames { return s.names }

func (s Secrets) ModelKeyEnv() string { return s.modelKeyEnv }

// EnvFile names a dotenv file. A missing file is an error only when Required is set.
type EnvFile struct {
	Path     string
	Required bool
}

// LoadSecrets reads the env file and then binds every secret to its environment variable.
// Variables already present in the environment win over env file entries.
func LoadSecrets(names SecretNames, modelKeyEnv string, envFile EnvFile) (Secrets, error) {
	if envFile.Path != "" {
		err := godotenv.Load(envFile.Path)
		if err != nil && (envFile.Required || !errors.Is(err, fs.ErrNotExist)) {
			return Secrets{}, fmt.Errorf(loadEnvironmentFileErrorFormat, err)
		}
	}

	secretEnvironment := viper.New()
	bindings := []struct {
		key string
		env string
	}{
		{key: searchAPIKeySecret, env: names.SearchAPIKey},
		{key: chatWebhookURLSecret, env: names.ChatWebhookURL},
		{key: sheetsCredentialsSecret, env: names.SheetsCredentials},
		{key: spreadsheetIDSecret, env: names.SpreadsheetID},
		{key: modelAPIKeySecret, env: modelKeyEnv},
	}
	for _, binding := range bindings {
		if binding.env == "" {
			continue
		}
		if err := secretEnvironment.BindEnv(binding.key, binding.env); err != nil {
			return Secrets{}, fmt.Errorf(bindSecretErrorFormat, binding.key, binding.env, err)
		}
	}

	return Secrets{
		SearchAPIKey:      strings.TrimSpace(secretEnvironment.GetString(searchAPIKeySecret)),
		ChatWebhookURL:    strings.TrimSpace(secretEnvironment.GetString(chatWebhookURLSecret)),
		SheetsCredentials: strings.TrimSpace(secretEnvironment.GetString(sheetsCredentialsSecret)),
		SpreadsheetID:     strings.TrimSpace(secretEnvironment.GetString(spreadsheetIDSecret)),
		ModelAPIKey:       strings.TrimSpace(secretEnvironment.GetString(modelAPIKeySecret)),
		names:             names,
		modelKeyEnv:       modelKeyEnv,
	}, nil
}
