package newsdigest

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/news-digest/internal/config"
	"github.com/temirov/news-digest/internal/llm"
	"github.com/temirov/news-digest/internal/logging"
	"github.com/temirov/news-digest/internal/pipeline"
	"github.com/temirov/news-digest/internal/tools"
	"github.com/temirov/news-digest/tasks/digest"
)

type runCommandOptions struct {
	configPath    string
	recipeName    string
	modelOverride string
	envFile       string
	now           func() time.Time
}

func newRunCommand() *cobra.Command {
	options := &runCommandOptions{recipeName: defaultRecipeName}

	command := &cobra.Command{
		Use:   runCommandUse,
		Short: runCommandShort,
		Args:  cobra.RangeArgs(runCommandArgsMin, runCommandArgsMax),
		RunE: func(cmd *cobra.Command, args []string) error {
			effectiveOptions := *options
			if len(args) > 0 {
				effectiveOptions.recipeName = strings.TrimSpace(args[0])
			}
			return runDigestCommand(cmd, effectiveOptions)
		},
	}

	command.Flags().StringVar(&options.configPath, configFlagName, "", configFlagUsage)
	command.Flags().StringVar(&options.modelOverride, modelFlagName, "", modelFlagUsage)
	command.Flags().StringVar(&options.envFile, envFileFlagName, defaultEnvFile, envFileFlagUsage)

	return command
}

func runDigestCommand(command *cobra.Command, options runCommandOptions) error {
	rootConfiguration, err := loadRootConfiguration(options.configPath)
	if err != nil {
		return err
	}

	targetRecipe, recipeFound := rootConfiguration.FindRecipe(options.recipeName)
	if !recipeFound || !targetRecipe.Enabled {
		return fmt.Errorf(unknownRecipeErrorFormat, options.recipeName)
	}
	if targetRecipe.Type != config.DigestRecipeType {
		return fmt.Errorf(unsupportedRecipeTypeErrorFormat, targetRecipe.Name, targetRecipe.Type)
	}
	digestConfiguration, mapErr := config.MapDigest(targetRecipe)
	if mapErr != nil {
		return fmt.Errorf(mapRecipeErrorFormat, targetRecipe.Name, mapErr)
	}

	selectedModelName := resolveModelName(options, targetRecipe, rootConfiguration)
	modelConfiguration, modelFound := rootConfiguration.FindModel(selectedModelName)
	if !modelFound {
		return fmt.Errorf(unknownModelErrorFormat, selectedModelName)
	}

	logger, loggerErr := logging.New(rootConfiguration.Common.Logging.Level, rootConfiguration.Common.Logging.Format)
	if loggerErr != nil {
		return fmt.Errorf(loggerErrorFormat, loggerErr)
	}
	defer func() { _ = logger.Sync() }()

	modelKeyEnv := modelConfiguration.APIKeyEnvOr(rootConfiguration.Common.API.APIKeyEnv)
	secrets, secretsErr := config.LoadSecrets(rootConfiguration.Common.Secrets, modelKeyEnv, config.EnvFile{
		Path:     options.envFile,
		Required: command.Flags().Changed(envFileFlagName),
	})
	if secretsErr != nil {
		return fmt.Errorf(secretsErrorFormat, secretsErr)
	}
	if preflightErr := requireSecrets(secrets); preflightErr != nil {
		return preflightErr
	}

	registry := pipeline.NewRegistry()
	for _, tool := range buildTools(secrets, digestConfiguration) {
		registry.Register(tool)
	}

	task, taskErr := digest.New(digestConfiguration, digest.Dependencies{
		Client:       buildModelClient(rootConfiguration, modelConfiguration, digestConfiguration, secrets),
		Registry:     registry,
		Logger:       logger,
		Model:        modelConfiguration.ModelID,
		ModelTimeout: time.Duration(rootConfiguration.Common.Defaults.TimeoutSeconds) * time.Second,
		Now:          options.now,
	})
	if taskErr != nil {
		return fmt.Errorf(buildTaskErrorFormat, targetRecipe.Name, taskErr)
	}

	runner := pipeline.Runner{Logger: logger}
	report, runErr := runner.Run(command.Context(), task, task.Topic())
	if runErr != nil {
		return fmt.Errorf(runRecipeErrorFormat, targetRecipe.Name, runErr)
	}
	logger.Debug("digest delivered", zap.String("run_id", report.RunID), zap.Int("stages", len(report.Outputs)))

	var posted, logged int64
	for _, output := range report.Outputs {
		if output.Receipt == nil {
			continue
		}
		switch output.Stage {
		case pipeline.StageNotify:
			posted = output.Receipt.Count
		case pipeline.StageLog:
			logged = output.Receipt.Count
		}
	}
	_, writeErr := fmt.Fprintf(command.OutOrStdout(), runResultFormat, report.RunID, posted, digestConfiguration.Channel, logged)
	if writeErr != nil {
		return fmt.Errorf(writeOutputErrorFormat, writeErr)
	}
	return nil
}

func resolveModelName(options runCommandOptions, recipe config.Recipe, root config.Root) string {
	modelName := strings.TrimSpace(options.modelOverride)
	if modelName != "" {
		return modelName
	}

	recipeModel := strings.TrimSpace(recipe.Model)
	if recipeModel != "" {
		return recipeModel
	}

	defaultModel, ok := root.DefaultModel()
	if ok {
		return defaultModel.Name
	}

	return ""
}

// requireSecrets fails before any network call when a secret is absent or the
// service-account credential cannot be parsed.
func requireSecrets(secrets config.Secrets) error {
	names := secrets.Names()
	required := []struct {
		value   string
		setting string
	}{
		{value: secrets.ModelAPIKey, setting: secrets.ModelKeyEnv()},
		{value: secrets.SearchAPIKey, setting: names.SearchAPIKey},
		{value: secrets.ChatWebhookURL, setting: names.ChatWebhookURL},
		{value: secrets.SpreadsheetID, setting: names.SpreadsheetID},
		{value: secrets.SheetsCredentials, setting: names.SheetsCredentials},
	}
	for _, secret := range required {
		if secret.value == "" {
			return pipeline.MissingSetting(secret.setting)
		}
	}
	if _, credentialsErr := tools.ServiceAccountConfig(secrets.SheetsCredentials, names.SheetsCredentials); credentialsErr != nil {
		return credentialsErr
	}
	return nil
}

func buildTools(secrets config.Secrets, digestConfiguration config.DigestConfig) []pipeline.Tool {
	names := secrets.Names()
	return []pipeline.Tool{
		tools.Searcher{
			Endpoint:   digestConfiguration.Search.Endpoint,
			APIKey:     secrets.SearchAPIKey,
			KeySetting: names.SearchAPIKey,
		},
		tools.ChatNotifier{
			WebhookURL:     secrets.ChatWebhookURL,
			WebhookSetting: names.ChatWebhookURL,
			DefaultChannel: digestConfiguration.Channel,
		},
		tools.SheetLogger{
			SpreadsheetID:      secrets.SpreadsheetID,
			SpreadsheetSetting: names.SpreadsheetID,
			Credentials:        secrets.SheetsCredentials,
			CredentialsSetting: names.SheetsCredentials,
			Range:              digestConfiguration.Sheet.Range,
			Endpoint:           digestConfiguration.Sheet.Endpoint,
		},
	}
}

func buildModelClient(root config.Root, model config.Model, digestConfiguration config.DigestConfig, secrets config.Secrets) pipeline.LLMClient {
	temperature := digestConfiguration.LLM.Temperature
	if temperature <= 0 {
		temperature = model.DefaultTemperature
	}
	maxTokens := model.MaxCompletionTokens
	if maxTokens <= 0 {
		maxTokens = digestConfiguration.LLM.MaxTokens
	}

	if model.Provider == config.ProviderGemini {
		return llm.Gemini{
			APIKey:        secrets.ModelAPIKey,
			APIKeySetting: secrets.ModelKeyEnv(),
			DefaultModel:  model.ModelID,
			DefaultTemp:   temperature,
			DefaultTokens: maxTokens,
		}
	}

	apiEndpoint := strings.TrimSpace(root.Common.API.Endpoint)
	if apiEndpoint == "" {
		apiEndpoint = defaultAPIEndpoint
	}
	return llm.Adapter{
		Client:              llm.Client{HTTPBaseURL: apiEndpoint, APIKey: secrets.ModelAPIKey},
		DefaultModel:        model.ModelID,
		DefaultTemp:         temperature,
		DefaultTokens:       maxTokens,
		SupportsTemperature: model.SupportsTemperature,
	}
}
