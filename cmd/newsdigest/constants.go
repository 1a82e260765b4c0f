package newsdigest

const (
	rootCommandUse   = "newsdigest"
	rootCommandShort = "Fetch, summarize, post and log the news on a topic"

	defaultRecipeName   = "news"
	defaultEnvFile      = ".env"
	runCommandUse       = "run [RECIPE]"
	runCommandShort     = "Run a news digest recipe once"
	runCommandArgsMin   = 0
	runCommandArgsMax   = 1
	configFlagName      = "config"
	configFlagUsage     = "Path to config.yaml (falls back to ./config.yaml, ~/.news-digest/config.yaml, built-in defaults)"
	modelFlagName       = "model"
	modelFlagUsage      = "Override recipe's model by name (must exist in models[])"
	envFileFlagName     = "env-file"
	envFileFlagUsage    = "Environment file with secrets (a missing default .env is ignored)"
	listCommandUse      = "list"
	listCommandShort    = "List recipes from config.yaml (enabled by default)"
	allFlagName         = "all"
	allFlagUsage        = "Show disabled recipes as well"
	enabledStateLabel   = "enabled"
	disabledStateLabel  = "disabled"
	dashPlaceholder     = "-"
	defaultAPIEndpoint  = "https://api.openai.com/v1"
	recipeListingFormat = "%s\t(%s, type=%s, model=%s)\n"
	runResultFormat     = "run %s: %d items posted to %s, %d rows logged\n"

	configurationLoaderInitializationErrorFormat = "initialize configuration loader: %w"
	configurationSourceResolutionErrorFormat     = "resolve configuration source: %w"
	rootConfigurationLoadErrorFormat             = "load root configuration %s: %w"
	unknownRecipeErrorFormat                     = "unknown or disabled recipe %q"
	unsupportedRecipeTypeErrorFormat             = "recipe %s has unsupported type %q"
	mapRecipeErrorFormat                         = "map recipe %s: %w"
	unknownModelErrorFormat                      = "model %q not found in models[]"
	loggerErrorFormat                            = "configure logging: %w"
	secretsErrorFormat                           = "load secrets: %w"
	buildTaskErrorFormat                         = "build recipe %s: %w"
	runRecipeErrorFormat                         = "run recipe %s: %w"
	writeOutputErrorFormat                       = "write output: %w"
)
