package newsdigest_test

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/temirov/news-digest/cmd/newsdigest"
	"github.com/temirov/news-digest/internal/pipeline"
)

const (
	modelKeyEnv       = "NEWS_DIGEST_CLI_MODEL_KEY"
	searchKeyEnv      = "NEWS_DIGEST_CLI_SEARCH_KEY"
	webhookEnv        = "NEWS_DIGEST_CLI_WEBHOOK"
	credentialsEnv    = "NEWS_DIGEST_CLI_CREDENTIALS"
	spreadsheetIDEnv  = "NEWS_DIGEST_CLI_SPREADSHEET"
	testSpreadsheetID = "sheet-cli"
	testAccessToken   = "test-access-token"

	configurationTemplate = `common:
  api:
    endpoint: %s
    api_key_env: ` + modelKeyEnv + `
  logging:
    level: error
    format: console
  defaults:
    timeout_seconds: 5
  secrets:
    search_api_key_env: ` + searchKeyEnv + `
    chat_webhook_url_env: ` + webhookEnv + `
    sheets_credentials_env: ` + credentialsEnv + `
    spreadsheet_id_env: ` + spreadsheetIDEnv + `
models:
  - name: test-model
    provider: openai
    model_id: gpt-test
    default: true
    max_completion_tokens: 256
recipes:
  - name: news
    enabled: true
    type: task/digest
    topic: Robotics
    channel: "#news"
    search:
      endpoint: %s
    sheet:
      endpoint: %s/
    roles:
      - {name: fetcher, purpose: "Find {topic} news", tools: [search]}
      - {name: summarizer, purpose: "Summarize {topic} news"}
      - {name: notifier, purpose: Share, tools: [chat_post]}
      - {name: logger, purpose: Record, tools: [sheet_append]}
    tasks:
      - {name: fetch, role: fetcher, description: "Find {topic} news from {current_year}"}
      - {name: summarize, role: summarizer, description: "Summarize {topic} news"}
      - {name: notify, role: notifier, description: Post}
      - {name: log, role: logger, description: Log}
  - name: archive
    enabled: false
    type: task/digest
    topic: Archive
`
)

type fakeServices struct {
	modelRequests  int32
	searchRequests int32
	chatRequests   int32
	sheetRequests  int32
	sheetRows      [][]string

	model  *httptest.Server
	search *httptest.Server
	chat   *httptest.Server
	google *httptest.Server
}

func newFakeServices(t *testing.T) *fakeServices {
	t.Helper()
	fakes := &fakeServices{}

	fakes.model = httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		atomic.AddInt32(&fakes.modelRequests, 1)
		var body struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
			t.Errorf("decode model request: %v", err)
		}
		summary := "raw"
		if len(body.Messages) > 0 && strings.HasPrefix(body.Messages[0].Content, "You are the summarizer.") {
			summary = "Y"
		}
		content := fmt.Sprintf(`{"items":[{"headline":"X","summary":%q,"url":"http://z","date":"2024-01-01"}]}`, summary)
		writer.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(writer).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}, "finish_reason": "stop"}},
		})
	}))
	t.Cleanup(fakes.model.Close)

	fakes.search = httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		atomic.AddInt32(&fakes.searchRequests, 1)
		_, _ = writer.Write([]byte(`{"organic":[{"title":"X","link":"http://z"}]}`))
	}))
	t.Cleanup(fakes.search.Close)

	fakes.chat = httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		atomic.AddInt32(&fakes.chatRequests, 1)
		_, _ = writer.Write([]byte("ok"))
	}))
	t.Cleanup(fakes.chat.Close)

	googleMux := http.NewServeMux()
	googleMux.HandleFunc("/token", func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{"access_token":"` + testAccessToken + `","token_type":"Bearer","expires_in":3600}`))
	})
	googleMux.HandleFunc("/", func(writer http.ResponseWriter, request *http.Request) {
		atomic.AddInt32(&fakes.sheetRequests, 1)
		if got := request.Header.Get("Authorization"); got != "Bearer "+testAccessToken {
			t.Errorf("unexpected authorization %q", got)
		}
		var body struct {
			Values [][]string `json:"values"`
		}
		if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
			t.Errorf("decode append body: %v", err)
		}
		fakes.sheetRows = append(fakes.sheetRows, body.Values...)
		writer.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(writer).Encode(map[string]any{"updates": map[string]any{"updatedRows": len(body.Values)}})
	})
	fakes.google = httptest.NewServer(googleMux)
	t.Cleanup(fakes.google.Close)

	return fakes
}

func (fakes *fakeServices) requests() int32 {
	return fakes.modelRequests + fakes.searchRequests + fakes.chatRequests + fakes.sheetRequests
}

func (fakes *fakeServices) writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := fmt.Sprintf(configurationTemplate, fakes.model.URL, fakes.search.URL, fakes.google.URL)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func serviceAccountSecret(t *testing.T, tokenURL string) string {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	encodedKey, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: encodedKey})
	serviceAccount, err := json.Marshal(map[string]string{
		"type":           "service_account",
		"client_email":   "digest@example.iam.gserviceaccount.com",
		"private_key_id": "key-1",
		"private_key":    string(keyPEM),
		"token_uri":      tokenURL,
	})
	if err != nil {
		t.Fatalf("marshal service account: %v", err)
	}
	return base64.StdEncoding.EncodeToString(serviceAccount)
}

func setSecrets(t *testing.T, values map[string]string) {
	t.Helper()
	for _, name := range []string{modelKeyEnv, searchKeyEnv, webhookEnv, credentialsEnv, spreadsheetIDEnv} {
		t.Setenv(name, "")
		value, present := values[name]
		if !present {
			if err := os.Unsetenv(name); err != nil {
				t.Fatalf("unset %s: %v", name, err)
			}
			continue
		}
		t.Setenv(name, value)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	command := newsdigest.NewRootCommand()
	command.SetOut(&out)
	command.SetErr(&out)
	command.SetArgs(args)
	err := command.Execute()
	return out.String(), err
}

func emptyEnvFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	return path
}

func TestRunDeliversDigestEndToEnd(t *testing.T) {
	fakes := newFakeServices(t)
	setSecrets(t, map[string]string{
		modelKeyEnv:      "model-key",
		searchKeyEnv:     "search-key",
		webhookEnv:       fakes.chat.URL,
		credentialsEnv:   serviceAccountSecret(t, fakes.google.URL+"/token"),
		spreadsheetIDEnv: testSpreadsheetID,
	})

	output, err := execute(t, "run", "--config", fakes.writeConfig(t), "--env-file", emptyEnvFile(t))
	assert.Equal(t, err, nil)
	assert.Equal(t, strings.HasSuffix(output, ": 1 items posted to #news, 1 rows logged\n"), true)

	assert.Equal(t, fakes.modelRequests, int32(2))
	assert.Equal(t, fakes.searchRequests, int32(1))
	assert.Equal(t, fakes.chatRequests, int32(1))
	assert.Equal(t, fakes.sheetRequests, int32(1))
	assert.Equal(t, fakes.sheetRows, [][]string{{"2024-01-01", "X", "Y", "http://z"}})
}

func TestRunMissingSecretFailsWithoutNetwork(t *testing.T) {
	testCases := []struct {
		name    string
		secrets map[string]string
		setting string
		missing bool
	}{
		{
			name:    "model key",
			secrets: map[string]string{},
			setting: modelKeyEnv,
			missing: true,
		},
		{
			name:    "search key",
			secrets: map[string]string{modelKeyEnv: "k"},
			setting: searchKeyEnv,
			missing: true,
		},
		{
			name:    "sheet credentials",
			secrets: map[string]string{modelKeyEnv: "k", searchKeyEnv: "k", webhookEnv: "http://127.0.0.1:1", spreadsheetIDEnv: "s"},
			setting: credentialsEnv,
			missing: true,
		},
		{
			name:    "malformed credentials",
			secrets: map[string]string{modelKeyEnv: "k", searchKeyEnv: "k", webhookEnv: "http://127.0.0.1:1", spreadsheetIDEnv: "s", credentialsEnv: "%%%"},
			setting: credentialsEnv,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			fakes := newFakeServices(t)
			setSecrets(t, testCase.secrets)

			_, err := execute(t, "run", "news", "--config", fakes.writeConfig(t), "--env-file", emptyEnvFile(t))

			var configurationErr *pipeline.ConfigurationError
			assert.Equal(t, errors.As(err, &configurationErr), true)
			assert.Equal(t, configurationErr.Setting, testCase.setting)
			assert.Equal(t, errors.Is(err, pipeline.ErrSettingMissing), testCase.missing)
			assert.Equal(t, errors.Is(err, pipeline.ErrSettingMalformed), !testCase.missing)
			assert.Equal(t, fakes.requests(), int32(0))
		})
	}
}

func TestRunExplicitMissingEnvFileFails(t *testing.T) {
	fakes := newFakeServices(t)
	missingPath := filepath.Join(t.TempDir(), "absent.env")

	_, err := execute(t, "run", "--config", fakes.writeConfig(t), "--env-file", missingPath)
	assert.Equal(t, errors.Is(err, fs.ErrNotExist), true)
	assert.Equal(t, strings.Contains(err.Error(), "absent.env"), true)
	assert.Equal(t, fakes.requests(), int32(0))
}

func TestRunRejectsUnknownOrDisabledRecipe(t *testing.T) {
	fakes := newFakeServices(t)
	configPath := fakes.writeConfig(t)

	for _, recipeName := range []string{"missing", "archive"} {
		_, err := execute(t, "run", recipeName, "--config", configPath)
		assert.NotEqual(t, err, nil)
		assert.Equal(t, strings.Contains(err.Error(), recipeName), true)
	}

	_, err := execute(t, "run", "--config", configPath, "--model", "unknown-model")
	assert.NotEqual(t, err, nil)
	assert.Equal(t, fakes.requests(), int32(0))
}

func TestListFiltersDisabledRecipes(t *testing.T) {
	fakes := newFakeServices(t)
	configPath := fakes.writeConfig(t)

	output, err := execute(t, "list", "--config", configPath)
	assert.Equal(t, err, nil)
	assert.Equal(t, output, "news\t(enabled, type=task/digest, model=-)\n")

	output, err = execute(t, "list", "--all", "--config", configPath)
	assert.Equal(t, err, nil)
	assert.Equal(t, strings.Contains(output, "archive\t(disabled, type=task/digest, model=-)\n"), true)
}
