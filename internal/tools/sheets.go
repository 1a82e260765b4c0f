package tools

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/temirov/news-digest/internal/news"
	"github.com/temirov/news-digest/internal/pipeline"
)

const (
	SheetToolName     = "sheet_append"
	DefaultSheetRange = "Sheet1!A:D"
	SheetStatusLogged = "logged"

	sheetsServiceName         = "sheets"
	rawValueInputOption       = "RAW"
	defaultSpreadsheetSetting = "spreadsheet id"
	defaultCredentialsSetting = "sheets service account credentials"
	missingClientEmailMessage = "service account has no client_email"
	missingPrivateKeyMessage  = "service account has no private_key"
	missingUpdatesMessage     = "append response has no updates"
)

// SheetsScope is the only OAuth scope requested: read and write spreadsheet values.
const SheetsScope = sheets.SpreadsheetsScope

// SheetReceipt confirms an append. RowsAdded is what the spreadsheet service reported.
type SheetReceipt struct {
	Status    string `json:"status"`
	RowsAdded int64  `json:"rows_added"`
}

// SheetLogger appends item rows to a Google Sheets range.
// HTTPClient, when set, is used as-is instead of the service-account token source.
type SheetLogger struct {
	SpreadsheetID      string
	SpreadsheetSetting string
	Credentials        string
	CredentialsSetting string
	Range              string
	Endpoint           string
	HTTPClient         *http.Client
}

func (l SheetLogger) Name() string { return SheetToolName }

// Append writes one row per item in a single call. An empty batch appends nothing and reports zero.
func (l SheetLogger) Append(ctx context.Context, items []news.Item) (SheetReceipt, error) {
	spreadsheetID := strings.TrimSpace(l.SpreadsheetID)
	if spreadsheetID == "" {
		return SheetReceipt{}, pipeline.MissingSetting(settingName(l.SpreadsheetSetting, defaultSpreadsheetSetting))
	}
	serviceAccount, credentialsErr := ServiceAccountConfig(l.Credentials, settingName(l.CredentialsSetting, defaultCredentialsSetting))
	if credentialsErr != nil {
		return SheetReceipt{}, credentialsErr
	}
	if err := validateItems(items, true); err != nil {
		return SheetReceipt{}, err
	}
	if len(items) == 0 {
		return SheetReceipt{Status: SheetStatusLogged, RowsAdded: 0}, nil
	}

	service, serviceErr := l.service(ctx, serviceAccount)
	if serviceErr != nil {
		return SheetReceipt{}, serviceErr
	}

	sheetRange := strings.TrimSpace(l.Range)
	if sheetRange == "" {
		sheetRange = DefaultSheetRange
	}
	response, appendErr := service.Spreadsheets.Values.
		Append(spreadsheetID, sheetRange, &sheets.ValueRange{Values: Rows(items)}).
		ValueInputOption(rawValueInputOption).
		Context(ctx).
		Do()
	if appendErr != nil {
		return SheetReceipt{}, sheetsTransportError(appendErr)
	}
	if response.Updates == nil {
		return SheetReceipt{}, &pipeline.TransportError{Service: sheetsServiceName, StatusCode: response.HTTPStatusCode, Err: errors.New(missingUpdatesMessage)}
	}
	return SheetReceipt{Status: SheetStatusLogged, RowsAdded: response.Updates.UpdatedRows}, nil
}

// Rows maps items to sheet rows in the column order date, headline, summary, url.
func Rows(items []news.Item) [][]interface{} {
	rows := make([][]interface{}, 0, len(items))
	for _, item := range items {
		rows = append(rows, []interface{}{item.Date, item.Headline, item.Summary, item.URL})
	}
	return rows
}

// ServiceAccountConfig decodes a base64 service-account key and scopes it to spreadsheets only.
// An empty secret wraps pipeline.ErrSettingMissing; an undecodable one wraps pipeline.ErrSettingMalformed.
func ServiceAccountConfig(encoded string, setting string) (*jwt.Config, error) {
	trimmed := strings.TrimSpace(encoded)
	if trimmed == "" {
		return nil, pipeline.MissingSetting(setting)
	}
	decoded, decodeErr := base64.StdEncoding.DecodeString(trimmed)
	if decodeErr != nil {
		return nil, pipeline.MalformedSetting(setting, decodeErr)
	}
	serviceAccount, parseErr := google.JWTConfigFromJSON(decoded, SheetsScope)
	if parseErr != nil {
		return nil, pipeline.MalformedSetting(setting, parseErr)
	}
	if strings.TrimSpace(serviceAccount.Email) == "" {
		return nil, pipeline.MalformedSetting(setting, errors.New(missingClientEmailMessage))
	}
	if len(serviceAccount.PrivateKey) == 0 {
		return nil, pipeline.MalformedSetting(setting, errors.New(missingPrivateKeyMessage))
	}
	return serviceAccount, nil
}

func (l SheetLogger) service(ctx context.Context, serviceAccount *jwt.Config) (*sheets.Service, error) {
	var clientOptions []option.ClientOption
	if l.HTTPClient != nil {
		clientOptions = append(clientOptions, option.WithHTTPClient(l.HTTPClient))
	} else {
		clientOptions = append(clientOptions, option.WithTokenSource(serviceAccount.TokenSource(ctx)))
	}
	if endpoint := strings.TrimSpace(l.Endpoint); endpoint != "" {
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}
	service, err := sheets.NewService(ctx, clientOptions...)
	if err != nil {
		return nil, pipeline.MalformedSetting(settingName(l.CredentialsSetting, defaultCredentialsSetting), err)
	}
	return service, nil
}

func sheetsTransportError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &pipeline.TransportError{Service: sheetsServiceName, StatusCode: apiErr.Code, Err: err}
	}
	return &pipeline.TransportError{Service: sheetsServiceName, Err: err}
}
