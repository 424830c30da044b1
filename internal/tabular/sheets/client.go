// Package sheets implements the tabular store on the Google Sheets values
// API. Auth is a service-account JWT flow; the values calls themselves are
// plain REST.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
)

const (
	defaultBaseURL = "https://sheets.googleapis.com"
	scope          = "https://www.googleapis.com/auth/spreadsheets"
)

type Config struct {
	CredentialsFile string
	SpreadsheetID   string
	Worksheet       string
	Header          []string

	// BaseURL and HTTPClient override the Google endpoint and the
	// authenticated client; used by tests.
	BaseURL    string
	HTTPClient *http.Client

	Logger *slog.Logger
}

type Client struct {
	http          *http.Client
	baseURL       string
	spreadsheetID string
	worksheet     string
	header        []string
	logger        *slog.Logger
}

// New builds a Sheets client. When cfg.HTTPClient is nil the service-account
// credentials file is loaded and exchanged for a token source.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, fmt.Errorf("sheets: spreadsheet id is required")
	}
	worksheet := strings.TrimSpace(cfg.Worksheet)
	if worksheet == "" {
		worksheet = "data_bot"
	}
	if len(cfg.Header) == 0 {
		return nil, fmt.Errorf("sheets: header is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		creds, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("sheets: read credentials %s: %w", cfg.CredentialsFile, err)
		}
		jwtCfg, err := google.JWTConfigFromJSON(creds, scope)
		if err != nil {
			return nil, fmt.Errorf("sheets: parse credentials: %w", err)
		}
		httpClient = jwtCfg.Client(ctx)
		httpClient.Timeout = 30 * time.Second
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		http:          httpClient,
		baseURL:       baseURL,
		spreadsheetID: cfg.SpreadsheetID,
		worksheet:     worksheet,
		header:        append([]string(nil), cfg.Header...),
		logger:        logger,
	}, nil
}

type valueRange struct {
	Range  string     `json:"range,omitempty"`
	Values [][]string `json:"values,omitempty"`
}

// EnsureHeader creates the worksheet if it is missing and rewrites row 1
// whenever it does not match the fixed column order.
func (c *Client) EnsureHeader(ctx context.Context) error {
	current, err := c.readRange(ctx, c.worksheet+"!1:1")
	if err != nil {
		if !isMissingWorksheet(err) {
			return err
		}
		if err := c.addWorksheet(ctx); err != nil {
			return err
		}
		current = nil
	}

	var firstRow []string
	if len(current) > 0 {
		firstRow = current[0]
	}
	if headerMatches(firstRow, c.header) {
		return nil
	}

	c.logger.Info("sheets_header_rewrite", "worksheet", c.worksheet)
	return c.updateRange(ctx, c.worksheet+"!A1", [][]string{c.header})
}

// AppendRow appends one row after the last non-empty row of the worksheet.
func (c *Client) AppendRow(ctx context.Context, cells []string) error {
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s:append?valueInputOption=USER_ENTERED&insertDataOption=INSERT_ROWS",
		c.baseURL, url.PathEscape(c.spreadsheetID), url.PathEscape(c.worksheet+"!A1"))
	body := valueRange{Values: [][]string{cells}}
	return c.post(ctx, endpoint, body, nil)
}

// ReadAllRows fetches the whole worksheet and maps data rows onto the header
// found in its first row. Short rows leave trailing columns empty.
func (c *Client) ReadAllRows(ctx context.Context) ([]map[string]string, error) {
	values, err := c.readRange(ctx, c.worksheet)
	if err != nil {
		return nil, err
	}
	if len(values) < 2 {
		return nil, nil
	}
	header := values[0]
	rows := make([]map[string]string, 0, len(values)-1)
	for _, raw := range values[1:] {
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(raw) {
				row[col] = raw[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (c *Client) readRange(ctx context.Context, rng string) ([][]string, error) {
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s",
		c.baseURL, url.PathEscape(c.spreadsheetID), url.PathEscape(rng))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("sheets http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out valueRange
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("sheets decode values: %w", err)
	}
	return out.Values, nil
}

func (c *Client) updateRange(ctx context.Context, rng string, values [][]string) error {
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s?valueInputOption=USER_ENTERED",
		c.baseURL, url.PathEscape(c.spreadsheetID), url.PathEscape(rng))
	body := valueRange{Values: values}
	b, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sheets http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return nil
}

func (c *Client) addWorksheet(ctx context.Context) error {
	c.logger.Info("sheets_add_worksheet", "worksheet", c.worksheet)
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s:batchUpdate", c.baseURL, url.PathEscape(c.spreadsheetID))
	body := map[string]any{
		"requests": []map[string]any{
			{
				"addSheet": map[string]any{
					"properties": map[string]any{
						"title": c.worksheet,
						"gridProperties": map[string]any{
							"rowCount":    1000,
							"columnCount": 20,
						},
					},
				},
			},
		},
	}
	return c.post(ctx, endpoint, body, nil)
}

func (c *Client) post(ctx context.Context, endpoint string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("sheets encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sheets http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("sheets decode response: %w", err)
		}
	}
	return nil
}

// The values API answers 400 with a "Unable to parse range" message when the
// worksheet does not exist.
func isMissingWorksheet(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Unable to parse range") || strings.Contains(msg, "not found")
}

func headerMatches(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if strings.TrimSpace(got[i]) != want[i] {
			return false
		}
	}
	return true
}
