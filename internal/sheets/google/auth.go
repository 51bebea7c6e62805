package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

var (
	errNoServiceAccount = errors.New("no service account configured")

	// ErrMissingCredentials means neither a service account nor an OAuth client is configured.
	ErrMissingCredentials = errors.New("missing Google credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, GOOGLE_APPLICATION_CREDENTIALS, or GOOGLE_OAUTH_CLIENT_JSON/GOOGLE_OAUTH_CLIENT_FILE)")
	ErrMissingOAuthToken  = errors.New("missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)")
)

// clientOptions prefers a service account and falls back to an OAuth client
// with a saved user token.
func clientOptions(ctx context.Context) ([]goption.ClientOption, error) {
	creds, err := serviceAccountCredentials(ctx)
	switch {
	case err == nil:
		return []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}, nil
	case !errors.Is(err, errNoServiceAccount):
		return nil, err
	}

	cfg, err := OAuthConfigFromEnv()
	if err != nil {
		return nil, err
	}
	tok, err := oauthTokenFromEnv()
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Using OAuth user credentials")
	// the token source refreshes in the background, so it must outlive ctx
	ts := cfg.TokenSource(context.WithoutCancel(ctx), tok)
	return []goption.ClientOption{goption.WithTokenSource(ts)}, nil
}

func serviceAccountCredentials(ctx context.Context) ([]byte, error) {
	if js := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); js != "" {
		slog.InfoContext(ctx, "Using inline JSON credentials")
		return []byte(js), nil
	}

	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if file == "" {
		return nil, errNoServiceAccount
	}

	slog.InfoContext(ctx, "Reading credentials from file", "path", file)
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

// OAuthConfigFromEnv loads the OAuth client from GOOGLE_OAUTH_CLIENT_JSON or
// GOOGLE_OAUTH_CLIENT_FILE, scoped to spreadsheets.
func OAuthConfigFromEnv() (*oauth2.Config, error) {
	b, err := envOrFile("GOOGLE_OAUTH_CLIENT_JSON", "GOOGLE_OAUTH_CLIENT_FILE")
	if err != nil {
		return nil, fmt.Errorf("read oauth client: %w", err)
	}
	if b == nil {
		return nil, ErrMissingCredentials
	}
	cfg, err := oauthgoogle.ConfigFromJSON(b, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth client: %w", err)
	}
	return cfg, nil
}

func oauthTokenFromEnv() (*oauth2.Token, error) {
	b, err := envOrFile("GOOGLE_OAUTH_TOKEN_JSON", "GOOGLE_OAUTH_TOKEN_FILE")
	if err != nil {
		return nil, fmt.Errorf("read oauth token: %w", err)
	}
	if b == nil {
		return nil, ErrMissingOAuthToken
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}
	return &tok, nil
}

// SaveToken writes tok as JSON readable by GOOGLE_OAUTH_TOKEN_FILE.
func SaveToken(path string, tok *oauth2.Token) error {
	b, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// envOrFile returns the inline value of jsonKey, else the contents of the file
// named by fileKey, else nil.
func envOrFile(jsonKey, fileKey string) ([]byte, error) {
	if js := strings.TrimSpace(os.Getenv(jsonKey)); js != "" {
		return []byte(js), nil
	}
	file := strings.TrimSpace(os.Getenv(fileKey))
	if file == "" {
		return nil, nil
	}
	return os.ReadFile(file)
}
