package drive

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"reelpipe/internal/httpretry"
)

const (
	readOnlyScope   = "https://www.googleapis.com/auth/drive.readonly"
	jwtBearerGrant  = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	assertionTTL    = time.Hour
	tokenRefreshGap = time.Minute
)

// ServiceAccount holds the fields of a service account key file used for
// signing token requests.
type ServiceAccount struct {
	ClientEmail  string `json:"client_email"`
	PrivateKey   string `json:"private_key"`
	PrivateKeyID string `json:"private_key_id"`
	TokenURI     string `json:"token_uri"`
}

// LoadServiceAccount parses inline JSON when present, otherwise the key file
// at path.
func LoadServiceAccount(inline, path string) (ServiceAccount, error) {
	data := []byte(strings.TrimSpace(inline))
	if len(data) == 0 {
		if strings.TrimSpace(path) == "" {
			return ServiceAccount{}, errors.New("no service account credentials configured")
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return ServiceAccount{}, fmt.Errorf("read service account file: %w", err)
		}
		data = raw
	}
	var account ServiceAccount
	if err := json.Unmarshal(data, &account); err != nil {
		return ServiceAccount{}, fmt.Errorf("parse service account: %w", err)
	}
	if account.ClientEmail == "" || account.PrivateKey == "" {
		return ServiceAccount{}, errors.New("service account missing client_email or private_key")
	}
	return account, nil
}

// tokenSource mints and caches access tokens for a service account.
type tokenSource struct {
	account  ServiceAccount
	key      *rsa.PrivateKey
	tokenURL string
	http     *httpretry.Client
	now      func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func newTokenSource(account ServiceAccount, tokenURL string, client *httpretry.Client) (*tokenSource, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(account.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}
	if strings.TrimSpace(tokenURL) == "" {
		tokenURL = account.TokenURI
	}
	if strings.TrimSpace(tokenURL) == "" {
		return nil, errors.New("token url not configured")
	}
	return &tokenSource{
		account:  account,
		key:      key,
		tokenURL: tokenURL,
		http:     client,
		now:      time.Now,
	}, nil
}

// Token returns a valid access token, refreshing it when close to expiry.
func (s *tokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" && s.now().Before(s.expires.Add(-tokenRefreshGap)) {
		return s.token, nil
	}

	assertion, err := s.signAssertion()
	if err != nil {
		return "", err
	}
	form := url.Values{
		"grant_type": {jwtBearerGrant},
		"assertion":  {assertion},
	}.Encode()
	resp, err := s.http.Do(ctx, "drive token", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return "", err
	}
	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", errors.New("token response missing access_token")
	}
	s.token = payload.AccessToken
	s.expires = s.now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	return s.token, nil
}

func (s *tokenSource) signAssertion() (string, error) {
	issued := s.now()
	claims := jwt.MapClaims{
		"iss":   s.account.ClientEmail,
		"scope": readOnlyScope,
		"aud":   s.tokenURL,
		"iat":   issued.Unix(),
		"exp":   issued.Add(assertionTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if s.account.PrivateKeyID != "" {
		token.Header["kid"] = s.account.PrivateKeyID
	}
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}
	return signed, nil
}
