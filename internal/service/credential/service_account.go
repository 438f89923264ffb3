package credential

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// DialogflowScope is the OAuth scope requested for intent detection calls.
const DialogflowScope = "https://www.googleapis.com/auth/dialogflow"

const (
	defaultTokenURI = "https://oauth2.googleapis.com/token"
	jwtBearerGrant  = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	assertionTTL    = time.Hour
)

// ServiceAccount is the subset of a Google service-account key file needed
// to mint access tokens.
type ServiceAccount struct {
	ClientEmail  string `json:"client_email"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	TokenURI     string `json:"token_uri"`
}

// LoadServiceAccount reads a service-account key file.
func LoadServiceAccount(path string) (ServiceAccount, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ServiceAccount{}, errors.Wrap(err, "read service account")
	}
	var sa ServiceAccount
	if err := json.Unmarshal(raw, &sa); err != nil {
		return ServiceAccount{}, errors.Wrap(err, "decode service account")
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return ServiceAccount{}, errors.New("service account is missing client_email or private_key")
	}
	return sa, nil
}

// ServiceAccountIssuer exchanges a signed JWT assertion for an access token.
type ServiceAccountIssuer struct {
	account    ServiceAccount
	key        *rsa.PrivateKey
	scopes     []string
	httpClient *http.Client
	now        func() time.Time
}

// NewServiceAccountIssuer parses the account's private key and returns an
// issuer requesting scopes.
func NewServiceAccountIssuer(account ServiceAccount, httpClient *http.Client, scopes ...string) (*ServiceAccountIssuer, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(account.PrivateKey))
	if err != nil {
		return nil, errors.Wrap(err, "parse service account key")
	}
	if account.TokenURI == "" {
		account.TokenURI = defaultTokenURI
	}
	if len(scopes) == 0 {
		scopes = []string{DialogflowScope}
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ServiceAccountIssuer{
		account:    account,
		key:        key,
		scopes:     scopes,
		httpClient: httpClient,
		now:        time.Now,
	}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// IssueToken implements Issuer.
func (i *ServiceAccountIssuer) IssueToken(ctx context.Context) (string, error) {
	assertion, err := i.assertion()
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("grant_type", jwtBearerGrant)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.account.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Wrap(err, "build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "token request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read token response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", errors.Wrap(err, "decode token response")
	}
	return tr.AccessToken, nil
}

func (i *ServiceAccountIssuer) assertion() (string, error) {
	now := i.now()
	claims := jwt.MapClaims{
		"iss":   i.account.ClientEmail,
		"scope": strings.Join(i.scopes, " "),
		"aud":   i.account.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if i.account.PrivateKeyID != "" {
		t.Header["kid"] = i.account.PrivateKeyID
	}
	signed, err := t.SignedString(i.key)
	if err != nil {
		return "", errors.Wrap(err, "sign assertion")
	}
	return signed, nil
}

// StaticIssuer always returns the same token. Useful for local development
// with a token minted out of band.
type StaticIssuer string

// IssueToken implements Issuer.
func (s StaticIssuer) IssueToken(context.Context) (string, error) {
	if s == "" {
		return "", errors.New("static token is empty")
	}
	return string(s), nil
}
