package credential

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	return key, string(pem.EncodeToMemory(block))
}

func TestServiceAccountIssuerExchangesAssertion(t *testing.T) {
	key, keyPEM := testKey(t)

	var gotClaims jwt.MapClaims
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, jwtBearerGrant, r.PostForm.Get("grant_type"))

		parsed, err := jwt.Parse(r.PostForm.Get("assertion"), func(*jwt.Token) (interface{}, error) {
			return &key.PublicKey, nil
		}, jwt.WithValidMethods([]string{"RS256"}))
		if assert.NoError(t, err) {
			gotClaims = parsed.Claims.(jwt.MapClaims)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "ya29.test", "expires_in": 3599})
	}))
	defer srv.Close()

	issuer, err := NewServiceAccountIssuer(ServiceAccount{
		ClientEmail: "bot@foodloop.iam.gserviceaccount.com",
		PrivateKey:  keyPEM,
		TokenURI:    srv.URL,
	}, srv.Client())
	require.NoError(t, err)

	token, err := issuer.IssueToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ya29.test", token)
	assert.Equal(t, "bot@foodloop.iam.gserviceaccount.com", gotClaims["iss"])
	assert.Equal(t, DialogflowScope, gotClaims["scope"])
	assert.Equal(t, srv.URL, gotClaims["aud"])
}

func TestServiceAccountIssuerRejectedExchange(t *testing.T) {
	_, keyPEM := testKey(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	issuer, err := NewServiceAccountIssuer(ServiceAccount{
		ClientEmail: "bot@foodloop.iam.gserviceaccount.com",
		PrivateKey:  keyPEM,
		TokenURI:    srv.URL,
	}, srv.Client())
	require.NoError(t, err)

	_, err = issuer.IssueToken(context.Background())
	assert.Error(t, err)
}

func TestNewServiceAccountIssuerInvalidKey(t *testing.T) {
	_, err := NewServiceAccountIssuer(ServiceAccount{ClientEmail: "x", PrivateKey: "not a key"}, nil)
	assert.Error(t, err)
}

func TestLoadServiceAccount(t *testing.T) {
	_, keyPEM := testKey(t)
	path := filepath.Join(t.TempDir(), "sa.json")
	raw, err := json.Marshal(map[string]string{
		"type":         "service_account",
		"client_email": "bot@foodloop.iam.gserviceaccount.com",
		"private_key":  keyPEM,
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	sa, err := LoadServiceAccount(path)
	require.NoError(t, err)
	assert.Equal(t, "bot@foodloop.iam.gserviceaccount.com", sa.ClientEmail)

	require.NoError(t, os.WriteFile(path, []byte(`{"client_email":""}`), 0o600))
	_, err = LoadServiceAccount(path)
	assert.Error(t, err)
}

func TestStaticIssuer(t *testing.T) {
	tok, err := StaticIssuer("abc").IssueToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	_, err = StaticIssuer("").IssueToken(context.Background())
	assert.Error(t, err)
}
