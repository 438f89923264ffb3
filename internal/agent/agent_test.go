package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodloop/assistant/internal/config"
)

func TestNewDialogflowWithStaticToken(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"queryResult":{"fulfillmentText":"hello there"}}`))
	}))
	defer srv.Close()

	d, err := NewDialogflow(config.DialogflowConfig{
		ProjectID:   "foodloop",
		Endpoint:    srv.URL,
		StaticToken: "dev-token",
	})
	require.NoError(t, err)

	text, err := d.DetectIntent(context.Background(), "s", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)
	assert.Equal(t, "Bearer dev-token", auth)
}

func TestNewDialogflowRequiresProjectAndCredentials(t *testing.T) {
	_, err := NewDialogflow(config.DialogflowConfig{StaticToken: "t"})
	assert.Error(t, err)

	_, err = NewDialogflow(config.DialogflowConfig{ProjectID: "p"})
	assert.Error(t, err)

	_, err = NewDialogflow(config.DialogflowConfig{ProjectID: "p", CredentialsFile: "/does/not/exist.json"})
	assert.Error(t, err)
}

func TestNewDetectorArkWithoutCredentials(t *testing.T) {
	_, err := NewDetector(context.Background(), &config.Config{Agent: config.AgentArk})
	assert.Error(t, err)
}
