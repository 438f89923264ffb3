// Package agent builds the intent detector selected by configuration.
package agent

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/foodloop/assistant/internal/config"
	"github.com/foodloop/assistant/internal/service/ai"
	"github.com/foodloop/assistant/internal/service/chat"
	"github.com/foodloop/assistant/internal/service/credential"
	"github.com/foodloop/assistant/internal/service/dialogflow"
)

// NewDetector returns the Dialogflow client or the Ark-backed LLM agent.
func NewDetector(ctx context.Context, cfg *config.Config) (chat.Detector, error) {
	switch cfg.Agent {
	case config.AgentArk:
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "create chat model")
		}
		a, err := ai.NewAgent(ctx, chatModel)
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return NewDialogflow(cfg.Dialogflow)
	}
}

// NewDialogflow wires a credential manager and a Dialogflow client.
func NewDialogflow(cfg config.DialogflowConfig) (chat.Detector, error) {
	if !cfg.Enabled() {
		return nil, errors.New("dialogflow is not configured: set DIALOGFLOW_PROJECT_ID and GOOGLE_APPLICATION_CREDENTIALS or DIALOGFLOW_STATIC_TOKEN")
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}

	issuer, err := newIssuer(cfg, httpClient)
	if err != nil {
		return nil, err
	}

	tokens := credential.NewManager(issuer)
	client := dialogflow.NewClient(dialogflow.Config{
		ProjectID:    cfg.ProjectID,
		LanguageCode: cfg.LanguageCode,
		Endpoint:     cfg.Endpoint,
	}, tokens, httpClient)

	log.Debug().Str("project_id", cfg.ProjectID).Str("language", cfg.LanguageCode).Msg("dialogflow client ready")
	return client, nil
}

func newIssuer(cfg config.DialogflowConfig, httpClient *http.Client) (credential.Issuer, error) {
	if cfg.CredentialsFile != "" {
		account, err := credential.LoadServiceAccount(cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		issuer, err := credential.NewServiceAccountIssuer(account, httpClient, credential.DialogflowScope)
		if err != nil {
			return nil, err
		}
		return issuer, nil
	}
	return credential.StaticIssuer(cfg.StaticToken), nil
}
