package provider

import (
	"context"
	"errors"
	"net"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"

	"attache/model"
)

// classifyError wraps a vendor SDK error into a classified
// model.ProviderError so the orchestrator can branch on the kind instead
// of inspecting vendor types. Timeouts and network failures are
// transient; HTTP statuses map through model.ClassifyStatus.
func classifyError(providerName string, err error) *model.ProviderError {
	if err == nil {
		return nil
	}

	var perr *model.ProviderError
	if errors.As(err, &perr) {
		return perr
	}

	kind := model.ErrorUnknown

	var anthErr *anthropic.Error
	var oaiErr *openai.Error
	var ollamaErr api.StatusError
	var netErr net.Error

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = model.ErrorTransient
	case errors.As(err, &anthErr):
		kind = model.ClassifyStatus(anthErr.StatusCode)
	case errors.As(err, &oaiErr):
		kind = model.ClassifyStatus(oaiErr.StatusCode)
	case errors.As(err, &ollamaErr):
		kind = model.ClassifyStatus(ollamaErr.StatusCode)
	case errors.As(err, &netErr):
		kind = model.ErrorTransient
	}

	return model.NewProviderError(providerName, kind, err)
}
