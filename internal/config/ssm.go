package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmAPI is the minimal AWS SSM interface required by ParameterSource.
// *ssm.Client from aws-sdk-go-v2 satisfies this interface.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter is the interface that wraps parameter retrieval. FromParameters
// depends on this rather than the concrete *ParameterSource so it stays
// testable without real AWS calls.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// ParameterSource reads configuration values from SSM Parameter Store.
type ParameterSource struct {
	api ssmAPI
}

// NewParameterSource creates a ParameterSource with the given SSM API
// implementation.
func NewParameterSource(api ssmAPI) (*ParameterSource, error) {
	if api == nil {
		return nil, &Error{Reason: "ssm api must not be nil"}
	}
	return &ParameterSource{api: api}, nil
}

func (s *ParameterSource) GetParameter(ctx context.Context, name string) (string, error) {
	if s.api == nil {
		return "", errors.New("config: parameter source not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("config: parameter name is required")
	}

	withDecryption := true
	out, err := s.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &withDecryption,
	})
	if err != nil {
		return "", fmt.Errorf("config: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("config: parameter %q missing value", name)
	}
	return *out.Parameter.Value, nil
}

// parameterNames maps each configuration key to its parameter name below the
// prefix, e.g. /finance-chatbot/azure-openai-api-key.
var parameterNames = map[string]string{
	KeyAzureOpenAIKey:      "azure-openai-api-key",
	KeyAzureOpenAIEndpoint: "azure-openai-endpoint",
	KeyOpenAIAPIVersion:    "openai-api-version",
	KeyNewsAPIKey:          "newsapi-key",
	KeyOpenExchangeKey:     "openexchange-api-key",
	KeyDeployment:          "azure-openai-deployment",
}

// FromParameters loads the Config from SSM Parameter Store under the given
// prefix. Required parameters must exist; the deployment parameter is
// optional and falls back to DefaultDeployment.
func FromParameters(ctx context.Context, getter Getter, prefix string) (Config, error) {
	if getter == nil {
		return Config{}, &Error{Reason: "parameter getter must not be nil"}
	}
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return Config{}, &Error{Reason: "parameter prefix must not be empty"}
	}

	values := make(map[string]string, len(requiredKeys)+1)
	for _, key := range requiredKeys {
		v, err := getter.GetParameter(ctx, prefix+"/"+parameterNames[key])
		if err != nil {
			return Config{}, &Error{Key: key, Reason: "load parameter", Err: err}
		}
		values[key] = v
	}
	// Deployment is optional in SSM as well.
	if v, err := getter.GetParameter(ctx, prefix+"/"+parameterNames[KeyDeployment]); err == nil {
		values[KeyDeployment] = v
	}
	return fromValues(values)
}
