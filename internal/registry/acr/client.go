// Package acr drives Azure Container Registry through the az CLI.
package acr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/alvesdmateus/registry-migrator/internal/registry"
)

// tokenUsername is the fixed user name paired with an ACR access token
const tokenUsername = "00000000-0000-0000-0000-000000000000"

// Config contains ACR configuration
type Config struct {
	Name           string // registry name, without .azurecr.io
	SubscriptionID string
	CLIPath        string // defaults to "az"
}

// Client implements registry.Target, registry.Importer and registry.TokenSource using the az CLI
type Client struct {
	config   Config
	runner   Runner
	cliPath  string
	endpoint registry.Endpoint
}

// Host returns the login server for a registry name
func Host(name string) string {
	return fmt.Sprintf("%s.azurecr.io", strings.ToLower(name))
}

// NewClient creates a new ACR client
func NewClient(config Config, runner Runner) *Client {
	if runner == nil {
		runner = ExecRunner{}
	}

	cliPath := config.CLIPath
	if cliPath == "" {
		cliPath = "az"
	}

	return &Client{
		config:  config,
		runner:  runner,
		cliPath: cliPath,
		endpoint: registry.Endpoint{
			Name:    config.Name,
			Host:    Host(config.Name),
			Account: config.SubscriptionID,
		},
	}
}

// Endpoint returns the ACR endpoint
func (c *Client) Endpoint() registry.Endpoint {
	return c.endpoint
}

// Verify checks the registry exists in the subscription and selects that subscription
func (c *Client) Verify(ctx context.Context) error {
	log.Info().
		Str("registry", c.config.Name).
		Str("subscription", c.config.SubscriptionID).
		Msg("Verifying ACR exists")

	if _, err := c.run(ctx, "acr", "show",
		"--name", c.config.Name,
		"--subscription", c.config.SubscriptionID,
	); err != nil {
		return registry.ErrRegistryUnavailable{
			Registry: c.config.Name,
			Err:      fmt.Errorf("not found in subscription %s: %w", c.config.SubscriptionID, err),
		}
	}

	log.Info().Str("subscription", c.config.SubscriptionID).Msg("Setting Azure subscription")

	if _, err := c.run(ctx, "account", "set", "--subscription", c.config.SubscriptionID); err != nil {
		return registry.ErrRegistryUnavailable{
			Registry: c.config.Name,
			Err:      fmt.Errorf("failed to select subscription: %w", err),
		}
	}

	return nil
}

// CreateRepository creates a repository in the registry. CLI builds without a
// create subcommand leave creation to the import, which is reported as success.
func (c *Client) CreateRepository(ctx context.Context, repository string) error {
	_, err := c.run(ctx, "acr", "repository", "create",
		"--name", c.config.Name,
		"--repository", repository,
	)
	if err != nil {
		if stderrContains(err, "already exists") {
			return fmt.Errorf("%s: %w", repository, registry.ErrRepositoryExists)
		}
		if unsupportedSubcommand(err) {
			log.Debug().Str("repository", repository).Msg("az has no repository create command, the import will create it")
			return nil
		}
		return fmt.Errorf("failed to create repository %s: %w", repository, err)
	}

	log.Debug().Str("repository", repository).Msg("Repository created")
	return nil
}

// Import copies an image from another registry into ACR
func (c *Client) Import(ctx context.Context, req registry.ImportRequest) error {
	args := []string{"acr", "import",
		"--name", c.config.Name,
		"--source", req.Source,
		"--image", req.Target,
	}
	if !req.Credentials.Empty() {
		args = append(args,
			"--username", req.Credentials.Username,
			"--password", req.Credentials.Secret,
		)
	}
	if req.Force {
		args = append(args, "--force")
	}

	log.Debug().
		Str("command", RedactCommand(c.cliPath, args...)).
		Msg("Running import")

	if _, err := c.run(ctx, args...); err != nil {
		if stderrContains(err, "repository not found") {
			err = fmt.Errorf("%w: %w", registry.ErrTargetRepositoryMissing, err)
		}
		return registry.ErrImportFailed{Source: req.Source, Target: req.Target, Err: err}
	}

	return nil
}

// LoginCredentials returns an access token usable for pushing with docker or crane
func (c *Client) LoginCredentials(ctx context.Context) (registry.Credentials, error) {
	out, err := c.run(ctx, "acr", "login",
		"--name", c.config.Name,
		"--expose-token",
		"--output", "json",
	)
	if err != nil {
		return registry.Credentials{}, registry.ErrAuthenticationFailed{Registry: c.config.Name, Err: err}
	}

	var token struct {
		AccessToken string `json:"accessToken"`
		LoginServer string `json:"loginServer"`
	}
	if err := json.Unmarshal(out, &token); err != nil {
		return registry.Credentials{}, registry.ErrAuthenticationFailed{
			Registry: c.config.Name,
			Err:      fmt.Errorf("failed to decode token output: %w", err),
		}
	}
	if token.AccessToken == "" {
		return registry.Credentials{}, registry.ErrAuthenticationFailed{
			Registry: c.config.Name,
			Err:      errors.New("empty access token"),
		}
	}

	return registry.Credentials{Username: tokenUsername, Secret: token.AccessToken}, nil
}

// unsupportedSubcommand matches az's answer to a command it does not know
func unsupportedSubcommand(err error) bool {
	return stderrContains(err, "misspelled or not recognized") ||
		stderrContains(err, "is not in the")
}
