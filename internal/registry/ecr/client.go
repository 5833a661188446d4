// Package ecr reads repositories, images and pull credentials from Amazon ECR.
package ecr

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/rs/zerolog/log"

	"github.com/alvesdmateus/registry-migrator/internal/registry"
)

// API is the subset of the ECR service client used here
type API interface {
	GetAuthorizationToken(ctx context.Context, params *ecr.GetAuthorizationTokenInput, optFns ...func(*ecr.Options)) (*ecr.GetAuthorizationTokenOutput, error)
	ecr.DescribeRepositoriesAPIClient
	ecr.ListImagesAPIClient
}

// Config contains ECR configuration
type Config struct {
	Region    string
	AccountID string
}

// Client implements registry.Source for Amazon ECR
type Client struct {
	api      API
	endpoint registry.Endpoint
}

// Host returns the registry host for an account and region
func Host(accountID, region string) string {
	return fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com", accountID, region)
}

// NewClient creates an ECR client using the default AWS credential chain
func NewClient(ctx context.Context, config Config) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(config.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return NewClientWithAPI(ecr.NewFromConfig(awsCfg), config), nil
}

// NewClientWithAPI creates an ECR client on top of an existing API implementation
func NewClientWithAPI(api API, config Config) *Client {
	return &Client{
		api: api,
		endpoint: registry.Endpoint{
			Host:    Host(config.AccountID, config.Region),
			Region:  config.Region,
			Account: config.AccountID,
		},
	}
}

// Endpoint returns the ECR endpoint
func (c *Client) Endpoint() registry.Endpoint {
	return c.endpoint
}

// Authenticate exchanges the AWS identity for a temporary registry login.
// The authorization token is base64("user:password"); the user is always AWS.
func (c *Client) Authenticate(ctx context.Context) (registry.Credentials, error) {
	log.Info().
		Str("registry", c.endpoint.Host).
		Str("region", c.endpoint.Region).
		Msg("Getting ECR authentication token")

	out, err := c.api.GetAuthorizationToken(ctx, &ecr.GetAuthorizationTokenInput{})
	if err != nil {
		return registry.Credentials{}, registry.ErrAuthenticationFailed{Registry: c.endpoint.Host, Err: err}
	}

	if len(out.AuthorizationData) == 0 {
		return registry.Credentials{}, registry.ErrAuthenticationFailed{
			Registry: c.endpoint.Host,
			Err:      errors.New("no authorization data returned"),
		}
	}

	data := out.AuthorizationData[0]
	username, secret, err := decodeToken(aws.ToString(data.AuthorizationToken))
	if err != nil {
		return registry.Credentials{}, registry.ErrAuthenticationFailed{Registry: c.endpoint.Host, Err: err}
	}

	creds := registry.Credentials{
		Username:  username,
		Secret:    secret,
		ExpiresAt: aws.ToTime(data.ExpiresAt),
	}

	log.Info().
		Object("credentials", creds).
		Msg("Obtained ECR credentials")

	return creds, nil
}

func decodeToken(token string) (string, string, error) {
	if token == "" {
		return "", "", errors.New("empty authorization token")
	}

	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", "", fmt.Errorf("failed to decode authorization token: %w", err)
	}

	username, secret, ok := strings.Cut(string(raw), ":")
	if !ok || username == "" || secret == "" {
		return "", "", errors.New("malformed authorization token")
	}

	return username, secret, nil
}

// ListRepositories returns all repository names in the registry
func (c *Client) ListRepositories(ctx context.Context) ([]string, error) {
	var repos []string

	paginator := ecr.NewDescribeRepositoriesPaginator(c.api, &ecr.DescribeRepositoriesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe repositories: %w", err)
		}

		for _, repo := range page.Repositories {
			repos = append(repos, aws.ToString(repo.RepositoryName))
		}
	}

	return repos, nil
}

// ListImages returns every image identifier (tag and digest) in a repository
func (c *Client) ListImages(ctx context.Context, repository string) ([]registry.ImageID, error) {
	var images []registry.ImageID

	paginator := ecr.NewListImagesPaginator(c.api, &ecr.ListImagesInput{
		RepositoryName: aws.String(repository),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			var notFound *types.RepositoryNotFoundException
			if errors.As(err, &notFound) {
				return nil, fmt.Errorf("%s: %w", repository, registry.ErrRepositoryNotFound)
			}
			return nil, fmt.Errorf("failed to list images for %s: %w", repository, err)
		}

		for _, id := range page.ImageIds {
			images = append(images, registry.ImageID{
				Tag:    aws.ToString(id.ImageTag),
				Digest: aws.ToString(id.ImageDigest),
			})
		}
	}

	return images, nil
}
