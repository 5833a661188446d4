package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types/image"
	dockerregistry "github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog/log"

	"github.com/alvesdmateus/registry-migrator/internal/registry"
)

// dockerAPI is the part of the docker engine client used for a pull/tag/push copy
type dockerAPI interface {
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ImageTag(ctx context.Context, source, target string) error
	ImagePush(ctx context.Context, image string, options image.PushOptions) (io.ReadCloser, error)
	ImageRemove(ctx context.Context, imageID string, options image.RemoveOptions) ([]image.DeleteResponse, error)
	Close() error
}

// Docker copies images through the local container runtime
type Docker struct {
	client     dockerAPI
	targetHost string
	tokens     registry.TokenSource
	cleanup    bool
}

// NewDocker creates a docker transport pushing to targetHost with credentials from tokens
func NewDocker(targetHost string, tokens registry.TokenSource, cleanup bool) (*Docker, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return newDocker(cli, targetHost, tokens, cleanup), nil
}

func newDocker(api dockerAPI, targetHost string, tokens registry.TokenSource, cleanup bool) *Docker {
	return &Docker{
		client:     api,
		targetHost: targetHost,
		tokens:     tokens,
		cleanup:    cleanup,
	}
}

// Import pulls the source, retags it for the target registry and pushes it.
// A push always replaces the tag, so Force needs no special handling.
func (d *Docker) Import(ctx context.Context, req registry.ImportRequest) error {
	targetRef := fmt.Sprintf("%s/%s", d.targetHost, req.Target)

	if err := d.pull(ctx, req.Source, req.Credentials); err != nil {
		return registry.ErrImportFailed{Source: req.Source, Target: req.Target, Err: err}
	}

	if d.cleanup {
		defer d.remove(context.WithoutCancel(ctx), req.Source, targetRef)
	}

	if err := d.client.ImageTag(ctx, req.Source, targetRef); err != nil {
		return registry.ErrImportFailed{
			Source: req.Source,
			Target: req.Target,
			Err:    fmt.Errorf("failed to tag image: %w", err),
		}
	}

	targetCreds, err := d.tokens.LoginCredentials(ctx)
	if err != nil {
		return registry.ErrImportFailed{Source: req.Source, Target: req.Target, Err: err}
	}

	if err := d.push(ctx, targetRef, targetCreds); err != nil {
		return registry.ErrImportFailed{Source: req.Source, Target: req.Target, Err: err}
	}

	return nil
}

func (d *Docker) pull(ctx context.Context, ref string, creds registry.Credentials) error {
	log.Info().Str("imageTag", ref).Msg("Pulling image")

	encodedAuth, err := encodeAuth(creds, hostOf(ref))
	if err != nil {
		return fmt.Errorf("failed to encode auth config: %w", err)
	}

	pullResponse, err := d.client.ImagePull(ctx, ref, image.PullOptions{RegistryAuth: encodedAuth})
	if err != nil {
		return registry.ErrPullFailed{ImageTag: ref, Err: err}
	}
	defer pullResponse.Close()

	if err := streamOutput(ctx, pullResponse, "pull"); err != nil {
		return registry.ErrPullFailed{ImageTag: ref, Err: err}
	}

	return nil
}

func (d *Docker) push(ctx context.Context, ref string, creds registry.Credentials) error {
	log.Info().Str("imageTag", ref).Msg("Pushing image")

	encodedAuth, err := encodeAuth(creds, d.targetHost)
	if err != nil {
		return fmt.Errorf("failed to encode auth config: %w", err)
	}

	pushResponse, err := d.client.ImagePush(ctx, ref, image.PushOptions{RegistryAuth: encodedAuth})
	if err != nil {
		return registry.ErrPushFailed{ImageTag: ref, Err: err}
	}
	defer pushResponse.Close()

	if err := streamOutput(ctx, pushResponse, "push"); err != nil {
		return registry.ErrPushFailed{ImageTag: ref, Err: err}
	}

	log.Info().Str("imageTag", ref).Msg("Image pushed successfully")
	return nil
}

// remove deletes local copies to save disk space
func (d *Docker) remove(ctx context.Context, refs ...string) {
	for _, ref := range refs {
		if _, err := d.client.ImageRemove(ctx, ref, image.RemoveOptions{}); err != nil {
			log.Warn().Err(err).Str("imageTag", ref).Msg("Failed to remove local image")
		}
	}
}

// Close closes the Docker client connection
func (d *Docker) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}

// hostOf returns the registry host part of a fully qualified reference
func hostOf(ref string) string {
	host, _, _ := strings.Cut(ref, "/")
	return host
}

func encodeAuth(creds registry.Credentials, serverAddress string) (string, error) {
	return dockerregistry.EncodeAuthConfig(dockerregistry.AuthConfig{
		Username:      creds.Username,
		Password:      creds.Secret,
		ServerAddress: serverAddress,
	})
}

// streamOutput drains a pull or push progress stream; an error message in the stream fails the operation
func streamOutput(ctx context.Context, reader io.Reader, operation string) error {
	decoder := json.NewDecoder(reader)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var msg struct {
			Status   string `json:"status"`
			Progress string `json:"progress"`
			Error    string `json:"error"`
		}

		if err := decoder.Decode(&msg); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("failed to decode %s output: %w", operation, err)
		}

		if msg.Error != "" {
			return fmt.Errorf("%s error: %s", operation, msg.Error)
		}

		if msg.Status != "" {
			log.Debug().
				Str("status", msg.Status).
				Str("progress", msg.Progress).
				Msgf("%s progress", operation)
		}
	}
}
