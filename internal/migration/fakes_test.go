package migration

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/alvesdmateus/registry-migrator/internal/registry"
)

const sourceHost = "123456789012.dkr.ecr.us-east-1.amazonaws.com"

// fakeSource is an in-memory source registry
type fakeSource struct {
	mu sync.Mutex

	repos    []string
	images   map[string][]registry.ImageID
	notFound map[string]bool
	listErr  map[string]error
	reposErr error
	authErr  error

	authCalls  int
	reposCalls int
	imageCalls []string
}

func newFakeSource(repos []string, images map[string][]registry.ImageID) *fakeSource {
	return &fakeSource{
		repos:    repos,
		images:   images,
		notFound: map[string]bool{},
		listErr:  map[string]error{},
	}
}

func (s *fakeSource) Endpoint() registry.Endpoint {
	return registry.Endpoint{Host: sourceHost, Region: "us-east-1", Account: "123456789012"}
}

func (s *fakeSource) Authenticate(ctx context.Context) (registry.Credentials, error) {
	s.authCalls++
	if s.authErr != nil {
		return registry.Credentials{}, s.authErr
	}
	return registry.Credentials{Username: "AWS", Secret: "pull-secret"}, nil
}

func (s *fakeSource) ListRepositories(ctx context.Context) ([]string, error) {
	s.reposCalls++
	if s.reposErr != nil {
		return nil, s.reposErr
	}
	return s.repos, nil
}

func (s *fakeSource) ListImages(ctx context.Context, repository string) ([]registry.ImageID, error) {
	s.imageCalls = append(s.imageCalls, repository)
	if s.notFound[repository] {
		return nil, registry.ErrRepositoryNotFound
	}
	if err := s.listErr[repository]; err != nil {
		return nil, err
	}
	return s.images[repository], nil
}

// digest resolves repo:tag to its current digest
func (s *fakeSource) digest(repository, tag string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.images[repository] {
		if id.Tag == tag {
			return id.Digest, true
		}
	}
	return "", false
}

func (s *fakeSource) retag(repository, tag, digest string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, id := range s.images[repository] {
		if id.Tag == tag {
			s.images[repository][i].Digest = digest
		}
	}
}

// fakeTarget is an in-memory target registry that imports from a fakeSource
type fakeTarget struct {
	mu sync.Mutex

	source     *fakeSource
	verifyErr  error
	createErr  map[string]error
	importErr  map[string]error
	panicOn    map[string]bool
	repos      map[string]bool
	tags       map[string]string // repo:tag -> digest
	requests   []registry.ImportRequest
	verifyCall int
	creates    []string
}

func newFakeTarget(source *fakeSource) *fakeTarget {
	return &fakeTarget{
		source:    source,
		createErr: map[string]error{},
		importErr: map[string]error{},
		panicOn:   map[string]bool{},
		repos:     map[string]bool{},
		tags:      map[string]string{},
	}
}

func (t *fakeTarget) Endpoint() registry.Endpoint {
	return registry.Endpoint{Name: "myregistry", Host: "myregistry.azurecr.io", Account: "sub-123"}
}

func (t *fakeTarget) Verify(ctx context.Context) error {
	t.verifyCall++
	return t.verifyErr
}

func (t *fakeTarget) CreateRepository(ctx context.Context, repository string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.creates = append(t.creates, repository)
	if err := t.createErr[repository]; err != nil {
		return err
	}
	if t.repos[repository] {
		return registry.ErrRepositoryExists
	}
	t.repos[repository] = true
	return nil
}

func (t *fakeTarget) Import(ctx context.Context, req registry.ImportRequest) error {
	if t.panicOn[req.Target] {
		panic("importer exploded")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.requests = append(t.requests, req)
	if err := t.importErr[req.Target]; err != nil {
		return err
	}

	if req.Credentials.Secret != "pull-secret" {
		return errors.New("unauthorized: source credentials rejected")
	}

	path := strings.TrimPrefix(req.Source, sourceHost+"/")
	repo, tag, _ := strings.Cut(path, ":")
	digest, ok := t.source.digest(repo, tag)
	if !ok {
		return errors.New("manifest unknown")
	}

	if _, exists := t.tags[req.Target]; exists && !req.Force {
		return errors.New("tag already exists")
	}

	t.repos[repo] = true
	t.tags[req.Target] = digest
	return nil
}

func (t *fakeTarget) snapshot() (map[string]bool, map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	repos := make(map[string]bool, len(t.repos))
	for k, v := range t.repos {
		repos[k] = v
	}
	tags := make(map[string]string, len(t.tags))
	for k, v := range t.tags {
		tags[k] = v
	}
	return repos, tags
}

func validSettings() Settings {
	return Settings{
		Source: registry.Endpoint{Host: sourceHost, Region: "us-east-1", Account: "123456789012"},
		Target: registry.Endpoint{Name: "myregistry", Account: "sub-123"},
	}
}
