package repository

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// GitHubClient implements the Client interface for GitHub repositories
type GitHubClient struct {
	api    GitHubAPI
	config Config
}

// NewGitHubClient creates a new GitHub client with the provided configuration
// If no token is provided, the client will only have access to public repositories
// If a custom BaseURL is provided, it will be used for GitHub Enterprise instances
func NewGitHubClient(config Config) (*GitHubClient, error) {
	var client *github.Client

	if config.Token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: config.Token},
		)
		client = github.NewClient(oauth2.NewClient(context.Background(), ts))
	} else {
		client = github.NewClient(nil)
	}

	if config.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(config.BaseURL, config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to set GitHub Enterprise URL: %w", err)
		}
	}

	return &GitHubClient{
		api:    wrapGitHubClient(client),
		config: config,
	}, nil
}

// NewGitHubClientWithAPI builds a client over an injected API, used by tests.
func NewGitHubClientWithAPI(config Config, api GitHubAPI) *GitHubClient {
	return &GitHubClient{api: api, config: config}
}

// GetRepositoryInfo retrieves metadata about a GitHub repository
func (g *GitHubClient) GetRepositoryInfo(ctx context.Context, owner, repo string) (*Info, error) {
	ghRepo, resp, err := g.api.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to get repository info from GitHub: %w", err)
	}
	closeGitHubResponse(resp)

	return &Info{
		ID:            fmt.Sprintf("%d", ghRepo.GetID()),
		Name:          ghRepo.GetName(),
		FullName:      ghRepo.GetFullName(),
		Description:   ghRepo.GetDescription(),
		DefaultBranch: ghRepo.GetDefaultBranch(),
		URL:           ghRepo.GetHTMLURL(),
	}, nil
}

// GetFileContent retrieves the content of a specific file from a GitHub repository
func (g *GitHubClient) GetFileContent(ctx context.Context, owner, repo, ref, path string) (string, error) {
	opts := &github.RepositoryContentGetOptions{}
	if ref != "" {
		opts.Ref = ref
	}

	fileContent, _, resp, err := g.api.Repositories.GetContents(ctx, owner, repo, path, opts)
	if err != nil {
		return "", fmt.Errorf("failed to get file content from GitHub: %w", err)
	}
	closeGitHubResponse(resp)

	if fileContent == nil {
		return "", fmt.Errorf("%w: %s", ErrNotAFile, path)
	}

	// GitHub returns base64 encoded content
	content, err := fileContent.GetContent()
	if err != nil {
		return "", fmt.Errorf("failed to decode file content: %w", err)
	}

	return content, nil
}

func closeGitHubResponse(resp *github.Response) {
	if resp == nil || resp.Response == nil {
		return
	}
	closeBody(resp.Body)
}

func closeBody(body io.Closer) {
	if body == nil {
		return
	}
	if err := body.Close(); err != nil {
		slog.Warn("failed to close response body", "error", err)
	}
}
