package repository

import (
	"context"
	"encoding/base64"
	"fmt"

	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// GitLabClient implements the Client interface for GitLab repositories
type GitLabClient struct {
	api    GitLabAPI
	config Config
}

// NewGitLabClient creates a new GitLab client with the provided configuration
// If no token is provided, the client will only have access to public repositories
// If a custom BaseURL is provided, it will be used for self-hosted GitLab instances
func NewGitLabClient(config Config) (*GitLabClient, error) {
	opts := []gitlab.ClientOptionFunc{}
	if config.BaseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(config.BaseURL))
	}

	client, err := gitlab.NewClient(config.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitLab client: %w", err)
	}

	return &GitLabClient{
		api:    wrapGitLabClient(client),
		config: config,
	}, nil
}

// NewGitLabClientWithAPI builds a client over an injected API, used by tests.
func NewGitLabClientWithAPI(config Config, api GitLabAPI) *GitLabClient {
	return &GitLabClient{api: api, config: config}
}

// GetRepositoryInfo retrieves metadata about a GitLab repository
func (g *GitLabClient) GetRepositoryInfo(ctx context.Context, owner, repo string) (*Info, error) {
	projectID := fmt.Sprintf("%s/%s", owner, repo)

	project, resp, err := g.api.Projects.GetProject(projectID, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get repository info from GitLab: %w", err)
	}
	closeGitLabResponse(resp)

	return &Info{
		ID:            fmt.Sprintf("%d", project.ID),
		Name:          project.Name,
		FullName:      project.PathWithNamespace,
		Description:   project.Description,
		DefaultBranch: project.DefaultBranch,
		URL:           project.WebURL,
	}, nil
}

// GetFileContent retrieves the content of a specific file from a GitLab repository
func (g *GitLabClient) GetFileContent(ctx context.Context, owner, repo, ref, path string) (string, error) {
	projectID := fmt.Sprintf("%s/%s", owner, repo)

	// GitLab requires an explicit ref
	refToUse := ref
	if refToUse == "" {
		info, err := g.GetRepositoryInfo(ctx, owner, repo)
		if err != nil {
			return "", fmt.Errorf("failed to get default branch: %w", err)
		}
		refToUse = info.DefaultBranch
	}

	opts := &gitlab.GetFileOptions{
		Ref: gitlab.Ptr(refToUse),
	}

	file, resp, err := g.api.RepositoryFiles.GetFile(projectID, path, opts, gitlab.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to get file content from GitLab: %w", err)
	}
	closeGitLabResponse(resp)

	if file == nil {
		return "", fmt.Errorf("%w: %s", ErrNotAFile, path)
	}
	if file.Content == "" {
		return "", nil
	}

	decoded, err := base64.StdEncoding.DecodeString(file.Content)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64 content: %w", err)
	}

	return string(decoded), nil
}

func closeGitLabResponse(resp *gitlab.Response) {
	if resp == nil || resp.Response == nil {
		return
	}
	closeBody(resp.Body)
}
