package repository

// Narrow interfaces over the GitHub and GitLab SDKs. Only the calls the
// clients make are exposed so tests can inject fakes without HTTP.

import (
	"context"

	"github.com/google/go-github/v57/github"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// GitHubRepositoriesService abstracts the subset of repository operations used.
type GitHubRepositoriesService interface {
	// Get fetches metadata for a repository.
	Get(ctx context.Context, owner, repo string) (*github.Repository, *github.Response, error)
	// GetContents retrieves either a file OR a directory listing depending on path.
	GetContents(ctx context.Context, owner, repo, path string, opts *github.RepositoryContentGetOptions) (*github.RepositoryContent, []*github.RepositoryContent, *github.Response, error)
}

// GitHubAPI groups the narrowed GitHub service interfaces.
type GitHubAPI struct {
	Repositories GitHubRepositoriesService
}

func wrapGitHubClient(c *github.Client) GitHubAPI {
	return GitHubAPI{Repositories: c.Repositories}
}

// GitLabProjectsService abstracts project metadata retrieval.
type GitLabProjectsService interface {
	GetProject(projectID string, opts *gitlab.GetProjectOptions, options ...gitlab.RequestOptionFunc) (*gitlab.Project, *gitlab.Response, error)
}

// GitLabRepositoryFilesService abstracts file content retrieval.
type GitLabRepositoryFilesService interface {
	GetFile(projectID string, filePath string, opts *gitlab.GetFileOptions, options ...gitlab.RequestOptionFunc) (*gitlab.File, *gitlab.Response, error)
}

type gitlabProjectsWrapper struct {
	client *gitlab.Client
}

func (w *gitlabProjectsWrapper) GetProject(projectID string, opts *gitlab.GetProjectOptions, options ...gitlab.RequestOptionFunc) (*gitlab.Project, *gitlab.Response, error) {
	return w.client.Projects.GetProject(projectID, opts, options...)
}

type gitlabRepositoryFilesWrapper struct {
	client *gitlab.Client
}

func (w *gitlabRepositoryFilesWrapper) GetFile(projectID string, filePath string, opts *gitlab.GetFileOptions, options ...gitlab.RequestOptionFunc) (*gitlab.File, *gitlab.Response, error) {
	return w.client.RepositoryFiles.GetFile(projectID, filePath, opts, options...)
}

// GitLabAPI groups the narrowed GitLab service interfaces.
type GitLabAPI struct {
	Projects        GitLabProjectsService
	RepositoryFiles GitLabRepositoryFilesService
}

func wrapGitLabClient(c *gitlab.Client) GitLabAPI {
	return GitLabAPI{
		Projects:        &gitlabProjectsWrapper{client: c},
		RepositoryFiles: &gitlabRepositoryFilesWrapper{client: c},
	}
}
