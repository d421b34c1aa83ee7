// Package repository fetches configuration files stored in git hosting
// providers (GitHub, GitLab). Provider clients implement the common Client
// interface so the static catalog can load a remote file the same way it
// reads a local one.
package repository

import (
	"context"
	"errors"
)

// ErrNotAFile is returned when a path resolves to a directory or other
// non-file object.
var ErrNotAFile = errors.New("path is not a file")

// Info contains metadata about a repository.
type Info struct {
	ID            string // Repository ID
	Name          string // Repository name
	FullName      string // Full name (owner/repo)
	Description   string // Repository description
	DefaultBranch string // Default branch name
	URL           string // Web URL to the repository
}

// Client defines the operations the catalog needs from a git provider.
type Client interface {
	// GetRepositoryInfo retrieves metadata about a repository.
	GetRepositoryInfo(ctx context.Context, owner, repo string) (*Info, error)

	// GetFileContent retrieves the decoded content of a file. An empty ref
	// uses the default branch.
	GetFileContent(ctx context.Context, owner, repo, ref, path string) (string, error)
}

// Config holds common configuration for repository clients
type Config struct {
	// Token is the authentication token for accessing private repositories
	// For GitHub: Personal Access Token
	// For GitLab: Personal Access Token or OAuth token
	Token string

	// BaseURL is the base URL for the API endpoint
	// For GitHub Enterprise or GitLab self-hosted instances
	// Leave empty for public GitHub (github.com) or GitLab (gitlab.com)
	BaseURL string
}
