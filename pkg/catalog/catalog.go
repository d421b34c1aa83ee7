// Package catalog serves services declared in the configuration file. It
// stands in for the dashboard API when running against a local host, reading
// configuration files from disk or from a git hosting provider.
package catalog

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/greg-hellings/servicedash/pkg/config"
	"github.com/greg-hellings/servicedash/pkg/model"
	"github.com/greg-hellings/servicedash/pkg/repository"
)

var (
	// ErrServiceNotFound is returned for unknown service IDs.
	ErrServiceNotFound = errors.New("service not found")
	// ErrIndexOutOfRange is returned for config indices outside the list.
	ErrIndexOutOfRange = errors.New("config index out of range")
)

const unknownTime = "Unknown"

// RepositoryFactory builds a repository client for a provider.
type RepositoryFactory func(provider string, cfg repository.Config) (repository.Client, error)

// Option configures a Catalog.
type Option func(*Catalog)

// WithRepositoryFactory replaces repository.NewClient.
func WithRepositoryFactory(f RepositoryFactory) Option {
	return func(c *Catalog) { c.newClient = f }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) { c.logger = l }
}

// Catalog is a static service list built from config.
type Catalog struct {
	cfg       *config.Config
	newClient RepositoryFactory
	logger    *slog.Logger

	mu      sync.Mutex
	clients map[string]repository.Client
}

// New returns a Catalog over cfg.Services.
func New(cfg *config.Config, opts ...Option) *Catalog {
	c := &Catalog{
		cfg:       cfg,
		newClient: repository.NewClient,
		logger:    slog.Default(),
		clients:   make(map[string]repository.Client),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateID derives the stable service ID from its name: the first six
// bytes of the name's MD5 digest in hex.
func GenerateID(name string) string {
	sum := md5.Sum([]byte(name))
	return fmt.Sprintf("%x", sum[:6])
}

// ListServices builds every configured service. Configuration files are
// listed without content unless the entry embeds it.
func (c *Catalog) ListServices(_ context.Context) (*model.ServiceList, error) {
	services := make([]model.Service, 0, len(c.cfg.Services))
	for _, sc := range c.cfg.Services {
		services = append(services, buildService(sc))
	}
	return model.NewServiceList(services), nil
}

// GetService returns the service with the given ID.
func (c *Catalog) GetService(_ context.Context, id string) (*model.Service, error) {
	sc, err := c.lookup(id)
	if err != nil {
		return nil, err
	}
	svc := buildService(*sc)
	return &svc, nil
}

// FetchConfigFile loads configuration file index of service id.
func (c *Catalog) FetchConfigFile(ctx context.Context, id string, index int) (model.ConfigFile, error) {
	sc, err := c.lookup(id)
	if err != nil {
		return model.ConfigFile{}, err
	}
	if index < 0 || index >= len(sc.Configs) {
		return model.ConfigFile{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}

	src := sc.Configs[index]
	file := describe(src)
	switch {
	case src.Content != "":
		return file, nil
	case src.Remote():
		content, err := c.fetchRemote(ctx, src)
		if err != nil {
			return model.ConfigFile{}, err
		}
		file.Content = content
	default:
		data, err := os.ReadFile(src.Path)
		if err != nil {
			return model.ConfigFile{}, fmt.Errorf("failed to read config file: %w", err)
		}
		file.Content = string(data)
	}
	c.logger.Debug("config file fetched", "service", id, "index", index, "bytes", len(file.Content))
	return file, nil
}

func (c *Catalog) lookup(id string) (*config.ServiceConfig, error) {
	for i := range c.cfg.Services {
		if GenerateID(c.cfg.Services[i].Name) == id {
			return &c.cfg.Services[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, id)
}

func (c *Catalog) fetchRemote(ctx context.Context, src config.ConfigSource) (string, error) {
	client, err := c.client(src.Provider)
	if err != nil {
		return "", err
	}
	content, err := client.GetFileContent(ctx, src.Owner, src.Repository, src.Ref, src.Path)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s/%s:%s: %w", src.Owner, src.Repository, src.Path, err)
	}
	return content, nil
}

// client returns the cached client for provider, creating it on first use.
func (c *Catalog) client(provider string) (repository.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.clients[provider]; ok {
		return cl, nil
	}

	token := c.cfg.ProviderToken(provider)
	rc := repository.Config{Token: token, BaseURL: c.cfg.Providers[provider].BaseURL}
	cl, err := c.newClient(provider, rc)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", provider, err)
	}
	c.logger.Debug("repository client created", "provider", provider, "token", config.RedactToken(token))
	c.clients[provider] = cl
	return cl, nil
}

func buildService(sc config.ServiceConfig) model.Service {
	svc := model.Service{
		ID:          GenerateID(sc.Name),
		Name:        sc.Name,
		Status:      model.Status(sc.Status),
		Port:        sc.Port,
		URL:         sc.URL,
		Uptime:      sc.Uptime,
		CPUUsage:    sc.CPUUsage,
		MemoryUsage: sc.MemoryUsage,
		Host:        sc.Host,
		Configs:     make([]model.ConfigFile, 0, len(sc.Configs)),
	}
	for _, src := range sc.Configs {
		svc.Configs = append(svc.Configs, describe(src))
	}
	return svc
}

func describe(src config.ConfigSource) model.ConfigFile {
	typ := model.ConfigType(src.Type)
	if typ == "" {
		typ = model.DetectConfigType(src.Path)
	}
	return model.ConfigFile{
		Type:       typ,
		Path:       src.Path,
		Content:    src.Content,
		LastEdited: lastEdited(src),
	}
}

func lastEdited(src config.ConfigSource) string {
	if src.Remote() || src.Content != "" {
		return unknownTime
	}
	info, err := os.Stat(src.Path)
	if err != nil {
		return unknownTime
	}
	return info.ModTime().Format("2006-01-02 15:04")
}
