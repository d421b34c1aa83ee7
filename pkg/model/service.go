// Package model defines the data shapes shared by the dashboard clients, the
// static catalog and the configuration inspector. JSON tags match the
// dashboard REST API.
package model

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Status is the lifecycle state reported for a service.
type Status string

const (
	// StatusRunning indicates the service is up.
	StatusRunning Status = "RUNNING"
	// StatusStopped indicates the service is not running.
	StatusStopped Status = "STOPPED"
	// StatusError indicates the backend could not determine a healthy state.
	StatusError Status = "ERROR"
	// StatusMaintenance indicates the service is intentionally offline.
	StatusMaintenance Status = "MAINTENANCE"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusRunning, StatusStopped, StatusError, StatusMaintenance:
		return true
	}
	return false
}

// ConfigType tags a configuration file for display and analysis prompts.
type ConfigType string

const (
	// ConfigYAML is a YAML document (docker-compose, k8s manifests, ...).
	ConfigYAML ConfigType = "YAML"
	// ConfigDockerfile is a Dockerfile.
	ConfigDockerfile ConfigType = "DOCKERFILE"
	// ConfigJSON is a JSON document.
	ConfigJSON ConfigType = "JSON"
	// ConfigINI is an INI style file (.ini, .conf, .cfg).
	ConfigINI ConfigType = "INI"
)

// Valid reports whether t is one of the closed set of config types.
func (t ConfigType) Valid() bool {
	switch t {
	case ConfigYAML, ConfigDockerfile, ConfigJSON, ConfigINI:
		return true
	}
	return false
}

// ConfigFile is one configuration file attached to a service. Content is
// empty until the file has been loaded.
type ConfigFile struct {
	Type       ConfigType `json:"type"`
	Path       string     `json:"path"`
	Content    string     `json:"content,omitempty"`
	LastEdited string     `json:"lastEdited"`
}

// HasContent reports whether the file carries loaded, non-empty content.
func (c ConfigFile) HasContent() bool {
	return len(c.Content) > 0
}

// Name returns the last path element, e.g. "docker-compose.yml".
func (c ConfigFile) Name() string {
	if c.Path == "" {
		return "config"
	}
	return filepath.Base(c.Path)
}

// Service represents a monitored service as returned by the service list.
type Service struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Status      Status       `json:"status"`
	Port        int          `json:"port"`
	URL         string       `json:"url"`
	Configs     []ConfigFile `json:"configs"`
	Uptime      string       `json:"uptime"`
	CPUUsage    float64      `json:"cpuUsage"`    // percent
	MemoryUsage float64      `json:"memoryUsage"` // MB
	Host        string       `json:"host,omitempty"`
}

// Endpoint returns the "url:port" display string.
func (s Service) Endpoint() string {
	if s.Port == 0 {
		return s.URL
	}
	return fmt.Sprintf("%s:%d", s.URL, s.Port)
}

// Remote reports whether the service came from a federated host.
func (s Service) Remote() bool {
	return s.Host != "" && s.Host != "local"
}

// Clone returns a deep copy so callers can hold a service without sharing
// the Configs backing array.
func (s Service) Clone() Service {
	cp := s
	if s.Configs != nil {
		cp.Configs = append([]ConfigFile(nil), s.Configs...)
	}
	return cp
}

// ServiceList is the payload of the service list endpoint.
type ServiceList struct {
	Services []Service `json:"services"`
	Total    int       `json:"total"`
	Running  int       `json:"running"`
}

// NewServiceList builds a list and derives the totals from the services.
func NewServiceList(services []Service) *ServiceList {
	running := 0
	for _, svc := range services {
		if svc.Status == StatusRunning {
			running++
		}
	}
	if services == nil {
		services = []Service{}
	}
	return &ServiceList{Services: services, Total: len(services), Running: running}
}

// Find returns the service with the given id.
func (l *ServiceList) Find(id string) (Service, bool) {
	for _, svc := range l.Services {
		if svc.ID == id {
			return svc, true
		}
	}
	return Service{}, false
}

// HostStats represents system resource usage of the dashboard host.
type HostStats struct {
	CPU     CPUStats     `json:"cpu"`
	Memory  MemoryStats  `json:"memory"`
	Storage StorageStats `json:"storage"`
}

// CPUStats holds processor usage.
type CPUStats struct {
	Usage   float64 `json:"usage"`
	Cores   int     `json:"cores"`
	Threads int     `json:"threads"`
}

// MemoryStats holds memory usage in GB.
type MemoryStats struct {
	UsedGB  float64 `json:"usedGB"`
	TotalGB float64 `json:"totalGB"`
}

// StorageStats holds root filesystem usage in GB.
type StorageStats struct {
	UsedGB  float64 `json:"usedGB"`
	TotalGB float64 `json:"totalGB"`
}

// DetectConfigType determines the config file type from its extension,
// defaulting to YAML.
func DetectConfigType(path string) ConfigType {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return ConfigYAML
	case ".json":
		return ConfigJSON
	case ".ini", ".conf", ".cfg":
		return ConfigINI
	case ".dockerfile":
		return ConfigDockerfile
	}
	if strings.Contains(strings.ToLower(filepath.Base(path)), "dockerfile") {
		return ConfigDockerfile
	}
	return ConfigYAML
}
