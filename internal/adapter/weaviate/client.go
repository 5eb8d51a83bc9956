package weaviate

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/auth"
)

// ParseURL splits a Weaviate URL such as "https://cluster.weaviate.network"
// into scheme and host. A URL without scheme defaults to https.
func ParseURL(rawURL string) (scheme, host string, err error) {
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("parse weaviate url: %w", err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("parse weaviate url: missing host in %q", rawURL)
	}
	return u.Scheme, u.Host, nil
}

func NewClient(rawURL, apiKey string) (*weaviate.Client, error) {
	scheme, host, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	cfg := weaviate.Config{Host: host, Scheme: scheme}
	if apiKey != "" {
		cfg.AuthConfig = auth.ApiKey{Value: apiKey}
	}
	return weaviate.NewClient(cfg)
}
