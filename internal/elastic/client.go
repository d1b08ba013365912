// Package elastic builds the Elasticsearch client used by the search-index
// query path.
package elastic

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	"scraper_results/internal/config"
	"scraper_results/internal/logger"
)

const pingTimeout = 5 * time.Second

// NewClient creates a client for cfg and verifies the connection.
// A nil transport uses the default HTTP transport.
func NewClient(ctx context.Context, cfg config.SearchConfig, transport http.RoundTripper, log logger.Logger) (*es.Client, error) {
	clientConfig := es.Config{
		Addresses:  []string{normalizeURL(cfg.URL)},
		MaxRetries: cfg.MaxRetries,
		Transport:  transport,
	}
	// Failed requests surface to the caller unless retries are configured.
	if cfg.MaxRetries <= 0 {
		clientConfig.DisableRetry = true
	}
	if cfg.Username != "" {
		clientConfig.Username = cfg.Username
		clientConfig.Password = cfg.Password
	}

	client, err := es.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := Ping(pingCtx, client); err != nil {
		return nil, fmt.Errorf("failed to ping elasticsearch: %w", err)
	}

	log.Info("connected to Elasticsearch",
		logger.String("url", clientConfig.Addresses[0]),
		logger.Bool("retry", !clientConfig.DisableRetry))
	return client, nil
}

func Ping(ctx context.Context, client *es.Client) error {
	res, err := client.Ping(client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("elasticsearch ping failed [%d]: %s", res.StatusCode, string(body))
	}
	return nil
}

func normalizeURL(url string) string {
	if url == "" {
		return config.DefaultSearchURL
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "http://" + url
	}
	return url
}
