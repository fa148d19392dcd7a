package secrets

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"go.uber.org/zap"
)

// secretFetcher is the subset of the Key Vault client used here
type secretFetcher interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// VaultClient reads secrets from Azure Key Vault with an optional TTL cache
type VaultClient struct {
	fetcher secretFetcher
	logger  *zap.Logger
	cache   *secretCache
}

// VaultConfig holds configuration for the vault client
type VaultConfig struct {
	VaultName    string
	CacheEnabled bool
	CacheTTL     time.Duration
}

// NewVaultClient authenticates with DefaultAzureCredential (environment,
// managed identity or Azure CLI) and connects to the named vault
func NewVaultClient(cfg *VaultConfig, logger *zap.Logger) (*VaultClient, error) {
	if cfg.VaultName == "" {
		return nil, fmt.Errorf("vault name is required")
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	vaultURL := fmt.Sprintf("https://%s.vault.azure.net/", cfg.VaultName)
	client, err := azsecrets.NewClient(vaultURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
	}

	logger.Info("Azure Key Vault client initialized",
		zap.String("vault_url", vaultURL),
		zap.Bool("cache_enabled", cfg.CacheEnabled),
	)

	return newVaultClient(client, cfg, logger), nil
}

func newVaultClient(fetcher secretFetcher, cfg *VaultConfig, logger *zap.Logger) *VaultClient {
	v := &VaultClient{fetcher: fetcher, logger: logger}
	if cfg.CacheEnabled {
		ttl := cfg.CacheTTL
		if ttl == 0 {
			ttl = 5 * time.Minute
		}
		v.cache = newSecretCache(ttl, time.Now)
	}
	return v
}

// GetSecret returns the latest version of the named secret
func (v *VaultClient) GetSecret(ctx context.Context, secretName string) (string, error) {
	if v.cache != nil {
		if value, ok := v.cache.get(secretName); ok {
			return value, nil
		}
	}

	resp, err := v.fetcher.GetSecret(ctx, secretName, "", nil)
	if err != nil {
		v.logger.Warn("Failed to get secret from Key Vault",
			zap.String("secret_name", secretName),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to get secret '%s': %w", secretName, err)
	}
	if resp.Value == nil {
		return "", fmt.Errorf("secret '%s' has no value", secretName)
	}

	if v.cache != nil {
		v.cache.put(secretName, *resp.Value)
	}
	return *resp.Value, nil
}

// ClearCache drops every cached secret
func (v *VaultClient) ClearCache() {
	if v.cache != nil {
		v.cache.clear()
	}
}

type cachedSecret struct {
	value     string
	expiresAt time.Time
}

// secretCache is safe for concurrent use
type secretCache struct {
	mu      sync.Mutex
	entries map[string]cachedSecret
	ttl     time.Duration
	now     func() time.Time
}

func newSecretCache(ttl time.Duration, now func() time.Time) *secretCache {
	return &secretCache{entries: make(map[string]cachedSecret), ttl: ttl, now: now}
}

func (c *secretCache) get(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[name]
	if !ok {
		return "", false
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, name)
		return "", false
	}
	return entry.value, true
}

func (c *secretCache) put(name, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = cachedSecret{value: value, expiresAt: c.now().Add(c.ttl)}
}

func (c *secretCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cachedSecret)
}
