package credentials

import (
	"context"
	"strings"

	"caseflow/internal/config"
	"caseflow/internal/logger"
	pkgerrors "caseflow/pkg/errors"
)

// Credentials is the bearer material for one jurisdiction's service user.
type Credentials struct {
	AccessToken  string
	ServiceToken string
}

// TokenSource exchanges a configured service user for bearer tokens.
// Token acquisition itself is an external capability; implementations
// wrap whatever identity provider the deployment uses.
type TokenSource interface {
	Tokens(ctx context.Context, username, password string) (Credentials, error)
}

// Provider resolves jurisdiction credentials from the immutable mapping
// built at startup. Unknown jurisdictions are a permanent failure: the
// envelope can never be processed until configuration changes.
type Provider struct {
	users  map[string]config.CredentialConfig
	source TokenSource
	cache  *tokenCache
	logger logger.Logger
}

func NewProvider(cfg config.CredentialsConfig, source TokenSource, log logger.Logger) *Provider {
	users := make(map[string]config.CredentialConfig, len(cfg.Users))
	for jurisdiction, cred := range cfg.Users {
		users[strings.ToLower(jurisdiction)] = cred
	}

	return &Provider{
		users:  users,
		source: source,
		cache:  newTokenCache(cfg.TokenTTL),
		logger: log,
	}
}

// GetCredentials returns cached tokens for the jurisdiction, acquiring
// fresh ones when the cache entry is missing or expired.
func (p *Provider) GetCredentials(ctx context.Context, jurisdiction string) (Credentials, error) {
	key := strings.ToLower(jurisdiction)

	user, ok := p.users[key]
	if !ok {
		return Credentials{}, pkgerrors.ErrNoCredentials.
			WithDetail("message", "no credentials configured for jurisdiction "+jurisdiction).
			WithDetail("jurisdiction", jurisdiction)
	}

	if creds, ok := p.cache.get(key); ok {
		return creds, nil
	}

	creds, err := p.source.Tokens(ctx, user.Username, user.Password)
	if err != nil {
		return Credentials{}, err
	}

	p.cache.put(key, creds)
	p.logger.InfowCtx(ctx, "Acquired credentials", "jurisdiction", key)
	return creds, nil
}

// Invalidate drops the cached tokens for a jurisdiction, forcing fresh
// acquisition on the next lookup. Used after an auth rejection.
func (p *Provider) Invalidate(jurisdiction string) {
	p.cache.remove(strings.ToLower(jurisdiction))
}
