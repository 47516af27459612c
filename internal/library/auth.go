package library

import (
	"context"
	"fmt"

	"github.com/mangashelf/mangashelf/internal/credentials"
	"github.com/mangashelf/mangashelf/internal/errors"
)

// Login signs in to a provider with the stored credentials of its main id.
func (l *Library) Login(ctx context.Context, providerID string) (bool, error) {
	p, info, err := l.providerInfo(providerID)
	if err != nil {
		return false, err
	}
	if !info.HasLogin {
		return false, errors.Unsupported(providerID + " has no login")
	}
	cred, err := l.credentials.Get(info.MainID)
	if err != nil {
		return false, fmt.Errorf("load credentials: %w", err)
	}
	ok, err := p.Login(ctx, cred.Username, cred.Password, cred.Address)
	if err != nil {
		return false, errors.Wrapf(err, errors.CodeAuth, "login to %s", providerID)
	}
	l.logger.Info("provider login", "provider", providerID, "success", ok)
	return ok, nil
}

// SaveCredentials stores credentials for a provider and logs in with them.
// They are kept only when the login succeeds.
func (l *Library) SaveCredentials(ctx context.Context, providerID string, cred credentials.Credential) (bool, error) {
	p, info, err := l.providerInfo(providerID)
	if err != nil {
		return false, err
	}
	if !info.HasLogin {
		return false, errors.Unsupported(providerID + " has no login")
	}
	ok, err := p.Login(ctx, cred.Username, cred.Password, cred.Address)
	if err != nil {
		return false, errors.Wrapf(err, errors.CodeAuth, "login to %s", providerID)
	}
	if !ok {
		return false, nil
	}
	if err := l.credentials.Store(info.MainID, cred); err != nil {
		return true, err
	}
	return true, nil
}
