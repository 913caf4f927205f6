package session

import (
	"context"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/pos/pkg/store"
)

// Authenticator signs users in against the order store.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*store.LoginResult, error)
}

// Device is the display's own session, used for background store calls
// that have no operator behind them.
type Device struct {
	auth     Authenticator
	username string
	pin      string
	ttl      time.Duration
	logger   apt.Logger

	mu      sync.RWMutex
	current *Session
}

func NewDevice(auth Authenticator, username, pin string, ttl time.Duration, logger apt.Logger) *Device {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Device{
		auth:     auth,
		username: username,
		pin:      pin,
		ttl:      ttl,
		logger:   logger,
	}
}

// Start signs the device in. Missing credentials leave it anonymous.
func (d *Device) Start(ctx context.Context) error {
	if d.username == "" || d.pin == "" {
		d.logger.Info("no device credentials configured, store calls run anonymous")
		return nil
	}

	res, err := d.auth.Login(ctx, d.username, d.pin)
	if err != nil {
		d.logger.Error("device login failed, store calls run anonymous", "username", d.username, "error", err)
		return nil
	}

	d.mu.Lock()
	d.current = New(res, d.ttl)
	d.mu.Unlock()

	d.logger.Info("device signed in", "username", res.Username, "role", res.Role)
	return nil
}

func (d *Device) Stop(ctx context.Context) error {
	d.mu.Lock()
	d.current = nil
	d.mu.Unlock()
	return nil
}

func (d *Device) Session() *Session {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.current
}

// TokenSource prefers the operator session in ctx and falls back to the device token.
func (d *Device) TokenSource() store.TokenSource {
	return func(ctx context.Context) string {
		if token := TokenFromContext(ctx); token != "" {
			return token
		}
		if s := d.Session(); s != nil && !s.Expired(time.Now()) {
			return s.AccessToken
		}
		return ""
	}
}
