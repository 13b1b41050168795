// Package identity resolves the user behind an API request.
//
// Mini app users are identified by signed Telegram init data. Everybody else is
// a guest: a user with a negative synthetic telegram id that is found again by
// its session token or, failing that, by its network address.
package identity

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/antichaos/antichaos/internal/database"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Store is the part of the database the resolver reads and writes.
type Store interface {
	CreateUser(ctx context.Context, user *database.User) error
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*database.User, error)
	GetUserByGuestToken(ctx context.Context, token string) (*database.User, error)
	GetLatestGuestByIP(ctx context.Context, ip string) (*database.User, error)
}

// Request carries the identifying parts of an API request.
type Request struct {
	// InitData is the raw Telegram web app init data, if any.
	InitData string
	// GuestToken is the token sent explicitly by the client.
	GuestToken string
	// SessionToken is the guest token remembered in the session cookie.
	SessionToken string
	// ClientIP is the network address of the caller.
	ClientIP string
}

// AdminSet holds the telegram ids with administrator privileges.
type AdminSet map[int64]struct{}

// NewAdminSet builds an AdminSet from a list of telegram ids.
func NewAdminSet(ids []int64) AdminSet {
	set := make(AdminSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// IsAdmin reports whether the telegram id belongs to an administrator.
func (a AdminSet) IsAdmin(telegramID int64) bool {
	if telegramID <= 0 {
		return false
	}
	_, ok := a[telegramID]
	return ok
}

// Resolver maps requests to users, creating them on first sight.
type Resolver struct {
	store     Store
	secretKey string
}

// NewResolver creates a resolver that validates init data with secretKey.
func NewResolver(store Store, secretKey string) *Resolver {
	return &Resolver{store: store, secretKey: secretKey}
}

// Resolve returns the user behind the request.
// Invalid init data is rejected with ErrInvalidInitData instead of falling back to a guest.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*database.User, error) {
	if req.InitData != "" {
		data, err := ValidateInitData(req.InitData, r.secretKey)
		if err != nil {
			return nil, err
		}
		return r.registered(ctx, data)
	}

	for _, token := range []string{req.GuestToken, req.SessionToken} {
		if _, err := uuid.Parse(token); err != nil {
			continue
		}
		user, err := r.store.GetUserByGuestToken(ctx, token)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("failed to get guest by token: %w", err)
		}
	}

	if req.ClientIP != "" {
		user, err := r.store.GetLatestGuestByIP(ctx, req.ClientIP)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("failed to get guest by ip: %w", err)
		}
	}

	return r.newGuest(ctx, req.ClientIP)
}

func (r *Resolver) registered(ctx context.Context, data *InitData) (*database.User, error) {
	user, err := r.store.GetUserByTelegramID(ctx, data.User.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user = &database.User{
		TelegramID: data.User.ID,
		Username:   data.User.Username,
		FirstName:  data.User.FirstName,
		LastName:   data.User.LastName,
	}
	if err := r.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	log.Info("Registered new user", "user", user.ID, "telegram_id", user.TelegramID)
	return user, nil
}

func (r *Resolver) newGuest(ctx context.Context, ip string) (*database.User, error) {
	token := uuid.New()
	tokenString := token.String()
	user := &database.User{
		TelegramID: guestTelegramID(token),
		GuestIP:    ip,
		GuestToken: &tokenString,
	}
	if err := r.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create guest: %w", err)
	}
	log.Info("Created guest user", "user", user.ID, "ip", ip)
	return user, nil
}

// guestTelegramID derives a negative id from the random bits of the token.
func guestTelegramID(token uuid.UUID) int64 {
	n := binary.BigEndian.Uint64(token[:8]) >> 12 // keep the value within the exact float range of js clients
	return -int64(n) - 1
}

// ClientIP returns the address of the caller, preferring proxy headers.
func ClientIP(r *http.Request) string {
	if ip := firstAddr(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if ip := firstAddr(r.Header.Get("X-Forwarded-For")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

func firstAddr(header string) string {
	first, _, _ := strings.Cut(header, ",")
	return strings.TrimSpace(first)
}
