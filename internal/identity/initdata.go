package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/antichaos/antichaos/internal/notify/telegram"
)

// ErrInvalidInitData is returned when web app init data is malformed or its signature does not match.
var ErrInvalidInitData = errors.New("invalid telegram init data")

// InitData is the verified launch payload of the Telegram mini app.
type InitData struct {
	User     telegram.User
	AuthDate time.Time
	QueryID  string
}

// ValidateInitData checks the signature of raw init data against the given key
// and returns its content. The key is the bot token unless a dedicated secret is configured.
func ValidateInitData(raw, key string) (*InitData, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInitData, err)
	}
	received := values.Get("hash")
	if received == "" {
		return nil, fmt.Errorf("%w: missing hash", ErrInvalidInitData)
	}
	if !hmac.Equal([]byte(received), []byte(Sign(values, key))) {
		return nil, fmt.Errorf("%w: hash mismatch", ErrInvalidInitData)
	}

	var data InitData
	if err := json.Unmarshal([]byte(values.Get("user")), &data.User); err != nil {
		return nil, fmt.Errorf("%w: invalid user: %w", ErrInvalidInitData, err)
	}
	if data.User.ID <= 0 {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidInitData)
	}
	if ts, err := strconv.ParseInt(values.Get("auth_date"), 10, 64); err == nil {
		data.AuthDate = time.Unix(ts, 0).UTC()
	}
	data.QueryID = values.Get("query_id")
	return &data, nil
}

// Sign computes the hex signature of init data values, ignoring any hash field.
func Sign(values url.Values, key string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(key))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}
