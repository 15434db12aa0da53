package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"todo/internal/service"
)

// Keys used in the KV.
const (
	TokenKey   = "token"
	UserKey    = "user"
	FiltersKey = "todoFilters"
)

// ErrCorrupt is returned when a persisted record cannot be decoded.
var ErrCorrupt = errors.New("corrupt record")

// FilterSettings is the persisted filter/pagination record.
// Fields absent from the stored JSON keep whatever value the caller
// pre-filled, so older records merge over defaults.
type FilterSettings struct {
	Search   string `json:"search"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
	Page     int    `json:"page"`
}

// Credentials provides typed accessors over a KV.
type Credentials struct {
	kv KV
}

// NewCredentials wraps kv.
func NewCredentials(kv KV) *Credentials {
	return &Credentials{kv: kv}
}

// Tokens loads the persisted token pair. Returns nil, nil if none is stored.
func (c *Credentials) Tokens() (*oauth2.Token, error) {
	var token oauth2.Token
	ok, err := c.load(TokenKey, &token)
	if err != nil || !ok {
		return nil, err
	}
	return &token, nil
}

// SaveTokens persists the token pair.
func (c *Credentials) SaveTokens(token *oauth2.Token) error {
	if token == nil {
		return c.ClearTokens()
	}
	return c.save(TokenKey, token)
}

// ClearTokens removes the token pair and the cached user.
func (c *Credentials) ClearTokens() error {
	return errors.Join(c.kv.Delete(TokenKey), c.kv.Delete(UserKey))
}

// User loads the cached current user. Returns nil, nil if none is stored.
func (c *Credentials) User() (*service.User, error) {
	var user service.User
	ok, err := c.load(UserKey, &user)
	if err != nil || !ok {
		return nil, err
	}
	return &user, nil
}

// SaveUser persists the current user.
func (c *Credentials) SaveUser(user service.User) error {
	return c.save(UserKey, user)
}

// LoadFilters decodes the persisted filters over into.
// Returns false if nothing is stored. A corrupt record is deleted and
// ErrCorrupt returned; into is left untouched in that case.
func (c *Credentials) LoadFilters(into *FilterSettings) (bool, error) {
	tmp := *into
	ok, err := c.load(FiltersKey, &tmp)
	if err != nil {
		if errors.Is(err, ErrCorrupt) {
			_ = c.kv.Delete(FiltersKey)
		}
		return false, err
	}
	if ok {
		*into = tmp
	}
	return ok, nil
}

// SaveFilters persists the full filter record.
func (c *Credentials) SaveFilters(f FilterSettings) error {
	return c.save(FiltersKey, f)
}

func (c *Credentials) load(key string, v any) (bool, error) {
	data, ok, err := c.kv.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return true, nil
}

func (c *Credentials) save(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.kv.Put(key, data)
}
