package config

import (
	"fmt"

	"github.com/vincentbai/shadowtrace/internal/client"
	"github.com/vincentbai/shadowtrace/internal/codec"
	"github.com/vincentbai/shadowtrace/internal/database"
	"github.com/vincentbai/shadowtrace/internal/session"
)

// OpenSessionStore opens the configured session store. The returned
// close function releases it.
func (c *Config) OpenSessionStore() (session.Store, func() error, error) {
	switch c.Session.Driver {
	case DriverSQLite:
		db, err := database.NewDatabase(c.Session.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening session database: %w", err)
		}
		return db, db.Close, nil
	case DriverRedis:
		store := session.DialRedis(c.Session.RedisAddr, c.Session.RedisPassword, c.Session.RedisDB, c.Session.RedisPrefix)
		return store, store.Close, nil
	default:
		return session.NewMemoryStore(), func() error { return nil }, nil
	}
}

// ClientOptions maps the configuration onto client options. Host, Store,
// Logger and the other runtime collaborators are left for the caller.
func (c *Config) ClientOptions() (client.Options, error) {
	encoding, err := codec.ByName(c.Encoding)
	if err != nil {
		return client.Options{}, err
	}
	return client.Options{
		URL:        c.Endpoint,
		Headers:    c.Headers,
		Token:      c.Token,
		ScrubRules: c.Scrub,
		Buffer:     c.Buffer,
		SampleRate: c.SampleRate,
		Transport:  c.Transport,
		Codec:      encoding,
		Compress:   c.Compress,
	}, nil
}
