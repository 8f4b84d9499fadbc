// Package directory is a connection-per-operation client for the LDAP tree
// that holds the canonical credentials. Every logical operation dials, binds,
// works and releases the connection; there is no pool, so latency always
// includes the full connect+bind cost.
package directory

import (
	"net"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog"

	"github.com/civitas-platform/identity-service/internal/domain"
)

type Config struct {
	URL            string // ldap://host:port
	BaseDN         string // e.g. dc=civitas,dc=local
	AdminDN        string
	AdminPassword  string
	ConnectTimeout time.Duration
}

// Conn is the slice of *ldap.Conn the client uses. Tests substitute fakes.
type Conn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Add(req *ldap.AddRequest) error
	Modify(req *ldap.ModifyRequest) error
	Close() error
}

type DialFunc func(cfg Config) (Conn, error)

func dialLDAP(cfg Config) (Conn, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return ldap.DialURL(cfg.URL, ldap.DialWithDialer(&net.Dialer{Timeout: timeout}))
}

type Client struct {
	cfg  Config
	dial DialFunc
	enc  PasswordEncoder
	log  zerolog.Logger
}

func New(cfg Config, log zerolog.Logger) *Client {
	return &Client{
		cfg:  cfg,
		dial: dialLDAP,
		enc:  SSHAEncoder{},
		log:  log.With().Str("component", "directory").Logger(),
	}
}

// WithDial overrides the dialer (tests).
func (c *Client) WithDial(dial DialFunc) *Client {
	if dial != nil {
		c.dial = dial
	}
	return c
}

// WithEncoder substitutes the password scheme for new entries.
func (c *Client) WithEncoder(enc PasswordEncoder) *Client {
	if enc != nil {
		c.enc = enc
	}
	return c
}

// withConn runs fn with a fresh connection and releases it on every exit
// path, including panics. Dial failures map to directory_unavailable.
func (c *Client) withConn(fn func(Conn) error) error {
	conn, err := c.dial(c.cfg)
	if err != nil {
		return domain.ErrDirectoryUnavailable(err)
	}
	defer func() { _ = conn.Close() }()
	return fn(conn)
}

// withAdminConn is withConn plus an admin bind, for operations that write
// or read the whole tree.
func (c *Client) withAdminConn(fn func(Conn) error) error {
	return c.withConn(func(conn Conn) error {
		if err := conn.Bind(c.cfg.AdminDN, c.cfg.AdminPassword); err != nil {
			return domain.ErrDirectoryUnavailable(err)
		}
		return fn(conn)
	})
}
