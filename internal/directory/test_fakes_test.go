package directory

import (
	"strings"
	"sync"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog"
)

/*
fakeConn simulates one LDAP connection over an in-memory tree.
*/

type fakeEntry struct {
	dn    string
	attrs map[string][]string
}

type fakeConn struct {
	mu sync.Mutex

	adminDN   string
	adminPass string
	// dn -> password accepted by a simple bind
	passwords map[string]string
	// search base -> entries; a base absent from the map answers
	// noSuchObject when listed in missingBases
	entriesByBase map[string][]fakeEntry
	missingBases  map[string]bool

	// injected errors
	addErr    error
	modifyErr error
	searchErr error

	// recorded calls
	binds    []string
	adds     []*ldap.AddRequest
	modifies []*ldap.ModifyRequest
	closed   bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		adminDN:       "cn=admin,dc=test,dc=local",
		adminPass:     "adminpw",
		passwords:     map[string]string{},
		entriesByBase: map[string][]fakeEntry{},
		missingBases:  map[string]bool{},
	}
}

func (f *fakeConn) Bind(username, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.binds = append(f.binds, username)
	if username == f.adminDN && password == f.adminPass {
		return nil
	}
	if pw, ok := f.passwords[username]; ok && pw == password {
		return nil
	}
	return ldap.NewError(ldap.LDAPResultInvalidCredentials, nil)
}

func (f *fakeConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if f.missingBases[req.BaseDN] {
		return nil, ldap.NewError(ldap.LDAPResultNoSuchObject, nil)
	}

	res := &ldap.SearchResult{}
	for _, fe := range f.entriesByBase[req.BaseDN] {
		if !matchesLoginFilter(req.Filter, fe) {
			continue
		}
		entry := &ldap.Entry{DN: fe.dn}
		for name, vals := range fe.attrs {
			entry.Attributes = append(entry.Attributes, &ldap.EntryAttribute{Name: name, Values: vals})
		}
		res.Entries = append(res.Entries, entry)
	}
	return res, nil
}

// matchesLoginFilter understands only the (|(uid=x)(mail=x)) shape the
// client emits; anything else matches everything.
func matchesLoginFilter(filter string, fe fakeEntry) bool {
	if !strings.HasPrefix(filter, "(|(uid=") {
		return true
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(filter, "(|(uid="), "))")
	login, _, _ := strings.Cut(inner, ")(mail=")
	for _, v := range fe.attrs["uid"] {
		if v == login {
			return true
		}
	}
	for _, v := range fe.attrs["mail"] {
		if v == login {
			return true
		}
	}
	return false
}

func (f *fakeConn) Add(req *ldap.AddRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.adds = append(f.adds, req)
	return f.addErr
}

func (f *fakeConn) Modify(req *ldap.ModifyRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.modifies = append(f.modifies, req)
	return f.modifyErr
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func newClientForTest(conn *fakeConn) *Client {
	cfg := Config{
		URL:           "ldap://unused",
		BaseDN:        "dc=test,dc=local",
		AdminDN:       conn.adminDN,
		AdminPassword: conn.adminPass,
	}
	return New(cfg, zerolog.Nop()).WithDial(func(Config) (Conn, error) {
		return conn, nil
	})
}
