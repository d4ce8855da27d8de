package ldapsvc

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-retry"

	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/core/auth"
)

var attributes = []string{"dn", "displayName", "mail", "cn"}

// conn is the part of *ldap.Conn used here.
type conn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close() error
}

// Directory authenticates users against LDAP / Active Directory:
// service bind, search of the user entry, then a bind as that user.
type Directory struct {
	conf    core.LDAPConfig
	dial    func(ctx context.Context) (conn, error)
	backoff func() retry.Backoff
	logger  core.Logger
}

var _ auth.DirectoryAuthenticator = (*Directory)(nil)

func NewDirectory(conf core.LDAPConfig, logger core.Logger) *Directory {
	d := &Directory{conf: conf, logger: logger}
	d.dial = func(ctx context.Context) (conn, error) {
		return dialContext(ctx, conf.URL, conf.Timeout)
	}
	d.backoff = func() retry.Backoff {
		b := retry.NewExponential(200 * time.Millisecond)
		b = retry.WithCappedDuration(3*time.Second, b)
		return retry.WithMaxRetries(conf.MaxRetries, b)
	}
	return d
}

// dialContext opens an ldap:// or ldaps:// connection that is abandoned when ctx is done.
func dialContext(ctx context.Context, rawURL string, timeout time.Duration) (*ldap.Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing LDAP URL")
	}
	host, port := u.Hostname(), u.Port()
	dialer := &net.Dialer{Timeout: timeout}

	var nc net.Conn
	switch u.Scheme {
	case "ldap":
		if port == "" {
			port = ldap.DefaultLdapPort
		}
		nc, err = dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	case "ldaps":
		if port == "" {
			port = ldap.DefaultLdapsPort
		}
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}}
		nc, err = tlsDialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	default:
		return nil, errors.Errorf("unsupported LDAP scheme %q", u.Scheme)
	}
	if err != nil {
		return nil, ldap.NewError(ldap.ErrorNetwork, err)
	}
	c := ldap.NewConn(nc, u.Scheme == "ldaps")
	c.Start()
	c.SetTimeout(timeout)
	return c, nil
}

// transient reports errors worth retrying: network failures and busy or unavailable servers.
func transient(err error) bool {
	return ldap.IsErrorAnyOf(errors.Cause(err),
		ldap.ErrorNetwork,
		ldap.LDAPResultBusy,
		ldap.LDAPResultUnavailable,
		ldap.LDAPResultUnwillingToPerform,
		ldap.LDAPResultTimeLimitExceeded,
	)
}

func (d *Directory) Authenticate(ctx context.Context, username, password string) (auth.DirectoryUser, error) {
	if username == "" || password == "" {
		return auth.DirectoryUser{}, auth.ErrInvalidCredentials
	}

	var usr auth.DirectoryUser
	attempt := 0
	err := retry.Do(ctx, d.backoff(), func(ctx context.Context) error {
		attempt++
		var err error
		usr, err = d.authenticate(ctx, username, password)
		if err != nil && transient(err) {
			d.logger.Warn(fmt.Sprintf("ldap: attempt %d failed", attempt), err)
			return retry.RetryableError(err)
		}
		return err
	})
	return usr, err
}

func (d *Directory) authenticate(ctx context.Context, username, password string) (auth.DirectoryUser, error) {
	c, err := d.dial(ctx)
	if err != nil {
		return auth.DirectoryUser{}, errors.Wrap(err, "ldap dial")
	}
	// abort a bind or search in flight when the request goes away
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer func() {
		stop()
		_ = c.Close()
	}()

	if d.conf.BindDN != "" {
		if err = c.Bind(d.conf.BindDN, d.conf.BindPassword); err != nil {
			return auth.DirectoryUser{}, errors.Wrap(err, "ldap service bind")
		}
	}

	req := ldap.NewSearchRequest(
		d.conf.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases,
		2, int(d.conf.Timeout/time.Second), false,
		fmt.Sprintf(d.conf.UserFilter, ldap.EscapeFilter(username)),
		attributes,
		nil,
	)
	res, err := c.Search(req)
	if err != nil {
		return auth.DirectoryUser{}, errors.Wrap(err, "ldap search")
	}
	if len(res.Entries) != 1 {
		return auth.DirectoryUser{}, auth.ErrInvalidCredentials
	}
	entry := res.Entries[0]

	if err = c.Bind(entry.DN, password); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return auth.DirectoryUser{}, auth.ErrInvalidCredentials
		}
		return auth.DirectoryUser{}, errors.Wrap(err, "ldap user bind")
	}

	name := entry.GetAttributeValue("displayName")
	if name == "" {
		name = entry.GetAttributeValue("cn")
	}
	return auth.DirectoryUser{
		DN:          entry.DN,
		DisplayName: name,
		Email:       entry.GetAttributeValue("mail"),
	}, nil
}
