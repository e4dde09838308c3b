// Package account parses the account configuration strings of the check-in
// and rewards tasks into typed accounts.
package account

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/qlhub/qlhub/internal/log"
)

// Kind identifies which credential variant an account carries.
type Kind int

const (
	PasswordPair Kind = iota
	SessionToken
	UserID
)

func (k Kind) String() string {
	switch k {
	case PasswordPair:
		return "password"
	case SessionToken:
		return "token"
	case UserID:
		return "userid"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Credential is implemented by Password, Token and ID only.
type Credential interface {
	Kind() Kind
	isCredential()
}

// Password is a username and password pair.
type Password struct {
	Username string
	Password string
}

// Token is an opaque session token or cookie string.
type Token struct {
	Value string
}

// ID is a bare platform user id.
type ID struct {
	Value string
}

func (Password) Kind() Kind { return PasswordPair }
func (Token) Kind() Kind    { return SessionToken }
func (ID) Kind() Kind       { return UserID }

func (Password) isCredential() {}
func (Token) isCredential()    {}
func (ID) isCredential()       {}

// Account is one identity a task runs for.
type Account struct {
	Remark     string
	Credential Credential
}

func (a Account) Kind() Kind {
	return a.Credential.Kind()
}

// String never includes the secret.
func (a Account) String() string {
	return fmt.Sprintf("%s(%s)", a.Remark, a.Kind())
}

const (
	entrySep  = "&"
	remarkSep = "@"
	pairSep   = ":"
)

// DefaultRemark is the label of an entry that has none, index being the
// zero-based position of the entry in the raw configuration string.
func DefaultRemark(index int) string {
	return fmt.Sprintf("账号%d", index+1)
}

// Parse splits raw into accounts of the given kind. The grammar is
// entry(&entry)* with entry := value(@remark)? and, for PasswordPair,
// value := user:pass. Entries without a usable value are dropped.
func Parse(ctx context.Context, raw string, kind Kind) []Account {
	logger := log.LoggerFromContext(ctx)
	accounts := []Account{}
	if raw == "" {
		return accounts
	}
	for i, entry := range strings.Split(raw, entrySep) {
		parts := strings.Split(entry, remarkSep)
		value := parts[0]
		remark := ""
		if len(parts) > 1 {
			remark = parts[1]
		}
		if remark == "" {
			remark = DefaultRemark(i)
		}

		var cred Credential
		switch kind {
		case PasswordPair:
			user, pass, _ := strings.Cut(value, pairSep)
			if user == "" || pass == "" {
				logger.Debug("dropping account entry without username or password", slog.Int("entry", i+1))
				continue
			}
			cred = Password{Username: user, Password: pass}
		case SessionToken:
			if value == "" {
				logger.Debug("dropping empty token entry", slog.Int("entry", i+1))
				continue
			}
			cred = Token{Value: value}
		case UserID:
			if value == "" {
				logger.Debug("dropping empty user id entry", slog.Int("entry", i+1))
				continue
			}
			cred = ID{Value: value}
		default:
			logger.Error(fmt.Sprintf("unknown account kind %s", kind))
			return accounts
		}
		accounts = append(accounts, Account{Remark: remark, Credential: cred})
	}
	return accounts
}

// Spec is one configuration string together with the credential kind it
// holds.
type Spec struct {
	Env  string
	Raw  string
	Kind Kind
}

// Source yields the accounts of a task. The fallback is only consulted when
// the primary yields no account.
type Source struct {
	Primary  Spec
	Fallback *Spec
}

// Accounts returns the parsed accounts in input order.
func (s Source) Accounts(ctx context.Context) []Account {
	logger := log.LoggerFromContext(ctx)
	accounts := Parse(ctx, s.Primary.Raw, s.Primary.Kind)
	if len(accounts) == 0 && s.Fallback != nil {
		logger.Debug(fmt.Sprintf("no accounts in %s, trying %s", s.Primary.Env, s.Fallback.Env))
		accounts = Parse(ctx, s.Fallback.Raw, s.Fallback.Kind)
	}
	if len(accounts) == 0 {
		logger.Error("no valid accounts configured")
		logger.Info(s.usage())
	}
	return accounts
}

func (s Source) usage() string {
	lines := []string{"expected format:"}
	for _, spec := range []*Spec{&s.Primary, s.Fallback} {
		if spec == nil {
			continue
		}
		switch spec.Kind {
		case PasswordPair:
			lines = append(lines, fmt.Sprintf(`%s="用户名:密码@备注&用户名:密码@备注"`, spec.Env))
		case SessionToken:
			lines = append(lines, fmt.Sprintf(`%s="token@备注&token@备注"`, spec.Env))
		case UserID:
			lines = append(lines, fmt.Sprintf(`%s="userid@备注&userid@备注"`, spec.Env))
		}
	}
	return strings.Join(lines, " ")
}
