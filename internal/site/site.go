// Package site contains the adapters that talk to the third-party services:
// account adapters for the check-in and rewards tasks and snapshot sources
// for the monitor.
package site

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/qlhub/qlhub/internal/account"
	"github.com/qlhub/qlhub/internal/log"
	"github.com/qlhub/qlhub/internal/runner"
)

// ErrUnsupportedCredential is returned by adapters that cannot log in with
// the credential kind of an account.
var ErrUnsupportedCredential = errors.New("unsupported credential")

// Session is the authenticated state returned by a login.
type Session struct {
	UserID string
	Token  string // sent as bearer token
	Cookie string
}

// Headers returns the authentication headers of the session.
func (s *Session) Headers() map[string]string {
	h := map[string]string{}
	if s.Token != "" {
		h["Authorization"] = "Bearer " + s.Token
	} else if s.Cookie != "" {
		h["Cookie"] = s.Cookie
	}
	return h
}

// ActionResult is the result of the scripted action of a task.
type ActionResult struct {
	Message string
	Payload map[string]any
}

// Adapter performs the site specific steps for one account.
type Adapter interface {
	Login(ctx context.Context, acc account.Account) (*Session, error)
	PerformAction(ctx context.Context, acc account.Account, s *Session) (*ActionResult, error)
}

// Pipeline turns an adapter into a runner pipeline. Every error and panic
// of the adapter becomes a Failure outcome.
func Pipeline(adapter Adapter) runner.Pipeline {
	return func(ctx context.Context, acc account.Account) (o runner.Outcome) {
		logger := log.LoggerFromContext(ctx)
		defer func() {
			if r := recover(); r != nil {
				logger.Error(fmt.Sprintf("adapter panicked: %v", r))
				o = runner.Failed(acc.Remark, fmt.Errorf("处理异常: %v", r))
			}
		}()

		session, err := adapter.Login(ctx, acc)
		if err != nil {
			logger.Error(fmt.Sprintf("login failed: %v", err))
			return runner.Failed(acc.Remark, err)
		}
		if session == nil {
			return runner.Failed(acc.Remark, errors.New("登录失败"))
		}
		logger.Info("login succeeded", slog.String("user", session.UserID))

		res, err := adapter.PerformAction(ctx, acc, session)
		if err != nil {
			logger.Error(fmt.Sprintf("action failed: %v", err))
			return runner.Failed(acc.Remark, err)
		}
		if res == nil {
			res = &ActionResult{}
		}
		return runner.Succeeded(acc.Remark, res.Message, res.Payload)
	}
}
