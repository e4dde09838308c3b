package site

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/qlhub/qlhub/internal/account"
	"github.com/qlhub/qlhub/internal/log"
	"github.com/qlhub/qlhub/internal/utils"
)

const (
	codeOK             = 200
	codeAlreadyDone    = 1001
	codeNothingToClaim = 1002
)

// CheckinAdapter checks in on a site exposing /api/login, /api/userinfo and
// /api/checkin. Password accounts log in, token accounts are treated as
// cookies and validated against the user info endpoint.
type CheckinAdapter struct {
	API *APIClient
	Now func() time.Time
}

func NewCheckinAdapter(api *APIClient, now func() time.Time) *CheckinAdapter {
	return &CheckinAdapter{API: api, Now: now}
}

func (a *CheckinAdapter) timestamp() string {
	return strconv.FormatInt(a.Now().Unix(), 10)
}

func (a *CheckinAdapter) Login(ctx context.Context, acc account.Account) (*Session, error) {
	logger := log.LoggerFromContext(ctx)
	switch cred := acc.Credential.(type) {
	case account.Password:
		logger.Info("logging in with username and password")
		res, err := a.API.Do(ctx, Request{
			Method: http.MethodPost,
			Path:   "/api/login",
			Body: map[string]string{
				"username":  cred.Username,
				"password":  utils.MD5(cred.Password),
				"timestamp": a.timestamp(),
			},
		})
		if err != nil {
			return nil, err
		}
		if res.Code != codeOK {
			return nil, errors.New(res.Text("登录失败"))
		}
		var data struct {
			Token  string `json:"token"`
			UserID any    `json:"userId"`
		}
		if err := res.Decode(&data); err != nil {
			return nil, fmt.Errorf("登录响应无效: %w", err)
		}
		return &Session{Token: data.Token, UserID: idString(data.UserID)}, nil
	case account.Token:
		logger.Info("logging in with cookie")
		res, err := a.API.Do(ctx, Request{
			Path:    "/api/userinfo",
			Headers: map[string]string{"Cookie": cred.Value},
		})
		if err != nil {
			return nil, err
		}
		if res.Code != codeOK {
			return nil, errors.New("Cookie已失效")
		}
		var data struct {
			UserID any `json:"userId"`
		}
		if err := res.Decode(&data); err != nil {
			return nil, fmt.Errorf("用户信息响应无效: %w", err)
		}
		return &Session{Cookie: cred.Value, UserID: idString(data.UserID)}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCredential, acc.Kind())
	}
}

func (a *CheckinAdapter) PerformAction(ctx context.Context, acc account.Account, s *Session) (*ActionResult, error) {
	res, err := a.API.Do(ctx, Request{
		Method:  http.MethodPost,
		Path:    "/api/checkin",
		Headers: s.Headers(),
		Body: map[string]string{
			"userId":    s.UserID,
			"timestamp": a.timestamp(),
		},
	})
	if err != nil {
		return nil, err
	}
	switch res.Code {
	case codeOK:
		var data struct {
			Reward         any `json:"reward"`
			ContinuousDays int `json:"continuousDays"`
		}
		if err := res.Decode(&data); err != nil {
			return nil, fmt.Errorf("签到响应无效: %w", err)
		}
		reward := "未知奖励"
		if data.Reward != nil {
			reward = fmt.Sprint(data.Reward)
		}
		return &ActionResult{
			Message: fmt.Sprintf("签到成功，获得%s，连续签到%d天", reward, data.ContinuousDays),
			Payload: map[string]any{"reward": reward, "days": data.ContinuousDays},
		}, nil
	case codeAlreadyDone:
		log.LoggerFromContext(ctx).Info("already checked in today")
		return &ActionResult{Message: "今日已签到", Payload: map[string]any{"alreadyChecked": true}}, nil
	default:
		return nil, errors.New(res.Text("签到失败"))
	}
}

// idString renders numeric and string ids alike.
func idString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return fmt.Sprint(id)
	}
}
