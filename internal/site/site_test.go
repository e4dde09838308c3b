package site

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/qlhub/qlhub/internal/account"
	"github.com/qlhub/qlhub/internal/runner"
	"github.com/qlhub/qlhub/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

type call struct {
	method string
	path   string
	query  string
	header http.Header
	body   map[string]any
}

// apiServer answers every path from routes and records the calls.
func apiServer(t *testing.T, routes map[string]any) (*APIClient, *[]call) {
	t.Helper()
	var mu sync.Mutex
	calls := &[]call{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{}
		if r.Method == http.MethodPost {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		c := call{r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Clone(), body}
		mu.Lock()
		*calls = append(*calls, c)
		mu.Unlock()
		res, found := routes[r.URL.Path]
		if !found {
			http.NotFound(w, r)
			return
		}
		if f, isFunc := res.(func(call) any); isFunc {
			res = f(c)
		}
		_ = json.NewEncoder(w).Encode(res)
	}))
	t.Cleanup(srv.Close)
	return NewAPIClient(srv.URL, "", time.Second), calls
}

func ok(data any) map[string]any {
	return map[string]any{"code": 200, "message": "ok", "data": data}
}

func TestCheckinWithPassword(t *testing.T) {
	api, calls := apiServer(t, map[string]any{
		"/api/login":   ok(map[string]any{"token": "tok", "userId": 42}),
		"/api/checkin": ok(map[string]any{"reward": "10积分", "continuousDays": 3}),
	})
	acc := account.Account{Remark: "a", Credential: account.Password{Username: "u", Password: "secret"}}

	o := Pipeline(NewCheckinAdapter(api, func() time.Time { return now }))(context.Background(), acc)
	require.Equal(t, runner.Success, o.Status, o.Error)
	assert.Equal(t, "签到成功，获得10积分，连续签到3天", o.Message)

	require.Len(t, *calls, 2)
	login := (*calls)[0]
	assert.Equal(t, utils.MD5("secret"), login.body["password"])
	assert.Equal(t, "1740816000", login.body["timestamp"])
	checkin := (*calls)[1]
	assert.Equal(t, "Bearer tok", checkin.header.Get("Authorization"))
	assert.Equal(t, "42", checkin.body["userId"])
}

func TestCheckinWithCookie(t *testing.T) {
	api, calls := apiServer(t, map[string]any{
		"/api/userinfo": ok(map[string]any{"userId": "u1"}),
		"/api/checkin":  map[string]any{"code": 1001, "message": "already"},
	})
	acc := account.Account{Remark: "a", Credential: account.Token{Value: "sid=1"}}

	o := Pipeline(NewCheckinAdapter(api, func() time.Time { return now }))(context.Background(), acc)
	require.Equal(t, runner.Success, o.Status)
	assert.Equal(t, "今日已签到", o.Message)
	assert.Equal(t, true, o.Payload["alreadyChecked"])
	for _, c := range *calls {
		assert.Equal(t, "sid=1", c.header.Get("Cookie"))
	}
}

func TestCheckinExpiredCookie(t *testing.T) {
	api, _ := apiServer(t, map[string]any{
		"/api/userinfo": map[string]any{"code": 401},
	})
	acc := account.Account{Remark: "a", Credential: account.Token{Value: "sid=1"}}

	o := Pipeline(NewCheckinAdapter(api, time.Now))(context.Background(), acc)
	assert.Equal(t, runner.Failure, o.Status)
	assert.Equal(t, "Cookie已失效", o.Error)
}

func TestCheckinRejectsUserIDs(t *testing.T) {
	api, calls := apiServer(t, nil)
	acc := account.Account{Remark: "a", Credential: account.ID{Value: "1"}}

	_, err := NewCheckinAdapter(api, time.Now).Login(context.Background(), acc)
	assert.ErrorIs(t, err, ErrUnsupportedCredential)
	assert.Empty(t, *calls)
}

func TestCheckinHTTPError(t *testing.T) {
	api, _ := apiServer(t, map[string]any{})
	acc := account.Account{Remark: "a", Credential: account.Password{Username: "u", Password: "p"}}

	o := Pipeline(NewCheckinAdapter(api, time.Now))(context.Background(), acc)
	assert.Equal(t, runner.Failure, o.Status)
	assert.Equal(t, "HTTP 404: Not Found", o.Error)
}

func TestRewardsWithToken(t *testing.T) {
	tasks := []map[string]any{}
	for i := 1; i <= 12; i++ {
		tasks = append(tasks, map[string]any{"id": i, "name": "task"})
	}
	api, calls := apiServer(t, map[string]any{
		"/api/user/info": ok(map[string]any{"userId": 7, "points": 100}),
		"/api/tasks":     ok(map[string]any{"tasks": tasks}),
		"/api/task/complete": func(c call) any {
			switch c.body["taskId"] {
			case float64(2):
				return map[string]any{"code": 1001}
			case float64(3):
				return map[string]any{"code": 500, "message": "boom"}
			}
			return ok(map[string]any{"reward": 1.5})
		},
		"/api/rewards/claim": ok(map[string]any{"totalReward": 5}),
	})
	tk, rec := utils.NewRecordingToolkit(now)
	acc := account.Account{Remark: "a", Credential: account.Token{Value: "tok"}}

	o := Pipeline(NewRewardsAdapter(api, tk, 0))(context.Background(), acc)
	require.Equal(t, runner.Success, o.Status, o.Error)

	// 10 tasks: 8 paying 1.5, one already done, one failing, plus the claim
	assert.Equal(t, "获得奖励 17 (完成任务 9个)", o.Message)
	assert.Equal(t, 17.0, o.Payload["reward"])
	assert.Equal(t, 9, o.Payload["completedTasks"])
	assert.Equal(t, 1, o.Payload["failedTasks"])
	assert.Len(t, rec.Sleeps, 9)
	for _, s := range rec.Sleeps {
		assert.GreaterOrEqual(t, s, time.Second)
		assert.LessOrEqual(t, s, 3*time.Second)
	}
	for _, c := range *calls {
		assert.Equal(t, "Bearer tok", c.header.Get("Authorization"))
	}
}

func TestRewardsWithUserID(t *testing.T) {
	api, calls := apiServer(t, map[string]any{
		"/api/user/info":     ok(map[string]any{"userId": "u9"}),
		"/api/tasks":         ok(map[string]any{"tasks": []any{}}),
		"/api/rewards/claim": map[string]any{"code": 1002},
	})
	tk, _ := utils.NewRecordingToolkit(now)
	acc := account.Account{Remark: "a", Credential: account.ID{Value: "u9"}}

	o := Pipeline(NewRewardsAdapter(api, tk, 3))(context.Background(), acc)
	require.Equal(t, runner.Success, o.Status, o.Error)
	assert.Equal(t, "获得奖励 0", o.Message)

	require.Len(t, *calls, 3)
	assert.Equal(t, "userId=u9", (*calls)[0].query)
	assert.Equal(t, "userId=u9", (*calls)[1].query)
	assert.Equal(t, "u9", (*calls)[2].body["userId"])
}

func TestRewardsRejectsPasswords(t *testing.T) {
	tk, _ := utils.NewRecordingToolkit(now)
	api, _ := apiServer(t, nil)
	acc := account.Account{Remark: "a", Credential: account.Password{Username: "u", Password: "p"}}

	_, err := NewRewardsAdapter(api, tk, 0).Login(context.Background(), acc)
	assert.ErrorIs(t, err, ErrUnsupportedCredential)
}

func TestTotalRewards(t *testing.T) {
	r := &runner.RunResult{Outcomes: []runner.Outcome{
		runner.Succeeded("a", "", map[string]any{"reward": 1.5}),
		runner.Failed("b", errors.New("x")),
		runner.Succeeded("c", "", map[string]any{"reward": 2.0}),
	}}
	assert.Equal(t, []string{"🎁 总奖励: 3.5"}, TotalRewards(r))
}

type panickingAdapter struct{}

func (panickingAdapter) Login(context.Context, account.Account) (*Session, error) {
	return &Session{}, nil
}

func (panickingAdapter) PerformAction(context.Context, account.Account, *Session) (*ActionResult, error) {
	panic("nil map")
}

type nilSessionAdapter struct{ panickingAdapter }

func (nilSessionAdapter) Login(context.Context, account.Account) (*Session, error) {
	return nil, nil
}

func TestPipelineRecoversPanics(t *testing.T) {
	o := Pipeline(panickingAdapter{})(context.Background(), account.Account{Remark: "a"})
	assert.Equal(t, runner.Failure, o.Status)
	assert.Equal(t, "处理异常: nil map", o.Error)
}

func TestPipelineNilSession(t *testing.T) {
	o := Pipeline(nilSessionAdapter{})(context.Background(), account.Account{Remark: "a"})
	assert.Equal(t, runner.Failure, o.Status)
	assert.Equal(t, "登录失败", o.Error)
}

func TestSessionHeaders(t *testing.T) {
	assert.Equal(t, map[string]string{"Authorization": "Bearer t"}, (&Session{Token: "t", Cookie: "c"}).Headers())
	assert.Equal(t, map[string]string{"Cookie": "c"}, (&Session{Cookie: "c"}).Headers())
	assert.Empty(t, (&Session{}).Headers())
}
