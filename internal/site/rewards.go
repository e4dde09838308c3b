package site

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/qlhub/qlhub/internal/account"
	"github.com/qlhub/qlhub/internal/log"
	"github.com/qlhub/qlhub/internal/runner"
	"github.com/qlhub/qlhub/internal/utils"
)

const DefaultMaxTasks = 10

// RewardsAdapter completes the daily tasks of a site and claims the
// rewards. Token accounts authenticate with a bearer token, user id
// accounts pass their id with every request.
type RewardsAdapter struct {
	API      *APIClient
	Toolkit  *utils.Toolkit
	MaxTasks int
	// TaskDelayMin and TaskDelayMax bound the random pause between tasks.
	TaskDelayMin time.Duration
	TaskDelayMax time.Duration
}

func NewRewardsAdapter(api *APIClient, tk *utils.Toolkit, maxTasks int) *RewardsAdapter {
	if maxTasks <= 0 {
		maxTasks = DefaultMaxTasks
	}
	return &RewardsAdapter{
		API:          api,
		Toolkit:      tk,
		MaxTasks:     maxTasks,
		TaskDelayMin: time.Second,
		TaskDelayMax: 3 * time.Second,
	}
}

type rewardTask struct {
	ID   any    `json:"id"`
	Name string `json:"name"`
}

// request adds the credential of acc to r.
func (a *RewardsAdapter) request(acc account.Account, r Request) Request {
	switch cred := acc.Credential.(type) {
	case account.Token:
		r.Headers = map[string]string{"Authorization": "Bearer " + cred.Value}
	case account.ID:
		if r.Method == http.MethodPost {
			body, _ := r.Body.(map[string]any)
			if body == nil {
				body = map[string]any{}
			}
			body["userId"] = cred.Value
			r.Body = body
		} else {
			r.Query = url.Values{"userId": {cred.Value}}
		}
	}
	return r
}

func (a *RewardsAdapter) timestamp() string {
	return strconv.FormatInt(a.Toolkit.Now().Unix(), 10)
}

// Login fetches the user info, which doubles as credential check.
func (a *RewardsAdapter) Login(ctx context.Context, acc account.Account) (*Session, error) {
	s := &Session{}
	switch cred := acc.Credential.(type) {
	case account.Token:
		s.Token = cred.Value
	case account.ID:
		s.UserID = cred.Value
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCredential, acc.Kind())
	}

	res, err := a.API.Do(ctx, a.request(acc, Request{Path: "/api/user/info"}))
	if err != nil {
		return nil, err
	}
	if res.Code != codeOK {
		return nil, errors.New(res.Text("获取用户信息失败"))
	}
	var data struct {
		UserID any     `json:"userId"`
		Points float64 `json:"points"`
	}
	if err := res.Decode(&data); err != nil {
		return nil, fmt.Errorf("用户信息响应无效: %w", err)
	}
	if id := idString(data.UserID); id != "" {
		s.UserID = id
	}
	log.LoggerFromContext(ctx).Info(fmt.Sprintf("current points: %s", strconv.FormatFloat(data.Points, 'f', -1, 64)))
	return s, nil
}

func (a *RewardsAdapter) tasks(ctx context.Context, acc account.Account) ([]rewardTask, error) {
	res, err := a.API.Do(ctx, a.request(acc, Request{Path: "/api/tasks"}))
	if err != nil {
		return nil, err
	}
	if res.Code != codeOK {
		return nil, errors.New(res.Text("获取任务列表失败"))
	}
	var data struct {
		Tasks []rewardTask `json:"tasks"`
	}
	if err := res.Decode(&data); err != nil {
		return nil, err
	}
	return data.Tasks, nil
}

// completeTask returns the reward of the task. A task completed earlier
// yields zero.
func (a *RewardsAdapter) completeTask(ctx context.Context, acc account.Account, t rewardTask) (float64, error) {
	res, err := a.API.Do(ctx, a.request(acc, Request{
		Method: http.MethodPost,
		Path:   "/api/task/complete",
		Body:   map[string]any{"taskId": t.ID, "timestamp": a.timestamp()},
	}))
	if err != nil {
		return 0, err
	}
	switch res.Code {
	case codeOK:
		var data struct {
			Reward float64 `json:"reward"`
		}
		if err := res.Decode(&data); err != nil {
			return 0, err
		}
		return data.Reward, nil
	case codeAlreadyDone:
		log.LoggerFromContext(ctx).Info(fmt.Sprintf("task already completed: %s", t.Name))
		return 0, nil
	default:
		return 0, errors.New(res.Text("任务执行失败"))
	}
}

func (a *RewardsAdapter) claim(ctx context.Context, acc account.Account) (float64, error) {
	res, err := a.API.Do(ctx, a.request(acc, Request{
		Method: http.MethodPost,
		Path:   "/api/rewards/claim",
		Body:   map[string]any{"timestamp": a.timestamp()},
	}))
	if err != nil {
		return 0, err
	}
	switch res.Code {
	case codeOK:
		var data struct {
			TotalReward float64 `json:"totalReward"`
		}
		if err := res.Decode(&data); err != nil {
			return 0, err
		}
		return data.TotalReward, nil
	case codeNothingToClaim:
		log.LoggerFromContext(ctx).Info("nothing to claim")
		return 0, nil
	default:
		return 0, errors.New(res.Text("奖励领取失败"))
	}
}

// PerformAction runs at most MaxTasks tasks and claims the rewards. Failing
// tasks or a failing claim do not fail the account.
func (a *RewardsAdapter) PerformAction(ctx context.Context, acc account.Account, _ *Session) (*ActionResult, error) {
	logger := log.LoggerFromContext(ctx)

	tasks, err := a.tasks(ctx, acc)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to list tasks: %v", err))
		tasks = nil
	}
	if len(tasks) > a.MaxTasks {
		tasks = tasks[:a.MaxTasks]
	}

	var reward float64
	completed, failed := 0, 0
	for i, t := range tasks {
		logger.Info(fmt.Sprintf("running task %s", t.Name))
		r, err := a.completeTask(ctx, acc, t)
		if err != nil {
			logger.Error(fmt.Sprintf("task %s failed: %v", t.Name, err))
			failed++
		} else {
			completed++
			reward += r
		}
		if i < len(tasks)-1 {
			if err := a.Toolkit.RandomWait(ctx, a.TaskDelayMin, a.TaskDelayMax); err != nil {
				return nil, err
			}
		}
	}

	claimed, err := a.claim(ctx, acc)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to claim rewards: %v", err))
	}
	reward += claimed

	msg := fmt.Sprintf("获得奖励 %s", strconv.FormatFloat(reward, 'f', -1, 64))
	if completed > 0 {
		msg += fmt.Sprintf(" (完成任务 %d个)", completed)
	}
	return &ActionResult{
		Message: msg,
		Payload: map[string]any{"reward": reward, "completedTasks": completed, "failedTasks": failed},
	}, nil
}

// TotalRewards is the extra report line of the rewards task.
func TotalRewards(r *runner.RunResult) []string {
	var total float64
	for _, o := range r.Outcomes {
		if v, ok := o.Payload["reward"].(float64); ok {
			total += v
		}
	}
	return []string{"🎁 总奖励: " + strconv.FormatFloat(total, 'f', -1, 64)}
}
