/*
qlhub runs scheduled check-in, rewards and price monitor tasks for many
accounts and sends the results to the configured notification channels.

Have a look at the README.md for more information.
*/
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/qlhub/qlhub/internal/account"
	"github.com/qlhub/qlhub/internal/config"
	"github.com/qlhub/qlhub/internal/fetch"
	"github.com/qlhub/qlhub/internal/history"
	"github.com/qlhub/qlhub/internal/log"
	"github.com/qlhub/qlhub/internal/monitor"
	"github.com/qlhub/qlhub/internal/notify"
	"github.com/qlhub/qlhub/internal/runner"
	"github.com/qlhub/qlhub/internal/site"
	"github.com/qlhub/qlhub/internal/utils"
)

var version = "dev"

const name = "qlhub"

type VersionFlag string

func (v VersionFlag) Decode(_ *kong.DecodeContext) error { return nil }
func (v VersionFlag) IsBool() bool                       { return true }
func (v VersionFlag) BeforeApply(app *kong.Kong, vars kong.Vars) error {
	fmt.Println(vars["version"])
	app.Exit(0)
	return nil
}

type cli struct {
	Version VersionFlag `short:"v" long:"version" help:"Print the version and exit."`
	Debug   bool        `short:"d" long:"debug" help:"Set log level to 'debug' and store fetched pages for debugging."`

	Checkin CheckinCmd `cmd:"" help:"Check in with every configured account."`
	Rewards RewardsCmd `cmd:"" help:"Complete the daily tasks and claim the rewards of every configured account."`
	Monitor MonitorCmd `cmd:"" help:"Check the monitored items for price, stock and status changes."`
	List    ListCmd    `cmd:"" help:"List the configured accounts, monitor items and notification channels."`
}

type TaskFlags struct {
	Config  string `short:"c" default:"./config.yml" help:"The location of the configuration file. Environment variables are used if it does not exist." type:"path"`
	NoDelay bool   `help:"Skip the random start delay."`
	Summary bool   `help:"Print a summary table after the run."`
}

// env is everything a task needs besides its own configuration.
type env struct {
	cfg      *config.Config
	toolkit  *utils.Toolkit
	notifier *notify.Notifier
}

func (f *TaskFlags) randomStart(cfg *config.Config) runner.RandomStart {
	rs := cfg.RandomStart
	if f.NoDelay {
		rs.Enabled = false
	}
	return rs
}

func (f *TaskFlags) summary() *os.File {
	if f.Summary {
		return os.Stdout
	}
	return nil
}

// runTask loads the configuration and runs task. Errors and panics reaching
// this point are defects: they are logged and notified.
func runTask(flags *TaskFlags, script string, task func(ctx context.Context, e *env) error) (err error) {
	cfg, err := config.NewConfig(flags.Config)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	if cfg.Debug && !log.Debug {
		log.Debug = true
		log.InitializeDefaultLogger()
	}

	logger := slog.Default().With(slog.String("run", uuid.NewString()))
	ctx := log.ContextWithLogger(context.Background(), logger)
	e := &env{
		cfg:      cfg,
		toolkit:  utils.NewToolkit(),
		notifier: notify.NewFromConfig(&cfg.Notify, notify.DefaultTitle),
	}
	logger.Debug(fmt.Sprintf("notification channels: %v", e.notifier.Channels()))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: %v", script, r)
		}
		if err != nil {
			logger.Error(fmt.Sprintf("%s failed: %v", script, err))
			e.notifier.SendError(ctx, script, err.Error())
		}
	}()
	return task(ctx, e)
}

func newTask(script string, flags *TaskFlags, e *env, delay time.Duration) *runner.Task {
	r := runner.New(e.toolkit)
	if delay > 0 {
		r.Delay = delay
	}
	t := &runner.Task{
		Name:        script,
		Runner:      r,
		Notifier:    e.notifier,
		RandomStart: flags.randomStart(e.cfg),
	}
	if w := flags.summary(); w != nil {
		t.Summary = w
	}
	return t
}

type CheckinCmd struct {
	TaskFlags `embed:""`
}

func checkinSource(cfg *config.Config) account.Source {
	return account.Source{
		Primary:  account.Spec{Env: "CHECKIN_ACCOUNTS", Raw: cfg.Checkin.Accounts, Kind: account.PasswordPair},
		Fallback: &account.Spec{Env: "CHECKIN_COOKIES", Raw: cfg.Checkin.Cookies, Kind: account.SessionToken},
	}
}

func (c *CheckinCmd) Run() error {
	const script = "签到"
	return runTask(&c.TaskFlags, script, func(ctx context.Context, e *env) error {
		api := site.NewAPIClient(e.cfg.Checkin.BaseURL, "", e.cfg.Timeout)
		adapter := site.NewCheckinAdapter(api, e.toolkit.Now)
		task := newTask(script, &c.TaskFlags, e, e.cfg.Checkin.Delay)
		_, err := task.Execute(ctx, checkinSource(e.cfg).Accounts(ctx), site.Pipeline(adapter))
		return err
	})
}

type RewardsCmd struct {
	TaskFlags `embed:""`
}

func rewardsSource(cfg *config.Config) account.Source {
	return account.Source{
		Primary:  account.Spec{Env: "REWARDS_TOKENS", Raw: cfg.Rewards.Tokens, Kind: account.SessionToken},
		Fallback: &account.Spec{Env: "REWARDS_USERIDS", Raw: cfg.Rewards.UserIDs, Kind: account.UserID},
	}
}

func (c *RewardsCmd) Run() error {
	const script = "奖励领取"
	return runTask(&c.TaskFlags, script, func(ctx context.Context, e *env) error {
		api := site.NewAPIClient(e.cfg.Rewards.BaseURL, "", e.cfg.Timeout)
		adapter := site.NewRewardsAdapter(api, e.toolkit, e.cfg.Rewards.MaxTasks)
		task := newTask(script, &c.TaskFlags, e, e.cfg.Rewards.Delay)
		task.Extra = site.TotalRewards
		_, err := task.Execute(ctx, rewardsSource(e.cfg).Accounts(ctx), site.Pipeline(adapter))
		return err
	})
}

type MonitorCmd struct {
	TaskFlags `embed:""`
}

func snapshotSource(cfg *config.Config, f fetch.Fetcher) monitor.SnapshotSource {
	if cfg.Monitor.Source == config.JD_SOURCE_TYPE {
		return site.NewJDSource(f)
	}
	return &site.HTMLSource{Fetcher: f, Selectors: cfg.Monitor.Selectors}
}

func historyPath(cfg *config.Config) string {
	file := "monitor_history.json"
	if cfg.Monitor.Source == config.JD_SOURCE_TYPE {
		file = "jd_price_history.json"
	}
	if cfg.History.Type == history.SQLITE_STORE_TYPE {
		file = "monitor_history.db"
	}
	return filepath.Join("data", file)
}

func (c *MonitorCmd) Run() error {
	const script = "商品监控"
	return runTask(&c.TaskFlags, script, func(ctx context.Context, e *env) error {
		cfg := e.cfg
		items := monitor.LoadItems(ctx, cfg.Monitor.List, cfg.Monitor.Items, cfg.Monitor.Threshold)

		if log.Debug && cfg.Fetcher.DebugDir == "" {
			cfg.Fetcher.DebugDir = filepath.Join("data", "debug")
		}
		fetcher, err := fetch.NewFetcher(&cfg.Fetcher)
		if err != nil {
			return err
		}
		defer fetcher.Cancel()

		store, err := history.NewStore(ctx, &cfg.History, historyPath(cfg))
		if err != nil {
			return err
		}
		defer store.Close()

		detector := monitor.NewDetector(e.toolkit.Now)
		detector.Cooldown = cfg.Monitor.Cooldown
		if cfg.Monitor.HistoryCap > 0 {
			detector.HistoryCap = cfg.Monitor.HistoryCap
		}
		m := &monitor.Monitor{
			Name:        script,
			Source:      snapshotSource(cfg, fetcher),
			Store:       store,
			Detector:    detector,
			Notifier:    e.notifier,
			Toolkit:     e.toolkit,
			RandomStart: c.randomStart(cfg),
			DelayMin:    cfg.Monitor.DelayMin,
			DelayMax:    cfg.Monitor.DelayMax,
		}
		if w := c.summary(); w != nil {
			m.Summary = w
		}
		_, err = m.Run(ctx, items)
		return err
	})
}

type ListCmd struct {
	Config string `short:"c" default:"./config.yml" help:"The location of the configuration file." type:"path"`
}

func (lc *ListCmd) Run() error {
	cfg, err := config.NewConfig(lc.Config)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	ctx := context.Background()

	fmt.Println("checkin accounts:")
	for _, acc := range checkinSource(cfg).Accounts(ctx) {
		fmt.Printf("  %s\n", acc)
	}
	fmt.Println("rewards accounts:")
	for _, acc := range rewardsSource(cfg).Accounts(ctx) {
		fmt.Printf("  %s\n", acc)
	}
	fmt.Println("monitor items:")
	for _, item := range monitor.LoadItems(ctx, cfg.Monitor.List, cfg.Monitor.Items, cfg.Monitor.Threshold) {
		fmt.Printf("  %s (%s) %s\n", item.Name, item.ID[:8], utils.ShortenString(item.Locator, 60))
	}
	fmt.Println("notification channels:")
	for _, ch := range notify.NewFromConfig(&cfg.Notify, notify.DefaultTitle).Channels() {
		fmt.Printf("  %s\n", ch)
	}
	return nil
}

func getVersion() string {
	buildInfo, ok := debug.ReadBuildInfo()
	if ok {
		if buildInfo.Main.Version != "" && buildInfo.Main.Version != "(devel)" {
			return buildInfo.Main.Version
		}
	}
	return version
}

func main() {
	cli := cli{
		Version: VersionFlag(getVersion()),
	}
	ctx := kong.Parse(&cli,
		kong.Name(name),
		kong.Description("Scheduled multi-account task runner."),
		kong.UsageOnError(),
		kong.Vars{
			"version": string(cli.Version),
		})
	log.Debug = cli.Debug
	log.InitializeDefaultLogger()
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
