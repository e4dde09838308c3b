package monitor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/qlhub/qlhub/internal/history"
	"github.com/qlhub/qlhub/internal/log"
	"github.com/qlhub/qlhub/internal/notify"
	"github.com/qlhub/qlhub/internal/runner"
	"github.com/qlhub/qlhub/internal/utils"
)

const NoItemsMessage = "未获取到有效监控项目，请检查环境变量配置"

// SnapshotSource observes the current state of an item.
type SnapshotSource interface {
	Fetch(ctx context.Context, item Item) (history.Snapshot, error)
}

// Notifier is the part of notify.Notifier the monitor needs.
type Notifier interface {
	Send(ctx context.Context, message, title string, opts map[string]string) []notify.Result
	SendError(ctx context.Context, script, message string) []notify.Result
	SendWarning(ctx context.Context, script, message string) []notify.Result
}

// ItemResult is the outcome of checking one item.
type ItemResult struct {
	Item     Item
	Snapshot history.Snapshot
	Changes  []Change
	Err      error
}

type Result struct {
	Total    int
	Checked  int
	Changed  int
	Notified int
	Failed   int
	Items    []ItemResult
}

// Monitor checks all items of a run sequentially.
type Monitor struct {
	Name        string
	Source      SnapshotSource
	Store       history.Store
	Detector    *Detector
	Notifier    Notifier
	Toolkit     *utils.Toolkit
	RandomStart runner.RandomStart
	// DelayMin and DelayMax bound the random pause between two items.
	DelayMin time.Duration
	DelayMax time.Duration
	// Summary receives a table of the checked items when set.
	Summary io.Writer
}

func (m *Monitor) Run(ctx context.Context, items []Item) (*Result, error) {
	logger := log.LoggerFromContext(ctx).With(slog.String("task", m.Name))
	ctx = log.ContextWithLogger(ctx, logger)
	tk := m.Toolkit
	result := &Result{Total: len(items), Items: []ItemResult{}}

	if len(items) == 0 {
		logger.Error("no valid monitor items, nothing to do")
		m.Notifier.SendError(ctx, m.Name, NoItemsMessage)
		return result, nil
	}
	logger.Info(fmt.Sprintf("starting %s with %d item(s)", m.Name, len(items)))
	if _, err := tk.RandomStartDelay(ctx, m.RandomStart.Enabled, m.RandomStart.Min, m.RandomStart.Max); err != nil {
		return nil, err
	}

	doc := m.Store.Load(ctx)
	for i, item := range items {
		ir := m.check(ctx, item, doc)
		if ir.Err != nil {
			result.Failed++
		} else {
			result.Checked++
			if len(ir.Changes) > 0 {
				result.Changed++
			}
		}
		result.Items = append(result.Items, ir)

		if i < len(items)-1 {
			if err := tk.RandomWait(ctx, m.DelayMin, m.DelayMax); err != nil {
				return result, err
			}
		}
	}

	if err := m.Store.Save(ctx, doc); err != nil {
		logger.Error(fmt.Sprintf("error while saving history: %v", err))
	}

	m.notifyChanges(ctx, result)

	report := m.Report(result)
	logger.Info("\n" + report)
	if m.Summary != nil {
		if err := PrintSummary(m.Summary, result); err != nil {
			logger.Warn(fmt.Sprintf("failed to print summary: %v", err))
		}
	}
	if result.Failed > 0 {
		m.Notifier.SendWarning(ctx, m.Name, report)
	} else if result.Changed > 0 {
		logger.Info("monitor run finished, changes have been notified")
	}
	return result, nil
}

func (m *Monitor) check(ctx context.Context, item Item, doc *history.Document) ItemResult {
	logger := log.LoggerFromContext(ctx).With(slog.String("item", item.Name))
	logger.Info(fmt.Sprintf("checking %s", item.Locator))

	snap, err := m.fetch(log.ContextWithLogger(ctx, logger), item)
	if err != nil {
		logger.Error(fmt.Sprintf("check failed: %v", err))
		return ItemResult{Item: item, Err: err}
	}
	if snap.Timestamp.IsZero() {
		snap.Timestamp = history.At(m.Toolkit.Now())
	}
	logger.Info(fmt.Sprintf("current price: ¥%s, stock: %s", formatPrice(snap.Price), snap.Stock))

	h := doc.Item(item.ID, item.Name, item.Locator)
	h.Name = item.Name
	changes := m.Detector.Detect(item, snap, h)
	for _, c := range changes {
		logger.Info(strings.ReplaceAll(c.Message, "\n", " "), slog.Bool("important", c.Important))
	}
	return ItemResult{Item: item, Snapshot: snap, Changes: changes}
}

func (m *Monitor) fetch(ctx context.Context, item Item) (snap history.Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("snapshot source panicked: %v", r)
		}
	}()
	return m.Source.Fetch(ctx, item)
}

type changeGroup struct {
	kind   Kind
	title  string
	header string
}

// Groups are notified in this order, one notification per non-empty group.
var changeGroups = []changeGroup{
	{TargetPriceReached, "🎯 目标价格达成", "🎯 目标价格提醒"},
	{PriceChange, "💰 价格变化通知", "💰 价格变化提醒"},
	{StockChange, "📦 库存变化通知", "📦 库存变化提醒"},
	{StatusChange, "🔄 状态变化通知", "🔄 状态变化提醒"},
}

// notifyChanges sends the important changes grouped by kind.
func (m *Monitor) notifyChanges(ctx context.Context, result *Result) {
	logger := log.LoggerFromContext(ctx)
	messages := map[Kind][]string{}
	for _, ir := range result.Items {
		for _, c := range ir.Changes {
			if c.Important {
				messages[c.Kind] = append(messages[c.Kind], c.Message)
			}
		}
	}
	if len(messages) == 0 {
		logger.Info("no important changes, nothing to notify")
		return
	}
	for _, g := range changeGroups {
		msgs := messages[g.kind]
		if len(msgs) == 0 {
			continue
		}
		body := fmt.Sprintf("%s\n\n%s\n\n⏰ %s", g.header, strings.Join(msgs, "\n\n"), m.Toolkit.Timestamp())
		m.Notifier.Send(ctx, body, fmt.Sprintf("%s | %s", g.title, m.Name), nil)
		result.Notified++
	}
}

// Report renders the run summary.
func (m *Monitor) Report(result *Result) string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "📊 %s 执行结果\n\n", m.Name)
	fmt.Fprintf(b, "🎯 总监控项目: %d\n", result.Total)
	fmt.Fprintf(b, "✅ 检查成功: %d\n", result.Checked)
	fmt.Fprintf(b, "🔄 发现变化: %d\n", result.Changed)
	fmt.Fprintf(b, "📨 发送通知: %d\n", result.Notified)
	fmt.Fprintf(b, "❌ 检查失败: %d\n\n", result.Failed)
	if len(result.Items) > 0 {
		b.WriteString("📋 详细结果:\n")
		for i, ir := range result.Items {
			fmt.Fprintf(b, "%d. %s: ", i+1, ir.Item.Name)
			if ir.Err != nil {
				fmt.Fprintf(b, "❌ %v\n", ir.Err)
				continue
			}
			fmt.Fprintf(b, "✅ 价格: ¥%s, 库存: %s", formatPrice(ir.Snapshot.Price), ir.Snapshot.Stock)
			if len(ir.Changes) > 0 {
				fmt.Fprintf(b, " (%d个变化)", len(ir.Changes))
			}
			b.WriteString("\n")
		}
	}
	fmt.Fprintf(b, "\n⏰ 执行时间: %s", m.Toolkit.Timestamp())
	return b.String()
}

// PrintSummary writes the checked items as a table.
func PrintSummary(w io.Writer, result *Result) error {
	table := tablewriter.NewWriter(w)
	table.Header("Item", "Price", "Stock", "Status", "Changes")
	for _, ir := range result.Items {
		row := []string{ir.Item.Name, "-", "-", "error", utils.ShortenString(fmt.Sprintf("%v", ir.Err), 40)}
		if ir.Err == nil {
			kinds := []string{}
			for _, c := range ir.Changes {
				k := string(c.Kind)
				if c.Important {
					k += "!"
				}
				kinds = append(kinds, k)
			}
			row = []string{ir.Item.Name, formatPrice(ir.Snapshot.Price), ir.Snapshot.Stock, ir.Snapshot.Status, strings.Join(kinds, " ")}
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	table.Footer(fmt.Sprintf("%d items", result.Total), "", fmt.Sprintf("%d checked", result.Checked), fmt.Sprintf("%d failed", result.Failed), fmt.Sprintf("%d changed", result.Changed))
	return table.Render()
}
