package runner

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/qlhub/qlhub/internal/utils"
)

// Status is the result of one account pipeline.
type Status int

const (
	Success Status = iota + 1
	Failure
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is what a pipeline reports for one account. Message is set on
// success, Error on failure. Payload carries adapter specific details for
// the report, for example the reward of a rewards run.
type Outcome struct {
	Account string
	Status  Status
	Message string
	Payload map[string]any
	Error   string
}

func Succeeded(account, message string, payload map[string]any) Outcome {
	return Outcome{Account: account, Status: Success, Message: message, Payload: payload}
}

func Failed(account string, err error) Outcome {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Outcome{Account: account, Status: Failure, Error: msg}
}

// RunResult aggregates the outcomes of a run. Succeeded + Failed always
// equals the number of outcomes.
type RunResult struct {
	Total     int
	Succeeded int
	Failed    int
	Outcomes  []Outcome
}

func (r *RunResult) record(o Outcome) error {
	switch o.Status {
	case Success:
		r.Succeeded++
	case Failure:
		r.Failed++
	default:
		return fmt.Errorf("%w: outcome of %s has invalid %s", ErrBookkeeping, o.Account, o.Status)
	}
	r.Outcomes = append(r.Outcomes, o)
	if r.Succeeded+r.Failed != len(r.Outcomes) || len(r.Outcomes) > r.Total {
		return fmt.Errorf("%w: %d succeeded, %d failed, %d outcomes of %d accounts", ErrBookkeeping, r.Succeeded, r.Failed, len(r.Outcomes), r.Total)
	}
	return nil
}

// Level classifies a finished run for notification purposes.
type Level int

const (
	LevelSuccess Level = iota
	LevelWarning
	LevelError
)

// Level is LevelSuccess when every account succeeded, LevelWarning when
// some did and LevelError when none did.
func (r *RunResult) Level() Level {
	switch {
	case r.Total > 0 && r.Succeeded == r.Total:
		return LevelSuccess
	case r.Succeeded > 0:
		return LevelWarning
	default:
		return LevelError
	}
}

// Report renders the run the way it is sent to the notification channels.
// extra lines are added below the counters.
func (r *RunResult) Report(name string, tk *utils.Toolkit, extra ...string) string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "📊 %s 执行结果\n\n", name)
	fmt.Fprintf(b, "🎯 总账号数: %d\n", r.Total)
	fmt.Fprintf(b, "✅ 成功: %d\n", r.Succeeded)
	fmt.Fprintf(b, "❌ 失败: %d\n", r.Failed)
	for _, l := range extra {
		fmt.Fprintln(b, l)
	}
	b.WriteString("\n")
	for i, o := range r.Outcomes {
		fmt.Fprintf(b, "%d. %s: ", i+1, o.Account)
		if o.Status == Success {
			fmt.Fprintf(b, "✅ %s\n", o.Message)
		} else {
			fmt.Fprintf(b, "❌ %s\n", o.Error)
		}
	}
	fmt.Fprintf(b, "\n⏰ 执行时间: %s", tk.Timestamp())
	return b.String()
}

// PrintSummary writes the outcomes as a table.
func (r *RunResult) PrintSummary(w io.Writer) error {
	table := tablewriter.NewWriter(w)
	table.Header("Account", "Status", "Details")
	for _, o := range r.Outcomes {
		details := o.Message
		if o.Status == Failure {
			details = o.Error
		}
		if err := table.Append([]string{o.Account, o.Status.String(), utils.ShortenString(details, 60)}); err != nil {
			return err
		}
	}
	table.Footer(fmt.Sprintf("%d accounts", r.Total), fmt.Sprintf("%d ok", r.Succeeded), fmt.Sprintf("%d failed", r.Failed))
	return table.Render()
}
