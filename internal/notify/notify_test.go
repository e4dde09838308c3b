package notify

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	name  string
	err   error
	panic bool
	delay time.Duration
	calls atomic.Int32
	last  Message
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Send(_ context.Context, msg Message) error {
	f.calls.Add(1)
	f.last = msg
	time.Sleep(f.delay)
	if f.panic {
		panic("boom")
	}
	return f.err
}

func TestSendReturnsOnlySuccessfulChannels(t *testing.T) {
	ok1 := &fakeChannel{name: "ok1", delay: 20 * time.Millisecond}
	failing := &fakeChannel{name: "failing", err: errors.New("unreachable")}
	panicking := &fakeChannel{name: "panicking", panic: true}
	ok2 := &fakeChannel{name: "ok2"}

	n := New("", true, ok1, failing, panicking, ok2)
	results := n.Send(context.Background(), "body", "title", nil)

	assert.Equal(t, []Result{{Channel: "ok1", Success: true}, {Channel: "ok2", Success: true}}, results)
	for _, c := range []*fakeChannel{ok1, failing, panicking, ok2} {
		assert.EqualValues(t, 1, c.calls.Load(), c.name)
	}
}

func TestSendAllFailing(t *testing.T) {
	n := New("", true, &fakeChannel{name: "a", err: errors.New("x")}, &fakeChannel{name: "b", panic: true})
	assert.Empty(t, n.Send(context.Background(), "body", "", nil))
}

func TestSendDisabled(t *testing.T) {
	c := &fakeChannel{name: "a"}
	n := New("", false, c)
	assert.Empty(t, n.Send(context.Background(), "body", "", nil))
	assert.EqualValues(t, 0, c.calls.Load())
}

func TestSendWithoutChannels(t *testing.T) {
	assert.Empty(t, New("", true).Send(context.Background(), "body", "", nil))
}

func TestSendDefaultTitle(t *testing.T) {
	c := &fakeChannel{name: "a"}
	New("", true, c).Send(context.Background(), "body", "", map[string]string{"sound": "bell"})
	assert.Equal(t, Message{Title: DefaultTitle, Body: "body", Options: map[string]string{"sound": "bell"}}, c.last)
}

func TestLevelTitles(t *testing.T) {
	c := &fakeChannel{name: "a"}
	n := New("", true, c)
	ctx := context.Background()

	n.SendSuccess(ctx, "签到", "ok")
	assert.Equal(t, "✅ 签到 执行成功", c.last.Title)
	n.SendError(ctx, "签到", "ko")
	assert.Equal(t, "❌ 签到 执行失败", c.last.Title)
	n.SendWarning(ctx, "签到", "meh")
	assert.Equal(t, "⚠️ 签到 执行警告", c.last.Title)
}

func TestNewFromConfigActiveChannels(t *testing.T) {
	cfg := &Config{
		Enabled:    true,
		Timeout:    time.Second,
		Bark:       BarkConfig{Key: "k"},
		ServerChan: ServerChanConfig{Key: "s", Disabled: true},
		DingTalk:   DingTalkConfig{Webhook: "http://example.com"},
		WeCom:      WeComConfig{CorpID: "id"},
		Stdout:     StdoutConfig{Enabled: true},
	}
	n := NewFromConfig(cfg, "")
	assert.Equal(t, []string{"bark", "dingtalk", "stdout"}, n.Channels())
}

func TestStdoutChannel(t *testing.T) {
	buf := &bytes.Buffer{}
	s := &Stdout{out: buf}
	require.NoError(t, s.Send(context.Background(), Message{Title: "t", Body: "<b>b</b>"}))
	assert.Equal(t, "t\n\n<b>b</b>\n", buf.String())
}

func TestFileChannelAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "notify.jsonl")
	f := NewFile(FileConfig{Path: path})
	ctx := context.Background()
	require.NoError(t, f.Send(ctx, Message{Title: "one", Body: "a & b"}))
	require.NoError(t, f.Send(ctx, Message{Title: "two", Body: "<tag>"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"title":"one"`)
	assert.Contains(t, lines[0], `"body":"a & b"`)
	assert.Contains(t, lines[1], `"body":"<tag>"`)
}

func TestErrSendFailedUnwrap(t *testing.T) {
	cause := errors.New("cause")
	err := error(&ErrSendFailed{Channel: "bark", Cause: cause})
	assert.ErrorIs(t, err, cause)
	var target *ErrSendFailed
	require.ErrorAs(t, err, &target)
	assert.Equal(t, "bark", target.Channel)
}
