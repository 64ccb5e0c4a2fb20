package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsxzhou1114/blog-comment/internal/validation"
)

const page = `<html><body>
<div id="comments" hidden>
	<h3><span id="comment-count">1</span> comments</h3>
	<div id="reply-banner" hidden></div>
	<div id="comments-list" class="comments-list">
		<div class="comment" id="com-10">
			<div class="comment-content"><p>root</p></div>
			<div id="editor-10-edit" hidden>
				<textarea id="comment-10-edit-content">root</textarea>
				<button id="comment-10-edit-submit"></button>
				<h6><span id="comment-10-edit-len">0</span>/16 characters - Markdown is supported</h6>
			</div>
			<div id="editor-10-reply" hidden>
				<textarea id="comment-10-post-content"></textarea>
				<button id="comment-10-post-submit"></button>
				<h6><span id="comment-10-post-len">0</span>/16 characters - Markdown is supported</h6>
			</div>
			<div id="comment-10-replies" class="comments-list"></div>
		</div>
	</div>
	<textarea id="comment-null-post-content"></textarea>
	<button id="comment-null-post-submit"></button>
	<h6><span id="comment-null-post-len">0</span>/32 characters - Markdown is supported</h6>
</div>
</body></html>`

type createCall struct {
	articleID int64
	replyTo   *int64
	content   string
}

type fakeTransport struct {
	mu          sync.Mutex
	nextID      int64
	creates     []createCall
	edits       map[int64]string
	deletes     []int64
	fetches     int
	createErr   error
	editErr     error
	deleteErr   error
	fragmentErr error
	block       chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{nextID: 100, edits: make(map[int64]string)}
}

func (f *fakeTransport) wait(ctx context.Context) error {
	if f.block == nil {
		return nil
	}
	select {
	case <-f.block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeTransport) Create(ctx context.Context, articleID int64, replyTo *int64, content string) (int64, error) {
	if err := f.wait(ctx); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.creates = append(f.creates, createCall{articleID, replyTo, content})
	f.nextID++
	return f.nextID, nil
}

func (f *fakeTransport) Fragment(_ context.Context, id int64) (Fragment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fragmentErr != nil {
		return Fragment{}, f.fragmentErr
	}
	body := "fresh"
	if c, ok := f.edits[id]; ok {
		body = c
	}
	return Fragment{HTML: fmt.Sprintf(`<div class="comment" id="com-%d"><p>%s</p></div>`, id, body)}, nil
}

func (f *fakeTransport) Edit(_ context.Context, id int64, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return f.editErr
	}
	f.edits[id] = content
	return nil
}

func (f *fakeTransport) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletes = append(f.deletes, id)
	return nil
}

func (f *fakeTransport) Preview(_ context.Context, source string) (string, error) {
	return "<p>" + source + "</p>", nil
}

type fixture struct {
	engine  *Engine
	api     *fakeTransport
	view    *DocumentView
	storage *MemoryStorage
}

func newFixture(t *testing.T, cfg Config, confirm Confirmer) *fixture {
	t.Helper()
	view, err := NewDocumentView(page)
	require.NoError(t, err)
	api := newFakeTransport()
	storage := NewMemoryStorage()
	if cfg.ArticleID == 0 {
		cfg.ArticleID = 1
	}
	cfg.PersistPanel = true
	e := NewEngine(cfg, api, view, storage, confirm)
	require.NoError(t, e.Load(""))
	return &fixture{engine: e, api: api, view: view, storage: storage}
}

var bottom = Editor{Row: NullRow, Action: "post"}

func TestEngine_LoadRestoresPanel(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	assert.False(t, f.view.PanelVisible(), "没有保存过时默认收起")
	assert.Equal(t, 1, f.engine.State().Count)

	require.NoError(t, f.engine.TogglePanel())
	v, _, _ := f.storage.Get(PanelKey)
	assert.Equal(t, "true", v)
	assert.True(t, f.view.PanelVisible())

	require.NoError(t, f.engine.TogglePanel())
	v, _, _ = f.storage.Get(PanelKey)
	assert.Equal(t, "false", v)

	// 新页面：锚点强制展开，不改写保存的状态
	view, err := NewDocumentView(page)
	require.NoError(t, err)
	e := NewEngine(Config{PersistPanel: true}, f.api, view, f.storage, nil)
	require.NoError(t, e.Load("#com-10"))
	assert.True(t, view.PanelVisible())
	assert.Equal(t, "com-10", view.Highlighted())
	assert.Equal(t, int64(10), e.State().Highlighted)
	v, _, _ = f.storage.Get(PanelKey)
	assert.Equal(t, "false", v)

	require.NoError(t, f.storage.Set(PanelKey, "true"))
	view, err = NewDocumentView(page)
	require.NoError(t, err)
	e = NewEngine(Config{PersistPanel: true}, f.api, view, f.storage, nil)
	require.NoError(t, e.Load("#not-a-comment"))
	assert.True(t, view.PanelVisible())
	assert.Empty(t, view.Highlighted())
}

func TestEngine_EditAndReplyAreExclusive(t *testing.T) {
	f := newFixture(t, Config{}, nil)

	row := f.engine.ToggleEdit(10)
	assert.Equal(t, Editing, row.Mode)
	assert.Equal(t, "root", row.EditDraft, "打开编辑器时以当前内容作为草稿")
	assert.True(t, f.view.EditorVisible("editor-10-edit"))

	row = f.engine.ToggleReply(10)
	assert.Equal(t, Replying, row.Mode)
	assert.False(t, f.view.EditorVisible("editor-10-edit"))
	assert.True(t, f.view.EditorVisible("editor-10-reply"))

	row = f.engine.ToggleEdit(10)
	assert.Equal(t, Editing, row.Mode)
	assert.False(t, f.view.EditorVisible("editor-10-reply"))

	row = f.engine.ToggleEdit(10)
	assert.Equal(t, Viewing, row.Mode)
	assert.False(t, f.view.EditorVisible("editor-10-edit"))
}

func TestEngine_InputCountsBytes(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	reply := Editor{Row: "10", Action: "post"}

	row := f.engine.Input(reply, "héllo")
	assert.True(t, row.CanSubmit)
	assert.Contains(t, f.view.HTML(), `<span id="comment-10-post-len">6</span>`)

	// 16 个字符但有 17 个字节
	row = f.engine.Input(reply, "é123456789012345")
	assert.False(t, row.CanSubmit)
	assert.Contains(t, f.view.HTML(), `id="comment-10-post-submit" disabled=""`)

	row = f.engine.Input(reply, "   ")
	assert.False(t, row.CanSubmit)

	row = f.engine.Input(bottom, "0123456789012345678901234567890")
	assert.True(t, row.CanSubmit, "底部编辑器使用文章上限")
}

func TestEngine_PostTopLevel(t *testing.T) {
	f := newFixture(t, Config{ArticleID: 7}, nil)
	f.engine.Input(bottom, "hello")

	require.NoError(t, f.engine.Post(context.Background(), nil))
	require.Len(t, f.api.creates, 1)
	assert.Equal(t, int64(7), f.api.creates[0].articleID)
	assert.Nil(t, f.api.creates[0].replyTo)
	assert.Equal(t, "hello", f.api.creates[0].content)

	assert.True(t, f.view.Has("com-101"))
	assert.Equal(t, 2, f.view.Count())
	assert.Equal(t, 2, f.engine.State().Count)
	assert.Empty(t, f.engine.State().Rows[NullRow].ReplyDraft)
	assert.False(t, f.engine.State().Rows[NullRow].Pending)
}

func TestEngine_PostReply(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	f.engine.ToggleReply(10)
	f.engine.Input(Editor{Row: "10", Action: "post"}, "yo")

	parent := int64(10)
	require.NoError(t, f.engine.Post(context.Background(), &parent))
	require.Len(t, f.api.creates, 1)
	assert.Equal(t, int64(10), *f.api.creates[0].replyTo)
	assert.Contains(t, f.view.HTML(), `<div id="comment-10-replies" class="comments-list"><div class="comment" id="com-101">`)
	assert.Equal(t, Viewing, f.engine.State().Rows["10"].Mode)
	assert.False(t, f.view.EditorVisible("editor-10-reply"))
}

func TestEngine_PostRejected(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	f.api.createErr = &ServerError{Status: 423, Reason: "comments are locked for this article"}
	f.engine.Input(bottom, "hello")

	err := f.engine.Post(context.Background(), nil)
	assert.Equal(t, 423, StatusOf(err))
	assert.Equal(t, 1, f.view.Count())
	assert.False(t, f.view.Has("com-101"))

	row := f.engine.State().Rows[NullRow]
	assert.Equal(t, "hello", row.ReplyDraft, "失败时保留编辑器内容")
	assert.Equal(t, "comments are locked for this article", row.Error)
	assert.False(t, row.Pending)
	assert.Equal(t, []string{"comments are locked for this article"}, f.view.Notices())
}

func TestEngine_PostValidatesLocally(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	f.engine.Input(bottom, "  ")

	err := f.engine.Post(context.Background(), nil)
	assert.ErrorIs(t, err, validation.ErrEmpty)
	assert.Empty(t, f.api.creates, "本地校验失败时不发请求")
}

func TestEngine_PostFragmentUnavailable(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	f.api.fragmentErr = fmt.Errorf("%w: connection reset", ErrNetwork)
	f.engine.Input(bottom, "hello")

	err := f.engine.Post(context.Background(), nil)
	assert.ErrorIs(t, err, ErrFragmentUnavailable)
	assert.Len(t, f.api.creates, 1)
	assert.Equal(t, fragmentAttempts, f.api.fetches)
	assert.Equal(t, 1, f.view.Count(), "取回失败时计数不变")
	assert.False(t, f.view.Has("com-101"))
	assert.Empty(t, f.engine.State().Rows[NullRow].ReplyDraft)
}

func TestEngine_Edit(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	f.engine.ToggleEdit(10)
	f.engine.Input(Editor{Row: "10", Action: "edit"}, "changed")

	require.NoError(t, f.engine.Edit(context.Background(), 10))
	assert.Contains(t, f.view.HTML(), `<div class="comment" id="com-10"><p>changed</p></div>`)
	assert.False(t, f.view.Has("editor-10-edit"), "整体替换旧片段")
	assert.Equal(t, Viewing, f.engine.State().Rows["10"].Mode)
	assert.Equal(t, 1, f.view.Count())
}

func TestEngine_EditForbiddenKeepsEditor(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	f.api.editErr = &ServerError{Status: 403, Reason: "forbidden"}
	f.engine.ToggleEdit(10)
	f.engine.Input(Editor{Row: "10", Action: "edit"}, "changed")

	err := f.engine.Edit(context.Background(), 10)
	assert.Equal(t, 403, StatusOf(err))

	row := f.engine.State().Rows["10"]
	assert.Equal(t, Editing, row.Mode)
	assert.Equal(t, "changed", row.EditDraft)
	assert.True(t, f.view.EditorVisible("editor-10-edit"))
	assert.Contains(t, f.view.HTML(), "<p>root</p>")
}

func TestEngine_Delete(t *testing.T) {
	confirmed := false
	f := newFixture(t, Config{}, ConfirmFunc(func(id int64) bool { return confirmed }))

	assert.ErrorIs(t, f.engine.Delete(context.Background(), 10), ErrNotConfirmed)
	assert.Empty(t, f.api.deletes)

	confirmed = true
	f.api.deleteErr = &ServerError{Status: 404, Reason: "comment not found"}
	assert.Equal(t, 404, StatusOf(f.engine.Delete(context.Background(), 10)))
	assert.True(t, f.view.Has("com-10"))
	assert.Equal(t, 1, f.view.Count())

	f.api.deleteErr = nil
	require.NoError(t, f.engine.Delete(context.Background(), 10))
	assert.Equal(t, []int64{10}, f.api.deletes)
	assert.False(t, f.view.Has("com-10"))
	assert.Equal(t, 0, f.view.Count())
}

func TestEngine_DeleteWithoutConfirmer(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	assert.ErrorIs(t, f.engine.Delete(context.Background(), 10), ErrNotConfirmed)
}

func TestEngine_OneRequestPerRow(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	f.api.block = make(chan struct{})
	f.engine.Input(bottom, "hello")

	done := make(chan error, 1)
	go func() { done <- f.engine.Post(context.Background(), nil) }()

	require.Eventually(t, func() bool {
		return f.engine.State().Rows[NullRow].Pending
	}, time.Second, time.Millisecond)
	assert.ErrorIs(t, f.engine.Post(context.Background(), nil), ErrBusy)

	close(f.api.block)
	require.NoError(t, <-done)
	assert.Len(t, f.api.creates, 1)
	assert.Equal(t, 2, f.view.Count())
}

func TestEngine_TimeoutIsNetworkFailure(t *testing.T) {
	f := newFixture(t, Config{Timeout: 20 * time.Millisecond}, nil)
	f.api.block = make(chan struct{})
	f.engine.Input(bottom, "hello")

	err := f.engine.Post(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.True(t, errors.Is(err, ErrNetwork))
	assert.Equal(t, "hello", f.engine.State().Rows[NullRow].ReplyDraft)
	assert.False(t, f.engine.State().Rows[NullRow].Pending)
}

func TestEngine_SharedEditor(t *testing.T) {
	f := newFixture(t, Config{EditorMode: Shared}, nil)

	f.engine.ToggleReply(10)
	require.NotNil(t, f.engine.State().ReplyTo)
	assert.Equal(t, int64(10), *f.view.ReplyTarget())

	f.engine.Input(bottom, "threaded")
	require.NoError(t, f.engine.Post(context.Background(), nil))
	require.Len(t, f.api.creates, 1)
	assert.Equal(t, int64(10), *f.api.creates[0].replyTo)
	assert.Nil(t, f.engine.State().ReplyTo, "发表成功后清除回复目标")
	assert.Nil(t, f.view.ReplyTarget())
	assert.Contains(t, f.view.HTML(), `<div id="comment-10-replies" class="comments-list"><div class="comment" id="com-101">`)

	f.engine.SetReply(10)
	f.engine.ToggleReply(10)
	assert.Nil(t, f.engine.State().ReplyTo, "再次点击同一目标取消回复")
}

func TestEngine_Preview(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	html, err := f.engine.Preview(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "<p>x</p>", html)
}
