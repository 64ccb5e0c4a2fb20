package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/avast/retry-go"

	"github.com/nsxzhou1114/blog-comment/internal/validation"
)

// Confirmer 删除前的交互确认
type Confirmer interface {
	Confirm(commentID int64) bool
}

// ConfirmFunc 函数形式的 Confirmer
type ConfirmFunc func(commentID int64) bool

// Confirm 调用函数本身
func (f ConfirmFunc) Confirm(commentID int64) bool { return f(commentID) }

// ListSlot 顶层评论容器
const ListSlot = "comments-list"

// RepliesSlot 回复容器
func RepliesSlot(parentID int64) string {
	return "comment-" + strconv.FormatInt(parentID, 10) + "-replies"
}

// fragmentAttempts 取回片段的尝试次数，只有只读请求会重试
const fragmentAttempts = 2

// Engine 客户端同步状态机。计数与页面只在服务端确认后修改，每行同时只有一个请求
type Engine struct {
	cfg     Config
	api     Transport
	view    View
	storage LocalStorage
	confirm Confirmer

	mu    sync.Mutex
	state State
}

// NewEngine 创建状态机，storage 与 confirm 可以为空
func NewEngine(cfg Config, api Transport, view View, storage LocalStorage, confirm Confirmer) *Engine {
	cfg.defaults()
	return &Engine{
		cfg:     cfg,
		api:     api,
		view:    view,
		storage: storage,
		confirm: confirm,
		state:   State{Rows: make(map[string]*RowState)},
	}
}

// State 当前状态的副本
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone()
}

// Load 页面加载：恢复面板可见性，锚点指向评论时强制展开并标记，不写回存储
func (e *Engine) Load(fragment string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.Count = e.view.Count()
	visible := false
	if e.cfg.PersistPanel && e.storage != nil {
		v, ok, err := e.storage.Get(PanelKey)
		if err != nil {
			return err
		}
		visible = ok && v == "true"
	}
	if id, ok := ParseFragmentID(fragment); ok {
		e.state.Highlighted = id
		visible = true
		e.view.Highlight(FragmentID(id))
	}
	e.state.PanelVisible = visible
	e.view.SetPanelVisible(visible)
	return nil
}

// TogglePanel 切换评论面板并保存
func (e *Engine) TogglePanel() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.PanelVisible = !e.state.PanelVisible
	e.view.SetPanelVisible(e.state.PanelVisible)
	if e.cfg.PersistPanel && e.storage != nil {
		return e.storage.Set(PanelKey, strconv.FormatBool(e.state.PanelVisible))
	}
	return nil
}

func editWrapper(row string) string  { return "editor-" + row + "-edit" }
func replyWrapper(row string) string { return "editor-" + row + "-reply" }

// ToggleEdit 打开或收起评论的编辑器，会收起同一行的回复编辑器
func (e *Engine) ToggleEdit(commentID int64) RowState {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := strconv.FormatInt(commentID, 10)
	row := e.state.row(key)
	if row.Mode == Editing {
		row.Mode = Viewing
		e.view.SetEditorVisible(editWrapper(key), false)
		return *row
	}
	if row.Mode == Replying {
		e.view.SetEditorVisible(replyWrapper(key), false)
	}
	row.Mode = Editing
	ed := Editor{Row: key, Action: "edit"}
	if row.EditDraft == "" {
		row.EditDraft = e.view.EditorContent(ed)
	}
	e.view.SetEditorVisible(editWrapper(key), true)
	e.measure(row, ed, row.EditDraft)
	return *row
}

// ToggleReply 打开或收起回复编辑器。共享编辑器模式下改为设置回复目标
func (e *Engine) ToggleReply(commentID int64) RowState {
	if e.cfg.EditorMode == Shared {
		e.mu.Lock()
		same := e.state.ReplyTo != nil && *e.state.ReplyTo == commentID
		e.mu.Unlock()
		if same {
			e.ClearReply()
		} else {
			e.SetReply(commentID)
		}
		return e.rowState(NullRow)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	key := strconv.FormatInt(commentID, 10)
	row := e.state.row(key)
	if row.Mode == Replying {
		row.Mode = Viewing
		e.view.SetEditorVisible(replyWrapper(key), false)
		return *row
	}
	if row.Mode == Editing {
		e.view.SetEditorVisible(editWrapper(key), false)
	}
	row.Mode = Replying
	e.view.SetEditorVisible(replyWrapper(key), true)
	e.measure(row, Editor{Row: key, Action: "post"}, row.ReplyDraft)
	return *row
}

func (e *Engine) rowState(key string) RowState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.state.row(key)
}

// SetReply 设置共享编辑器的回复目标
func (e *Engine) SetReply(commentID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := commentID
	e.state.ReplyTo = &id
	e.view.ReplyBanner(&id)
}

// ClearReply 清除回复目标
func (e *Engine) ClearReply() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.ReplyTo = nil
	e.view.ReplyBanner(nil)
}

func (e *Engine) limitFor(ed Editor) int {
	if n, ok := e.view.EditorLimit(ed); ok {
		return n
	}
	if ed.Row == NullRow {
		return e.cfg.ArticleLimit
	}
	return e.cfg.CommentLimit
}

// measure 按字节重新计算计数器与提交按钮状态
func (e *Engine) measure(row *RowState, ed Editor, text string) {
	row.CanSubmit = validation.ValidateContent(text, e.limitFor(ed)) == nil
	e.view.SetLength(ed, validation.Length(text), row.CanSubmit)
}

// Input 编辑器内容变化
func (e *Engine) Input(ed Editor, text string) RowState {
	e.mu.Lock()
	defer e.mu.Unlock()

	row := e.state.row(ed.Row)
	if ed.Action == "edit" {
		row.EditDraft = text
	} else {
		row.ReplyDraft = text
	}
	e.measure(row, ed, text)
	return *row
}

// begin 标记该行请求开始，已有请求时返回 ErrBusy
func (e *Engine) begin(key string) (*RowState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	row := e.state.row(key)
	if row.Pending {
		return nil, ErrBusy
	}
	row.Pending = true
	row.Error = ""
	return row, nil
}

// fail 结束请求并展示原因，编辑器保留原内容
func (e *Engine) fail(row *RowState, err error) error {
	if isNetwork(err) && !errors.Is(err, ErrNetwork) {
		err = fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	row.Pending = false
	row.Error = err.Error()
	e.view.Notify(row.Error)
	return err
}

// fetch 取回片段，网络失败时重试一次
func (e *Engine) fetch(ctx context.Context, id int64) (Fragment, error) {
	var frag Fragment
	err := retry.Do(
		func() error {
			var err error
			frag, err = e.api.Fragment(ctx, id)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(fragmentAttempts),
		retry.RetryIf(isNetwork),
		retry.LastErrorOnly(true),
	)
	return frag, err
}

// Post 发表评论，parent 为空时发表顶层评论。共享编辑器模式下使用回复目标
func (e *Engine) Post(ctx context.Context, parent *int64) error {
	e.mu.Lock()
	ed := Editor{Row: RowKey(parent), Action: "post"}
	if e.cfg.EditorMode == Shared {
		ed.Row = NullRow
		if parent == nil && e.state.ReplyTo != nil {
			v := *e.state.ReplyTo
			parent = &v
		}
	}
	e.mu.Unlock()

	row, err := e.begin(ed.Row)
	if err != nil {
		return err
	}

	e.mu.Lock()
	draft := row.ReplyDraft
	limit := e.limitFor(ed)
	e.mu.Unlock()
	if err := validation.ValidateContent(draft, limit); err != nil {
		return e.fail(row, err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	id, err := e.api.Create(ctx, e.cfg.ArticleID, parent, draft)
	if err != nil {
		return e.fail(row, err)
	}

	frag, fetchErr := e.fetch(ctx, id)
	slot := frag.Slot
	if slot == "" {
		slot = ListSlot
		if parent != nil {
			slot = RepliesSlot(*parent)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// 评论已经存在，清空编辑器避免重复提交
	row.ReplyDraft = ""
	e.view.SetEditorContent(ed, "")
	e.measure(row, ed, "")
	if e.cfg.EditorMode == Shared {
		e.state.ReplyTo = nil
		e.view.ReplyBanner(nil)
	} else if parent != nil {
		row.Mode = Viewing
		e.view.SetEditorVisible(replyWrapper(ed.Row), false)
	}
	row.Pending = false

	if fetchErr == nil {
		fetchErr = e.view.Insert(slot, frag.HTML)
	}
	if fetchErr != nil {
		err := fmt.Errorf("%w: %v", ErrFragmentUnavailable, fetchErr)
		row.Error = err.Error()
		e.view.Notify(row.Error)
		return err
	}
	e.state.Count++
	e.view.SetCount(e.state.Count)
	return nil
}

// Edit 提交编辑，成功后用服务端重新渲染的片段整体替换
func (e *Engine) Edit(ctx context.Context, commentID int64) error {
	key := strconv.FormatInt(commentID, 10)
	row, err := e.begin(key)
	if err != nil {
		return err
	}

	ed := Editor{Row: key, Action: "edit"}
	e.mu.Lock()
	draft := row.EditDraft
	limit := e.limitFor(ed)
	e.mu.Unlock()
	if err := validation.ValidateContent(draft, limit); err != nil {
		return e.fail(row, err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	if err := e.api.Edit(ctx, commentID, draft); err != nil {
		return e.fail(row, err)
	}
	frag, err := e.fetch(ctx, commentID)
	if err == nil {
		e.mu.Lock()
		err = e.view.Replace(FragmentID(commentID), frag.HTML)
		e.mu.Unlock()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	row.Pending = false
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrFragmentUnavailable, err)
		row.Error = err.Error()
		e.view.Notify(row.Error)
		return err
	}
	row.Mode = Viewing
	row.EditDraft = ""
	row.ReplyDraft = ""
	return nil
}

// Delete 确认后删除评论，成功后移除片段并将计数减一
func (e *Engine) Delete(ctx context.Context, commentID int64) error {
	if e.confirm == nil || !e.confirm.Confirm(commentID) {
		return ErrNotConfirmed
	}
	key := strconv.FormatInt(commentID, 10)
	row, err := e.begin(key)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	if err := e.api.Delete(ctx, commentID); err != nil {
		return e.fail(row, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	row.Pending = false
	row.Mode = Viewing
	if err := e.view.Remove(FragmentID(commentID)); err != nil {
		// 片段不在页面上时计数照常同步
		row.Error = err.Error()
	}
	e.state.Count--
	e.view.SetCount(e.state.Count)
	return nil
}

// Preview 渲染预览
func (e *Engine) Preview(ctx context.Context, source string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()
	html, err := e.api.Preview(ctx, source)
	if isNetwork(err) && !errors.Is(err, ErrNetwork) {
		err = fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return html, err
}
