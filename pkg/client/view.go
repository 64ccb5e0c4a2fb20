package client

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// View 评论区的页面表示，引擎只在服务端确认变更后修改它
type View interface {
	SetPanelVisible(visible bool)
	Highlight(fragmentID string)
	Count() int
	SetCount(n int)
	Insert(slot, html string) error
	Replace(fragmentID, html string) error
	Remove(fragmentID string) error
	SetEditorVisible(wrapperID string, visible bool)
	EditorContent(e Editor) string
	SetEditorContent(e Editor, content string)
	SetLength(e Editor, n int, canSubmit bool)
	EditorLimit(e Editor) (int, bool)
	ReplyBanner(target *int64)
	Notify(message string)
}

// CountID 页面上评论数元素的ID
const CountID = "comment-count"

// DocumentView 基于 goquery 的页面实现，用于无浏览器环境与测试
type DocumentView struct {
	mu           sync.Mutex
	doc          *goquery.Document
	panelVisible bool
	highlighted  string
	replyTo      *int64
	notices      []string
}

// NewDocumentView 从页面HTML创建
func NewDocumentView(page string) (*DocumentView, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("解析页面失败: %w", err)
	}
	return &DocumentView{doc: doc}, nil
}

func (v *DocumentView) byID(id string) *goquery.Selection {
	return v.doc.Find(`[id="` + id + `"]`)
}

// SetPanelVisible 设置评论面板可见性
func (v *DocumentView) SetPanelVisible(visible bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.panelVisible = visible
	panel := v.byID("comments")
	if visible {
		panel.RemoveAttr("hidden")
	} else {
		panel.SetAttr("hidden", "")
	}
}

// PanelVisible 评论面板是否可见
func (v *DocumentView) PanelVisible() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.panelVisible
}

// Highlight 标记锚点指向的评论
func (v *DocumentView) Highlight(fragmentID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.highlighted = fragmentID
	v.byID(fragmentID).AddClass("highlighted")
}

// Highlighted 被标记的评论片段ID
func (v *DocumentView) Highlighted() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.highlighted
}

// Count 页面上显示的评论数
func (v *DocumentView) Count() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n, _ := strconv.Atoi(strings.TrimSpace(v.byID(CountID).Text()))
	return n
}

// SetCount 更新评论数
func (v *DocumentView) SetCount(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.byID(CountID).SetText(strconv.Itoa(n))
}

// Insert 把片段追加到容器末尾
func (v *DocumentView) Insert(slot, html string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	sel := v.byID(slot)
	if sel.Length() == 0 {
		return fmt.Errorf("容器 %s 不存在", slot)
	}
	sel.AppendHtml(html)
	return nil
}

// Replace 用新片段整体替换旧片段
func (v *DocumentView) Replace(fragmentID, html string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	sel := v.byID(fragmentID)
	if sel.Length() == 0 {
		return fmt.Errorf("片段 %s 不存在", fragmentID)
	}
	sel.ReplaceWithHtml(html)
	return nil
}

// Remove 移除片段
func (v *DocumentView) Remove(fragmentID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	sel := v.byID(fragmentID)
	if sel.Length() == 0 {
		return fmt.Errorf("片段 %s 不存在", fragmentID)
	}
	sel.Remove()
	return nil
}

// SetEditorVisible 显示或隐藏编辑器外层
func (v *DocumentView) SetEditorVisible(wrapperID string, visible bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if visible {
		v.byID(wrapperID).RemoveAttr("hidden")
	} else {
		v.byID(wrapperID).SetAttr("hidden", "")
	}
}

// EditorVisible 编辑器外层是否可见
func (v *DocumentView) EditorVisible(wrapperID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	sel := v.byID(wrapperID)
	_, hidden := sel.Attr("hidden")
	return sel.Length() > 0 && !hidden
}

// EditorContent 输入框当前内容
func (v *DocumentView) EditorContent(e Editor) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.byID(e.ContentID()).Text()
}

// SetEditorContent 设置输入框内容
func (v *DocumentView) SetEditorContent(e Editor, content string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.byID(e.ContentID()).SetText(content)
}

// SetLength 更新字数与提交按钮状态
func (v *DocumentView) SetLength(e Editor, n int, canSubmit bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.byID(e.LenID()).SetText(strconv.Itoa(n))
	submit := v.byID(e.SubmitID())
	if canSubmit {
		submit.RemoveAttr("disabled")
	} else {
		submit.SetAttr("disabled", "")
	}
}

// EditorLimit 从 "<len>/N characters" 中读出编辑器的上限
func (v *DocumentView) EditorLimit(e Editor) (int, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	text := v.byID(e.LenID()).Parent().Text()
	_, rest, ok := strings.Cut(text, "/")
	if !ok {
		return 0, false
	}
	digits := strings.TrimSpace(rest)
	if i := strings.IndexFunc(digits, func(r rune) bool { return r < '0' || r > '9' }); i >= 0 {
		digits = digits[:i]
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// ReplyBanner 共享编辑器模式下显示回复目标
func (v *DocumentView) ReplyBanner(target *int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.replyTo = target
	banner := v.byID("reply-banner")
	if target == nil {
		banner.SetAttr("hidden", "")
		banner.SetText("")
		return
	}
	banner.RemoveAttr("hidden")
	banner.SetText("Replying to #" + FragmentID(*target))
}

// ReplyTarget 当前横幅显示的回复目标
func (v *DocumentView) ReplyTarget() *int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.replyTo
}

// Notify 阻塞式提示，这里记录下来
func (v *DocumentView) Notify(message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notices = append(v.notices, message)
}

// Notices 已显示过的提示
func (v *DocumentView) Notices() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.notices...)
}

// Has 页面中是否存在该ID的元素
func (v *DocumentView) Has(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.byID(id).Length() > 0
}

// HTML 当前页面body内容
func (v *DocumentView) HTML() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	html, _ := v.doc.Find("body").Html()
	return html
}
