package render

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strconv"
	"time"

	"github.com/nsxzhou1114/blog-comment/internal/model"
	"github.com/nsxzhou1114/blog-comment/internal/validation"
)

// ListSlot 顶层评论的容器ID
const ListSlot = "comments-list"

// CommentView 渲染一条评论需要的数据
type CommentView struct {
	Comment model.CommentDetail
	Author  *model.User
	// Replies 非nil表示这是一条顶层评论
	Replies []CommentView
	// RootID 回复所属的顶层评论，回复的回复也挂在根评论下
	RootID int64
}

// Slot 片段应插入的容器，回复一律插入根评论的回复容器
func (v CommentView) Slot() string {
	if v.Comment.ReplyTo != nil && v.RootID != 0 {
		return RepliesSlot(v.RootID)
	}
	return SlotFor(&v.Comment.Comment)
}

// Viewer 当前访问者，未登录时 UserID 为 0
type Viewer struct {
	UserID int64
	Login  string
	Admin  bool
}

// LoggedIn 是否已登录
func (v Viewer) LoggedIn() bool {
	return v.UserID != 0
}

// Context 渲染上下文
type Context struct {
	Viewer        Viewer
	ArticleURL    string
	ArticleLocked bool
}

// Fragment 可独立插入页面的评论片段
type Fragment struct {
	ID   string `json:"id"`
	Slot string `json:"slot"`
	HTML string `json:"html"`
}

// FragmentID 评论片段的元素ID
func FragmentID(commentID int64) string {
	return "com-" + strconv.FormatInt(commentID, 10)
}

// RepliesSlot 回复容器的元素ID
func RepliesSlot(commentID int64) string {
	return "comment-" + strconv.FormatInt(commentID, 10) + "-replies"
}

// SlotFor 按直接父评论推断的容器，不知道根评论时使用
func SlotFor(c *model.Comment) string {
	if c.ReplyTo == nil {
		return ListSlot
	}
	return RepliesSlot(*c.ReplyTo)
}

// Renderer 评论渲染桥
type Renderer struct {
	md     Markdown
	limits *validation.Limits
}

// NewRenderer 创建渲染桥，编辑器展示的长度上限取自 limits
func NewRenderer(md Markdown, limits *validation.Limits) *Renderer {
	if limits == nil {
		limits = validation.NewLimits(nil)
	}
	return &Renderer{md: md, limits: limits}
}

// RenderPreview 预览markdown，不做任何持久化
func (r *Renderer) RenderPreview(source string) (string, error) {
	return r.md.Render(source)
}

// RenderFragment 渲染单条评论及其回复
func (r *Renderer) RenderFragment(view CommentView, ctx Context) (Fragment, error) {
	html, err := r.renderComment(view, ctx)
	if err != nil {
		return Fragment{}, err
	}
	return Fragment{
		ID:   FragmentID(view.Comment.ID),
		Slot: view.Slot(),
		HTML: html,
	}, nil
}

// RenderThread 渲染整篇文章的评论串
func (r *Renderer) RenderThread(views []CommentView, ctx Context) ([]Fragment, error) {
	fragments := make([]Fragment, 0, len(views))
	for _, v := range views {
		f, err := r.RenderFragment(v, ctx)
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, f)
	}
	return fragments, nil
}

// RenderList 渲染文章的完整评论区：顶层评论容器，以及登录且未锁定时的新评论编辑器
func (r *Renderer) RenderList(views []CommentView, ctx Context) (string, error) {
	fragments, err := r.RenderThread(views, ctx)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	buf.WriteString(`<div id="` + ListSlot + `" class="comments-list">`)
	buf.WriteString(JoinHTML(fragments))
	buf.WriteString(`</div>`)
	if !ctx.ArticleLocked {
		editor, err := r.RenderEditor(ctx.Viewer)
		if err != nil {
			return "", err
		}
		buf.WriteString(editor)
	}
	return buf.String(), nil
}

// JoinHTML 拼接多个片段
func JoinHTML(fragments []Fragment) string {
	var buf bytes.Buffer
	for _, f := range fragments {
		buf.WriteString(f.HTML)
	}
	return buf.String()
}

// Group 把扁平的评论列表组装为顶层评论及其回复。
// 回复挂到其根评论下，找不到根的回复会被丢弃。
func Group(comments []model.CommentDetail, authors map[int64]*model.User) []CommentView {
	byID := make(map[int64]*model.CommentDetail, len(comments))
	for i := range comments {
		byID[comments[i].ID] = &comments[i]
	}

	roots := make(map[int64]*CommentView)
	order := make([]int64, 0)
	for i := range comments {
		c := &comments[i]
		if c.ReplyTo == nil {
			roots[c.ID] = &CommentView{Comment: *c, Author: authors[c.AuthorID], Replies: []CommentView{}}
			order = append(order, c.ID)
		}
	}

	for i := range comments {
		c := &comments[i]
		if c.ReplyTo == nil {
			continue
		}
		rootID, ok := resolveRoot(c, byID)
		if !ok {
			continue
		}
		root, ok := roots[rootID]
		if !ok {
			continue
		}
		root.Replies = append(root.Replies, CommentView{Comment: *c, Author: authors[c.AuthorID], RootID: rootID})
	}

	result := make([]CommentView, 0, len(order))
	for _, id := range order {
		v := roots[id]
		sortViews(v.Replies)
		result = append(result, *v)
	}
	sortViews(result)
	return result
}

func resolveRoot(c *model.CommentDetail, byID map[int64]*model.CommentDetail) (int64, bool) {
	cur := c
	// 父评论ID严格小于子评论，链长不会超过列表长度
	for steps := 0; steps <= len(byID); steps++ {
		if cur.ReplyTo == nil {
			return cur.ID, true
		}
		parent, ok := byID[*cur.ReplyTo]
		if !ok {
			return 0, false
		}
		cur = parent
	}
	return 0, false
}

func sortViews(views []CommentView) {
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i].Comment, views[j].Comment
		if !a.PostDate.Equal(b.PostDate) {
			return a.PostDate.Before(b.PostDate)
		}
		return a.ID < b.ID
	})
}

// button 操作按钮，由页面脚本按 data-comment-action 绑定事件
type button struct {
	Href    string
	ID      string
	Action  string
	Comment string
	Link    string
	Icon    string
	Alt     string
}

type editorData struct {
	ID       string
	Action   string
	Login    string
	Content  string
	MaxChars int
}

type commentData struct {
	ID         string
	Removed    bool
	Tombstone  bool
	Buttons    []button
	AuthorURL  string
	Login      string
	PostDate   string
	EditDate   string
	AdminMark  bool
	Body       template.HTML
	EditEditor *editorData
	PostEditor *editorData
	IsRoot     bool
	Replies    []template.HTML
}

func (r *Renderer) renderComment(view CommentView, ctx Context) (string, error) {
	c := view.Comment
	id := strconv.FormatInt(c.ID, 10)
	viewer := ctx.Viewer
	removed := c.Removed()

	data := commentData{
		ID:      id,
		Removed: removed,
		IsRoot:  view.Replies != nil,
	}

	for _, reply := range view.Replies {
		html, err := r.renderComment(reply, ctx)
		if err != nil {
			return "", err
		}
		data.Replies = append(data.Replies, template.HTML(html))
	}

	canModify := viewer.LoggedIn() && (viewer.UserID == c.AuthorID || viewer.Admin)
	if !removed {
		data.Buttons = append(data.Buttons, button{
			Href:    "#com-" + id,
			ID:      id + "-link",
			Action:  "clipboard",
			Comment: id,
			Link:    ctx.ArticleURL + "#com-" + id,
			Icon:    "fa-solid fa-link",
			Alt:     "Copy link",
		})
		if canModify {
			data.Buttons = append(data.Buttons,
				button{Href: "#comment-" + id + "-edit-content", Action: "toggle_edit", Comment: id, Icon: "fa-solid fa-pen-to-square"},
				button{Action: "del", Comment: id, Icon: "fa-solid fa-trash"},
			)
		}
	}
	if viewer.LoggedIn() && data.IsRoot && !ctx.ArticleLocked {
		data.Buttons = append(data.Buttons, button{
			Href:    "#comment-" + id + "-post-content",
			Action:  "toggle_reply",
			Comment: id,
			Icon:    "fa-solid fa-reply",
		})
	}

	if removed && !viewer.Admin {
		data.Tombstone = true
		return execute(commentTemplate, data)
	}

	if view.Author != nil {
		data.AuthorURL = view.Author.HTMLURL
		data.Login = view.Author.Login
	}
	data.PostDate = formatDate(c.PostDate)
	if c.Edited() {
		data.EditDate = formatDate(c.EditDate)
	}
	data.AdminMark = removed && viewer.Admin

	body, err := r.md.Render(c.Content)
	if err != nil {
		return "", fmt.Errorf("渲染评论 %d 失败: %w", c.ID, err)
	}
	data.Body = template.HTML(body)

	if canModify && !removed {
		limit := r.limits.For(validation.SurfaceFor(c.IsReply()))
		data.EditEditor = &editorData{ID: id, Action: "edit", Login: viewer.Login, Content: c.Content, MaxChars: limit}
	}
	if viewer.LoggedIn() && data.IsRoot && !ctx.ArticleLocked {
		limit := r.limits.For(validation.SurfaceComment)
		data.PostEditor = &editorData{ID: id, Action: "post", Login: viewer.Login, MaxChars: limit}
	}
	return execute(commentTemplate, data)
}

// RenderEditor 文章底部的新评论编辑器
func (r *Renderer) RenderEditor(viewer Viewer) (string, error) {
	if !viewer.LoggedIn() {
		return "", nil
	}
	limit := r.limits.For(validation.SurfaceArticle)
	return execute(editorTemplate, editorData{ID: "null", Action: "post", Login: viewer.Login, MaxChars: limit})
}

func formatDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func execute(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("执行模板失败: %w", err)
	}
	return buf.String(), nil
}

var editorTemplate = template.Must(template.New("editor").Parse(editorHTML))

var commentTemplate = template.Must(template.Must(editorTemplate.Clone()).New("comment").Parse(commentHTML))

const editorHTML = `<div class="comment-editor">
	<img class="comment-avatar" src="/avatar/{{.Login}}" />
	<textarea id="comment-{{.ID}}-{{.Action}}-content" name="content" placeholder="What are your thoughts?" data-action="{{.Action}}" data-comment="{{.ID}}">{{.Content}}</textarea>
	<button id="comment-{{.ID}}-{{.Action}}-submit" data-action="{{.Action}}" data-comment="{{.ID}}"><i class="fa-regular fa-paper-plane"></i></button>
</div>
<h6><span id="comment-{{.ID}}-{{.Action}}-len">0</span>/{{.MaxChars}} characters - Markdown is supported</h6>`

const commentHTML = `{{define "buttons"}}{{if .}}<div class="comment-buttons">{{range .}}<a{{if .Href}} href="{{.Href}}"{{end}}{{if .ID}} id="{{.ID}}"{{end}} class="comment-button" data-comment-action="{{.Action}}" data-comment="{{.Comment}}"{{if .Link}} data-link="{{.Link}}"{{end}}{{if .Alt}} alt="{{.Alt}}"{{end}}><i class="{{.Icon}}"></i></a>{{end}}</div>{{end}}{{end}}` +
	`{{define "replies"}}{{if .IsRoot}}<div id="comment-{{.ID}}-replies" class="comments-list">{{range .Replies}}{{.}}{{end}}</div>{{end}}{{end}}` +
	`{{if .Tombstone}}<div class="comment" id="com-{{.ID}}">
	<div class="comment-header">{{template "buttons" .Buttons}}</div>
	<div class="comment-content"><p><i class="fa-solid fa-trash"></i>&nbsp;<i>deleted comment</i></p></div>
	{{template "replies" .}}
</div>{{else}}<div class="comment" id="com-{{.ID}}">
	<div class="comment-header">
		<div><a href="{{.AuthorURL}}" target="_blank"><img class="comment-avatar" src="/avatar/{{.Login}}" /></a></div>
		<div><p><a href="{{.AuthorURL}}" target="_blank">{{.Login}}</a></p></div>
		<div><h6><span id="date-long">{{.PostDate}}</span>{{if .EditDate}} (edit: <span id="date-long">{{.EditDate}}</span>){{end}}{{if .AdminMark}} - REMOVED{{end}}</h6></div>
		<div>{{template "buttons" .Buttons}}</div>
	</div>
	<div class="comment-content">{{.Body}}</div>
	{{if .EditEditor}}<div id="editor-{{.ID}}-edit" hidden><p>Edit comment</p>{{template "editor" .EditEditor}}</div>{{end}}
	{{if .PostEditor}}<div id="editor-{{.ID}}-reply" hidden><p>Reply</p>{{template "editor" .PostEditor}}</div>{{end}}
	{{template "replies" .}}
</div>{{end}}`
