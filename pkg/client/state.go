package client

import (
	"strconv"
	"strings"
	"time"
)

// Mode 评论行的编辑状态，编辑与回复互斥
type Mode string

const (
	Viewing  Mode = "viewing"
	Editing  Mode = "editing"
	Replying Mode = "replying"
)

// EditorMode 编辑器布局
type EditorMode string

const (
	// PerRow 每条顶层评论有自己的回复编辑器
	PerRow EditorMode = "per-row"
	// Shared 只有文章底部一个编辑器，回复目标由游标决定
	Shared EditorMode = "shared"
)

// NullRow 文章底部编辑器所在的行
const NullRow = "null"

// PanelKey 评论面板可见性在本地存储中的键
const PanelKey = "comments_visible"

// RowKey 评论行的键，nil 表示文章底部编辑器
func RowKey(id *int64) string {
	if id == nil {
		return NullRow
	}
	return strconv.FormatInt(*id, 10)
}

// FragmentID 评论片段的元素ID
func FragmentID(id int64) string {
	return "com-" + strconv.FormatInt(id, 10)
}

// ParseFragmentID 解析 "com-<id>" 形式的页面锚点，允许带 '#'
func ParseFragmentID(fragment string) (int64, bool) {
	rest, ok := strings.CutPrefix(strings.TrimPrefix(fragment, "#"), "com-")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Editor 编辑器元素，ID 为评论ID或 "null"，Action 为 post、edit 或 reply
type Editor struct {
	Row    string
	Action string
}

func (e Editor) field(name string) string {
	return "comment-" + e.Row + "-" + e.Action + "-" + name
}

// ContentID 输入框ID
func (e Editor) ContentID() string { return e.field("content") }

// SubmitID 提交按钮ID
func (e Editor) SubmitID() string { return e.field("submit") }

// LenID 字数计数器ID
func (e Editor) LenID() string { return e.field("len") }

// RowState 单条评论行的状态
type RowState struct {
	Mode       Mode   `json:"mode"`
	Pending    bool   `json:"pending"`
	EditDraft  string `json:"edit_draft,omitempty"`
	ReplyDraft string `json:"reply_draft,omitempty"`
	CanSubmit  bool   `json:"can_submit"`
	Error      string `json:"error,omitempty"`
}

// State 一次页面会话的客户端状态
type State struct {
	PanelVisible bool                 `json:"panel_visible"`
	Highlighted  int64                `json:"highlighted,omitempty,string"`
	ReplyTo      *int64               `json:"reply_to,omitempty,string"`
	Rows         map[string]*RowState `json:"rows"`
	Count        int                  `json:"count"`
}

func (s *State) row(key string) *RowState {
	if s.Rows == nil {
		s.Rows = make(map[string]*RowState)
	}
	r, ok := s.Rows[key]
	if !ok {
		r = &RowState{Mode: Viewing}
		s.Rows[key] = r
	}
	return r
}

func (s *State) clone() State {
	c := *s
	if s.ReplyTo != nil {
		v := *s.ReplyTo
		c.ReplyTo = &v
	}
	c.Rows = make(map[string]*RowState, len(s.Rows))
	for k, r := range s.Rows {
		v := *r
		c.Rows[k] = &v
	}
	return c
}

// Config 客户端配置
type Config struct {
	ArticleID int64
	// CommentLimit 回复与回复编辑器的字节上限
	CommentLimit int
	// ArticleLimit 文章底部编辑器的字节上限
	ArticleLimit int
	EditorMode   EditorMode
	// PersistPanel 是否把面板可见性写入本地存储
	PersistPanel bool
	Timeout      time.Duration
}

func (c *Config) defaults() {
	if c.CommentLimit <= 0 {
		c.CommentLimit = 5000
	}
	if c.ArticleLimit <= 0 {
		c.ArticleLimit = 10000
	}
	if c.EditorMode == "" {
		c.EditorMode = PerRow
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}
