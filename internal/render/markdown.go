package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Markdown 把评论的markdown源文转换为可安全嵌入页面的HTML
type Markdown interface {
	Render(source string) (string, error)
}

// 渲染引擎
const (
	EngineBlackfriday = "blackfriday"
	EngineGoldmark    = "goldmark"
)

// NewMarkdown 按引擎名创建渲染器，空名称使用 blackfriday
func NewMarkdown(engine string) (Markdown, error) {
	switch engine {
	case "", EngineBlackfriday:
		return &blackfridayMarkdown{policy: newPolicy()}, nil
	case EngineGoldmark:
		return &goldmarkMarkdown{
			md: goldmark.New(
				goldmark.WithExtensions(extension.GFM),
				goldmark.WithRendererOptions(
					html.WithHardWraps(),
					html.WithXHTML(),
				),
			),
			policy: newPolicy(),
		}, nil
	default:
		return nil, fmt.Errorf("不支持的markdown引擎: %s", engine)
	}
}

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowImages()
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)
	return p
}

type blackfridayMarkdown struct {
	policy *bluemonday.Policy
}

func (m *blackfridayMarkdown) Render(source string) (string, error) {
	unsafe := blackfriday.MarkdownCommon([]byte(source))
	return enhance(m.policy.SanitizeBytes(unsafe))
}

type goldmarkMarkdown struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func (m *goldmarkMarkdown) Render(source string) (string, error) {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("markdown转换失败: %w", err)
	}
	return enhance(m.policy.SanitizeBytes(buf.Bytes()))
}

// enhance 对已清洗的HTML做展示增强
func enhance(sanitized []byte) (string, error) {
	if len(bytes.TrimSpace(sanitized)) == 0 {
		return "", nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(sanitized))
	if err != nil {
		return "", fmt.Errorf("解析HTML失败: %w", err)
	}

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		s.SetAttr("loading", "lazy")
		s.SetAttr("referrerpolicy", "no-referrer")
	})
	// 评论中的标题降级，避免打乱文章的目录结构
	doc.Find("h1, h2, h3").Each(func(_ int, s *goquery.Selection) {
		s.Get(0).Data = "h4"
	})

	out, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("生成HTML失败: %w", err)
	}
	return strings.TrimSpace(out), nil
}
