package notifier

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Luismorlan/zsxqintel/model"
	Logger "github.com/Luismorlan/zsxqintel/utils/log"
)

const (
	ReportTitle        = "📊 星球最新投资情报"
	CookieExpiredTitle = "⚠️ 知识星球 Cookie 失效"
	ErrorTitle         = "❌ 知识星球监控异常"

	cookieExpiredText = "### ⚠️ 知识星球监控告警\n**状态：** Cookie 已失效 (401/403)\n**建议：** 请立即手动更新 `ZSXQ_COOKIE` 环境变量并重启程序。"
)

// Dispatcher renders the fixed message formats and hands them to a Notifier.
// Delivery is best effort: failures are logged and returned, never retried.
type Dispatcher struct {
	notifier Notifier
}

func NewDispatcher(notifier Notifier) *Dispatcher {
	return &Dispatcher{notifier: notifier}
}

func (d *Dispatcher) send(ctx context.Context, title, text string) error {
	err := d.notifier.SendMarkdown(ctx, title, text)
	if err != nil {
		Logger.Log.WithFields(logrus.Fields{"title": title}).Errorf("fail to send notification: %v", err)
	}
	return err
}

// RenderInvestmentReport builds the report body for a valuable post.
func RenderInvestmentReport(post *model.Post, result *model.AnalysisResult) string {
	meta := ""
	if post.SectionName != "" {
		meta += fmt.Sprintf("\n**板块：** %s", post.SectionName)
	}
	if post.CreateTime != "" {
		meta += fmt.Sprintf("\n**发布时间：** %s", FormatCreateTime(post.CreateTime))
	}
	if post.Author != "" {
		meta += fmt.Sprintf("\n**作者：** %s", post.Author)
	}

	return fmt.Sprintf(`### %s

**原文链接：** [点击查看](%s)%s

---

#### 📌 投资标的
%s

#### 💡 操作建议
%s

#### 🔍 核心逻辑
%s

#### 🤖 AI 总结
%s`, ReportTitle, post.Url, meta, result.Ticker, result.Suggestion, result.Logic, result.AiSummary)
}

func (d *Dispatcher) NotifyInvestmentReport(ctx context.Context, post *model.Post, result *model.AnalysisResult) error {
	return d.send(ctx, ReportTitle, RenderInvestmentReport(post, result))
}

// NotifyCookieExpired implements collector.CredentialAlerter.
func (d *Dispatcher) NotifyCookieExpired(ctx context.Context) error {
	return d.send(ctx, CookieExpiredTitle, cookieExpiredText)
}

// NotifyError reports a failure that needs a human, kind is a short category
// such as 配置错误.
func (d *Dispatcher) NotifyError(ctx context.Context, kind, message, hint string) error {
	text := fmt.Sprintf("### ❌ %s\n**错误：** %s", kind, message)
	if hint != "" {
		text += fmt.Sprintf("\n\n**建议：**\n%s", hint)
	}
	return d.send(ctx, ErrorTitle, text)
}

func (d *Dispatcher) NotifyInfo(ctx context.Context, title, text string) error {
	return d.send(ctx, title, text)
}
