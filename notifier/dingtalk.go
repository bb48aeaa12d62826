package notifier

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	Logger "github.com/Luismorlan/zsxqintel/utils/log"
)

type dingTalkMarkdown struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type dingTalkPayload struct {
	MsgType  string           `json:"msgtype"`
	Markdown dingTalkMarkdown `json:"markdown"`
}

type dingTalkResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// DingTalkNotifier posts to a DingTalk robot webhook. With a secret the
// request is signed as the robot "additional signature" security setting
// expects.
type DingTalkNotifier struct {
	webhook string
	secret  string
	client  *http.Client
	now     func() time.Time
}

func NewDingTalkNotifier(webhook, secret string) *DingTalkNotifier {
	return &DingTalkNotifier{
		webhook: webhook,
		secret:  secret,
		client:  &http.Client{Timeout: 10 * time.Second},
		now:     time.Now,
	}
}

// DingTalkSign returns base64(hmac_sha256(secret, "<timestamp>\n<secret>")).
func DingTalkSign(timestampMs int64, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestampMs, 10) + "\n" + secret))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (d *DingTalkNotifier) signedUrl() (string, error) {
	if d.secret == "" {
		return d.webhook, nil
	}
	u, err := url.Parse(d.webhook)
	if err != nil {
		return "", errors.Wrap(err, "invalid dingtalk webhook")
	}
	timestamp := d.now().UnixMilli()
	query := u.Query()
	query.Set("timestamp", strconv.FormatInt(timestamp, 10))
	query.Set("sign", DingTalkSign(timestamp, d.secret))
	u.RawQuery = query.Encode()
	return u.String(), nil
}

func (d *DingTalkNotifier) SendMarkdown(ctx context.Context, title string, text string) error {
	uri, err := d.signedUrl()
	if err != nil {
		return err
	}
	body, err := json.Marshal(dingTalkPayload{
		MsgType:  "markdown",
		Markdown: dingTalkMarkdown{Title: title, Text: text},
	})
	if err != nil {
		return errors.Wrap(err, "fail to marshal dingtalk payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "fail to build dingtalk request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "fail to send to dingtalk")
	}
	defer resp.Body.Close()

	var result dingTalkResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return errors.Wrapf(err, "fail to decode dingtalk response, status %d", resp.StatusCode)
	}
	if result.ErrCode != 0 {
		return errors.Wrapf(ErrSendFailed, "dingtalk errcode %d: %s", result.ErrCode, result.ErrMsg)
	}
	Logger.Log.Info("dingtalk notification sent successfully")
	return nil
}
