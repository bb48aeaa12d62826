package collector

import (
	"encoding/json"
	"strconv"
)

const (
	ZsxqApiBase = "https://api.zsxq.com/v2"
	ZsxqWebBase = "https://wx.zsxq.com"

	// Rendered for ids the API leaves out, so the filter can recognize them.
	NullIdMarker = "None"
)

// Topic listing scopes.
const (
	ScopeAll      = "all"
	ScopeDigests  = "digests"
	ScopeByColumn = "by_column"
	ScopeQA       = "q_and_a"
)

// Section labels stored with each post.
const (
	SectionDigests = "精华主题"
	SectionAll     = "全部主题"
	SectionFiles   = "文件分享"
	SectionQA      = "问答"
	SectionColumn  = "专栏"
)

const UnknownAuthor = "Unknown"

type ZsxqOwner struct {
	UserID    *int64 `json:"user_id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

type ZsxqComment struct {
	CommentID  *int64     `json:"comment_id"`
	CreateTime string     `json:"create_time"`
	Owner      *ZsxqOwner `json:"owner"`
	Text       string     `json:"text"`
}

type ZsxqTalk struct {
	Owner *ZsxqOwner `json:"owner"`
	Text  string     `json:"text"`
	Files []ZsxqFile `json:"files"`
}

type ZsxqArticle struct {
	Title      string `json:"title"`
	Text       string `json:"text"`
	ArticleID  string `json:"article_id"`
	ArticleURL string `json:"article_url"`
}

type ZsxqQuestion struct {
	Owner     *ZsxqOwner `json:"owner"`
	Text      string     `json:"text"`
	Anonymous bool       `json:"anonymous"`
}

type ZsxqAnswer struct {
	Owner *ZsxqOwner `json:"owner"`
	Text  string     `json:"text"`
}

type ZsxqQuestionAnswer struct {
	Question *ZsxqQuestion `json:"question"`
	Answer   *ZsxqAnswer   `json:"answer"`
}

// ZsxqTopic is one thread as returned by the topics endpoint. Which of talk,
// article and the question/answer pair is populated depends on the topic type.
// Older payloads carry question and answer at the top level.
type ZsxqTopic struct {
	TopicID        *int64              `json:"topic_id"`
	Type           string              `json:"type"`
	CreateTime     string              `json:"create_time"`
	Digested       bool                `json:"digested"`
	Talk           *ZsxqTalk           `json:"talk"`
	Article        *ZsxqArticle        `json:"article"`
	QuestionAnswer *ZsxqQuestionAnswer `json:"question_answer"`
	Question       *ZsxqQuestion       `json:"question"`
	Answer         *ZsxqAnswer         `json:"answer"`
	Comments       []ZsxqComment       `json:"comments"`
	ShowComments   []ZsxqComment       `json:"show_comments"`
	LatestComments []ZsxqComment       `json:"latest_comments"`
	CommentsCount  int64               `json:"comments_count"`
}

type ZsxqFile struct {
	FileID        *int64     `json:"file_id"`
	Name          string     `json:"name"`
	Hash          string     `json:"hash"`
	Size          int64      `json:"size"`
	CreateTime    string     `json:"create_time"`
	DownloadCount int64      `json:"download_count"`
	Owner         *ZsxqOwner `json:"owner"`
}

// ZsxqColumn is column metadata, only used to fan out column article fetches.
type ZsxqColumn struct {
	ColumnID *int64 `json:"column_id"`
	Name     string `json:"name"`
}

type ZsxqGroup struct {
	GroupID *int64 `json:"group_id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
}

// zsxqEnvelope wraps every response. The payload key is resp_data on current
// endpoints and resp on some older ones.
type zsxqEnvelope struct {
	Succeeded bool            `json:"succeeded"`
	Code      int             `json:"code"`
	Info      string          `json:"info"`
	RespData  json.RawMessage `json:"resp_data"`
	Resp      json.RawMessage `json:"resp"`
}

func (e *zsxqEnvelope) payload() json.RawMessage {
	if len(e.RespData) > 0 && string(e.RespData) != "null" {
		return e.RespData
	}
	return e.Resp
}

type topicsPayload struct {
	Topics []ZsxqTopic `json:"topics"`
}

type filesPayload struct {
	Files []ZsxqFile `json:"files"`
}

type columnsPayload struct {
	Columns []ZsxqColumn `json:"columns"`
}

type groupsPayload struct {
	Groups []ZsxqGroup `json:"groups"`
}

// FormatId renders an optional numeric id, NullIdMarker when absent.
func FormatId(id *int64) string {
	if id == nil {
		return NullIdMarker
	}
	return strconv.FormatInt(*id, 10)
}

func ownerName(owner *ZsxqOwner) string {
	if owner == nil || owner.Name == "" {
		return UnknownAuthor
	}
	return owner.Name
}
