package collector

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Luismorlan/zsxqintel/model"
)

func decodeTopic(t *testing.T, raw string) *ZsxqTopic {
	t.Helper()
	var topic ZsxqTopic
	require.NoError(t, json.Unmarshal([]byte(raw), &topic))
	return &topic
}

func TestResolveBody(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		expected string
	}{
		{
			name:     "talk text wins",
			raw:      `{"topic_id": 1, "talk": {"text": "talk body"}, "article": {"title": "t", "text": "a"}}`,
			expected: "talk body",
		},
		{
			name:     "article only",
			raw:      `{"topic_id": 1, "article": {"title": "标题", "text": "正文"}}`,
			expected: "标题 正文",
		},
		{
			name:     "empty talk falls back to article",
			raw:      `{"topic_id": 1, "talk": {"text": ""}, "article": {"title": "标题", "text": "正文"}}`,
			expected: "标题 正文",
		},
		{
			name:     "nested question answer",
			raw:      `{"topic_id": 1, "question_answer": {"question": {"text": "买什么"}, "answer": {"text": "不知道"}}}`,
			expected: "[问答]\n问：买什么\n答：不知道",
		},
		{
			name:     "whitespace article falls through to question answer",
			raw:      `{"topic_id": 1, "article": {"title": "", "text": "  "}, "question": {"text": "q"}, "answer": {"text": "a"}}`,
			expected: "[问答]\n问：q\n答：a",
		},
		{
			name:     "nothing",
			raw:      `{"topic_id": 1}`,
			expected: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ResolveBody(decodeTopic(t, tc.raw)))
		})
	}
}

func TestExtractReplies(t *testing.T) {
	t.Run("no replies", func(t *testing.T) {
		assert.Equal(t, "", ExtractReplies(decodeTopic(t, `{"topic_id": 1}`)))
	})

	t.Run("first non-empty field wins", func(t *testing.T) {
		topic := decodeTopic(t, `{
			"topic_id": 1,
			"comments": [],
			"show_comments": [
				{"text": "同意", "owner": {"name": "张三"}},
				{"text": "", "owner": {"name": "空"}},
				{"text": "看空"}
			],
			"latest_comments": [{"text": "ignored", "owner": {"name": "李四"}}]
		}`)
		assert.Equal(t, ReplySeparator+"【张三】: 同意\n【Unknown】: 看空", ExtractReplies(topic))
	})

	t.Run("replies with only empty text render nothing", func(t *testing.T) {
		topic := decodeTopic(t, `{"topic_id": 1, "comments": [{"text": ""}]}`)
		assert.Equal(t, "", ExtractReplies(topic))
	})
}

func TestTopicToPost(t *testing.T) {
	topic := decodeTopic(t, `{
		"topic_id": 4848,
		"create_time": "2024-05-01T09:30:00.000+0800",
		"talk": {"text": "  正文内容  ", "owner": {"name": "老王"}},
		"latest_comments": [{"text": "收到", "owner": {"name": "小李"}}]
	}`)

	got := TopicToPost("88", topic, SectionDigests)
	expected := model.Post{
		Id:          "4848",
		Content:     "正文内容" + ReplySeparator + "【小李】: 收到",
		Author:      "老王",
		CreateTime:  "2024-05-01T09:30:00.000+0800",
		Url:         "https://wx.zsxq.com/dweb2/index/group/88/topic/4848",
		SectionName: SectionDigests,
	}
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Errorf("TopicToPost mismatch (-want +got):\n%s", diff)
	}

	t.Run("missing owner and id", func(t *testing.T) {
		got := TopicToPost("88", decodeTopic(t, `{"talk": {"text": "x"}}`), SectionAll)
		assert.Equal(t, UnknownAuthor, got.Author)
		assert.Equal(t, NullIdMarker, got.Id)
	})

	t.Run("answer owner used when no talk", func(t *testing.T) {
		got := TopicToPost("88", decodeTopic(t, `{"topic_id": 1, "question_answer": {"question": {"text": "q"}, "answer": {"text": "a", "owner": {"name": "答主"}}}}`), "专栏A")
		assert.Equal(t, "答主", got.Author)
		assert.Equal(t, "专栏A", got.SectionName)
	})
}

func TestQuestionToPost(t *testing.T) {
	topic := decodeTopic(t, `{
		"topic_id": 7,
		"create_time": "2024-05-01T09:30:00.000+0800",
		"question_answer": {
			"question": {"text": "怎么看", "owner": {"name": "提问者"}},
			"answer": {"text": "看多", "owner": {"name": "星主"}}
		},
		"comments": [{"text": "谢谢", "owner": {"name": "提问者"}}]
	}`)
	got := QuestionToPost("88", topic)
	assert.Equal(t, "7", got.Id)
	assert.Equal(t, "星主", got.Author)
	assert.Equal(t, SectionQA, got.SectionName)
	assert.Equal(t, "[问答]\n问：怎么看\n答：看多"+ReplySeparator+"【提问者】: 谢谢", got.Content)

	t.Run("no answer owner", func(t *testing.T) {
		got := QuestionToPost("88", decodeTopic(t, `{"topic_id": 8}`))
		assert.Equal(t, UnknownAuthor, got.Author)
		assert.Equal(t, "[问答]\n问：\n答：", got.Content)
	})
}

func TestFileToPost(t *testing.T) {
	var file ZsxqFile
	require.NoError(t, json.Unmarshal([]byte(`{"file_id": 99, "name": "年报.pdf", "owner": {"name": "老王"}, "create_time": "2024-05-01T09:30:00.000+0800"}`), &file))
	got := FileToPost("88", &file)
	assert.Equal(t, "file_99", got.Id)
	assert.Equal(t, "[文件分享] 年报.pdf", got.Content)
	assert.Equal(t, "https://wx.zsxq.com/group/88/files", got.Url)
	assert.Equal(t, SectionFiles, got.SectionName)

	t.Run("missing id", func(t *testing.T) {
		got := FileToPost("88", &ZsxqFile{Name: "x"})
		assert.Equal(t, "file_None", got.Id)
		assert.Equal(t, UnknownAuthor, got.Author)
	})
}

func TestRenderRichText(t *testing.T) {
	assert.Equal(t, "plain text", RenderRichText("plain text"))
	assert.Equal(t, "看好 #新能源# 板块", RenderRichText(`看好 <e type="hashtag" hid="123" title="%23%E6%96%B0%E8%83%BD%E6%BA%90%23" /> 板块`))
	assert.Equal(t, "@老王 你好", RenderRichText(`<e type="mention" uid="1" title="%40%E8%80%81%E7%8E%8B" /> 你好`))
	assert.Equal(t, "第一行\n第二行", RenderRichText("第一行<br>第二行"))

	t.Run("literal less-than is kept", func(t *testing.T) {
		for _, text := range []string{
			"估值 P/E<PB 时加仓，目标价 100 元，止损 80 元",
			"<A股>策略：仓位<5成",
			"PE<20 且 ROE>15%",
		} {
			assert.Equal(t, text, RenderRichText(text))
		}
	})

	t.Run("literal less-than next to markup", func(t *testing.T) {
		assert.Equal(t, "P/E<PB\n继续持有", RenderRichText("P/E<PB<br/>继续持有"))
		assert.Equal(t, "#估值# 仓位<5成", RenderRichText(`<e type="hashtag" title="%23%E4%BC%B0%E5%80%BC%23" /> 仓位<5成`))
	})

	t.Run("topic content keeps literal text", func(t *testing.T) {
		got := TopicToPost("88", decodeTopic(t, `{"topic_id": 7, "talk": {"owner": {"name": "张三"}, "text": "估值 P/E<PB 时加仓，目标价 100 元，止损 80 元"}}`), SectionAll)
		assert.Equal(t, "估值 P/E<PB 时加仓，目标价 100 元，止损 80 元", got.Content)
	})
}

func TestExtractGroupIdFromUrl(t *testing.T) {
	id, ok := ExtractGroupIdFromUrl("https://wx.zsxq.com/dweb2/index/group/15555442414282")
	assert.True(t, ok)
	assert.Equal(t, "15555442414282", id)

	id, ok = ExtractGroupIdFromUrl("https://wx.zsxq.com/group/123/files")
	assert.True(t, ok)
	assert.Equal(t, "123", id)

	_, ok = ExtractGroupIdFromUrl("https://wx.zsxq.com/")
	assert.False(t, ok)
}
