package collector

import (
	"fmt"
	"strings"

	"github.com/Luismorlan/zsxqintel/model"
)

const ReplySeparator = "\n\n--- 回复 ---\n"

// replyStrategy extracts the reply list from one of the legacy field names.
type replyStrategy func(topic *ZsxqTopic) []ZsxqComment

var replyStrategies = []replyStrategy{
	func(topic *ZsxqTopic) []ZsxqComment { return topic.Comments },
	func(topic *ZsxqTopic) []ZsxqComment { return topic.ShowComments },
	func(topic *ZsxqTopic) []ZsxqComment { return topic.LatestComments },
}

// ExtractReplies renders the first non-empty reply list as one block, empty
// string when the topic carries no reply with text.
func ExtractReplies(topic *ZsxqTopic) string {
	var comments []ZsxqComment
	for _, strategy := range replyStrategies {
		if comments = strategy(topic); len(comments) > 0 {
			break
		}
	}

	lines := []string{}
	for _, c := range comments {
		text := RenderRichText(c.Text)
		if text == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("【%s】: %s", ownerName(c.Owner), text))
	}
	if len(lines) == 0 {
		return ""
	}
	return ReplySeparator + strings.Join(lines, "\n")
}

// ResolveBody picks the body text of a topic, first non-empty of: talk text,
// article title and text, question and answer.
func ResolveBody(topic *ZsxqTopic) string {
	if topic.Talk != nil {
		if text := RenderRichText(topic.Talk.Text); text != "" {
			return text
		}
	}
	if topic.Article != nil {
		article := RenderRichText(topic.Article.Title) + " " + RenderRichText(topic.Article.Text)
		if strings.TrimSpace(article) != "" {
			return article
		}
	}
	if question, answer, ok := questionAndAnswer(topic); ok {
		return formatQA(question, answer)
	}
	return ""
}

// questionAndAnswer looks at the nested pair first and the legacy top level
// fields second.
func questionAndAnswer(topic *ZsxqTopic) (*ZsxqQuestion, *ZsxqAnswer, bool) {
	if qa := topic.QuestionAnswer; qa != nil && (qa.Question != nil || qa.Answer != nil) {
		return qa.Question, qa.Answer, true
	}
	if topic.Question != nil || topic.Answer != nil {
		return topic.Question, topic.Answer, true
	}
	return nil, nil, false
}

func formatQA(question *ZsxqQuestion, answer *ZsxqAnswer) string {
	q, a := "", ""
	if question != nil {
		q = RenderRichText(question.Text)
	}
	if answer != nil {
		a = RenderRichText(answer.Text)
	}
	return fmt.Sprintf("[问答]\n问：%s\n答：%s", q, a)
}

func topicAuthor(topic *ZsxqTopic) string {
	if topic.Talk != nil && topic.Talk.Owner != nil && topic.Talk.Owner.Name != "" {
		return topic.Talk.Owner.Name
	}
	if _, answer, ok := questionAndAnswer(topic); ok && answer != nil {
		return ownerName(answer.Owner)
	}
	return UnknownAuthor
}

func TopicUrl(groupId string, topic *ZsxqTopic) string {
	return fmt.Sprintf("%s/dweb2/index/group/%s/topic/%s", ZsxqWebBase, groupId, FormatId(topic.TopicID))
}

func FilesUrl(groupId string) string {
	return fmt.Sprintf("%s/group/%s/files", ZsxqWebBase, groupId)
}

// TopicToPost normalizes a thread, digest or column topic.
func TopicToPost(groupId string, topic *ZsxqTopic, sectionName string) model.Post {
	return model.Post{
		Id:          FormatId(topic.TopicID),
		Content:     strings.TrimSpace(ResolveBody(topic)) + ExtractReplies(topic),
		Author:      topicAuthor(topic),
		CreateTime:  topic.CreateTime,
		Url:         TopicUrl(groupId, topic),
		SectionName: sectionName,
	}
}

// QuestionToPost normalizes an item of the Q&A listing. The answerer is the
// author since the answer carries the value.
func QuestionToPost(groupId string, topic *ZsxqTopic) model.Post {
	question, answer, _ := questionAndAnswer(topic)
	author := UnknownAuthor
	if answer != nil {
		author = ownerName(answer.Owner)
	}
	return model.Post{
		Id:          FormatId(topic.TopicID),
		Content:     strings.TrimSpace(formatQA(question, answer)) + ExtractReplies(topic),
		Author:      author,
		CreateTime:  topic.CreateTime,
		Url:         TopicUrl(groupId, topic),
		SectionName: SectionQA,
	}
}

// FileToPost records file metadata only, the file itself is never downloaded.
func FileToPost(groupId string, file *ZsxqFile) model.Post {
	return model.Post{
		Id:          "file_" + FormatId(file.FileID),
		Content:     "[文件分享] " + file.Name,
		Author:      ownerName(file.Owner),
		CreateTime:  file.CreateTime,
		Url:         FilesUrl(groupId),
		SectionName: SectionFiles,
	}
}
