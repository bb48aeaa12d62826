package pipeline

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Luismorlan/zsxqintel/analyzer"
	"github.com/Luismorlan/zsxqintel/collector"
	"github.com/Luismorlan/zsxqintel/deduplicator"
	"github.com/Luismorlan/zsxqintel/model"
	"github.com/Luismorlan/zsxqintel/notifier"
	"github.com/Luismorlan/zsxqintel/store"
	"github.com/Luismorlan/zsxqintel/utils"
	"github.com/Luismorlan/zsxqintel/utils/dotenv"
)

func TestMain(m *testing.M) {
	dotenv.LoadDotEnvsInTests()
	os.Exit(m.Run())
}

type fakeSource struct {
	result    *collector.FetchResult
	groups    []collector.ZsxqGroup
	groupsErr error
	fetchedId string
}

func (s *fakeSource) FetchAll(ctx context.Context, groupId string) *collector.FetchResult {
	s.fetchedId = groupId
	posts := make([]model.Post, len(s.result.Posts))
	copy(posts, s.result.Posts)
	return &collector.FetchResult{Posts: posts, FailedCalls: s.result.FailedCalls}
}

func (s *fakeSource) GetUserGroups(ctx context.Context) ([]collector.ZsxqGroup, error) {
	return s.groups, s.groupsErr
}

type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Classify(ctx context.Context, systemPrompt string, content string) (string, error) {
	args := m.Called(ctx, systemPrompt, content)
	return args.String(0), args.Error(1)
}

type recordedMessage struct {
	title string
	text  string
}

type recordingNotifier struct {
	messages []recordedMessage
}

func (n *recordingNotifier) SendMarkdown(ctx context.Context, title string, text string) error {
	n.messages = append(n.messages, recordedMessage{title: title, text: text})
	return nil
}

func longContent(n int) string {
	return strings.Repeat("长", n)
}

func newTestProcessor(t *testing.T, source *fakeSource, classifier analyzer.Classifier) (*Processor, *recordingNotifier) {
	db := utils.CreateTempDB(t)
	rec := &recordingNotifier{}
	return &Processor{
		Source:     source,
		Store:      store.NewPostStore(db),
		Analyzer:   analyzer.NewAnalyzer(classifier),
		Limiter:    analyzer.NewRateLimiter(0),
		Dispatcher: notifier.NewDispatcher(rec),
		SeenCache:  deduplicator.NewMemorySeenCache(),
		Config: Config{
			GroupId:        "123",
			MaxPostsPerRun: 10,
			AutoAnalyze:    true,
		},
	}, rec
}

func TestShortPostIsSkippedWithoutClassification(t *testing.T) {
	source := &fakeSource{result: &collector.FetchResult{Posts: []model.Post{
		{Id: "1", Content: "hi", Author: "张三", CreateTime: "2024-01-01T10:00:00.000+0800"},
	}}}
	classifier := &MockClassifier{}
	p, rec := newTestProcessor(t, source, classifier)

	summary, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.New)
	assert.Equal(t, 1, summary.Analysis.Skipped)
	assert.Equal(t, 0, summary.Analysis.Analyzed)

	post, err := p.Store.Get("1")
	require.NoError(t, err)
	assert.Equal(t, model.Analyzed, post.IsAnalyzed)
	assert.Equal(t, model.SkipTicker, post.Ticker)
	assert.Equal(t, model.SkipSuggestion, post.Suggestion)
	classifier.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, rec.messages)
}

func TestValuablePostIsRecordedAndNotifiedOnce(t *testing.T) {
	content := longContent(300)
	source := &fakeSource{result: &collector.FetchResult{Posts: []model.Post{
		{Id: "2", Content: content, Author: "张三", CreateTime: "2024-01-01T10:00:00.000+0800", SectionName: collector.SectionAll},
	}}}
	classifier := &MockClassifier{}
	classifier.On("Classify", mock.Anything, analyzer.SystemPrompt, content).Return(
		`{"is_valuable": true, "ticker": "X", "suggestion": "买入", "logic": "订单超预期", "ai_summary": "看好"}`, nil).Once()
	p, rec := newTestProcessor(t, source, classifier)

	summary, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Analysis.Analyzed)
	assert.Equal(t, 1, summary.Analysis.Valuable)
	assert.Equal(t, 1, summary.Analysis.Notified)

	post, err := p.Store.Get("2")
	require.NoError(t, err)
	assert.Equal(t, model.Analyzed, post.IsAnalyzed)
	assert.Equal(t, "X", post.Ticker)
	assert.Equal(t, "买入", post.Suggestion)
	assert.Equal(t, "订单超预期", post.Logic)
	assert.Equal(t, "看好", post.AiSummary)

	require.Len(t, rec.messages, 1)
	assert.Equal(t, notifier.ReportTitle, rec.messages[0].title)
	assert.Contains(t, rec.messages[0].text, "X")
	classifier.AssertExpectations(t)
}

func TestNotValuablePostIsNotNotified(t *testing.T) {
	content := longContent(120)
	source := &fakeSource{result: &collector.FetchResult{Posts: []model.Post{
		{Id: "3", Content: content, Author: "李四"},
	}}}
	classifier := &MockClassifier{}
	classifier.On("Classify", mock.Anything, mock.Anything, content).Return(`{"is_valuable": false}`, nil)
	p, rec := newTestProcessor(t, source, classifier)

	summary, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Analysis.Analyzed)
	assert.Equal(t, 0, summary.Analysis.Valuable)
	assert.Empty(t, rec.messages)

	post, err := p.Store.Get("3")
	require.NoError(t, err)
	assert.Equal(t, model.NoneSentinel, post.Ticker)
}

func TestAnalysisFailureLeavesPostUnanalyzed(t *testing.T) {
	good := longContent(100)
	bad := longContent(101)
	source := &fakeSource{result: &collector.FetchResult{Posts: []model.Post{
		{Id: "a", Content: bad, Author: "甲", CreateTime: "2024-01-02"},
		{Id: "b", Content: good, Author: "乙", CreateTime: "2024-01-01"},
	}}}
	classifier := &MockClassifier{}
	classifier.On("Classify", mock.Anything, mock.Anything, bad).Return("not json at all", nil)
	classifier.On("Classify", mock.Anything, mock.Anything, good).Return(`{"is_valuable": false}`, nil)
	p, _ := newTestProcessor(t, source, classifier)

	summary, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Analysis.Failed)
	assert.Equal(t, 1, summary.Analysis.Analyzed)

	pending, err := p.Store.ListUnanalyzed(0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "a", pending[0].Id)
	assert.Empty(t, pending[0].Ticker)
}

func TestSecondCycleFindsNothingNew(t *testing.T) {
	source := &fakeSource{result: &collector.FetchResult{Posts: []model.Post{
		{Id: "4", Content: "hi", Author: "张三"},
		{Id: "4", Content: "hi", Author: "张三"},
	}}}
	p, _ := newTestProcessor(t, source, &MockClassifier{})

	first, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.New)
	assert.True(t, first.AnalysisRan)

	second, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, second.Fetched)
	assert.Equal(t, 0, second.New)
	assert.False(t, second.AnalysisRan)

	total, err := p.Store.CountAll()
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestSaveNewPostsWithStaleSeenCache(t *testing.T) {
	p, _ := newTestProcessor(t, &fakeSource{result: &collector.FetchResult{}}, &MockClassifier{})
	require.NoError(t, p.SeenCache.MarkSeen(context.Background(), "42", "43"))
	_, err := p.Store.Insert(&model.Post{Id: "43", Content: "已入库", Author: "张三"})
	require.NoError(t, err)

	newCount := p.SaveNewPosts(context.Background(), []model.Post{
		{Id: "42", Content: longContent(100), Author: "张三"},
		{Id: "43", Content: "已入库", Author: "张三"},
	})
	assert.Equal(t, 1, newCount)

	exists, err := p.Store.Exists("42")
	require.NoError(t, err)
	assert.True(t, exists)
	total, err := p.Store.CountAll()
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestAutoAnalyzeOff(t *testing.T) {
	source := &fakeSource{result: &collector.FetchResult{Posts: []model.Post{
		{Id: "5", Content: longContent(100), Author: "张三"},
	}}}
	classifier := &MockClassifier{}
	p, _ := newTestProcessor(t, source, classifier)
	p.Config.AutoAnalyze = false

	summary, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.New)
	assert.False(t, summary.AnalysisRan)
	classifier.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything, mock.Anything)

	count, err := p.Store.CountUnanalyzed()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRunAnalysisRespectsMaxPostsPerRun(t *testing.T) {
	var posts []model.Post
	for _, id := range []string{"p1", "p2", "p3"} {
		posts = append(posts, model.Post{Id: id, Content: "hi", Author: "张三", CreateTime: "2024-01-0" + id[1:]})
	}
	p, _ := newTestProcessor(t, &fakeSource{result: &collector.FetchResult{}}, &MockClassifier{})
	p.Config.MaxPostsPerRun = 2
	assert.Equal(t, 3, p.SaveNewPosts(context.Background(), posts))

	summary, err := p.RunAnalysis(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.Unanalyzed)
	assert.Equal(t, 2, summary.Selected)
	assert.Equal(t, 2, summary.Skipped)

	pending, err := p.Store.ListUnanalyzed(0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "p1", pending[0].Id)
}

func TestRunAnalysisStopsOnCancel(t *testing.T) {
	p, _ := newTestProcessor(t, &fakeSource{result: &collector.FetchResult{}}, &MockClassifier{})
	p.SaveNewPosts(context.Background(), []model.Post{{Id: "6", Content: longContent(100), Author: "张三"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.RunAnalysis(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackfillResetsChangedPosts(t *testing.T) {
	original := longContent(100)
	source := &fakeSource{result: &collector.FetchResult{Posts: []model.Post{
		{Id: "7", Content: original, Author: "张三"},
		{Id: "8", Content: original, Author: "张三"},
	}}}
	classifier := &MockClassifier{}
	classifier.On("Classify", mock.Anything, mock.Anything, original).Return(`{"is_valuable": false}`, nil)
	p, _ := newTestProcessor(t, source, classifier)

	_, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	count, err := p.Store.CountUnanalyzed()
	require.NoError(t, err)
	require.Equal(t, int64(0), count)

	withReply := original + collector.ReplySeparator + "王五: 补充一下"
	source.result.Posts = []model.Post{
		{Id: "7", Content: withReply, Author: "张三"},
		{Id: "8", Content: original, Author: "张三"},
		{Id: "9", Content: "新帖子", Author: "赵六"},
	}

	summary, err := p.RunBackfill(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Fetched)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Unchanged)
	assert.Equal(t, 1, summary.Inserted)

	pending, err := p.Store.ListUnanalyzed(0)
	require.NoError(t, err)
	ids := []string{}
	for _, post := range pending {
		ids = append(ids, post.Id)
	}
	assert.ElementsMatch(t, []string{"7", "9"}, ids)

	updated, err := p.Store.Get("7")
	require.NoError(t, err)
	assert.Equal(t, withReply, updated.Content)
	assert.Equal(t, model.Unanalyzed, updated.IsAnalyzed)
}

func TestResolveGroupId(t *testing.T) {
	t.Run("configured id", func(t *testing.T) {
		p, rec := newTestProcessor(t, &fakeSource{}, &MockClassifier{})
		id, err := p.ResolveGroupId(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "123", id)
		assert.Empty(t, rec.messages)
	})

	t.Run("id from url", func(t *testing.T) {
		p, _ := newTestProcessor(t, &fakeSource{}, &MockClassifier{})
		p.Config.GroupId = ""
		p.Config.GroupUrl = "https://wx.zsxq.com/dweb2/index/group/88885888"
		id, err := p.ResolveGroupId(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "88885888", id)
	})

	t.Run("bad url", func(t *testing.T) {
		p, rec := newTestProcessor(t, &fakeSource{}, &MockClassifier{})
		p.Config.GroupId = ""
		p.Config.GroupUrl = "https://wx.zsxq.com/dweb2/index"
		_, err := p.ResolveGroupId(context.Background())
		require.ErrorIs(t, err, ErrGroupUnresolved)
		require.Len(t, rec.messages, 1)
		assert.Equal(t, notifier.ErrorTitle, rec.messages[0].title)
	})

	t.Run("first joined group", func(t *testing.T) {
		groupId := int64(4242)
		source := &fakeSource{groups: []collector.ZsxqGroup{{GroupID: &groupId, Name: "价值投资"}}}
		p, rec := newTestProcessor(t, source, &MockClassifier{})
		p.Config.GroupId = ""
		id, err := p.ResolveGroupId(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "4242", id)
		require.Len(t, rec.messages, 1)
		assert.Contains(t, rec.messages[0].text, "价值投资")

		// resolved once per process
		_, err = p.ResolveGroupId(context.Background())
		require.NoError(t, err)
		assert.Len(t, rec.messages, 1)
	})

	t.Run("no groups", func(t *testing.T) {
		source := &fakeSource{groupsErr: errors.New("boom")}
		p, rec := newTestProcessor(t, source, &MockClassifier{})
		p.Config.GroupId = ""
		_, err := p.ResolveGroupId(context.Background())
		require.ErrorIs(t, err, ErrGroupUnresolved)
		require.Len(t, rec.messages, 1)
		assert.Equal(t, notifier.ErrorTitle, rec.messages[0].title)
	})
}
