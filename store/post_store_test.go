package store

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Luismorlan/zsxqintel/model"
	"github.com/Luismorlan/zsxqintel/utils"
	"github.com/Luismorlan/zsxqintel/utils/dotenv"
)

func TestMain(m *testing.M) {
	dotenv.LoadDotEnvsInTests()
	os.Exit(m.Run())
}

func newPost(id, createTime string) *model.Post {
	return &model.Post{
		Id:          id,
		Content:     "content of " + id,
		Author:      "老王",
		CreateTime:  createTime,
		Url:         "https://wx.zsxq.com/topic/" + id,
		SectionName: "全部主题",
	}
}

func TestInsertAndExists(t *testing.T) {
	s := NewPostStore(utils.CreateTempDB(t))

	exists, err := s.Exists("1")
	require.NoError(t, err)
	assert.False(t, exists)

	inserted, err := s.Insert(newPost("1", "2024-01-01T10:00:00.000+0800"))
	require.NoError(t, err)
	assert.True(t, inserted)

	exists, err = s.Exists("1")
	require.NoError(t, err)
	assert.True(t, exists)

	t.Run("duplicate insert keeps existing row", func(t *testing.T) {
		dup := newPost("1", "2024-01-01T10:00:00.000+0800")
		dup.Content = "changed"
		inserted, err := s.Insert(dup)
		require.NoError(t, err)
		assert.False(t, inserted)

		got, err := s.Get("1")
		require.NoError(t, err)
		assert.Equal(t, "content of 1", got.Content)
	})

	t.Run("inserted post starts unanalyzed", func(t *testing.T) {
		p := newPost("2", "2024-01-02T10:00:00.000+0800")
		p.IsAnalyzed = model.Analyzed
		p.Ticker = "leak"
		_, err := s.Insert(p)
		require.NoError(t, err)

		got, err := s.Get("2")
		require.NoError(t, err)
		assert.Equal(t, model.Unanalyzed, got.IsAnalyzed)
		assert.Empty(t, got.Ticker)
	})
}

func TestGetMissing(t *testing.T) {
	s := NewPostStore(utils.CreateTempDB(t))
	_, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestListUnanalyzedOrdering(t *testing.T) {
	s := NewPostStore(utils.CreateTempDB(t))
	for _, p := range []*model.Post{
		newPost("a", "2024-01-01T10:00:00.000+0800"),
		newPost("b", "2024-01-03T10:00:00.000+0800"),
		newPost("c", "2024-01-02T10:00:00.000+0800"),
		newPost("d", "2024-01-03T10:00:00.000+0800"),
	} {
		_, err := s.Insert(p)
		require.NoError(t, err)
	}

	posts, err := s.ListUnanalyzed(3)
	require.NoError(t, err)
	ids := []string{}
	for _, p := range posts {
		ids = append(ids, p.Id)
	}
	assert.Equal(t, []string{"d", "b", "c"}, ids)

	count, err := s.CountUnanalyzed()
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}

func TestRecordAnalysis(t *testing.T) {
	s := NewPostStore(utils.CreateTempDB(t))
	_, err := s.Insert(newPost("1", "2024-01-01T10:00:00.000+0800"))
	require.NoError(t, err)

	require.NoError(t, s.RecordAnalysis("1", &model.AnalysisResult{
		IsValuable: true,
		Ticker:     "600519 贵州茅台",
		Suggestion: "买入",
	}))

	got, err := s.Get("1")
	require.NoError(t, err)
	assert.Equal(t, model.Analyzed, got.IsAnalyzed)
	assert.Equal(t, "600519 贵州茅台", got.Ticker)
	assert.Equal(t, "买入", got.Suggestion)
	assert.Equal(t, model.NoneSentinel, got.Logic)
	assert.Equal(t, model.NoneSentinel, got.AiSummary)

	count, err := s.CountUnanalyzed()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	total, err := s.CountAll()
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	t.Run("missing post", func(t *testing.T) {
		err := s.RecordAnalysis("missing", model.SkipAnalysisResult())
		assert.ErrorIs(t, err, ErrPostNotFound)
	})
}

func TestUpdateContentResetsAnalysis(t *testing.T) {
	s := NewPostStore(utils.CreateTempDB(t))
	_, err := s.Insert(newPost("1", "2024-01-01T10:00:00.000+0800"))
	require.NoError(t, err)
	require.NoError(t, s.RecordAnalysis("1", model.SkipAnalysisResult()))

	updated, err := s.UpdateContent("1", "new content")
	require.NoError(t, err)
	assert.True(t, updated)

	got, err := s.Get("1")
	require.NoError(t, err)
	assert.Equal(t, "new content", got.Content)
	assert.Equal(t, model.Unanalyzed, got.IsAnalyzed)

	updated, err = s.UpdateContent("missing", "x")
	require.NoError(t, err)
	assert.False(t, updated)
}
