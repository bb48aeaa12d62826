package model

/*

Post is one normalized piece of community content the collector fetched.

Id: primary key. Topic id for threads, "file_<file_id>" for shared files.
Content: resolved body text with reply text appended after the reply marker.
Author: display name of the owner, "Unknown" when the source omits it.
CreateTime: source timestamp string, stored as is and parsed only for display.
Url: deep link back to the source item.
SectionName: label of the source kind, e.g. "精华主题", a column name, "文件分享", "问答".

IsAnalyzed: analysis lifecycle flag, see AnalysisState.
Ticker, Suggestion, Logic, AiSummary: analysis outputs, empty until analyzed and
	always written together with IsAnalyzed.
*/
type Post struct {
	Id          string `gorm:"primaryKey"`
	Content     string
	Author      string
	CreateTime  string `gorm:"index"`
	Url         string
	SectionName string

	IsAnalyzed AnalysisState `gorm:"column:is_analyzed;default:0;index"`
	Ticker     string
	Suggestion string
	Logic      string
	AiSummary  string `gorm:"column:ai_summary"`
}

// The table name predates this service and is shared with existing deployments.
func (Post) TableName() string {
	return "investment_posts"
}

// AnalysisState is the two-valued lifecycle flag of a post. Posts rejected by
// the validity filter are also Analyzed, carrying the skip sentinels.
type AnalysisState int

const (
	Unanalyzed AnalysisState = 0
	Analyzed   AnalysisState = 1
)

func (s AnalysisState) String() string {
	if s == Analyzed {
		return "analyzed"
	}
	return "unanalyzed"
}
