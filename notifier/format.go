package notifier

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"

	Logger "github.com/Luismorlan/zsxqintel/utils/log"
)

const DisplayTimeLayout = "2006年01月02日 15:04"

// Fractional seconds are accepted by time.Parse without being in the layout.
var createTimeLayouts = []string{
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// FormatCreateTime renders a source timestamp like
// 2026-01-30T10:42:13.766+0800 as 2026年01月30日 10:42, keeping the wall clock
// of the source. Unparseable input is returned unchanged.
func FormatCreateTime(createTime string) string {
	value := strings.TrimSpace(createTime)
	if value == "" {
		return ""
	}
	for _, layout := range createTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(DisplayTimeLayout)
		}
	}
	if t, err := dateparse.ParseIn(value, time.UTC); err == nil {
		return t.Format(DisplayTimeLayout)
	}
	Logger.Log.Warnf("fail to format time '%s', keep as is", createTime)
	return createTime
}
