// Package filter rejects low-signal posts before they consume classification
// quota. Short or unattributed items are mostly noise in this domain.
package filter

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/Luismorlan/zsxqintel/collector"
	"github.com/Luismorlan/zsxqintel/model"
	"github.com/Luismorlan/zsxqintel/utils"
)

const (
	MinContentLength       = 50
	MinFileContentLength   = 100
	MinUnknownAuthorLength = 200
	NullFileId             = "file_" + collector.NullIdMarker
)

var (
	ErrInvalidId           = errors.New("invalid post id")
	ErrContentTooShort     = errors.New("content too short")
	ErrFileContentTooShort = errors.New("file share content too short")
	ErrUnknownAuthorShort  = errors.New("unknown author with short content")
)

// Validate returns nil when the post is worth analyzing, otherwise one of the
// Err* sentinels wrapped with the reason.
func Validate(post *model.Post) error {
	if post.Id == "" || post.Id == NullFileId || strings.Contains(post.Id, collector.NullIdMarker) {
		return errors.Wrapf(ErrInvalidId, "id %q", post.Id)
	}

	trimmedLength := utils.RuneLen(strings.TrimSpace(post.Content))
	if post.Content == "" || trimmedLength < MinContentLength {
		return errors.Wrapf(ErrContentTooShort, "length %d", trimmedLength)
	}

	length := utils.RuneLen(post.Content)
	if post.SectionName == collector.SectionFiles && length < MinFileContentLength {
		return errors.Wrapf(ErrFileContentTooShort, "length %d", length)
	}
	if post.Author == collector.UnknownAuthor && length < MinUnknownAuthorLength {
		return errors.Wrapf(ErrUnknownAuthorShort, "length %d", length)
	}
	return nil
}

func IsValidPost(post *model.Post) bool {
	return Validate(post) == nil
}
