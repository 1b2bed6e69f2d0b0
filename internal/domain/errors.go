package domain

import "errors"

// Submission rejections. Each one is reported to the respondent as is.
var (
	ErrUnknownIdentity         = errors.New("this email is unknown")
	ErrSendingNotFound         = errors.New("this quiz does not exist, check the date")
	ErrNotAuthorizedForSending = errors.New("this quiz is not meant for you")
	ErrQuestionNotFound        = errors.New("this question is not part of the quiz")
	ErrNoAnswerProvided        = errors.New("no answer was provided")
	ErrInvalidOption           = errors.New("the chosen option does not exist")
	ErrDuplicateAnswer         = errors.New("an answer was already given to this question")
	ErrSendingClosed           = errors.New("this quiz is now over")
)

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrGroupNotFound indicates a sending references a missing group.
	ErrGroupNotFound = errors.New("group not found")
	// ErrMalformedIndexList means a stored option list is not a list of non-negative integers.
	ErrMalformedIndexList = errors.New("malformed index list")
	// ErrInvalidAnswer marks a stored answer whose chosen index is out of range.
	ErrInvalidAnswer = errors.New("invalid answer")
	// ErrAlreadyExists reports a uniqueness violation on create.
	ErrAlreadyExists = errors.New("already exists")
	// ErrEmptyReview is returned when a review has no text.
	ErrEmptyReview = errors.New("review text is empty")
)

var rejections = []error{
	ErrUnknownIdentity,
	ErrSendingNotFound,
	ErrNotAuthorizedForSending,
	ErrQuestionNotFound,
	ErrNoAnswerProvided,
	ErrInvalidOption,
	ErrDuplicateAnswer,
	ErrSendingClosed,
	ErrEmptyReview,
}

// IsRejection reports whether err is a user-facing validation failure rather
// than an internal error.
func IsRejection(err error) bool {
	for _, target := range rejections {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
