package service

import "errors"

var (
	// ErrContestNotFound indicates the contest does not exist.
	ErrContestNotFound = errors.New("contest not found")
	// ErrContestNameTaken indicates another contest already uses the name.
	ErrContestNameTaken = errors.New("contest name already taken")
	// ErrInvalidContest indicates contest input that passed tag validation but breaks a rule.
	ErrInvalidContest = errors.New("invalid contest")
	// ErrContestFull indicates the participant cap is reached.
	ErrContestFull = errors.New("contest is full")
	// ErrContestClosed indicates the contest has ended.
	ErrContestClosed = errors.New("contest has ended")
	// ErrContestNotStarted indicates the contest has not started yet.
	ErrContestNotStarted = errors.New("contest has not started")
	// ErrParticipantNotFound indicates the user is not a member of the contest.
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrProblemNotFound indicates the problem is unknown to the contest or the catalog.
	ErrProblemNotFound = errors.New("problem not found")
	// ErrProblemAlreadyAdded indicates the problem is already part of the contest.
	ErrProblemAlreadyAdded = errors.New("problem already added to contest")
	// ErrUserNotFound indicates the user is unknown.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserHandleMissing indicates the user has not registered a judge username.
	ErrUserHandleMissing = errors.New("user has no judge username")
	// ErrUsernameTaken indicates another user registered the judge username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrCatalogUnavailable indicates the external catalog failed.
	ErrCatalogUnavailable = errors.New("problem catalog unavailable")
)

func normalizePage(page int) int {
	if page <= 0 {
		return 1
	}
	return page
}

func clampPageSize(size int) int {
	if size <= 0 {
		return 20
	}
	if size > 100 {
		return 100
	}
	return size
}
