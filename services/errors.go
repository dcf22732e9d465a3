package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Не найдено
	ErrNotFound           = errors.New("requested resource not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrRaceNotFound       = errors.New("race not found")
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrGroupNotFound      = errors.New("group not found")
	ErrPickemsNotFound    = errors.New("pickems entry not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed           = errors.New("validation failed")
	ErrInvalidResults             = errors.New("invalid race results")
	ErrInvalidRacers              = errors.New("invalid racers")
	ErrRaceCancelled              = errors.New("race is cancelled")
	ErrRoundIncomplete            = errors.New("round has races that are not completed")
	ErrTournamentFinished         = errors.New("tournament is already completed")
	ErrRoundNotOpenForPicks       = errors.New("picks can only be submitted for the current round")
	ErrPickemsAlreadySubmitted    = errors.New("one-off picks have already been submitted")
	ErrRoundPicksAlreadySubmitted = errors.New("picks for this round have already been submitted")
	ErrInvalidPicks               = errors.New("invalid picks")
	ErrCutNotAvailable            = errors.New("top cut is only available after the swiss rounds")
	ErrCommentatorLimit           = errors.New("commentator limit reached for this race")
	ErrAlreadyCommentator         = errors.New("user is already a commentator for this race")
	ErrNotCommentator             = errors.New("user is not a commentator for this race")
	ErrNotInGroup                 = errors.New("user is not assigned to any group")
	ErrInvalidGroup               = errors.New("invalid group")
	ErrRacerAlreadyScheduled      = errors.New("racer already has an active race this round")

	// Конфликты
	ErrRaceAlreadyCompleted   = errors.New("race is already completed with different results")
	ErrRaceTimeIDConflict     = errors.New("race time id is already used by another race")
	ErrUserDiscordConflict    = errors.New("discord username is already registered")
	ErrGroupNumberConflict    = errors.New("group number already exists")
	ErrTournamentNameConflict = errors.New("tournament name already exists")

	// Авторизация
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrForbiddenOperation   = errors.New("operation not allowed for the current user")
)
