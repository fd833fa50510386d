package alert

import "codeberg.org/mutker/nvidiamon/internal/errors"

const (
	ErrNotifyFailed      = errors.ErrorCode("alert_notify_failed")
	ErrSoundLoadFailed   = errors.ErrorCode("alert_sound_load_failed")
	ErrSoundDecodeFailed = errors.ErrorCode("alert_sound_decode_failed")
	ErrSoundNotLoaded    = errors.ErrorCode("alert_sound_not_loaded")
	ErrSoundPlayFailed   = errors.ErrorCode("alert_sound_play_failed")
)
