package settings

import (
	"slices"

	"github.com/mangashelf/mangashelf/internal/domain"
	"github.com/mangashelf/mangashelf/internal/errors"
)

// The position of each value is what is stored on disk. Append only.
var (
	readingModes = []domain.ReadingMode{
		domain.ReadingModeRTL,
		domain.ReadingModeLTR,
		domain.ReadingModeVertical,
		domain.ReadingModeWebtoon,
	}
	scalings = []domain.Scaling{
		domain.ScalingScreen,
		domain.ScalingWidth,
		domain.ScalingHeight,
		domain.ScalingOriginal,
	}
	backgroundColors = []string{"white", "black", "gray", "system-style"}
)

// legacyReadingDirections were stored under reading-direction before the
// vertical and webtoon modes were split out.
var legacyReadingDirections = []domain.ReadingMode{
	domain.ReadingModeRTL,
	domain.ReadingModeLTR,
	domain.ReadingModeVertical,
}

// getEnum reads an integer-mapped setting. It returns false when the key is
// missing or out of range.
func getEnum[T any](s *Settings, key string, values []T) (T, bool) {
	var zero T
	var i int
	if !s.lookup(key, &i) {
		return zero, false
	}
	if i < 0 || i >= len(values) {
		s.logger.Warn("ignoring out of range setting", "key", key, "value", i)
		return zero, false
	}
	return values[i], true
}

func setEnum[T comparable](s *Settings, key string, values []T, v T) error {
	i := slices.Index(values, v)
	if i < 0 {
		return errors.Validationf("invalid value %v for %s", v, key)
	}
	return s.set(key, i)
}

// ReadingMode returns the default reading mode, reading the legacy
// reading-direction key when reading-mode was never written.
func (s *Settings) ReadingMode() domain.ReadingMode {
	if m, ok := getEnum(s, KeyReadingMode, readingModes); ok {
		return m
	}
	if m, ok := getEnum(s, keyLegacyReadingDirection, legacyReadingDirections); ok {
		return m
	}
	return domain.ReadingModeRTL
}

// SetReadingMode stores the default reading mode.
func (s *Settings) SetReadingMode(m domain.ReadingMode) error {
	return setEnum(s, KeyReadingMode, readingModes, m)
}

// Scaling returns the default page scaling.
func (s *Settings) Scaling() domain.Scaling {
	if v, ok := getEnum(s, KeyScaling, scalings); ok {
		return v
	}
	return domain.ScalingScreen
}

// SetScaling stores the default page scaling.
func (s *Settings) SetScaling(v domain.Scaling) error {
	return setEnum(s, KeyScaling, scalings, v)
}

// BackgroundColor returns the reader background color.
func (s *Settings) BackgroundColor() string {
	if v, ok := getEnum(s, KeyBackgroundColor, backgroundColors); ok {
		return v
	}
	return "white"
}

// SetBackgroundColor stores the reader background color.
func (s *Settings) SetBackgroundColor(v string) error {
	return setEnum(s, KeyBackgroundColor, backgroundColors, v)
}
