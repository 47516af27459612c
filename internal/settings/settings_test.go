package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangashelf/mangashelf/internal/domain"
	"github.com/mangashelf/mangashelf/internal/errors"
	"github.com/mangashelf/mangashelf/internal/logger"
	"github.com/mangashelf/mangashelf/internal/provider"
)

var _ provider.Preferences = (*Settings)(nil)

func newTestSettings(t *testing.T) *Settings {
	t.Helper()
	s, err := OpenInMemory(logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDefaults(t *testing.T) {
	s := newTestSettings(t)

	assert.True(t, s.LongStripDetection())
	assert.True(t, s.NSFWContent())
	assert.False(t, s.NewChaptersAutoDownload())
	assert.False(t, s.DownloaderState())
	assert.Empty(t, s.Languages())
	assert.Equal(t, domain.ReadingModeRTL, s.ReadingMode())
	assert.Equal(t, domain.ScalingScreen, s.Scaling())
	assert.Equal(t, "white", s.BackgroundColor())
	assert.Equal(t, WindowSize{Width: 360, Height: 648}, s.WindowSize())
	assert.True(t, s.ProviderEnabled("mangadex"))
	assert.True(t, s.ProviderLangEnabled("mangadex", "fr"))
}

func TestBool(t *testing.T) {
	s := newTestSettings(t)
	require.NoError(t, s.SetBool(KeyNewChaptersAutoDownload, true))
	assert.True(t, s.NewChaptersAutoDownload())

	err := s.SetBool("no-such-key", true)
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestEnumsStoredAsIntegers(t *testing.T) {
	s := newTestSettings(t)
	require.NoError(t, s.SetReadingMode(domain.ReadingModeWebtoon))
	require.NoError(t, s.SetScaling(domain.ScalingOriginal))
	require.NoError(t, s.SetBackgroundColor("black"))

	var raw int
	ok, err := s.get(KeyReadingMode, &raw)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, raw)

	assert.Equal(t, domain.ReadingModeWebtoon, s.ReadingMode())
	assert.Equal(t, domain.ScalingOriginal, s.Scaling())
	assert.Equal(t, "black", s.BackgroundColor())

	assert.ErrorIs(t, s.SetReadingMode("sideways"), errors.ErrValidation)
}

func TestReadingModeFallsBackToLegacyKey(t *testing.T) {
	s := newTestSettings(t)
	require.NoError(t, s.set(keyLegacyReadingDirection, 1))
	assert.Equal(t, domain.ReadingModeLTR, s.ReadingMode())

	require.NoError(t, s.SetReadingMode(domain.ReadingModeVertical))
	assert.Equal(t, domain.ReadingModeVertical, s.ReadingMode())
}

func TestOutOfRangeEnumUsesDefault(t *testing.T) {
	s := newTestSettings(t)
	require.NoError(t, s.set(KeyScaling, 42))
	assert.Equal(t, domain.ScalingScreen, s.Scaling())
}

func TestLanguages(t *testing.T) {
	s := newTestSettings(t)
	require.NoError(t, s.AddLanguage("en"))
	require.NoError(t, s.AddLanguage("pt_BR"))
	require.NoError(t, s.AddLanguage("en"))
	assert.Equal(t, []string{"en", "pt_BR"}, s.Languages())

	require.NoError(t, s.RemoveLanguage("en"))
	assert.Equal(t, []string{"pt_BR"}, s.Languages())

	require.NoError(t, s.AddLanguage("English"))
	require.NoError(t, s.AddLanguage("pt-br"))
	assert.Equal(t, []string{"pt_BR", "en"}, s.Languages())

	require.NoError(t, s.RemoveLanguage("english"))
	assert.Equal(t, []string{"pt_BR"}, s.Languages())

	assert.Error(t, s.AddLanguage("klingon"))
}

func TestProviderSettings(t *testing.T) {
	s := newTestSettings(t)
	require.NoError(t, s.SetProviderLangEnabled("mangadex", "fr", false))
	assert.True(t, s.ProviderEnabled("mangadex"))
	assert.False(t, s.ProviderLangEnabled("mangadex", "fr"))
	assert.True(t, s.ProviderLangEnabled("mangadex", "en"))

	require.NoError(t, s.SetProviderEnabled("mangadex", false))
	assert.False(t, s.ProviderEnabled("mangadex"))
	assert.False(t, s.ProviderLangEnabled("mangadex", "fr"), "language flags survive")
}

func TestPinnedServers(t *testing.T) {
	s := newTestSettings(t)
	require.NoError(t, s.TogglePinnedServer("mangadex", true))
	require.NoError(t, s.TogglePinnedServer("webtoon_fr", true))
	require.NoError(t, s.TogglePinnedServer("mangadex", false))
	assert.Equal(t, []string{"webtoon_fr"}, s.PinnedServers())
	assert.Error(t, s.TogglePinnedServer("Bad Id", true))
}

func TestWindowSizeValidated(t *testing.T) {
	s := newTestSettings(t)
	require.NoError(t, s.SetWindowSize(WindowSize{Width: 800, Height: 600}))
	assert.Equal(t, WindowSize{Width: 800, Height: 600}, s.WindowSize())
	assert.Error(t, s.SetWindowSize(WindowSize{Width: 10, Height: 600}))
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, logger.Discard())
	require.NoError(t, err)
	require.NoError(t, s.SetDownloaderState(true))
	require.NoError(t, s.SetSelectedCategory(7))
	require.NoError(t, s.Close())

	s, err = Open(dir, logger.Discard())
	require.NoError(t, err)
	defer s.Close()
	assert.True(t, s.DownloaderState())
	assert.Equal(t, int64(7), s.SelectedCategory())
}
