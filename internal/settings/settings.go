// Package settings persists user preferences in a badger key/value store.
package settings

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/mangashelf/mangashelf/internal/domain"
	"github.com/mangashelf/mangashelf/internal/errors"
	"github.com/mangashelf/mangashelf/internal/normalize"
	"github.com/mangashelf/mangashelf/internal/validation"
)

// Keys. Enumerated values are stored as integers, see enum.go.
const (
	KeyDarkTheme               = "dark-theme"
	KeyNightLight              = "night-light"
	KeyDesktopNotifications    = "desktop-notifications"
	KeyUpdateAtStartup         = "update-at-startup"
	KeyNewChaptersAutoDownload = "new-chapters-auto-download"
	KeyLongStripDetection      = "long-strip-detection"
	KeyNSFWContent             = "nsfw-content"
	KeyServersLanguages        = "servers-languages"
	KeyPinnedServers           = "pinned-servers"
	KeyServersSettings         = "servers-settings"
	KeyReadingMode             = "reading-mode"
	KeyScaling                 = "scaling"
	KeyBackgroundColor         = "background-color"
	KeyBordersCrop             = "borders-crop"
	KeyFullscreen              = "fullscreen"
	KeySelectedCategory        = "selected-category"
	KeyWindowSize              = "window-size"
	KeyDownloaderState         = "downloader-state"
	KeyCredentialsPlaintext    = "credentials-storage-plaintext-fallback"
	keyLegacyReadingDirection  = "reading-direction"
	keyPrefix                  = "settings:"
)

var boolDefaults = map[string]bool{
	KeyDarkTheme:               false,
	KeyNightLight:              false,
	KeyDesktopNotifications:    false,
	KeyUpdateAtStartup:         false,
	KeyNewChaptersAutoDownload: false,
	KeyLongStripDetection:      true,
	KeyNSFWContent:             true,
	KeyBordersCrop:             false,
	KeyFullscreen:              false,
	KeyDownloaderState:         false,
	KeyCredentialsPlaintext:    false,
}

// ProviderSettings is the per-provider part of servers-settings, keyed by
// provider main id.
type ProviderSettings struct {
	Enabled bool            `json:"enabled"`
	Langs   map[string]bool `json:"langs,omitempty"`
}

// WindowSize is the last main window size.
type WindowSize struct {
	Width  int `json:"width" validate:"gte=360"`
	Height int `json:"height" validate:"gte=360"`
}

// Settings is the preference store. Getters return the default when a key is
// missing or unreadable; setters report errors.
type Settings struct {
	db        *badger.DB
	logger    *slog.Logger
	validator *validation.Validator
	// mu serializes read-modify-write updates.
	mu sync.Mutex
}

// Open opens or creates the store in dir.
func Open(dir string, logger *slog.Logger) (*Settings, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	return open(opts, logger)
}

// OpenInMemory opens a store that lives only as long as the process.
func OpenInMemory(logger *slog.Logger) (*Settings, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts, logger)
}

func open(opts badger.Options, logger *slog.Logger) (*Settings, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabase, "open settings store")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger.Info("settings store opened", "path", opts.Dir, "in_memory", opts.InMemory)
	return &Settings{db: db, logger: logger, validator: validation.New()}, nil
}

// Close flushes and closes the store.
func (s *Settings) Close() error {
	return s.db.Close()
}

// get decodes key into dest and reports whether it was present.
func (s *Settings) get(key string, dest any) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dest)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, errors.CodeDatabase, "read setting %s", key)
	}
	return true, nil
}

func (s *Settings) set(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal setting %s: %w", key, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+key), data)
	})
	if err != nil {
		return errors.Wrapf(err, errors.CodeDatabase, "write setting %s", key)
	}
	return nil
}

// lookup reads key into dest, logging and keeping dest untouched on failure.
func (s *Settings) lookup(key string, dest any) bool {
	ok, err := s.get(key, dest)
	if err != nil {
		s.logger.Warn("using default for unreadable setting", "key", key, "error", err)
		return false
	}
	return ok
}

// Bool returns a boolean setting.
func (s *Settings) Bool(key string) bool {
	v := boolDefaults[key]
	s.lookup(key, &v)
	return v
}

// SetBool stores a boolean setting.
func (s *Settings) SetBool(key string, v bool) error {
	if _, ok := boolDefaults[key]; !ok {
		return errors.Validationf("unknown boolean setting %q", key)
	}
	return s.set(key, v)
}

// NSFWContent reports whether NSFW providers are offered.
func (s *Settings) NSFWContent() bool { return s.Bool(KeyNSFWContent) }

// LongStripDetection reports whether long-strip genres switch new works to
// the webtoon reading mode.
func (s *Settings) LongStripDetection() bool { return s.Bool(KeyLongStripDetection) }

// BordersCrop reports whether the reader trims page margins by default.
func (s *Settings) BordersCrop() bool { return s.Bool(KeyBordersCrop) }

// NewChaptersAutoDownload reports whether refreshed chapters are queued for
// download.
func (s *Settings) NewChaptersAutoDownload() bool { return s.Bool(KeyNewChaptersAutoDownload) }

// DesktopNotifications reports whether desktop notifications are sent.
func (s *Settings) DesktopNotifications() bool { return s.Bool(KeyDesktopNotifications) }

// UpdateAtStartup reports whether the library is refreshed at startup.
func (s *Settings) UpdateAtStartup() bool { return s.Bool(KeyUpdateAtStartup) }

// DownloaderState reports whether the downloader was running when the
// process last stopped.
func (s *Settings) DownloaderState() bool { return s.Bool(KeyDownloaderState) }

// SetDownloaderState records whether the downloader should resume.
func (s *Settings) SetDownloaderState(running bool) error {
	return s.set(KeyDownloaderState, running)
}

// CredentialsPlaintextFallback reports whether credentials may be stored in
// a plaintext file.
func (s *Settings) CredentialsPlaintextFallback() bool { return s.Bool(KeyCredentialsPlaintext) }

// Languages returns the enabled provider languages. Empty allows all.
func (s *Settings) Languages() []string {
	var langs []string
	s.lookup(KeyServersLanguages, &langs)
	return langs
}

// SetLanguages replaces the enabled provider languages.
func (s *Settings) SetLanguages(langs []string) error {
	out := make([]string, 0, len(langs))
	for _, l := range langs {
		if code := normalize.Locale(l); code != "" {
			l = code
		}
		if err := s.validator.Var(l, "lang"); err != nil {
			return err
		}
		out = append(out, l)
	}
	return s.set(KeyServersLanguages, dedupe(out))
}

// AddLanguage enables one language.
func (s *Settings) AddLanguage(lang string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.SetLanguages(append(s.Languages(), lang))
}

// RemoveLanguage disables one language.
func (s *Settings) RemoveLanguage(lang string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code := normalize.Locale(lang); code != "" {
		lang = code
	}
	langs := slices.DeleteFunc(s.Languages(), func(l string) bool { return l == lang })
	return s.set(KeyServersLanguages, langs)
}

// PinnedServers returns the pinned provider ids.
func (s *Settings) PinnedServers() []string {
	var ids []string
	s.lookup(KeyPinnedServers, &ids)
	return ids
}

// TogglePinnedServer pins or unpins a provider.
func (s *Settings) TogglePinnedServer(id string, pinned bool) error {
	if err := s.validator.Var(id, "provider_id"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := slices.DeleteFunc(s.PinnedServers(), func(p string) bool { return p == id })
	if pinned {
		ids = append(ids, id)
	}
	return s.set(KeyPinnedServers, ids)
}

// ServersSettings returns the per-provider settings keyed by main id.
func (s *Settings) ServersSettings() map[string]ProviderSettings {
	out := map[string]ProviderSettings{}
	s.lookup(KeyServersSettings, &out)
	return out
}

// ProviderEnabled reports whether a provider is enabled. Providers are
// enabled until disabled.
func (s *Settings) ProviderEnabled(mainID string) bool {
	ps, ok := s.ServersSettings()[mainID]
	return !ok || ps.Enabled
}

// ProviderLangEnabled reports whether one language of a provider is enabled.
func (s *Settings) ProviderLangEnabled(mainID, lang string) bool {
	ps, ok := s.ServersSettings()[mainID]
	if !ok || ps.Langs == nil {
		return true
	}
	enabled, ok := ps.Langs[lang]
	return !ok || enabled
}

// SetProviderEnabled enables or disables a provider and all its languages.
func (s *Settings) SetProviderEnabled(mainID string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.ServersSettings()
	ps := all[mainID]
	ps.Enabled = enabled
	all[mainID] = ps
	return s.set(KeyServersSettings, all)
}

// SetProviderLangEnabled enables or disables one language of a provider.
func (s *Settings) SetProviderLangEnabled(mainID, lang string, enabled bool) error {
	if err := s.validator.Var(lang, "lang"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.ServersSettings()
	ps, ok := all[mainID]
	if !ok {
		ps.Enabled = true
	}
	if ps.Langs == nil {
		ps.Langs = map[string]bool{}
	}
	ps.Langs[lang] = enabled
	all[mainID] = ps
	return s.set(KeyServersSettings, all)
}

// SelectedCategory returns the selected library category, 0 for all works.
func (s *Settings) SelectedCategory() int64 {
	var id int64
	s.lookup(KeySelectedCategory, &id)
	return id
}

// SetSelectedCategory stores the selected library category.
func (s *Settings) SetSelectedCategory(id int64) error {
	return s.set(KeySelectedCategory, id)
}

// WindowSize returns the stored window size.
func (s *Settings) WindowSize() WindowSize {
	size := WindowSize{Width: 360, Height: 648}
	s.lookup(KeyWindowSize, &size)
	return size
}

// SetWindowSize stores the window size.
func (s *Settings) SetWindowSize(size WindowSize) error {
	if err := s.validator.Validate(size); err != nil {
		return err
	}
	return s.set(KeyWindowSize, size)
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// ReaderDefaults are the global reader preferences a work falls back to.
type ReaderDefaults struct {
	ReadingMode     domain.ReadingMode
	Scaling         domain.Scaling
	BackgroundColor string
	BordersCrop     bool
}

// Reader returns the global reader preferences.
func (s *Settings) Reader() ReaderDefaults {
	return ReaderDefaults{
		ReadingMode:     s.ReadingMode(),
		Scaling:         s.Scaling(),
		BackgroundColor: s.BackgroundColor(),
		BordersCrop:     s.BordersCrop(),
	}
}
