// Package events carries typed notifications from the library and its
// workers to subscribers such as a UI or the desktop notifier.
package events

import (
	"time"

	"github.com/mangashelf/mangashelf/internal/domain"
)

// Type identifies an event.
type Type string

const (
	// WorkAdded is emitted once per work added to the library.
	WorkAdded Type = "work.added"
	// WorkUpdated is emitted after each refresh attempt, successful or not.
	WorkUpdated Type = "work.updated"
	// WorkDeleted is emitted after a work and its files are removed.
	WorkDeleted Type = "work.deleted"

	// DownloadChanged reports a download row or a finished chapter.
	DownloadChanged Type = "download.changed"
	// DownloaderStarted and DownloaderEnded bracket a downloader run.
	DownloaderStarted Type = "downloader.started"
	DownloaderEnded   Type = "downloader.ended"

	// UpdaterStarted and UpdaterEnded bracket an updater run.
	UpdaterStarted Type = "updater.started"
	UpdaterEnded   Type = "updater.ended"
)

// Event is one notification.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Type      Type      `json:"type"`
}

// WorkAddedData is the payload of WorkAdded.
type WorkAddedData struct {
	Work *domain.Work `json:"work"`
}

// WorkUpdatedData is the payload of WorkUpdated. Err is set when the refresh
// failed.
type WorkUpdatedData struct {
	Work    *domain.Work `json:"work"`
	Recent  int          `json:"recent"`
	Deleted int          `json:"deleted"`
	Synced  bool         `json:"synced"`
	Err     error        `json:"-"`
}

// WorkDeletedData is the payload of WorkDeleted.
type WorkDeletedData struct {
	WorkID int64  `json:"work_id"`
	Name   string `json:"name"`
}

// DownloadChangedData is the payload of DownloadChanged. At most one of
// Download and Chapter is set: Download while it is queued or running,
// Chapter once it finished, neither when a row was removed.
type DownloadChangedData struct {
	Download  *domain.Download `json:"download,omitempty"`
	Chapter   *domain.Chapter  `json:"chapter,omitempty"`
	ChapterID int64            `json:"chapter_id"`
	Err       error            `json:"-"`
}

// UpdaterEndedData summarizes an updater run.
type UpdaterEndedData struct {
	Updated int `json:"updated"`
	Recent  int `json:"recent"`
	Errors  int `json:"errors"`
}

// DownloaderEndedData summarizes a downloader run.
type DownloaderEndedData struct {
	Completed int  `json:"completed"`
	Failed    int  `json:"failed"`
	Stopped   bool `json:"stopped"`
}

// New stamps an event with the current time.
func New(t Type, data any) Event {
	return Event{Timestamp: time.Now(), Type: t, Data: data}
}

// Emitter accepts events.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

// Emit calls f.
func (f EmitterFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Emitter = EmitterFunc(func(Event) {})
