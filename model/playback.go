package model

import "time"

// Keys under which the synchronization snapshot is published.
const (
	KeySongPath      = "song-path"
	KeySongStartData = "song-start-data"
	KeyBiSi          = "bi-si"
	KeySnapshot      = "snapshot"
)

// DefaultModulus wraps the reference timestamp so clients can compute
// (now - t) mod m with small float values.
const DefaultModulus int64 = 100000

// Snapshot is a read-only, internally consistent description of what is
// playing and since when. Every field belongs to the same transition.
type Snapshot struct {
	Generation   uint64    `json:"generation"`
	Handle       string    `json:"handle"`
	Name         string    `json:"name"`
	Title        string    `json:"title,omitempty"`
	Duration     int       `json:"duration"`
	StartedAt    time.Time `json:"startedAt"`
	Reference    float64   `json:"t"`   // StartedAt in unix seconds, wrapped by Modulus
	Modulus      int64     `json:"mod"` // Always > 0
	BackgroundID int       `json:"bi"`
	SessionID    string    `json:"si"`
}

// SongPath is the payload stored under KeySongPath.
type SongPath struct {
	Path string `json:"path"`
}

// SongStartData is the payload stored under KeySongStartData.
type SongStartData struct {
	T   float64 `json:"t"`
	Mod int64   `json:"mod"`
}

// BiSi is the payload stored under KeyBiSi.
type BiSi struct {
	BackgroundID int    `json:"bi"`
	SessionID    string `json:"si"`
}

// Idle reports whether the snapshot marks that nothing is on air.
func (s Snapshot) Idle() bool {
	return s.Name == ""
}

// SongPath returns the legacy song-path payload of the snapshot.
func (s Snapshot) SongPath() SongPath {
	return SongPath{Path: s.Handle}
}

// StartData returns the legacy timing tuple of the snapshot.
func (s Snapshot) StartData() SongStartData {
	return SongStartData{T: s.Reference, Mod: s.Modulus}
}

// BiSi returns the legacy background/session payload of the snapshot.
func (s Snapshot) BiSi() BiSi {
	return BiSi{BackgroundID: s.BackgroundID, SessionID: s.SessionID}
}

// PlayHistory records one broadcast transition.
type PlayHistory struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Generation   uint64    `json:"generation"`
	TrackName    string    `json:"trackName" gorm:"size:255;index;not null"`
	Title        string    `json:"title" gorm:"size:255"`
	Duration     int       `json:"duration"`
	SessionID    string    `json:"sessionId" gorm:"size:36;uniqueIndex"`
	BackgroundID int       `json:"backgroundId"`
	PlayedAt     time.Time `json:"playedAt" gorm:"index"`
}

// TableName pins the table name.
func (PlayHistory) TableName() string {
	return "play_history"
}
