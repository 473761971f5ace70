package models

import "time"

type ActivityLog struct {
	ID                uint64    `gorm:"primarykey" json:"id"`
	Timestamp         time.Time `gorm:"not null" json:"timestamp"`
	KeyboardStrokes   int       `gorm:"not null;default:0" json:"keyboard_strokes"`
	MouseClicks       int       `gorm:"not null;default:0" json:"mouse_clicks"`
	MouseMoves        int       `gorm:"not null;default:0" json:"mouse_moves"`
	ScrollEvents      int       `gorm:"not null;default:0" json:"scroll_events"`
	ActiveWindowTitle string    `gorm:"type:varchar(500)" json:"active_window_title"`
	ActiveApplication string    `gorm:"type:varchar(255)" json:"active_application"`
	URLVisited        string    `gorm:"type:varchar(1000)" json:"url_visited"`
	ProductivityScore *float64  `json:"productivity_score"` // 0.0 to 1.0
	IsProductive      bool      `gorm:"not null" json:"is_productive"`
	UserID            uint64    `gorm:"not null" json:"user_id"`
	TimeEntryID       *uint64   `gorm:"index" json:"time_entry_id"`
	CreatedAt         time.Time `json:"created_at"`
}

type ScreenshotStatus string

const (
	ScreenshotStatusPending    ScreenshotStatus = "pending"
	ScreenshotStatusUploaded   ScreenshotStatus = "uploaded"
	ScreenshotStatusProcessing ScreenshotStatus = "processing"
	ScreenshotStatusFailed     ScreenshotStatus = "failed"
	ScreenshotStatusDeleted    ScreenshotStatus = "deleted"
)

// Valid reports whether s is a known screenshot status.
func (s ScreenshotStatus) Valid() bool {
	switch s {
	case ScreenshotStatusPending, ScreenshotStatusUploaded, ScreenshotStatusProcessing,
		ScreenshotStatusFailed, ScreenshotStatusDeleted:
		return true
	}
	return false
}

// Screenshot holds capture metadata only; image bytes live in external storage.
type Screenshot struct {
	ID            uint64           `gorm:"primarykey" json:"id"`
	Filename      string           `gorm:"type:varchar(255);not null" json:"filename"`
	FilePath      string           `gorm:"type:varchar(1000);not null" json:"file_path"`
	FileSize      *int64           `json:"file_size"`
	Width         *int             `json:"width"`
	Height        *int             `json:"height"`
	IsBlurred     bool             `gorm:"not null;default:false" json:"is_blurred"`
	BlurLevel     int              `gorm:"not null;default:0" json:"blur_level"`
	Status        ScreenshotStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	ThumbnailPath string           `gorm:"type:varchar(1000)" json:"thumbnail_path"`
	CapturedAt    time.Time        `gorm:"not null" json:"captured_at"`
	UserID        uint64           `gorm:"not null;index" json:"user_id"`
	TimeEntryID   *uint64          `gorm:"index" json:"time_entry_id"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`

	TimeEntry *TimeEntry `gorm:"foreignKey:TimeEntryID" json:"-"`
}
