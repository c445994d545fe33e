package database

import (
	"time"
)

// EventKind enumerates the user interactions recorded as behavior events.
type EventKind string

const (
	EventExposure     EventKind = "exposure"
	EventClick        EventKind = "click"
	EventReadStart    EventKind = "read_start"
	EventReadComplete EventKind = "read_complete"
	EventScroll       EventKind = "scroll"
	EventSave         EventKind = "save"
	EventShare        EventKind = "share"
	EventRepeatView   EventKind = "repeat_view"
)

// TimeWindow is the aggregation horizon for derived preferences.
type TimeWindow string

const (
	Window5Min  TimeWindow = "5m"
	Window1Day  TimeWindow = "1d"
	Window30Day TimeWindow = "30d"
)

// Duration returns the length of the window.
func (w TimeWindow) Duration() time.Duration {
	switch w {
	case Window5Min:
		return 5 * time.Minute
	case Window1Day:
		return 24 * time.Hour
	case Window30Day:
		return 30 * 24 * time.Hour
	}
	return 0
}

// PreferenceType enumerates the derived preference families.
type PreferenceType string

const (
	PreferenceTagAffinity  PreferenceType = "tag_affinity"
	PreferenceFeedAffinity PreferenceType = "feed_affinity"
	PreferenceTimeOfDay    PreferenceType = "time_of_day"
)

// TimeOfDay buckets a clock hour into a coarse daypart.
type TimeOfDay string

const (
	TimeOfDayMorning   TimeOfDay = "morning"
	TimeOfDayAfternoon TimeOfDay = "afternoon"
	TimeOfDayEvening   TimeOfDay = "evening"
	TimeOfDayNight     TimeOfDay = "night"
)

// TimeOfDayFor derives the daypart bucket for a timestamp.
func TimeOfDayFor(t time.Time) TimeOfDay {
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return TimeOfDayMorning
	case h >= 12 && h < 17:
		return TimeOfDayAfternoon
	case h >= 17 && h < 22:
		return TimeOfDayEvening
	default:
		return TimeOfDayNight
	}
}

// Feed is a subscription record.
type Feed struct {
	ID            string
	URL           string
	Name          string
	Title         string
	Description   string
	SiteURL       string
	IconURL       string
	Language      string
	LastFetchedAt *time.Time
	FetchError    string
	UnreadCount   int // derived, not a column
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FeedMetadata carries the fields refreshed from the feed document on
// every successful fetch.
type FeedMetadata struct {
	Title       string
	Description string
	SiteURL     string
	IconURL     string
	Language    string
}

// Article is one entry of a feed. Summary and RelevanceScore are
// independently nullable: short articles are scored without ever being
// summarized.
type Article struct {
	ID             string
	FeedID         string
	GUID           string
	Title          string
	Author         string
	URL            string
	ImageURL       string
	Content        string
	PlainContent   string
	Summary        *string
	SummarizedAt   *time.Time
	RelevanceScore *float64
	Tags           []string
	Read           bool
	ReadAt         *time.Time
	Saved          bool
	FetchedAt      time.Time
	PublishedAt    *time.Time
}

// BehaviorEvent is one append-only user-interaction record.
type BehaviorEvent struct {
	ID              string
	ArticleID       *string
	FeedID          *string
	Kind            EventKind
	DurationSeconds *float64
	ScrollDepth     *float64
	TimeOfDay       TimeOfDay
	DayOfWeek       string
	NetworkType     string
	CreatedAt       time.Time
}

// UserPreference is a derived affinity row, overwritten in place per
// (type, key, window).
type UserPreference struct {
	Type       PreferenceType
	Key        string
	Window     TimeWindow
	Weight     float64
	ComputedAt time.Time
}

// ArticleStyle is the one-per-article classification result.
type ArticleStyle struct {
	ArticleID    string
	StyleType    string
	Tone         string
	LengthBucket string
	ClassifiedAt time.Time
}
