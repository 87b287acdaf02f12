// Package model holds the data-model types shared across every component, per
// spec.md §3. Identifiers are opaque UUID strings; timestamps are time.Time
// values as the store layer sets them, which does not truncate them to
// milliseconds.
package model

import "time"

// AlertLevel is the urgency assigned to a sighting or an individual alert.
type AlertLevel string

const (
	LevelLow       AlertLevel = "low"
	LevelNormal    AlertLevel = "normal"
	LevelUrgent    AlertLevel = "urgent"
	LevelEmergency AlertLevel = "emergency"
)

// SightingStatus tracks the core-visible lifecycle of a sighting. The core only
// ever reads/writes "created"; "processed"/"verified" are set by out-of-scope
// collaborators.
type SightingStatus string

const (
	StatusCreated   SightingStatus = "created"
	StatusProcessed SightingStatus = "processed"
	StatusVerified  SightingStatus = "verified"
)

// MediaKind distinguishes photo from video attachments.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// Location is a point with public (jittered) coordinates plus optional accuracy
// and altitude, and the original coordinates kept only for internal use.
type Location struct {
	Lat, Lon          float64
	AccuracyM         *float64
	AltitudeM         *float64
	OriginalLat       *float64 `json:"-"`
	OriginalLon       *float64 `json:"-"`
}

// SensorData is the reporter's device pose at capture time.
type SensorData struct {
	Location    Location
	AzimuthDeg  *float64
	PitchDeg    *float64
	RollDeg     *float64
	HFovDeg     *float64
	Timestamp   time.Time
	DeviceID    string
}

// MediaFile is one attached photo/video, with every URL variant the read API
// must preserve verbatim (§6: url, thumbnail_url, web_url, preview_url).
type MediaFile struct {
	ID           string
	Kind         MediaKind
	Filename     string
	URL          string
	ThumbnailURL string
	WebURL       string
	PreviewURL   string
	SizeBytes    int64
	Exif         map[string]string
}

// MediaInfo groups a sighting's attached files.
type MediaInfo struct {
	Files []MediaFile
	Count int
}

// Sighting is the root entity (§3).
type Sighting struct {
	ID                string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ReporterDeviceID  string
	ReporterID        *string
	Title             *string
	Description       *string
	Category          string
	Tags              []string
	SensorData        SensorData
	MediaInfo         MediaInfo
	EnrichmentData    map[string]any
	AlertLevel        AlertLevel
	Status            SightingStatus
	WitnessCount      int
	IsPublic          bool

	// FanoutPending is true between a has_media=true ingestion and the media
	// association call that completes it (§6): the fan-out ring dispatch is
	// held until then.
	FanoutPending bool
}

// WitnessConfidence is the self-reported confidence of a confirmation.
type WitnessConfidence string

const (
	ConfidenceLow    WitnessConfidence = "low"
	ConfidenceMedium WitnessConfidence = "medium"
	ConfidenceHigh   WitnessConfidence = "high"
)

// WitnessConfirmation is a child of Sighting (§3).
type WitnessConfirmation struct {
	ID                string
	SightingID        string
	DeviceID          string
	ConfirmedAt       time.Time
	Latitude          *float64
	Longitude         *float64
	AltitudeM         *float64
	AccuracyM         *float64
	BearingDeg        *float64
	StillVisible      bool
	Confidence        WitnessConfidence
	Description       *string
	Platform          *string
	AppVersion        *string
	DistanceKMToSighting *float64
}

// PushProvider names the delivery backend a device is registered with.
type PushProvider string

const (
	ProviderFCM     PushProvider = "fcm"
	ProviderAPNs    PushProvider = "apns"
	ProviderWebPush PushProvider = "webpush"
)

// Platform is the device's client platform.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

// Device is a registered client (§3).
type Device struct {
	ID                  string
	DeviceID            string
	UserID              *string
	Platform            Platform
	PushToken           *string
	PushProvider         *PushProvider
	PushEnabled         bool
	AlertNotifications  bool
	ChatNotifications   bool
	SystemNotifications bool
	IsActive            bool
	LastSeen            *time.Time
	Lat, Lon            *float64
	NotificationsSent   int64
	NotificationsOpened int64
}

// EligibleForFanout implements the §3 invariant: active, push-enabled, has a
// token, and opted into alert notifications.
func (d Device) EligibleForFanout() bool {
	return d.IsActive && d.PushEnabled && d.PushToken != nil && *d.PushToken != "" && d.AlertNotifications
}

// EngagementEventType enumerates the append-only engagement log's event kinds.
type EngagementEventType string

const (
	EventAlertSent            EngagementEventType = "alert_sent"
	EventQuickActionSeeItToo  EngagementEventType = "quick_action_see_it_too"
	EventQuickActionDontSee   EngagementEventType = "quick_action_dont_see"
	EventQuickActionMissed    EngagementEventType = "quick_action_missed"
	EventAlertOpened          EngagementEventType = "alert_opened"
	EventBeepSubmitted        EngagementEventType = "beep_submitted"
)

// EngagementEvent is an append-only record (§3).
type EngagementEvent struct {
	ID         string
	DeviceID   string
	SightingID *string
	EventType  EngagementEventType
	Timestamp  time.Time
}

// AlertRecord is outbound delivery metadata (§3).
type AlertRecord struct {
	ID         string
	SightingID string
	DeviceID   string
	DistanceKM float64
	RingKM     float64
	Level      AlertLevel
	SentAt     time.Time
	Delivered  bool
	Error      *string
}
