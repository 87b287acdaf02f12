package main

import (
	"strconv"
	"time"

	"github.com/ufobeep/beepnet/internal/alertsvc"
	"github.com/ufobeep/beepnet/internal/model"
)

// mediaFileDTO is one entry in the §6 media association response's files array.
type mediaFileDTO struct {
	ID           string            `json:"id"`
	Kind         model.MediaKind   `json:"kind"`
	Filename     string            `json:"filename"`
	URL          string            `json:"url"`
	ThumbnailURL string            `json:"thumbnail_url"`
	WebURL       string            `json:"web_url"`
	PreviewURL   string            `json:"preview_url"`
	SizeBytes    int64             `json:"size_bytes"`
	Exif         map[string]string `json:"exif,omitempty"`
}

// mediaResponseDTO is the §6 media association endpoint's response wire shape.
type mediaResponseDTO struct {
	Files []mediaFileDTO `json:"files"`
	Count int            `json:"count"`
}

func toMediaResponse(r *alertsvc.AttachMediaResult) mediaResponseDTO {
	files := make([]mediaFileDTO, 0, len(r.Files))
	for _, f := range r.Files {
		files = append(files, mediaFileDTO{
			ID: f.ID, Kind: f.Kind, Filename: f.Filename, URL: f.URL,
			ThumbnailURL: f.ThumbnailURL, WebURL: f.WebURL, PreviewURL: f.PreviewURL,
			SizeBytes: f.SizeBytes, Exif: f.Exif,
		})
	}
	return mediaResponseDTO{Files: files, Count: r.Count}
}

// ingestRequestDTO is the §6 ingestion endpoint's request wire shape.
type ingestRequestDTO struct {
	DeviceID string `json:"device_id"`
	Location struct {
		Latitude  float64  `json:"latitude"`
		Longitude float64  `json:"longitude"`
		Accuracy  *float64 `json:"accuracy"`
		Altitude  *float64 `json:"altitude"`
	} `json:"location"`
	AzimuthDeg  *float64 `json:"azimuth_deg"`
	PitchDeg    *float64 `json:"pitch_deg"`
	RollDeg     *float64 `json:"roll_deg"`
	Category    string   `json:"category"`
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	HasMedia    bool     `json:"has_media"`
}

func (d ingestRequestDTO) toRequest() alertsvc.IngestRequest {
	return alertsvc.IngestRequest{
		DeviceID:    d.DeviceID,
		Latitude:    d.Location.Latitude,
		Longitude:   d.Location.Longitude,
		AccuracyM:   d.Location.Accuracy,
		AltitudeM:   d.Location.Altitude,
		AzimuthDeg:  d.AzimuthDeg,
		PitchDeg:    d.PitchDeg,
		RollDeg:     d.RollDeg,
		Category:    d.Category,
		Title:       d.Title,
		Description: d.Description,
		HasMedia:    d.HasMedia,
	}
}

// alertStatsDTO is the §6 ingestion response's alert_stats sub-object.
type alertStatsDTO struct {
	TotalAlerted int     `json:"total_alerted"`
	RadiusKM     float64 `json:"radius_km"`
}

// proximityAlertsDTO mirrors fanout.Result in the ingestion response's wire shape.
type proximityAlertsDTO struct {
	TotalSent         int                `json:"total_sent"`
	PerRingCounts     map[string]int     `json:"per_ring_counts,omitempty"`
	EscalationApplied model.AlertLevel   `json:"escalation_applied,omitempty"`
}

// ingestResponseDTO is the §6 ingestion endpoint's response wire shape.
type ingestResponseDTO struct {
	SightingID       string               `json:"sighting_id"`
	Message          string               `json:"message"`
	AlertMessage     string               `json:"alert_message"`
	AlertStats       alertStatsDTO        `json:"alert_stats"`
	WitnessCount     int                  `json:"witness_count"`
	LocationJittered bool                 `json:"location_jittered"`
	ProximityAlerts  *proximityAlertsDTO  `json:"proximity_alerts,omitempty"`
}

func toIngestResponse(r *alertsvc.IngestResult) ingestResponseDTO {
	resp := ingestResponseDTO{
		SightingID:       r.SightingID,
		Message:          r.Message,
		AlertMessage:     r.AlertMessage,
		AlertStats:       alertStatsDTO{TotalAlerted: r.AlertStats.TotalAlerted, RadiusKM: r.AlertStats.RadiusKM},
		WitnessCount:     r.WitnessCount,
		LocationJittered: r.LocationJittered,
	}
	if r.ProximityAlerts != nil {
		perRing := make(map[string]int, len(r.ProximityAlerts.PerRingCounts))
		for ring, n := range r.ProximityAlerts.PerRingCounts {
			perRing[formatRingKey(ring)] = n
		}
		resp.ProximityAlerts = &proximityAlertsDTO{
			TotalSent:         r.ProximityAlerts.TotalSent,
			PerRingCounts:     perRing,
			EscalationApplied: r.ProximityAlerts.EscalationApplied,
		}
	}
	return resp
}

// confirmationRequestDTO is the §6 witness confirmation endpoint's request wire shape.
type confirmationRequestDTO struct {
	DeviceID     string                  `json:"device_id"`
	Latitude     *float64                `json:"latitude"`
	Longitude    *float64                `json:"longitude"`
	Altitude     *float64                `json:"altitude"`
	Accuracy     *float64                `json:"accuracy"`
	BearingDeg   *float64                `json:"bearing_deg"`
	StillVisible bool                    `json:"still_visible"`
	Description  *string                 `json:"description"`
	Confidence   model.WitnessConfidence `json:"confidence"`
	Platform     *string                 `json:"platform"`
	AppVersion   *string                 `json:"app_version"`
}

func (d confirmationRequestDTO) toRequest() alertsvc.ConfirmationRequest {
	return alertsvc.ConfirmationRequest{
		DeviceID:     d.DeviceID,
		Latitude:     d.Latitude,
		Longitude:    d.Longitude,
		AltitudeM:    d.Altitude,
		AccuracyM:    d.Accuracy,
		BearingDeg:   d.BearingDeg,
		StillVisible: d.StillVisible,
		Description:  d.Description,
		Confidence:   d.Confidence,
		Platform:     d.Platform,
		AppVersion:   d.AppVersion,
	}
}

// confirmationResponseDTO is the §6 witness confirmation endpoint's response wire shape.
type confirmationResponseDTO struct {
	Confirmed          bool      `json:"confirmed"`
	NewWitnessCount    int       `json:"new_witness_count"`
	TotalConfirmations int       `json:"total_confirmations"`
	ConfirmationTime   time.Time `json:"confirmation_time"`
	SightingAgeMinutes float64   `json:"sighting_age_minutes"`
}

func toConfirmationResponse(r *alertsvc.ConfirmationResult) confirmationResponseDTO {
	return confirmationResponseDTO{
		Confirmed:          r.Confirmed,
		NewWitnessCount:    r.NewWitnessCount,
		TotalConfirmations: r.TotalConfirmations,
		ConfirmationTime:   r.ConfirmationTime,
		SightingAgeMinutes: r.SightingAgeMinutes,
	}
}

// witnessStatusResponseDTO is the §6 witness-status read endpoint's response wire shape.
type witnessStatusResponseDTO struct {
	HasConfirmed bool       `json:"has_confirmed"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
	DeviceID     string     `json:"device_id"`
	SightingID   string     `json:"sighting_id"`
}

func toWitnessStatusResponse(r *alertsvc.WitnessStatusResult) witnessStatusResponseDTO {
	return witnessStatusResponseDTO{
		HasConfirmed: r.HasConfirmed,
		ConfirmedAt:  r.ConfirmedAt,
		DeviceID:     r.DeviceID,
		SightingID:   r.SightingID,
	}
}

// listResponseDTO is the §6 list read endpoint's response wire shape.
type listResponseDTO struct {
	Alerts []*model.Sighting `json:"alerts"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

func toListResponse(r *alertsvc.ListResult) listResponseDTO {
	return listResponseDTO{Alerts: r.Alerts, Total: r.Total, Limit: r.Limit, Offset: r.Offset}
}

// detailResponseDTO is the §6 detail read endpoint's response wire shape.
type detailResponseDTO struct {
	*model.Sighting
	WitnessSummary map[string]any `json:"witness_summary,omitempty"`
}

func toDetailResponse(r *alertsvc.DetailResult) detailResponseDTO {
	return detailResponseDTO{Sighting: r.Sighting, WitnessSummary: r.WitnessSummary}
}

func formatRingKey(ringKM float64) string {
	return strconv.FormatFloat(ringKM, 'f', -1, 64)
}
