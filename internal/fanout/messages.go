package fanout

import (
	"fmt"
	"strings"

	"github.com/ufobeep/beepnet/internal/model"
)

// witnessDescriptor implements §6's body template witness tiers.
func witnessDescriptor(witnessCount int) string {
	switch {
	case witnessCount >= 10:
		return fmt.Sprintf("MASS SIGHTING - %d witnesses", witnessCount)
	case witnessCount >= 3:
		return fmt.Sprintf("Multiple witnesses (%d)", witnessCount)
	case witnessCount == 2:
		return "2nd witness"
	default:
		return "New sighting"
	}
}

// locationDescriptor implements §6's ring-aware title fragment.
func locationDescriptor(ringKM float64) string {
	switch {
	case ringKM <= 1.0:
		return "VERY CLOSE"
	case ringKM <= 5.0:
		return "nearby"
	case ringKM <= 10.0:
		return "in your area"
	default:
		return fmt.Sprintf("within %dkm", int(ringKM))
	}
}

// SummaryMessage produces the ingestion response's top-level alert_message
// (§6): a submitter-facing summary of the overall escalation level, independent
// of any single ring's per-recipient push body.
func SummaryMessage(level model.AlertLevel, witnessCount int) string {
	witnessDesc := witnessDescriptor(witnessCount)
	switch level {
	case model.LevelEmergency:
		return fmt.Sprintf("\U0001F6A8 UFO EMERGENCY - %s", witnessDesc)
	case model.LevelUrgent:
		return fmt.Sprintf("⚡ UFO Sighting - %s", witnessDesc)
	default:
		return fmt.Sprintf("\U0001F441 UFO Alert - %s", witnessDesc)
	}
}

// alertMessage returns the (title, body) pair per §6's notification text rules,
// grounded verbatim on proximity_alert_service.py's _get_alert_message.
func alertMessage(ringKM float64, witnessCount int, level model.AlertLevel) (string, string) {
	witnessDesc := witnessDescriptor(witnessCount)
	locationDesc := locationDescriptor(ringKM)

	switch level {
	case model.LevelEmergency:
		if witnessCount >= 10 {
			title := fmt.Sprintf("\U0001F6A8 MASS UFO SIGHTING %s", strings.ToUpper(locationDesc))
			body := fmt.Sprintf("EMERGENCY: %d witnesses reporting something in the sky %s!", witnessCount, locationDesc)
			return title, body
		}
		title := fmt.Sprintf("\U0001F6A8 UFO EMERGENCY %s", strings.ToUpper(locationDesc))
		body := fmt.Sprintf("Emergency: Something is happening %s - %s", locationDesc, strings.ToLower(witnessDesc))
		return title, body
	case model.LevelUrgent:
		title := fmt.Sprintf("⚡ UFO Sighting %s", strings.Title(locationDesc))
		body := fmt.Sprintf("Urgent: %s - Look up now!", witnessDesc)
		return title, body
	default:
		title := fmt.Sprintf("\U0001F441 UFO Alert %s", strings.Title(locationDesc))
		body := fmt.Sprintf("%s - Something reported %s", witnessDesc, locationDesc)
		return title, body
	}
}
