package signoff

import (
	"fmt"
	"strings"

	"github.com/BearBump/CrewTrack/internal/models"
)

const (
	FlagNoDamageButCrewDamage = "client_no_damage_crew_reported_damage"
	FlagDamageNoCrewIncident  = "client_reported_damage_no_crew_incident"
	FlagAllItemsButMissing    = "client_all_items_crew_reported_missing"
	FlagMisclickOrDuress      = "possible_misclick_or_duress"
)

// EscalationReasons evaluates every condition; reasons are not short-circuited.
func EscalationReasons(a models.Attestations) []string {
	var reasons []string
	if a.SatisfactionRating <= 2 {
		reasons = append(reasons, fmt.Sprintf("Low satisfaction rating: %d/5", a.SatisfactionRating))
	}
	if a.NPSScore != nil && *a.NPSScore <= 4 {
		reasons = append(reasons, fmt.Sprintf("Low NPS score: %d/10", *a.NPSScore))
	}
	if !a.NoDamages {
		reasons = append(reasons, "Client reported damage")
	}
	if !a.NoPropertyDamage {
		reasons = append(reasons, "Client reported property damage")
	}
	if !a.AllItemsReceived {
		reasons = append(reasons, "Not all items received")
	}
	if !a.ConditionAccepted {
		reasons = append(reasons, "Condition not accepted")
	}
	if a.WouldRecommend != nil && !*a.WouldRecommend {
		reasons = append(reasons, "Client would not recommend")
	}
	if strings.TrimSpace(a.Exceptions) != "" {
		reasons = append(reasons, "Client noted exceptions")
	}
	return reasons
}

// DiscrepancyFlags compares the attestation with what the crew reported.
// The flags are advisory and never escalate on their own.
func DiscrepancyFlags(a models.Attestations, incidents []models.Incident) []string {
	var crewDamage, crewMissing bool
	for _, in := range incidents {
		switch in.IssueType {
		case models.IssueTypeDamage:
			crewDamage = true
		case models.IssueTypeMissingItem:
			crewMissing = true
		}
	}

	var flags []string
	if a.NoDamages && crewDamage {
		flags = append(flags, FlagNoDamageButCrewDamage)
	}
	if !a.NoDamages && !crewDamage {
		flags = append(flags, FlagDamageNoCrewIncident)
	}
	if a.AllItemsReceived && crewMissing {
		flags = append(flags, FlagAllItemsButMissing)
	}
	if a.SatisfactionRating <= 2 && a.AllPositive() {
		flags = append(flags, FlagMisclickOrDuress)
	}
	return flags
}
