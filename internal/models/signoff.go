package models

import "time"

// Attestations is the fixed questionnaire a client answers when signing off.
type Attestations struct {
	AllItemsReceived     bool `json:"allItemsReceived"`
	ConditionAccepted    bool `json:"conditionAccepted"`
	NoDamages            bool `json:"noDamages"`
	NoPropertyDamage     bool `json:"noPropertyDamage"`
	WalkthroughCompleted bool `json:"walkthroughCompleted"`
	CrewProfessional     bool `json:"crewProfessional"`
	CrewOnTime           bool `json:"crewOnTime"`
	ItemsPlacedCorrectly bool `json:"itemsPlacedCorrectly"`
	FurnitureReassembled bool `json:"furnitureReassembled"`
	FloorsProtected      bool `json:"floorsProtected"`
	PackagingRemoved     bool `json:"packagingRemoved"`
	ValuablesAccounted   bool `json:"valuablesAccounted"`
	InvoiceReviewed      bool `json:"invoiceReviewed"`

	SatisfactionRating int   `json:"satisfactionRating"`
	NPSScore           *int  `json:"npsScore,omitempty"`
	WouldRecommend     *bool `json:"wouldRecommend,omitempty"`

	DamageDescription string `json:"damageDescription,omitempty"`
	Feedback          string `json:"feedback,omitempty"`
	Exceptions        string `json:"exceptions,omitempty"`
}

// AllPositive reports whether every positive-confirmation answer is affirmative.
func (a Attestations) AllPositive() bool {
	confirmations := []bool{
		a.AllItemsReceived,
		a.ConditionAccepted,
		a.NoDamages,
		a.NoPropertyDamage,
		a.WalkthroughCompleted,
		a.CrewProfessional,
		a.CrewOnTime,
		a.ItemsPlacedCorrectly,
		a.FurnitureReassembled,
		a.FloorsProtected,
		a.PackagingRemoved,
		a.ValuablesAccounted,
		a.InvoiceReviewed,
	}
	for _, ok := range confirmations {
		if !ok {
			return false
		}
	}
	if a.WouldRecommend != nil && !*a.WouldRecommend {
		return false
	}
	return true
}

type ClientSignOff struct {
	ID                   string       `json:"id"`
	JobID                string       `json:"jobId"`
	JobType              JobType      `json:"jobType"`
	SignerName           string       `json:"signerName"`
	SignatureKey         string       `json:"signatureKey"`
	SignedLocation       *GeoPoint    `json:"signedLocation,omitempty"`
	Attestations         Attestations `json:"attestations"`
	EscalationTriggered  bool         `json:"escalationTriggered"`
	EscalationReasons    []string     `json:"escalationReasons"`
	EscalationReason     string       `json:"escalationReason,omitempty"`
	DiscrepancyFlags     []string     `json:"discrepancyFlags"`
	DamageReportDeadline time.Time    `json:"damageReportDeadline"`
	SignedAt             time.Time    `json:"signedAt"`
}

type SignOffInput struct {
	JobID          string
	JobType        JobType
	SignerName     string
	Signature      string
	SignedLocation *GeoPoint
	Attestations   Attestations
}
