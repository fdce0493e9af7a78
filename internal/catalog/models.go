package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

const DefaultCurrency = "INR"

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ServiceType string

const (
	ServiceRepair       ServiceType = "repair"
	ServiceInstallation ServiceType = "installation"
	ServiceMaintenance  ServiceType = "maintenance"
	ServiceCleaning     ServiceType = "cleaning"
	ServiceInspection   ServiceType = "inspection"
)

func (t ServiceType) Valid() bool {
	switch t {
	case ServiceRepair, ServiceInstallation, ServiceMaintenance, ServiceCleaning, ServiceInspection:
		return true
	}
	return false
}

type ServicePrice struct {
	Base     decimal.Decimal `json:"base"`
	Currency string          `json:"currency"`
}

// RepairService is a bookable service offering.
type RepairService struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	CategoryID       string       `json:"category"`
	Description      string       `json:"description"`
	ServiceType      ServiceType  `json:"serviceType"`
	Price            ServicePrice `json:"price"`
	DurationMinutes  int          `json:"duration"`
	IncludedServices []string     `json:"includedServices"`
	Image            string       `json:"image"`
	IsActive         bool         `json:"isActive"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// Compatibility lists the appliance models a part fits. Nil year bounds
// are open.
type Compatibility struct {
	Brand    string   `json:"brand"`
	Models   []string `json:"models,omitempty"`
	YearFrom *int     `json:"yearFrom,omitempty"`
	YearTo   *int     `json:"yearTo,omitempty"`
}

type PartPrice struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type Warranty struct {
	Months      int    `json:"months"`
	Description string `json:"description"`
}

type SparePart struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	PartNumber     string            `json:"partNumber"`
	CategoryID     string            `json:"category"`
	Compatibility  []Compatibility   `json:"compatibility"`
	Description    string            `json:"description"`
	Specifications map[string]string `json:"specifications"`
	Price          PartPrice         `json:"price"`
	Stock          int               `json:"stock"`
	Images         []string          `json:"images"`
	Warranty       Warranty          `json:"warranty"`
	IsActive       bool              `json:"isActive"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// StockLine is what a successful stock decrement reports back: the part's
// name and its price at that moment.
type StockLine struct {
	PartID string
	Name   string
	Price  decimal.Decimal
}

type ServiceFilter struct {
	CategoryID  string
	ServiceType ServiceType
}

type PartFilter struct {
	CategoryID string
	Brand      string
	Model      string
	Year       int
}
