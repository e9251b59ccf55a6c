package model

import "time"

// Contract status constants.
const (
	ContractStatusPending   = "pending"
	ContractStatusActive    = "active"
	ContractStatusCompleted = "completed"
	ContractStatusCancelled = "cancelled"
)

// Vehicle status constants.
const (
	VehicleStatusAvailable   = "available"
	VehicleStatusRented      = "rented"
	VehicleStatusMaintenance = "maintenance"
)

// Contract is a rental contract record.
type Contract struct {
	ID            string         `json:"id"`
	CustomerID    string         `json:"customer_id"`
	VehicleID     string         `json:"vehicle_id"`
	Status        string         `json:"status"`
	DailyRate     float64        `json:"daily_rate"`
	StartDate     time.Time      `json:"start_date"`
	EndDate       time.Time      `json:"end_date"`
	ActualEndDate *time.Time     `json:"actual_end_date,omitempty"`
	Pickup        *PickupDetails `json:"pickup,omitempty"`
	Return        *ReturnDetails `json:"return,omitempty"`
	Notes         string         `json:"notes,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// PickupDetails are recorded when a contract is activated.
type PickupDetails struct {
	Mileage   int      `json:"mileage"`
	FuelLevel int      `json:"fuel_level"`
	Photos    []string `json:"photos,omitempty"`
	Notes     string   `json:"notes,omitempty"`
}

// ReturnDetails are recorded when a contract is completed.
type ReturnDetails struct {
	Mileage   int      `json:"mileage"`
	FuelLevel int      `json:"fuel_level"`
	Photos    []string `json:"photos,omitempty"`
	Notes     string   `json:"notes,omitempty"`
}

// Vehicle is a fleet vehicle record.
type Vehicle struct {
	ID           string    `json:"id"`
	Registration string    `json:"registration"`
	Model        string    `json:"model"`
	Status       string    `json:"status"`
	Mileage      int       `json:"mileage"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ActivateContractRequest starts the contract activation saga.
type ActivateContractRequest struct {
	ContractID string        `json:"contract_id"`
	Pickup     PickupDetails `json:"pickup"`
}

// CompleteContractRequest starts the contract completion saga. Additional
// charges supplied here are not invoiced inline; they are deferred via an
// ADDITIONAL_CHARGES_NEEDED event.
type CompleteContractRequest struct {
	ContractID        string                    `json:"contract_id"`
	ActualEndDate     time.Time                 `json:"actual_end_date"`
	Return            ReturnDetails             `json:"return"`
	AdditionalCharges []AdditionalChargeRequest `json:"additional_charges,omitempty"`
}

// CancelContractRequest starts the contract cancellation saga.
type CancelContractRequest struct {
	ContractID string `json:"contract_id"`
	Reason     string `json:"reason"`
}
