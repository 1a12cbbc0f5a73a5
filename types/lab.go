package types

import "time"

// Patient is a diagnostic-laboratory patient record.
type Patient struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Age       int       `json:"age" db:"age"`
	Gender    string    `json:"gender" db:"gender"`
	Phone     string    `json:"phone" db:"phone"`
	Address   string    `json:"address,omitempty" db:"address"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Doctor is a referring doctor for lab tests.
type Doctor struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Specialty string    `json:"specialty,omitempty" db:"specialty"`
	Phone     string    `json:"phone,omitempty" db:"phone"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Lab test lifecycle states.
const (
	TestOrdered   = "ordered"
	TestSampled   = "sampled"
	TestCompleted = "completed"
	TestDelivered = "delivered"
)

// LabTest is a single ordered test for a patient.
type LabTest struct {
	ID         int       `json:"id" db:"id"`
	PatientID  int       `json:"patientId" db:"patient_id"`
	DoctorID   *int      `json:"doctorId,omitempty" db:"doctor_id"`
	Name       string    `json:"name" db:"name"`
	PriceCents int64     `json:"priceCents" db:"price_cents"`
	Status     string    `json:"status" db:"status"`
	Result     string    `json:"result,omitempty" db:"result"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
}

// Expense is an operating expense entry, shared by the hotel and lab sides.
type Expense struct {
	ID          int       `json:"id" db:"id"`
	Category    string    `json:"category" db:"category"`
	Description string    `json:"description" db:"description"`
	AmountCents int64     `json:"amountCents" db:"amount_cents"`
	SpentAt     time.Time `json:"spentAt" db:"spent_at"`
	RecordedBy  string    `json:"recordedBy,omitempty" db:"recorded_by"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}
