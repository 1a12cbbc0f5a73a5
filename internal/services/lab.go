package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/havenlab/apiserver/internal/store"
	"github.com/havenlab/apiserver/types"
)

// LabService groups the diagnostic-laboratory use-cases: patients, referring
// doctors, ordered tests and operating expenses.
type LabService struct {
	patients *store.PatientRepository
	doctors  *store.DoctorRepository
	tests    *store.LabTestRepository
	expenses *store.ExpenseRepository
}

func NewLabService(
	patients *store.PatientRepository,
	doctors *store.DoctorRepository,
	tests *store.LabTestRepository,
	expenses *store.ExpenseRepository,
) *LabService {
	return &LabService{
		patients: patients,
		doctors:  doctors,
		tests:    tests,
		expenses: expenses,
	}
}

func (s *LabService) ListPatients(ctx context.Context, offset, limit int) ([]types.Patient, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.patients.List(ctx, offset, limit)
}

func (s *LabService) GetPatient(ctx context.Context, id int) (types.Patient, error) {
	return s.patients.Get(ctx, id)
}

func (s *LabService) CreatePatient(ctx context.Context, patient types.Patient) (types.Patient, error) {
	patient.Name = strings.TrimSpace(patient.Name)
	if patient.Name == "" {
		return types.Patient{}, fmt.Errorf("%w: patient name is required", store.ErrInvalidArgument)
	}
	return s.patients.Create(ctx, patient)
}

func (s *LabService) UpdatePatient(ctx context.Context, patient types.Patient) (types.Patient, error) {
	return s.patients.Update(ctx, patient)
}

func (s *LabService) DeletePatient(ctx context.Context, id int) error {
	return s.patients.Delete(ctx, id)
}

func (s *LabService) ListDoctors(ctx context.Context) ([]types.Doctor, error) {
	return s.doctors.List(ctx)
}

func (s *LabService) CreateDoctor(ctx context.Context, doctor types.Doctor) (types.Doctor, error) {
	doctor.Name = strings.TrimSpace(doctor.Name)
	if doctor.Name == "" {
		return types.Doctor{}, fmt.Errorf("%w: doctor name is required", store.ErrInvalidArgument)
	}
	return s.doctors.Create(ctx, doctor)
}

func (s *LabService) UpdateDoctor(ctx context.Context, doctor types.Doctor) (types.Doctor, error) {
	return s.doctors.Update(ctx, doctor)
}

func (s *LabService) DeleteDoctor(ctx context.Context, id int) error {
	return s.doctors.Delete(ctx, id)
}

func (s *LabService) ListTestsByPatient(ctx context.Context, patientID int) ([]types.LabTest, error) {
	if _, err := s.patients.Get(ctx, patientID); err != nil {
		return nil, err
	}
	return s.tests.ListByPatient(ctx, patientID)
}

func (s *LabService) OrderTest(ctx context.Context, test types.LabTest) (types.LabTest, error) {
	test.Name = strings.TrimSpace(test.Name)
	if test.Name == "" {
		return types.LabTest{}, fmt.Errorf("%w: test name is required", store.ErrInvalidArgument)
	}
	if test.PriceCents < 0 {
		return types.LabTest{}, fmt.Errorf("%w: price must not be negative", store.ErrInvalidArgument)
	}
	if _, err := s.patients.Get(ctx, test.PatientID); err != nil {
		return types.LabTest{}, err
	}
	return s.tests.Create(ctx, test)
}

func (s *LabService) RecordTestResult(ctx context.Context, id int, result string) (types.LabTest, error) {
	if strings.TrimSpace(result) == "" {
		return types.LabTest{}, fmt.Errorf("%w: result is required", store.ErrInvalidArgument)
	}
	if err := s.tests.SetResult(ctx, id, result); err != nil {
		return types.LabTest{}, err
	}
	return s.tests.Get(ctx, id)
}

func (s *LabService) DeleteTest(ctx context.Context, id int) error {
	return s.tests.Delete(ctx, id)
}

func (s *LabService) ListExpenses(ctx context.Context, from, to time.Time) ([]types.Expense, error) {
	return s.expenses.ListBetween(ctx, from, to)
}

func (s *LabService) CreateExpense(ctx context.Context, expense types.Expense) (types.Expense, error) {
	expense.Category = strings.TrimSpace(expense.Category)
	if expense.Category == "" {
		return types.Expense{}, fmt.Errorf("%w: category is required", store.ErrInvalidArgument)
	}
	if expense.AmountCents <= 0 {
		return types.Expense{}, fmt.Errorf("%w: amount must be positive", store.ErrInvalidArgument)
	}
	return s.expenses.Create(ctx, expense)
}

func (s *LabService) DeleteExpense(ctx context.Context, id int) error {
	return s.expenses.Delete(ctx, id)
}
