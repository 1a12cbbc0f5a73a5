package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/havenlab/apiserver/types"
)

// LabTestRepository handles persistence for ordered lab tests.
type LabTestRepository struct {
	db *sql.DB
}

func NewLabTestRepository(db *sql.DB) *LabTestRepository {
	return &LabTestRepository{db: db}
}

func (r *LabTestRepository) ListByPatient(ctx context.Context, patientID int) ([]types.LabTest, error) {
	const query = `
		SELECT id, patient_id, doctor_id, name, price_cents, status, result, created_at, updated_at
		FROM lab_tests
		WHERE patient_id = $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []types.LabTest
	for rows.Next() {
		test, err := scanLabTest(rows)
		if err != nil {
			return nil, err
		}
		tests = append(tests, test)
	}
	return tests, rows.Err()
}

func (r *LabTestRepository) Get(ctx context.Context, id int) (types.LabTest, error) {
	const query = `
		SELECT id, patient_id, doctor_id, name, price_cents, status, result, created_at, updated_at
		FROM lab_tests
		WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)
	test, err := scanLabTest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.LabTest{}, ErrNotFound
		}
		return types.LabTest{}, err
	}
	return test, nil
}

func (r *LabTestRepository) Create(ctx context.Context, test types.LabTest) (types.LabTest, error) {
	now := time.Now()
	test.CreatedAt = now
	test.UpdatedAt = now
	if test.Status == "" {
		test.Status = types.TestOrdered
	}

	const query = `
		INSERT INTO lab_tests (patient_id, doctor_id, name, price_cents, status, result, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		test.PatientID,
		test.DoctorID,
		test.Name,
		test.PriceCents,
		test.Status,
		test.Result,
		test.CreatedAt,
		test.UpdatedAt,
	).Scan(&test.ID); err != nil {
		return types.LabTest{}, err
	}
	return test, nil
}

// SetResult records the finished result and advances status to completed.
func (r *LabTestRepository) SetResult(ctx context.Context, id int, resultText string) error {
	const query = `
		UPDATE lab_tests
		SET result = $1,
			status = $2,
			updated_at = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, resultText, types.TestCompleted, time.Now(), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *LabTestRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM lab_tests WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLabTest(row rowScanner) (types.LabTest, error) {
	var test types.LabTest
	var doctorID sql.NullInt64
	if err := row.Scan(
		&test.ID,
		&test.PatientID,
		&doctorID,
		&test.Name,
		&test.PriceCents,
		&test.Status,
		&test.Result,
		&test.CreatedAt,
		&test.UpdatedAt,
	); err != nil {
		return types.LabTest{}, err
	}
	if doctorID.Valid {
		id := int(doctorID.Int64)
		test.DoctorID = &id
	}
	return test, nil
}
