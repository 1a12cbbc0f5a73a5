package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/havenlab/apiserver/types"
)

// PatientRepository handles persistence for lab patients.
type PatientRepository struct {
	db *sql.DB
}

func NewPatientRepository(db *sql.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

func (r *PatientRepository) List(ctx context.Context, offset, limit int) ([]types.Patient, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM patients`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT id, name, age, gender, phone, address, created_at, updated_at
		FROM patients
		ORDER BY id
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, listQuery, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	patients := make([]types.Patient, 0, limit)
	for rows.Next() {
		var patient types.Patient
		if err := rows.Scan(
			&patient.ID,
			&patient.Name,
			&patient.Age,
			&patient.Gender,
			&patient.Phone,
			&patient.Address,
			&patient.CreatedAt,
			&patient.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		patients = append(patients, patient)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return patients, total, nil
}

func (r *PatientRepository) Get(ctx context.Context, id int) (types.Patient, error) {
	const query = `
		SELECT id, name, age, gender, phone, address, created_at, updated_at
		FROM patients
		WHERE id = $1`
	var patient types.Patient
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&patient.ID,
		&patient.Name,
		&patient.Age,
		&patient.Gender,
		&patient.Phone,
		&patient.Address,
		&patient.CreatedAt,
		&patient.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Patient{}, ErrNotFound
		}
		return types.Patient{}, err
	}
	return patient, nil
}

func (r *PatientRepository) Create(ctx context.Context, patient types.Patient) (types.Patient, error) {
	now := time.Now()
	patient.CreatedAt = now
	patient.UpdatedAt = now

	const query = `
		INSERT INTO patients (name, age, gender, phone, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		patient.Name,
		patient.Age,
		patient.Gender,
		patient.Phone,
		patient.Address,
		patient.CreatedAt,
		patient.UpdatedAt,
	).Scan(&patient.ID); err != nil {
		return types.Patient{}, err
	}
	return patient, nil
}

func (r *PatientRepository) Update(ctx context.Context, patient types.Patient) (types.Patient, error) {
	patient.UpdatedAt = time.Now()

	const query = `
		UPDATE patients
		SET name = $1,
			age = $2,
			gender = $3,
			phone = $4,
			address = $5,
			updated_at = $6
		WHERE id = $7`
	result, err := r.db.ExecContext(
		ctx,
		query,
		patient.Name,
		patient.Age,
		patient.Gender,
		patient.Phone,
		patient.Address,
		patient.UpdatedAt,
		patient.ID,
	)
	if err != nil {
		return types.Patient{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Patient{}, err
	}
	if affected == 0 {
		return types.Patient{}, ErrNotFound
	}
	return patient, nil
}

func (r *PatientRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM patients WHERE id = $1`
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
