package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/havenlab/apiserver/types"
)

// DoctorRepository handles persistence for referring doctors.
type DoctorRepository struct {
	db *sql.DB
}

func NewDoctorRepository(db *sql.DB) *DoctorRepository {
	return &DoctorRepository{db: db}
}

func (r *DoctorRepository) List(ctx context.Context) ([]types.Doctor, error) {
	const query = `
		SELECT id, name, specialty, phone, created_at, updated_at
		FROM doctors
		ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var doctors []types.Doctor
	for rows.Next() {
		var doctor types.Doctor
		if err := rows.Scan(
			&doctor.ID,
			&doctor.Name,
			&doctor.Specialty,
			&doctor.Phone,
			&doctor.CreatedAt,
			&doctor.UpdatedAt,
		); err != nil {
			return nil, err
		}
		doctors = append(doctors, doctor)
	}
	return doctors, rows.Err()
}

func (r *DoctorRepository) Get(ctx context.Context, id int) (types.Doctor, error) {
	const query = `
		SELECT id, name, specialty, phone, created_at, updated_at
		FROM doctors
		WHERE id = $1`
	var doctor types.Doctor
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&doctor.ID,
		&doctor.Name,
		&doctor.Specialty,
		&doctor.Phone,
		&doctor.CreatedAt,
		&doctor.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Doctor{}, ErrNotFound
		}
		return types.Doctor{}, err
	}
	return doctor, nil
}

func (r *DoctorRepository) Create(ctx context.Context, doctor types.Doctor) (types.Doctor, error) {
	now := time.Now()
	doctor.CreatedAt = now
	doctor.UpdatedAt = now

	const query = `
		INSERT INTO doctors (name, specialty, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		doctor.Name,
		doctor.Specialty,
		doctor.Phone,
		doctor.CreatedAt,
		doctor.UpdatedAt,
	).Scan(&doctor.ID); err != nil {
		return types.Doctor{}, err
	}
	return doctor, nil
}

func (r *DoctorRepository) Update(ctx context.Context, doctor types.Doctor) (types.Doctor, error) {
	doctor.UpdatedAt = time.Now()

	const query = `
		UPDATE doctors
		SET name = $1,
			specialty = $2,
			phone = $3,
			updated_at = $4
		WHERE id = $5`
	result, err := r.db.ExecContext(
		ctx,
		query,
		doctor.Name,
		doctor.Specialty,
		doctor.Phone,
		doctor.UpdatedAt,
		doctor.ID,
	)
	if err != nil {
		return types.Doctor{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Doctor{}, err
	}
	if affected == 0 {
		return types.Doctor{}, ErrNotFound
	}
	return doctor, nil
}

func (r *DoctorRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM doctors WHERE id = $1`
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
