package models

import "time"

// Enrollment links a student profile to a career. The (profile, career)
// pair is unique: a person cannot enroll twice in the same career.
type Enrollment struct {
	ID        int64     `db:"id" json:"id"`
	ProfileID int64     `db:"profile_id" json:"profile_id"`
	CareerID  int64     `db:"career_id" json:"career_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// EnrollmentDetail decorates an enrollment with career context for listings.
type EnrollmentDetail struct {
	Enrollment
	CareerName  string    `db:"career_name" json:"career_name"`
	CohortStart time.Time `db:"cohort_start" json:"cohort_start"`
}

// CreateEnrollmentRequest is the payload for enrolling a profile in a career.
type CreateEnrollmentRequest struct {
	ProfileID int64 `json:"profile_id" validate:"required,gt=0"`
	CareerID  int64 `json:"career_id" validate:"required,gt=0"`
}
