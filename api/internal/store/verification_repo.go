package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"coupon-market/api/internal/verify"
)

// Verification is one row of the audit log.
type Verification struct {
	ID           uuid.UUID
	CreatedAt    time.Time
	RequestID    string
	Source       string
	CouponID     string
	ExpectedCode string
	Status       verify.Status
	Result       verify.Result
	Attempts     []verify.Attempt
}

type VerificationRepo struct{ DB *sql.DB }

func NewVerificationRepo(db *sql.DB) *VerificationRepo { return &VerificationRepo{DB: db} }

// Insert stores v and returns its id. A zero ID is replaced by a new one.
func (r *VerificationRepo) Insert(ctx context.Context, v Verification) (uuid.UUID, error) {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	js, err := encodeAttempts(v.Attempts)
	if err != nil {
		return uuid.Nil, err
	}
	const q = `
insert into coupon_verifications (
  id, request_id, source, coupon_id, expected_code,
  status, found, confidence, used_model, extracted, attempts
) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err = r.DB.ExecContext(ctx, q,
		v.ID, nullIfEmpty(v.RequestID), v.Source, nullIfEmpty(v.CouponID), v.ExpectedCode,
		string(v.Status), v.Result.Found, nullIfEmpty(string(v.Result.Confidence)),
		nullIfEmpty(v.Result.Model), nullIfEmpty(v.Result.ExtractedText), js,
	)
	if err != nil {
		return uuid.Nil, err
	}
	return v.ID, nil
}

// LatestForCoupon returns the most recent verification of couponID.
func (r *VerificationRepo) LatestForCoupon(ctx context.Context, couponID string) (*Verification, error) {
	const q = `
select id, created_at,
       coalesce(request_id,''), source, coalesce(coupon_id,''), expected_code,
       status, found, coalesce(confidence,''), coalesce(used_model,''), coalesce(extracted,''),
       attempts
from coupon_verifications
where coupon_id = $1
order by created_at desc
limit 1`
	var (
		v          Verification
		status     string
		confidence string
		js         []byte
	)
	err := r.DB.QueryRowContext(ctx, q, couponID).Scan(
		&v.ID, &v.CreatedAt, &v.RequestID, &v.Source, &v.CouponID, &v.ExpectedCode,
		&status, &v.Result.Found, &confidence, &v.Result.Model, &v.Result.ExtractedText, &js,
	)
	if err != nil {
		return nil, err
	}
	v.Status = verify.Status(status)
	v.Result.Confidence = verify.Confidence(confidence)
	if err := json.Unmarshal(js, &v.Attempts); err != nil {
		return nil, err
	}
	return &v, nil
}

func encodeAttempts(as []verify.Attempt) ([]byte, error) {
	if as == nil {
		as = []verify.Attempt{}
	}
	return json.Marshal(as)
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
