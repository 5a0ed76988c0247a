package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

var ErrNotFound = sql.ErrNoRows

// CouponRepo reads the marketplace coupons table. The table itself is owned
// by the marketplace app.
type CouponRepo struct{ DB *sql.DB }

func NewCouponRepo(db *sql.DB) *CouponRepo { return &CouponRepo{DB: db} }

// Code returns the coupon code listed under id.
func (r *CouponRepo) Code(ctx context.Context, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrNotFound
	}
	const q = `select code from coupons where id::text = $1`
	var code sql.NullString
	if err := r.DB.QueryRowContext(ctx, q, id).Scan(&code); err != nil {
		return "", err
	}
	if !code.Valid {
		return "", ErrNotFound
	}
	return code.String, nil
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
