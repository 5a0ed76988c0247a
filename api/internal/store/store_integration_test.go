//go:build integration_pg

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"coupon-market/api/internal/verify"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "postgres",
				"POSTGRES_DB":       "coupons",
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			).WithDeadline(2 * time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://postgres:postgres@%s:%s/coupons?sslmode=disable", host, port.Port())
}

func TestRepos_Integration(t *testing.T) {
	dsn := startPostgres(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	db, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer db.Close()
	// idempotent
	require.NoError(t, Migrate(ctx, db))

	_, err = db.ExecContext(ctx, `create table coupons (id uuid primary key, code text)`)
	require.NoError(t, err)
	couponID := uuid.NewString()
	_, err = db.ExecContext(ctx, `insert into coupons (id, code) values ($1, $2)`, couponID, "SAVE20")
	require.NoError(t, err)

	coupons := NewCouponRepo(db)
	code, err := coupons.Code(ctx, couponID)
	require.NoError(t, err)
	assert.Equal(t, "SAVE20", code)

	_, err = coupons.Code(ctx, uuid.NewString())
	assert.True(t, IsNotFound(err))

	repo := NewVerificationRepo(db)
	id, err := repo.Insert(ctx, Verification{
		Source:       "test",
		CouponID:     couponID,
		ExpectedCode: "SAVE20",
		Status:       verify.StatusVerified,
		Result:       verify.Result{Found: true, ExtractedText: "SAVE20", Confidence: verify.ConfidenceHigh, Model: "m"},
		Attempts: []verify.Attempt{
			{Model: "a", Outcome: verify.OutcomeTransient, Detail: "503", Retried: true},
			{Model: "m", Outcome: verify.OutcomeSuccess},
		},
	})
	require.NoError(t, err)

	got, err := repo.LatestForCoupon(ctx, couponID)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, verify.StatusVerified, got.Status)
	assert.True(t, got.Result.Found)
	assert.Equal(t, verify.ConfidenceHigh, got.Result.Confidence)
	require.Len(t, got.Attempts, 2)
	assert.True(t, got.Attempts[0].Retried)
	assert.Equal(t, verify.OutcomeSuccess, got.Attempts[1].Outcome)
}
