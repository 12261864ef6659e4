package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/apicalculator/internal/domain"
)

func record(owner string, at time.Time) domain.CalculationRecord {
	return domain.CalculationRecord{
		UserID:        owner,
		FirstElement:  decimal.NewFromInt(1),
		Operation:     "+",
		SecondElement: decimal.NewFromInt(2),
		Result:        decimal.NewFromInt(3),
		OperationDate: at,
	}
}

func TestUserRepo_CreateAndGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewUserRepo()

	u := &domain.User{ID: "1", Username: "alice", Email: "a@x", PasswordHash: "h"}
	require.NoError(t, r.CreateUser(ctx, u, domain.RoleUser))
	assert.Equal(t, []domain.Role{domain.RoleUser}, u.Roles)
	assert.False(t, u.CreatedAt.IsZero())

	got, err := r.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "1", got.ID)
	assert.Equal(t, []domain.Role{domain.RoleUser}, got.Roles)

	_, err = r.GetUserByUsername(ctx, "nobody")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserRepo_Conflicts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewUserRepo()

	require.NoError(t, r.CreateUser(ctx, &domain.User{ID: "1", Username: "alice", Email: "a@x"}, domain.RoleUser))

	err := r.CreateUser(ctx, &domain.User{ID: "2", Username: "alice", Email: "b@x"}, domain.RoleUser)
	require.ErrorIs(t, err, domain.ErrConflict)

	err = r.CreateUser(ctx, &domain.User{ID: "3", Username: "carol", Email: "a@x"}, domain.RoleUser)
	require.ErrorIs(t, err, domain.ErrConflict)

	err = r.CreateUser(ctx, &domain.User{ID: "5", Username: "dave", Email: "d@x"}, domain.Role("Root"))
	require.ErrorIs(t, err, domain.ErrValidation)

	// username чувствителен к регистру
	require.NoError(t, r.CreateUser(ctx, &domain.User{ID: "4", Username: "Alice", Email: "c@x"}, domain.RoleAdmin))
	got, err := r.GetUserByUsername(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "4", got.ID)
}

func TestUserRepo_ReturnsCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewUserRepo()
	require.NoError(t, r.CreateUser(ctx, &domain.User{ID: "1", Username: "alice", Email: "a@x"}, domain.RoleUser))

	got, err := r.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	got.Roles[0] = domain.RoleAdmin

	again, err := r.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []domain.Role{domain.RoleUser}, again.Roles)
}

func TestHistoryRepo_InsertValidates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewHistoryRepo()

	_, err := r.Insert(ctx, record("", time.Now()))
	require.ErrorIs(t, err, domain.ErrValidation)

	bad := record("u1", time.Now())
	bad.Operation = "/"
	bad.SecondElement = decimal.Zero
	_, err = r.Insert(ctx, bad)
	require.ErrorIs(t, err, domain.ErrDivisionByZero)

	all, err := r.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	stored, err := r.Insert(ctx, record("u1", time.Now()))
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.ID)
}

func TestHistoryRepo_Ordering(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewHistoryRepo()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, at := range []time.Time{base, base.Add(2 * time.Second), base.Add(time.Second), base.Add(2 * time.Second)} {
		_, err := r.Insert(ctx, record("u1", at))
		require.NoError(t, err)
	}

	got, err := r.ListForUser(ctx, "u1")
	require.NoError(t, err)
	ids := make([]int64, 0, len(got))
	for _, rec := range got {
		ids = append(ids, rec.ID)
	}
	// у 2 и 4 одно время, порядок вставки сохраняется
	assert.Equal(t, []int64{2, 4, 3, 1}, ids)
}

func TestHistoryRepo_Isolation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewHistoryRepo()

	owners := []string{"idA", "idB", "idC"}
	counts := map[string]int{}
	rng := rand.New(rand.NewSource(7))
	base := time.Now()
	for i := 0; i < 300; i++ {
		owner := owners[rng.Intn(len(owners))]
		counts[owner]++
		_, err := r.Insert(ctx, record(owner, base.Add(time.Duration(rng.Intn(50))*time.Millisecond)))
		require.NoError(t, err)
	}

	for _, owner := range owners {
		got, err := r.ListForUser(ctx, owner)
		require.NoError(t, err)
		assert.Len(t, got, counts[owner])
		for _, rec := range got {
			require.Equal(t, owner, rec.UserID)
		}
	}

	removed, err := r.DeleteAllForUser(ctx, "idA")
	require.NoError(t, err)
	assert.Equal(t, int64(counts["idA"]), removed)

	removed, err = r.DeleteAllForUser(ctx, "idA")
	require.NoError(t, err)
	assert.Zero(t, removed)

	left, err := r.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, left, counts["idB"]+counts["idC"])
	for _, rec := range left {
		assert.NotEqual(t, "idA", rec.UserID)
	}
}

func TestHistoryRepo_DeleteEmptyIdentity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewHistoryRepo()
	_, err := r.Insert(ctx, record("u1", time.Now()))
	require.NoError(t, err)

	removed, err := r.DeleteAllForUser(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, removed)

	removed, err = r.DeleteAllForUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, removed)

	all, _ := r.ListAll(ctx)
	assert.Len(t, all, 1)
}

func TestHistoryRepo_ConcurrentWriters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewHistoryRepo()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(owner string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, _ = r.Insert(ctx, record(owner, time.Now()))
			}
		}(fmt.Sprintf("user-%d", w))
	}
	wg.Wait()

	all, err := r.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 400)

	seen := map[int64]bool{}
	for _, rec := range all {
		require.False(t, seen[rec.ID], "duplicate id %d", rec.ID)
		seen[rec.ID] = true
	}
}
