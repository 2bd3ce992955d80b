package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/membership-portal/internal/models"
)

func TestStorage_CreateMembership(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	userUID := factory.CreateUser(t, "testuser", "test@example.com", "hashedpassword", "user")
	paymentUID := factory.CreatePayment(t, &userUID, "standard", 100000, 10000, 110000,
		"completed", "Taro Yamada", "taro@example.com")

	granted := time.Now()
	membership := models.Membership{
		PaymentUID:         paymentUID,
		UserUID:            userUID,
		MemberUsername:     "m12345678",
		MemberPasswordHash: "hashedpassword",
		AccessGrantedAt:    granted,
		AccessExpiresAt:    granted.AddDate(0, 6, 0),
		IsActive:           true,
	}

	id, err := storage.CreateMembership(ctx, membership)
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	verification := NewTestVerification(storage)
	verification.VerifyMembershipActive(t, id, true)

	t.Run("повторная вставка по тому же платежу возвращает ErrMembershipExists", func(t *testing.T) {
		membership.MemberUsername = "m87654321"
		_, err := storage.CreateMembership(ctx, membership)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMembershipExists)
	})
}

func TestStorage_GetMembershipByUser(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(t *testing.T, factory *TestDataFactory) string
		wantError error
	}{
		{
			name: "членство найдено",
			setup: func(t *testing.T, factory *TestDataFactory) string {
				userUID := factory.CreateUser(t, "testuser", "test@example.com", "hash", "user")
				paymentUID := factory.CreatePayment(t, &userUID, "basic", 50000, 5000, 55000,
					"completed", "Taro Yamada", "taro@example.com")
				factory.CreateMembership(t, paymentUID, userUID, "m11111111",
					time.Now(), time.Now().AddDate(0, 6, 0), true)
				return userUID
			},
		},
		{
			name: "членства нет",
			setup: func(t *testing.T, factory *TestDataFactory) string {
				return factory.CreateUser(t, "nomember", "nomember@example.com", "hash", "user")
			},
			wantError: ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, cleanup := setupTestDatabase(t)
			defer cleanup()

			factory := NewTestDataFactory(storage)
			userUID := tt.setup(t, factory)

			m, err := storage.GetMembershipByUser(context.Background(), userUID)
			if tt.wantError != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, userUID, m.UserUID)
			assert.True(t, m.IsActive)
			assert.Nil(t, m.CredentialsSentAt)
		})
	}
}

func TestStorage_UpdateMembershipActive(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	userUID := factory.CreateUser(t, "testuser", "test@example.com", "hash", "user")
	paymentUID := factory.CreatePayment(t, &userUID, "premium", 150000, 15000, 165000,
		"completed", "Taro Yamada", "taro@example.com")
	id := factory.CreateMembership(t, paymentUID, userUID, "m22222222",
		time.Now(), time.Now().AddDate(0, 6, 0), true)

	gotUID, err := storage.UpdateMembershipActive(ctx, id, false)
	require.NoError(t, err)
	assert.Equal(t, userUID, gotUID)

	verification := NewTestVerification(storage)
	verification.VerifyMembershipActive(t, id, false)

	t.Run("несуществующее членство возвращает ErrNotFound", func(t *testing.T) {
		_, err := storage.UpdateMembershipActive(ctx, 9999, true)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStorage_MarkCredentialsSent(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	userUID := factory.CreateUser(t, "testuser", "test@example.com", "hash", "user")
	paymentUID := factory.CreatePayment(t, &userUID, "basic", 50000, 5000, 55000,
		"completed", "Taro Yamada", "taro@example.com")
	id := factory.CreateMembership(t, paymentUID, userUID, "m33333333",
		time.Now(), time.Now().AddDate(0, 6, 0), true)

	err := storage.MarkCredentialsSent(ctx, id)
	require.NoError(t, err)

	m, err := storage.GetMembershipByPayment(ctx, paymentUID)
	require.NoError(t, err)
	require.NotNil(t, m.CredentialsSentAt)
}

func TestStorage_FindMembershipsExpiringSoon(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	// Три активных членства с окончанием через 29, 30 и 31 день:
	// в выборку должно попасть только среднее.
	granted := time.Now().AddDate(0, -5, 0)
	for i, days := range []int{29, 30, 31} {
		userUID := factory.CreateUser(t,
			"user"+uuid.New().String()[:8],
			uuid.New().String()[:8]+"@example.com", "hash", "user")
		paymentUID := factory.CreatePayment(t, &userUID, "standard", 100000, 10000, 110000,
			"completed", "Customer "+string(rune('A'+i)), "customer"+string(rune('a'+i))+"@example.com")
		factory.CreateMembership(t, paymentUID, userUID, "m"+uuid.New().String()[:8],
			granted, time.Now().AddDate(0, 0, days), true)
	}

	// Неактивное членство с окончанием ровно через 30 дней не попадает.
	inactiveUID := factory.CreateUser(t, "inactiveuser", "inactive@example.com", "hash", "user")
	inactivePayment := factory.CreatePayment(t, &inactiveUID, "basic", 50000, 5000, 55000,
		"completed", "Inactive Customer", "inactive-customer@example.com")
	factory.CreateMembership(t, inactivePayment, inactiveUID, "m99999999",
		granted, time.Now().AddDate(0, 0, 30), false)

	result, err := storage.FindMembershipsExpiringSoon(ctx, 30)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "Customer B", result[0].CustomerName)
	assert.Equal(t, "customerb@example.com", result[0].Email)
}

func TestStorage_ListMemberships(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	aliceUID := factory.CreateUser(t, "alice", "alice@example.com", "hash", "user")
	alicePayment := factory.CreatePaymentWithSeller(t, &aliceUID, "standard", "seller-one",
		"Alice Tanaka", "alice@example.com")
	factory.CreateMembership(t, alicePayment, aliceUID, "m10000001",
		time.Now().AddDate(0, -1, 0), time.Now().AddDate(0, 5, 0), true)

	bobUID := factory.CreateUser(t, "bob", "bob@example.com", "hash", "user")
	bobPayment := factory.CreatePaymentWithSeller(t, &bobUID, "premium", "seller-two",
		"Bob Suzuki", "bob@example.com")
	factory.CreateMembership(t, bobPayment, bobUID, "m10000002",
		time.Now().AddDate(0, -7, 0), time.Now().AddDate(0, -1, 0), true)

	strPtr := func(s string) *string { return &s }

	tests := []struct {
		name      string
		filter    models.MembershipFilter
		wantNames []string
	}{
		{
			name:      "без фильтров возвращаются все",
			filter:    models.MembershipFilter{Limit: 20},
			wantNames: []string{"Alice Tanaka", "Bob Suzuki"},
		},
		{
			name:      "фильтр по статусу active",
			filter:    models.MembershipFilter{Status: strPtr("active"), Limit: 20},
			wantNames: []string{"Alice Tanaka"},
		},
		{
			name:      "фильтр по статусу expired",
			filter:    models.MembershipFilter{Status: strPtr("expired"), Limit: 20},
			wantNames: []string{"Bob Suzuki"},
		},
		{
			name:      "фильтр по плану",
			filter:    models.MembershipFilter{PlanType: strPtr("premium"), Limit: 20},
			wantNames: []string{"Bob Suzuki"},
		},
		{
			name:      "фильтр по продавцу",
			filter:    models.MembershipFilter{Seller: strPtr("seller-one"), Limit: 20},
			wantNames: []string{"Alice Tanaka"},
		},
		{
			name:      "поиск по email покупателя",
			filter:    models.MembershipFilter{Search: strPtr("bob@"), Limit: 20},
			wantNames: []string{"Bob Suzuki"},
		},
		{
			name:      "пустая выборка при несовпадении фильтра",
			filter:    models.MembershipFilter{Seller: strPtr("unknown-seller"), Limit: 20},
			wantNames: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := storage.ListMemberships(ctx, tt.filter)
			require.NoError(t, err)
			var names []string
			for _, item := range result {
				names = append(names, item.CustomerName)
			}
			assert.ElementsMatch(t, tt.wantNames, names)
		})
	}
}

func TestStorage_UpdateGatewayResult(t *testing.T) {
	tests := []struct {
		name          string
		initialStatus string
		newStatus     string
		wantAffected  int64
		wantFinal     string
	}{
		{
			name:          "pending переходит в completed",
			initialStatus: "pending",
			newStatus:     "completed",
			wantAffected:  1,
			wantFinal:     "completed",
		},
		{
			name:          "pending переходит в failed",
			initialStatus: "pending",
			newStatus:     "failed",
			wantAffected:  1,
			wantFinal:     "failed",
		},
		{
			name:          "терминальный completed не перезаписывается",
			initialStatus: "completed",
			newStatus:     "failed",
			wantAffected:  0,
			wantFinal:     "completed",
		},
		{
			name:          "терминальный cancelled не перезаписывается",
			initialStatus: "cancelled",
			newStatus:     "completed",
			wantAffected:  0,
			wantFinal:     "cancelled",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, cleanup := setupTestDatabase(t)
			defer cleanup()

			factory := NewTestDataFactory(storage)
			ctx := context.Background()

			paymentUID := factory.CreatePayment(t, nil, "standard", 100000, 10000, 110000,
				tt.initialStatus, "Taro Yamada", "taro@example.com")

			affected, err := storage.UpdateGatewayResult(ctx, paymentUID, tt.newStatus,
				"order-123", "txn-456")
			require.NoError(t, err)
			assert.Equal(t, tt.wantAffected, affected)

			verification := NewTestVerification(storage)
			verification.VerifyPaymentStatus(t, paymentUID, tt.wantFinal)
		})
	}
}

func TestStorage_ForcePaymentStatus(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	paymentUID := factory.CreatePayment(t, nil, "basic", 50000, 5000, 55000,
		"completed", "Taro Yamada", "taro@example.com")

	// Административная правка обходит правило монотонных переходов.
	err := storage.ForcePaymentStatus(ctx, paymentUID, "cancelled")
	require.NoError(t, err)

	verification := NewTestVerification(storage)
	verification.VerifyPaymentStatus(t, paymentUID, "cancelled")

	t.Run("несуществующий платёж возвращает ErrNotFound", func(t *testing.T) {
		err := storage.ForcePaymentStatus(ctx, uuid.New().String(), "completed")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStorage_GetPayment(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	paymentUID := factory.CreatePayment(t, nil, "premium", 150000, 15000, 165000,
		"pending", "Taro Yamada", "taro@example.com")

	p, err := storage.GetPayment(ctx, paymentUID)
	require.NoError(t, err)
	assert.Equal(t, "premium", p.PlanType)
	assert.Equal(t, 150000, p.Amount)
	assert.Equal(t, 15000, p.TaxAmount)
	assert.Equal(t, 165000, p.TotalAmount)
	assert.Equal(t, "pending", p.Status)
	assert.Nil(t, p.UserUID)
	assert.Nil(t, p.GatewayOrderID)

	t.Run("несуществующий платёж возвращает ErrNotFound", func(t *testing.T) {
		_, err := storage.GetPayment(ctx, uuid.New().String())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStorage_ListPaymentsByPlan(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	for range 3 {
		factory.CreatePayment(t, nil, "standard", 100000, 10000, 110000,
			"completed", "Taro Yamada", "taro@example.com")
	}
	factory.CreatePayment(t, nil, "basic", 50000, 5000, 55000,
		"completed", "Hanako Sato", "hanako@example.com")

	result, err := storage.ListPaymentsByPlan(ctx, "standard", 10, 0)
	require.NoError(t, err)
	assert.Len(t, result, 3)

	result, err = storage.ListPaymentsByPlan(ctx, "standard", 2, 2)
	require.NoError(t, err)
	assert.Len(t, result, 1)

	result, err = storage.ListPaymentsByPlan(ctx, "premium", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestStorage_RegisterUser(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx := context.Background()

	uid, err := storage.RegisterUser(ctx, models.User{
		Email:        "new@example.com",
		Username:     "newuser",
		PasswordHash: "hashedpassword",
		Role:         "user",
	})
	require.NoError(t, err)
	require.NotEmpty(t, uid)

	u, err := storage.GetUserByUsername(ctx, "newuser")
	require.NoError(t, err)
	assert.Equal(t, uid, u.UID)
	assert.Equal(t, "new@example.com", u.Email)
	assert.Equal(t, "user", u.Role)

	t.Run("несуществующий пользователь возвращает ErrNotFound", func(t *testing.T) {
		_, err := storage.GetUserByUsername(ctx, "ghost")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
