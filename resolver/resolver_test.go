package resolver

import (
	"context"
	"sync"
	"testing"
	"time"

	"momo/models"
	"momo/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestResolveUser_CreatesThenReuses(t *testing.T) {
	db := testutil.NewDB(t)
	r := New(db)
	ctx := context.Background()

	id1, err := r.ResolveUser(ctx, "250788000001", "")
	require.NoError(t, err)
	assert.NotZero(t, id1)

	// 格式不同但规范化后相同
	id2, err := r.ResolveUser(ctx, " 250-788-000-001 ", "Jane Smith")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	var user models.User
	require.NoError(t, db.First(&user, id1).Error)
	assert.Equal(t, "250788000001", user.Phone)
	assert.Equal(t, "Jane Smith", user.FullName)

	// 已有名字不被覆盖
	_, err = r.ResolveUser(ctx, "250788000001", "Someone Else")
	require.NoError(t, err)
	require.NoError(t, db.First(&user, id1).Error)
	assert.Equal(t, "Jane Smith", user.FullName)

	var count int64
	db.Model(&models.User{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestResolveUser_Empty(t *testing.T) {
	r := New(testutil.NewDB(t))

	_, err := r.ResolveUser(context.Background(), "  ", "x")
	assert.ErrorIs(t, err, ErrEmptyIdentifier)

	_, err = r.ResolveCategory(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyIdentifier)
}

func TestResolveCategory(t *testing.T) {
	db := testutil.NewDB(t)
	r := New(db)
	ctx := context.Background()

	a, err := r.ResolveCategory(ctx, "P2P Transfer")
	require.NoError(t, err)
	b, err := r.ResolveCategory(ctx, "  P2P Transfer ")
	require.NoError(t, err)
	c, err := r.ResolveCategory(ctx, "Airtime")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestResolveUser_WithTxRollsBackWithCaller(t *testing.T) {
	db := testutil.NewDB(t)
	r := New(db)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := r.WithTx(tx).ResolveUser(context.Background(), "250788000009", "")
		require.NoError(t, err)
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	var count int64
	db.Model(&models.User{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestResolveUser_Concurrent(t *testing.T) {
	db := testutil.NewDB(t)
	r := New(db)

	const workers = 8
	ids := make([]uint, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = r.ResolveUser(context.Background(), "250788123456", "")
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	var count int64
	db.Model(&models.User{}).Where("phone = ?", "250788123456").Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestResolveUser_ConflictRetry(t *testing.T) {
	db, mock := testutil.NewMockDB(t)

	// 第一次查询未命中
	mock.ExpectQuery("SELECT .* FROM `users`").
		WithArgs("250788000001").
		WillReturnRows(sqlmock.NewRows([]string{}))

	// 插入时另一个解析器已写入，触发唯一键冲突
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `users`").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '250788000001' for key 'idx_users_phone'"})
	mock.ExpectRollback()

	// 重新查询拿到胜出者的主键
	mock.ExpectQuery("SELECT .* FROM `users`").
		WithArgs("250788000001").
		WillReturnRows(sqlmock.NewRows([]string{"id", "phone", "full_name", "created_at"}).
			AddRow(7, "250788000001", "", time.Now()))

	id, err := New(db).ResolveUser(context.Background(), "250788000001", "")
	require.NoError(t, err)
	assert.Equal(t, uint(7), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "+250788000001", NormalizePhone(" +250 (788) 000-001 "))
	assert.Equal(t, "250788000001", NormalizePhone("250.788.000.001"))
	assert.Equal(t, "", NormalizePhone("   "))
}
