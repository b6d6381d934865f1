package tenant

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// scopeRecord 租户隔离表的测试模型
type scopeRecord struct {
	ID       uint   `gorm:"primarykey"`
	SchoolID string `gorm:"type:varchar(36);index"`
	Name     string
}

func (scopeRecord) TableName() string { return "scope_records" }

// globalRecord 非租户表的测试模型
type globalRecord struct {
	ID   uint `gorm:"primarykey"`
	Name string
}

func (globalRecord) TableName() string { return "global_records" }

func setupScopeDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "scope.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&scopeRecord{}, &globalRecord{}))
	require.NoError(t, db.Use(NewScopePlugin("scope_records")))
	return db
}

func seedTwoSchools(t *testing.T, db *gorm.DB) {
	t.Helper()

	s1 := WithSchool(context.Background(), "s1")
	s2 := WithSchool(context.Background(), "s2")

	require.NoError(t, db.WithContext(s1).Create(&scopeRecord{Name: "alpha"}).Error)
	require.NoError(t, db.WithContext(s1).Create(&scopeRecord{Name: "beta"}).Error)
	require.NoError(t, db.WithContext(s2).Create(&scopeRecord{Name: "gamma"}).Error)
}

func TestQueryInjectsTenantFilter(t *testing.T) {
	db := setupScopeDB(t)
	seedTwoSchools(t, db)

	var records []scopeRecord
	err := db.WithContext(WithSchool(context.Background(), "s1")).Find(&records).Error
	require.NoError(t, err)

	assert.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, "s1", r.SchoolID)
	}
}

func TestCallerSchoolIDFilterIsOverridden(t *testing.T) {
	db := setupScopeDB(t)
	seedTwoSchools(t, db)

	// 调用方伪造 school_id 条件，上下文仍然是 s1，必须只能看到 s1 的数据
	var records []scopeRecord
	err := db.WithContext(WithSchool(context.Background(), "s1")).
		Where("school_id = ?", "s2").
		Find(&records).Error
	require.NoError(t, err)

	assert.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, "s1", r.SchoolID)
	}
}

func TestNonTenantConditionsPreserved(t *testing.T) {
	db := setupScopeDB(t)
	seedTwoSchools(t, db)

	var records []scopeRecord
	err := db.WithContext(WithSchool(context.Background(), "s1")).
		Where("name = ?", "alpha").
		Find(&records).Error
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, "alpha", records[0].Name)
}

func TestMixedRawConditionIsKept(t *testing.T) {
	db := setupScopeDB(t)
	seedTwoSchools(t, db)

	// 原生条件里混着 school_id 时整体保留：name 条件不能被连带丢掉，
	// 租户过滤以 AND 合并，结果只剩 s1 里名字匹配的记录
	var records []scopeRecord
	err := db.WithContext(WithSchool(context.Background(), "s1")).
		Where("name = ? OR school_id = ?", "alpha", "s2").
		Find(&records).Error
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, "alpha", records[0].Name)
	assert.Equal(t, "s1", records[0].SchoolID)
}

func TestCreateForcesTenantField(t *testing.T) {
	db := setupScopeDB(t)

	// 载荷里带着别家的 school_id，创建时必须被上下文覆盖
	rec := scopeRecord{SchoolID: "s2", Name: "forged"}
	err := db.WithContext(WithSchool(context.Background(), "s1")).Create(&rec).Error
	require.NoError(t, err)

	var stored scopeRecord
	require.NoError(t, db.WithContext(WithSystem(context.Background())).First(&stored, rec.ID).Error)
	assert.Equal(t, "s1", stored.SchoolID)
}

func TestBatchCreateForcesTenantField(t *testing.T) {
	db := setupScopeDB(t)

	recs := []scopeRecord{
		{SchoolID: "s2", Name: "one"},
		{Name: "two"},
	}
	err := db.WithContext(WithSchool(context.Background(), "s1")).Create(&recs).Error
	require.NoError(t, err)

	var count int64
	db.WithContext(WithSchool(context.Background(), "s1")).Model(&scopeRecord{}).Count(&count)
	assert.EqualValues(t, 2, count)
}

func TestUpdateCannotMoveRecordToAnotherTenant(t *testing.T) {
	db := setupScopeDB(t)
	seedTwoSchools(t, db)

	s1 := WithSchool(context.Background(), "s1")
	err := db.WithContext(s1).Model(&scopeRecord{}).
		Where("name = ?", "alpha").
		Updates(map[string]interface{}{"name": "alpha2", "school_id": "s2"}).Error
	require.NoError(t, err)

	var rec scopeRecord
	require.NoError(t, db.WithContext(s1).Where("name = ?", "alpha2").First(&rec).Error)
	assert.Equal(t, "s1", rec.SchoolID)
}

func TestUpdateOnlyAffectsOwnTenant(t *testing.T) {
	db := setupScopeDB(t)
	seedTwoSchools(t, db)

	// s1 的全表更新不能碰到 s2 的数据
	err := db.WithContext(WithSchool(context.Background(), "s1")).
		Model(&scopeRecord{}).
		Where("1 = 1").
		Update("name", "renamed").Error
	require.NoError(t, err)

	var rec scopeRecord
	require.NoError(t, db.WithContext(WithSchool(context.Background(), "s2")).First(&rec).Error)
	assert.Equal(t, "gamma", rec.Name)
}

func TestDeleteOnlyAffectsOwnTenant(t *testing.T) {
	db := setupScopeDB(t)
	seedTwoSchools(t, db)

	err := db.WithContext(WithSchool(context.Background(), "s1")).
		Where("1 = 1").
		Delete(&scopeRecord{}).Error
	require.NoError(t, err)

	var count int64
	db.WithContext(WithSystem(context.Background())).Model(&scopeRecord{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestMissingContextOnTenantTableIsRejected(t *testing.T) {
	db := setupScopeDB(t)
	seedTwoSchools(t, db)

	var records []scopeRecord
	err := db.WithContext(context.Background()).Find(&records).Error
	assert.ErrorIs(t, err, ErrNoTenantContext)

	err = db.WithContext(context.Background()).Create(&scopeRecord{Name: "x"}).Error
	assert.ErrorIs(t, err, ErrNoTenantContext)
}

func TestEmptySchoolWithoutSuperAdminIsRejected(t *testing.T) {
	db := setupScopeDB(t)
	seedTwoSchools(t, db)

	// 普通身份却没绑定学校：不能当成全局访问放行
	ctx := WithSchool(context.Background(), "")

	var records []scopeRecord
	err := db.WithContext(ctx).Find(&records).Error
	assert.ErrorIs(t, err, ErrNoSchoolID)
	assert.Empty(t, records)

	err = db.WithContext(ctx).Create(&scopeRecord{Name: "x"}).Error
	assert.ErrorIs(t, err, ErrNoSchoolID)

	err = db.WithContext(ctx).Where("1 = 1").Delete(&scopeRecord{}).Error
	assert.ErrorIs(t, err, ErrNoSchoolID)

	var count int64
	db.WithContext(WithSystem(context.Background())).Model(&scopeRecord{}).Count(&count)
	assert.EqualValues(t, 3, count)
}

func TestSystemContextSeesAllTenants(t *testing.T) {
	db := setupScopeDB(t)
	seedTwoSchools(t, db)

	var records []scopeRecord
	err := db.WithContext(WithSystem(context.Background())).Find(&records).Error
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestNonTenantTableUnaffected(t *testing.T) {
	db := setupScopeDB(t)

	// 平台表不需要租户上下文
	err := db.WithContext(context.Background()).Create(&globalRecord{Name: "platform"}).Error
	require.NoError(t, err)

	var records []globalRecord
	require.NoError(t, db.WithContext(context.Background()).Find(&records).Error)
	assert.Len(t, records, 1)
}

func TestConcurrentRequestsKeepIsolatedContexts(t *testing.T) {
	db := setupScopeDB(t)

	schools := []string{"s1", "s2", "s3", "s4"}
	for i, s := range schools {
		ctx := WithSchool(context.Background(), s)
		for j := 0; j <= i; j++ {
			require.NoError(t, db.WithContext(ctx).Create(&scopeRecord{Name: s}).Error)
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(schools)*8)

	for round := 0; round < 8; round++ {
		for i, s := range schools {
			wg.Add(1)
			go func(school string, want int) {
				defer wg.Done()

				var records []scopeRecord
				if err := db.WithContext(WithSchool(context.Background(), school)).Find(&records).Error; err != nil {
					errs <- err
					return
				}
				if len(records) != want {
					errs <- assert.AnError
					return
				}
				for _, r := range records {
					if r.SchoolID != school {
						errs <- assert.AnError
						return
					}
				}
			}(s, i+1)
		}
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("并发查询串租: %v", err)
	}
}
