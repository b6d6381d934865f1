package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromContextEmpty(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)
}

func TestWithSchool(t *testing.T) {
	ctx := WithSchool(context.Background(), "school-1")

	tc, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "school-1", tc.SchoolID)
	assert.False(t, tc.SuperAdmin)
	assert.True(t, tc.Scoped())
}

func TestWithSystem(t *testing.T) {
	ctx := WithSystem(context.Background())

	tc, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.True(t, tc.SuperAdmin)
	assert.False(t, tc.Scoped())
}

func TestNestedContextOverridesAndRestores(t *testing.T) {
	outer := WithSchool(context.Background(), "school-1")
	inner := WithSchool(outer, "school-2")

	tc, _ := FromContext(inner)
	assert.Equal(t, "school-2", tc.SchoolID)

	// 内层覆盖不影响外层
	tc, _ = FromContext(outer)
	assert.Equal(t, "school-1", tc.SchoolID)
}

func TestRequireSchoolID(t *testing.T) {
	_, err := RequireSchoolID(context.Background())
	assert.ErrorIs(t, err, ErrNoTenantContext)

	_, err = RequireSchoolID(WithSystem(context.Background()))
	assert.ErrorIs(t, err, ErrNoSchoolID)

	id, err := RequireSchoolID(WithSchool(context.Background(), "school-1"))
	assert.NoError(t, err)
	assert.Equal(t, "school-1", id)
}
