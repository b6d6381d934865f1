package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"school-manager/models"
)

func TestFilterChannelsByEvent(t *testing.T) {
	svc := &NotificationService{}

	channels := []models.NotificationChannel{
		{Name: "all-empty", Events: ""},
		{Name: "all-star", Events: `["*"]`},
		{Name: "backup-only", Events: `["backup_success","backup_failed"]`},
		{Name: "restore-only", Events: `["restore_done"]`},
		{Name: "broken", Events: `not-json`},
	}

	got := svc.filterChannelsByEvent(channels, "backup_failed")

	names := make([]string, 0, len(got))
	for _, ch := range got {
		names = append(names, ch.Name)
	}
	assert.ElementsMatch(t, []string{"all-empty", "all-star", "backup-only"}, names)
}

func TestDingTalkSignDeterministic(t *testing.T) {
	svc := &NotificationService{}

	a := svc.generateDingTalkSign(1700000000000, "secret")
	b := svc.generateDingTalkSign(1700000000000, "secret")
	c := svc.generateDingTalkSign(1700000000001, "secret")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEmpty(t, a)
}
