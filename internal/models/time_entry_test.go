package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func int64Ptr(v int64) *int64 { return &v }

func TestTimeEntry_EffectiveHourlyRate(t *testing.T) {
	project := Project{ID: 1, HourlyRate: int64Ptr(5000)}

	tests := []struct {
		name  string
		entry TimeEntry
		want  *int64
	}{
		{name: "entry override wins", entry: TimeEntry{HourlyRate: int64Ptr(7500), Project: project}, want: int64Ptr(7500)},
		{name: "falls back to project", entry: TimeEntry{Project: project}, want: int64Ptr(5000)},
		{name: "project not loaded", entry: TimeEntry{}, want: nil},
		{name: "project without rate", entry: TimeEntry{Project: Project{ID: 2}}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.entry.EffectiveHourlyRate())
		})
	}
}

func TestUser_IsPrivileged(t *testing.T) {
	assert.True(t, (&User{Role: UserRoleAdmin}).IsPrivileged())
	assert.True(t, (&User{Role: UserRoleManager}).IsPrivileged())
	assert.True(t, (&User{Role: UserRoleEmployee, IsSuperuser: true}).IsPrivileged())
	assert.False(t, (&User{Role: UserRoleEmployee}).IsPrivileged())
	assert.False(t, (&User{Role: UserRoleManager}).IsAdmin())
}
