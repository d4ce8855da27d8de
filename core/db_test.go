package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOrdering(t *testing.T) {
	allowed := map[string]string{"name": "Name", "code": "Code", "created_at": "CreatedAt"}

	tests := []struct {
		raw  string
		want []DBOrdering
	}{
		{raw: "", want: nil},
		{raw: "name", want: []DBOrdering{{Field: "Name", Ascending: true}}},
		{raw: "-created_at, code", want: []DBOrdering{{Field: "CreatedAt"}, {Field: "Code", Ascending: true}}},
		{raw: "password,-name", want: []DBOrdering{{Field: "Name"}}},
		{raw: "Name; DROP TABLE Users", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseOrdering(tt.raw, allowed))
		})
	}

	assert.Equal(t, "Code ASC", DBOrdering{Field: "Code", Ascending: true}.String())
	assert.Equal(t, "Code DESC", DBOrdering{Field: "Code"}.String())
}

func TestConfig_helpers(t *testing.T) {
	conf := NewTestConfig()
	assert.Equal(t, "CSI Portal", conf.DefaultFromEmail().Name)
	assert.Equal(t, "noreply@localhost", conf.DefaultFromEmail().Address)

	conf.Email.DefaultFromEmail = "Surveys <surveys@example.com>"
	assert.Equal(t, "Surveys", conf.DefaultFromEmail().Name)

	assert.Equal(t, "db:1433", DatabaseConfig{Host: "db", Port: 1433}.Address())
	assert.Equal(t, []string{"http://a", "http://b"}, splitList(" http://a, ,http://b "))
	assert.Equal(t, "UTC", SchedulerConfig{Timezone: "Nowhere/Land"}.Location().String())
}
