package mappingbus_test

import (
	"testing"

	"github.com/dcapri/hubmirror/business/domain/mappingbus"
	"github.com/stretchr/testify/assert"
)

func TestAllowsProject(t *testing.T) {
	tests := []struct {
		name       string
		projectIDs []string
		projectID  string
		want       bool
	}{
		{
			name:       "empty list admits everything",
			projectIDs: nil,
			projectID:  "prj-1",
			want:       true,
		},
		{
			name:       "listed project is visible",
			projectIDs: []string{"prj-1", "prj-2"},
			projectID:  "prj-2",
			want:       true,
		},
		{
			name:       "unlisted project is hidden",
			projectIDs: []string{"prj-1"},
			projectID:  "prj-9",
			want:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := mappingbus.TeamMapping{ProjectIDs: tt.projectIDs}
			assert.Equal(t, tt.want, tm.AllowsProject(tt.projectID))
		})
	}
}

func TestAllowsLabels(t *testing.T) {
	tests := []struct {
		name     string
		allowed  []string
		denied   []string
		labelIDs []string
		want     bool
	}{
		{
			name:     "no lists admits everything",
			labelIDs: []string{"lbl-1"},
			want:     true,
		},
		{
			name: "no lists admits unlabeled",
			want: true,
		},
		{
			name:     "denied label rejects regardless of allow list",
			allowed:  []string{"lbl-1"},
			denied:   []string{"lbl-secret"},
			labelIDs: []string{"lbl-1", "lbl-secret"},
			want:     false,
		},
		{
			name:     "denied label rejects with empty allow list",
			denied:   []string{"lbl-secret"},
			labelIDs: []string{"lbl-secret"},
			want:     false,
		},
		{
			name:     "allow list match admits",
			allowed:  []string{"lbl-1", "lbl-2"},
			labelIDs: []string{"lbl-2", "lbl-other"},
			want:     true,
		},
		{
			name:     "allow list without match rejects",
			allowed:  []string{"lbl-1"},
			labelIDs: []string{"lbl-other"},
			want:     false,
		},
		{
			name:    "unlabeled item fails a non-empty allow list",
			allowed: []string{"lbl-1"},
			want:    false,
		},
		{
			name:   "unlabeled item passes a deny-only mapping",
			denied: []string{"lbl-secret"},
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := mappingbus.TeamMapping{
				LabelIDs:       tt.allowed,
				DeniedLabelIDs: tt.denied,
			}
			assert.Equal(t, tt.want, tm.AllowsLabels(tt.labelIDs))
		})
	}
}

func TestAllowsInitiative(t *testing.T) {
	tm := mappingbus.TeamMapping{InitiativeIDs: []string{"ini-1"}}

	assert.True(t, tm.AllowsInitiative("ini-1"))
	assert.False(t, tm.AllowsInitiative("ini-2"))

	unscoped := mappingbus.TeamMapping{}
	assert.True(t, unscoped.AllowsInitiative("ini-2"))
}
