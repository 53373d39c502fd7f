package mappingbus

import (
	"time"

	"github.com/google/uuid"
)

// TeamMapping binds one upstream team to exactly one hub. The visibility
// lists follow the allow-list law: an empty list means every item of that
// kind is visible, a non-empty list is a strict allow-list. DeniedLabelIDs
// is subtractive and applies after the label allow-list.
type TeamMapping struct {
	ID             uuid.UUID
	HubID          uuid.UUID
	TeamID         string
	Enabled        bool
	ProjectIDs     []string
	InitiativeIDs  []string
	LabelIDs       []string
	DeniedLabelIDs []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewTeamMapping contains information needed to create a new mapping.
type NewTeamMapping struct {
	HubID          uuid.UUID
	TeamID         string
	ProjectIDs     []string
	InitiativeIDs  []string
	LabelIDs       []string
	DeniedLabelIDs []string
}

// UpdateTeamMapping contains information needed to update a mapping.
type UpdateTeamMapping struct {
	Enabled        *bool
	ProjectIDs     *[]string
	InitiativeIDs  *[]string
	LabelIDs       *[]string
	DeniedLabelIDs *[]string
}

// AllowsProject reports whether the mapping exposes the specified project.
func (tm TeamMapping) AllowsProject(projectID string) bool {
	return allows(tm.ProjectIDs, projectID)
}

// AllowsInitiative reports whether the mapping exposes the specified
// initiative.
func (tm TeamMapping) AllowsInitiative(initiativeID string) bool {
	return allows(tm.InitiativeIDs, initiativeID)
}

// AllowsLabels reports whether an item carrying the specified labels is
// exposed by the mapping. An empty allow-list admits everything; any denied
// label rejects the item.
func (tm TeamMapping) AllowsLabels(labelIDs []string) bool {
	for _, id := range labelIDs {
		for _, denied := range tm.DeniedLabelIDs {
			if id == denied {
				return false
			}
		}
	}

	if len(tm.LabelIDs) == 0 {
		return true
	}

	if len(labelIDs) == 0 {
		return false
	}

	for _, id := range labelIDs {
		if allows(tm.LabelIDs, id) {
			return true
		}
	}

	return false
}

func allows(allowList []string, id string) bool {
	if len(allowList) == 0 {
		return true
	}

	for _, allowed := range allowList {
		if allowed == id {
			return true
		}
	}

	return false
}
