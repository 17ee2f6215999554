package model

import "time"

type ProjectType string

const (
	ProjectTypeEvent  ProjectType = "EVENT"
	ProjectTypeStills ProjectType = "STILLS"
	ProjectTypeMotion ProjectType = "MOTION"
	ProjectTypeHybrid ProjectType = "HYBRID"
)

func (t ProjectType) Valid() bool {
	switch t {
	case ProjectTypeEvent, ProjectTypeStills, ProjectTypeMotion, ProjectTypeHybrid:
		return true
	}
	return false
}

// ProjectStatus is the production pipeline stage.  Deleting a project moves
// it to ProjectArchived.
type ProjectStatus string

const (
	ProjectInquiry      ProjectStatus = "INQUIRY"
	ProjectConfirmed    ProjectStatus = "CONFIRMED"
	ProjectInProduction ProjectStatus = "IN_PRODUCTION"
	ProjectDelivered    ProjectStatus = "DELIVERED"
	ProjectInvoiced     ProjectStatus = "INVOICED"
	ProjectClosed       ProjectStatus = "CLOSED"
	ProjectArchived     ProjectStatus = "ARCHIVED"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectInquiry, ProjectConfirmed, ProjectInProduction, ProjectDelivered,
		ProjectInvoiced, ProjectClosed, ProjectArchived:
		return true
	}
	return false
}

// Project represents a row in the `projects` table.
type Project struct {
	ID          string        // projects.id
	Code        string        // projects.code, PRJ-<year>-<seq>
	Name        string        // projects.name
	Description *string       // projects.description (nullable)
	Type        ProjectType   // projects.type
	Status      ProjectStatus // projects.status
	OwnerID     string        // projects.owner_id
	ArchivedAt  *time.Time    // projects.archived_at (nullable)
	CreatedAt   time.Time     // projects.created_at
	UpdatedAt   time.Time     // projects.updated_at
}
