package models

import "time"

// Table names used by the record store and the migrator.
const (
	TableUsers         = "users"
	TableLibrary       = "digital_library"
	TableResearch      = "research_projects"
	TableCollaborators = "research_collaborators"
	TableIncidents     = "incidents"
	TableThreats       = "threat_intelligence"
	TableCompanyInfo   = "company_info"
	TableMetrics       = "security_metrics"
)

// Role values recognized for users.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an account stored in the database.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username     string  `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	PasswordHash string  `gorm:"type:text;not null"`             // bcrypt hash.
	Email        *string `gorm:"type:text;uniqueIndex"`          // Optional unique email.

	Role         string `gorm:"type:text;not null;default:user"` // user or admin.
	IsSuperAdmin bool   `gorm:"not null;default:false"`          // Grants user management when true.

	TwoFactorSecret *string `gorm:"type:text"` // Base32 TOTP secret, nil when 2FA is off.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

func (User) TableName() string { return TableUsers }

// LibraryItem represents an entry in the digital library.
type LibraryItem struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	Title       string  `gorm:"type:text;not null"`
	Type        string  `gorm:"type:text;not null"` // ebook, article, whitepaper or research.
	Author      string  `gorm:"type:text;not null"`
	Description string  `gorm:"type:text"`
	URL         *string `gorm:"type:text"`
	FilePath    *string `gorm:"type:text"`
	Tags        string  `gorm:"type:text"` // Comma-joined, order preserved.
	IsOnline    bool    `gorm:"not null;default:true"`

	CreatedBy *uint64 `gorm:"index"` // Weak reference to users.id.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`
}

func (LibraryItem) TableName() string { return TableLibrary }

// ResearchProject represents a tracked research effort.
type ResearchProject struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	Title          string  `gorm:"type:text;not null"`
	Status         string  `gorm:"type:text;not null"` // active, pending, completed or archived.
	Type           string  `gorm:"type:text;not null"` // online or offline.
	LeadResearcher string  `gorm:"type:text;not null"`
	Description    string  `gorm:"type:text"`
	StartDate      *string `gorm:"type:date"`
	EndDate        *string `gorm:"type:date"`
	Tags           string  `gorm:"type:text"`
	Progress       int     `gorm:"not null;default:0"` // 0..100.

	CreatedBy *uint64 `gorm:"index"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`
}

func (ResearchProject) TableName() string { return TableResearch }

// ResearchCollaborator belongs to a project and is removed with it.
type ResearchCollaborator struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	ProjectID      uint64 `gorm:"not null;index;constraint:OnDelete:CASCADE"`
	ResearcherName string `gorm:"type:text;not null"`
	Role           string `gorm:"type:text"`
	Email          string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime"`

	Project *ResearchProject `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
}

func (ResearchCollaborator) TableName() string { return TableCollaborators }

// Incident represents a tracked security incident.
type Incident struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	Title       string `gorm:"type:text;not null"`
	Description string `gorm:"type:text"`
	Severity    string `gorm:"type:text;not null"` // LOW, MEDIUM, HIGH or CRITICAL.
	Status      string `gorm:"type:text;not null"` // OPEN, INVESTIGATING, RESOLVED or CLOSED.
	AssignedTo  string `gorm:"type:text"`

	ReportedBy *uint64 `gorm:"index"`

	ReportedAt time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

func (Incident) TableName() string { return TableIncidents }

// ThreatFeed is a read-only threat-intelligence reference record.
type ThreatFeed struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	Source      string `gorm:"type:text;not null"`
	Title       string `gorm:"type:text;not null"`
	Severity    string `gorm:"type:text;not null"`
	Type        string `gorm:"type:text;not null"`
	Description string `gorm:"type:text"`
	IOCs        string `gorm:"column:iocs;type:text"`
	Mitigation  string `gorm:"type:text"`

	PublishedAt time.Time `gorm:"not null"`
}

func (ThreatFeed) TableName() string { return TableThreats }

// CompanyInfo is the singleton organization record seeded at bootstrap.
type CompanyInfo struct {
	ID uint64 `gorm:"primaryKey"`

	Name           string `gorm:"type:text;not null"`
	Description    string `gorm:"type:text"`
	Website        string `gorm:"type:text"`
	Email          string `gorm:"type:text"`
	Phone          string `gorm:"type:text"`
	Address        string `gorm:"type:text"`
	FoundedYear    int
	EmployeeCount  int
	Certifications string `gorm:"type:text"`
	Services       string `gorm:"type:text"`

	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`
}

func (CompanyInfo) TableName() string { return TableCompanyInfo }

// SecurityMetric is an append-only reference measurement.
type SecurityMetric struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	MetricName  string `gorm:"type:text;not null"`
	MetricValue int    `gorm:"not null"`
	MetricType  string `gorm:"type:text;not null"`

	RecordedAt time.Time `gorm:"not null;autoCreateTime"`
}

func (SecurityMetric) TableName() string { return TableMetrics }
