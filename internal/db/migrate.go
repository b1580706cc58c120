package db

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/scorpion-security/hub/internal/models"
)

// Migrate creates any missing tables. It is idempotent and only runs against
// the embedded/SQL backend; the remote service assumes a provisioned schema.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	return conn.AutoMigrate(
		&models.User{},
		&models.LibraryItem{},
		&models.ResearchProject{},
		&models.ResearchCollaborator{},
		&models.Incident{},
		&models.ThreatFeed{},
		&models.CompanyInfo{},
		&models.SecurityMetric{},
	)
}

// Seed inserts reference data into an empty database: the singleton company
// record, the threat-intelligence feed, one sample incident and baseline
// metrics. Existing rows are left untouched.
func Seed(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	if errCompany := seedCompanyInfo(conn); errCompany != nil {
		return errCompany
	}
	if errThreats := seedThreatFeeds(conn); errThreats != nil {
		return errThreats
	}
	if errIncident := seedIncidents(conn); errIncident != nil {
		return errIncident
	}
	return seedMetrics(conn)
}

func seedCompanyInfo(conn *gorm.DB) error {
	var count int64
	if errCount := conn.Model(&models.CompanyInfo{}).Count(&count).Error; errCount != nil {
		return errCount
	}
	if count > 0 {
		return nil
	}
	info := models.CompanyInfo{
		ID:             1,
		Name:           "Scorpion Security",
		Description:    "Advanced cybersecurity solutions that protect, detect, and respond to threats before they impact your business.",
		Website:        "https://scorpionsecurity.com",
		Email:          "info@scorpionsecurity.com",
		Phone:          "+1-800-SECURITY",
		FoundedYear:    2009,
		EmployeeCount:  150,
		Certifications: "CISSP,CISM,CEH,ISO 27001",
		Services:       "Managed Security Services,Penetration Testing,Compliance & Risk,Incident Response,Threat Intelligence",
	}
	if errCreate := conn.Create(&info).Error; errCreate != nil {
		return errCreate
	}
	log.Info("db: seeded company info")
	return nil
}

func seedThreatFeeds(conn *gorm.DB) error {
	var count int64
	if errCount := conn.Model(&models.ThreatFeed{}).Count(&count).Error; errCount != nil {
		return errCount
	}
	if count > 0 {
		return nil
	}
	now := time.Now().UTC()
	feeds := []models.ThreatFeed{
		{Source: "CISA", Title: "Critical RCE in Apache Log4j", Severity: "CRITICAL", Type: "Vulnerability", Description: "Remote code execution in Log4j 2.x. Apply patches immediately.", PublishedAt: now},
		{Source: "NIST NVD", Title: "OpenSSH privilege escalation", Severity: "HIGH", Type: "Vulnerability", Description: "Privilege escalation in OpenSSH server. Update to latest version.", PublishedAt: now},
		{Source: "MITRE ATT&CK", Title: "T1566 - Phishing", Severity: "MEDIUM", Type: "Tactic", Description: "Adversaries send phishing messages to gain access to victim systems.", PublishedAt: now},
		{Source: "AlienVault OTX", Title: "New C2 infrastructure", Severity: "HIGH", Type: "IOC", Description: "New command-and-control servers linked to known APT group.", PublishedAt: now},
		{Source: "Scorpion TI", Title: "Ransomware campaign targeting healthcare", Severity: "CRITICAL", Type: "Campaign", Description: "Active ransomware campaign targeting healthcare sector. IoCs available.", PublishedAt: now},
	}
	if errCreate := conn.Create(&feeds).Error; errCreate != nil {
		return errCreate
	}
	log.Infof("db: seeded %d threat feeds", len(feeds))
	return nil
}

func seedIncidents(conn *gorm.DB) error {
	var count int64
	if errCount := conn.Model(&models.Incident{}).Count(&count).Error; errCount != nil {
		return errCount
	}
	if count > 0 {
		return nil
	}
	now := time.Now().UTC()
	incident := models.Incident{
		Title:       "Suspicious lateral movement detected",
		Description: "Multiple failed logins followed by successful access from new IP.",
		Severity:    "HIGH",
		Status:      "INVESTIGATING",
		AssignedTo:  "SOC Team",
		ReportedAt:  now,
		UpdatedAt:   now,
	}
	return conn.Create(&incident).Error
}

func seedMetrics(conn *gorm.DB) error {
	var count int64
	if errCount := conn.Model(&models.SecurityMetric{}).Count(&count).Error; errCount != nil {
		return errCount
	}
	if count > 0 {
		return nil
	}
	metrics := []models.SecurityMetric{
		{MetricName: "threats_blocked", MetricValue: 1247, MetricType: "counter"},
		{MetricName: "incidents_resolved", MetricValue: 89, MetricType: "counter"},
		{MetricName: "uptime_percent", MetricValue: 99, MetricType: "gauge"},
	}
	return conn.Create(&metrics).Error
}
