package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// Heimat-Institution: alle Alias-Schreibweisen werden auf genau eine
	// Organization-Zeile aufgelöst (wichtigste Invariante der Engine).
	HomeInstitutionName    string   `envconfig:"HOME_INSTITUTION_NAME" default:"Leiden University"`
	HomeInstitutionROR     string   `envconfig:"HOME_INSTITUTION_ROR" default:"https://ror.org/027bh9e22"`
	HomeInstitutionCountry string   `envconfig:"HOME_INSTITUTION_COUNTRY" default:"NL"`
	HomeInstitutionAliases []string `envconfig:"HOME_INSTITUTION_ALIASES" default:"Leiden University,Universiteit Leiden,Leiden Univ,LEI,Leiden University Medical Center"`

	// Policy-Konstanten (Herkunft der Werte ist fachlich nicht dokumentiert,
	// deshalb überschreibbar statt hart kodiert).
	EmbargoOffsetDays    int      `envconfig:"EMBARGO_OFFSET_DAYS" default:"184"`
	AuthorMatchThreshold float64  `envconfig:"AUTHOR_MATCH_THRESHOLD" default:"0.98"`
	OpenLicenses         []string `envconfig:"OPEN_LICENSES" default:"cc-by,cc-by-sa,cc-by-nc,cc-by-nc-sa,cc-by-nd,cc-by-nc-nd,cc0,public-domain"`

	// Quell-Endpunkte der Adapter
	GraphAPIBaseURL     string `envconfig:"GRAPH_API_BASE_URL" default:"https://api.openalex.org"`
	GraphAPIMailto      string `envconfig:"GRAPH_API_MAILTO"`
	CitationAPIBaseURL  string `envconfig:"CITATION_API_BASE_URL" default:"https://api.crossref.org"`
	RepositoryOAIURL    string `envconfig:"REPOSITORY_OAI_URL" required:"true"`
	RegistryBaseURL     string `envconfig:"REGISTRY_BASE_URL" default:"https://pub.orcid.org/v3.0"`
	StaffDirectoryURL   string `envconfig:"STAFF_DIRECTORY_URL"`
	EnabledAdapters     string `envconfig:"ENABLED_ADAPTERS" default:"repoharvest,graphapi,citmeta,registry,staffdir"`
	IngestWorkers       int    `envconfig:"INGEST_WORKERS" default:"5"`
	HarvestCronSchedule string `envconfig:"HARVEST_CRON_SCHEDULE" default:"0 2 * * *"`

	// Ziel-Bucket für Work-Exporte; ohne Endpoint bleibt der Export aus.
	ExportS3AccessKey string `envconfig:"EXPORT_S3_ACCESS_KEY"`
	ExportS3SecretKey string `envconfig:"EXPORT_S3_SECRET_KEY"`
	ExportS3Endpoint  string `envconfig:"EXPORT_S3_ENDPOINT"`
	ExportS3Region    string `envconfig:"EXPORT_S3_REGION"`
	ExportS3Bucket    string `envconfig:"EXPORT_S3_BUCKET"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
