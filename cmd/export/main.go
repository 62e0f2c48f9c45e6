package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/kelseyhightower/envconfig"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"pubfuse/models"
)

// ExportConfig ist die Konfiguration des Export-Jobs. Er läuft als eigener
// Container neben der Engine, deshalb eigene Variablen statt config.Load.
type ExportConfig struct {
	PostgresHost     string `envconfig:"POSTGRES_HOST" required:"true"`
	PostgresPort     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresUser     string `envconfig:"POSTGRES_USER" required:"true"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	PostgresDB       string `envconfig:"POSTGRES_DB" required:"true"`
	ExportBucket     string `envconfig:"EXPORT_S3_BUCKET" required:"true"`
	ExportEndpoint   string `envconfig:"EXPORT_S3_ENDPOINT" required:"true"`
	ExportAccessKey  string `envconfig:"EXPORT_S3_ACCESS_KEY" required:"true"`
	ExportSecretKey  string `envconfig:"EXPORT_S3_SECRET_KEY" required:"true"`
	ExportRegion     string `envconfig:"EXPORT_S3_REGION" required:"true"`
	KeepExports      int    `envconfig:"KEEP_EXPORTS" default:"4"`
}

func main() {
	log.Println("Starte Export-Prozess...")

	var cfg ExportConfig
	err := envconfig.Process("", &cfg)
	if err != nil {
		log.Fatalf("Fehler beim Laden der Konfiguration: %v", err)
	}

	// 1. Kanonische Works samt Beziehungen aus der Datenbank laden
	data, count, err := createSnapshot(cfg)
	if err != nil {
		log.Fatalf("Fehler beim Erstellen des Schnappschusses: %v", err)
	}
	log.Printf("%d Works exportiert (%d Bytes komprimiert)", count, len(data))

	// 2. S3-Client erstellen
	s3Client, err := createS3Client(cfg)
	if err != nil {
		log.Fatalf("Fehler beim Erstellen des S3-Clients: %v", err)
	}

	// 3. Schnappschuss nach S3 hochladen
	fileName := fmt.Sprintf("works-%s.json.gz", time.Now().UTC().Format("2006-01-02T15-04-05Z"))
	err = uploadToS3(s3Client, cfg, fileName, data)
	if err != nil {
		log.Fatalf("Fehler beim Hochladen nach S3: %v", err)
	}
	log.Printf("Export erfolgreich nach s3://%s/%s hochgeladen", cfg.ExportBucket, fileName)

	// 4. Alte Exporte rotieren
	err = rotateExports(s3Client, cfg)
	if err != nil {
		log.Fatalf("Fehler bei der Rotation alter Exporte: %v", err)
	}

	log.Println("Export-Prozess erfolgreich abgeschlossen.")
}

func createSnapshot(cfg ExportConfig) ([]byte, int, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		cfg.PostgresHost, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresPort)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, 0, err
	}

	var works []models.Work
	err = db.Preload("Venue").Preload("Venue.Deal").
		Preload("Authorships").Preload("Authorships.Author").
		Preload("Locations").
		Order("id asc").Find(&works).Error
	if err != nil {
		return nil, 0, err
	}

	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gzipWriter).Encode(works); err != nil {
		return nil, 0, err
	}
	if err := gzipWriter.Close(); err != nil {
		return nil, 0, err
	}

	return buf.Bytes(), len(works), nil
}

func createS3Client(cfg ExportConfig) (*s3.Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: cfg.ExportEndpoint,
		}, nil
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithEndpointResolverWithOptions(resolver),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.ExportAccessKey, cfg.ExportSecretKey, "")),
		awsconfig.WithRegion(cfg.ExportRegion),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg), nil
}

func uploadToS3(client *s3.Client, cfg ExportConfig, key string, data []byte) error {
	_, err := client.PutObject(context.TODO(), &s3.PutObjectInput{
		Bucket: aws.String(cfg.ExportBucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	return err
}

func rotateExports(client *s3.Client, cfg ExportConfig) error {
	output, err := client.ListObjectsV2(context.TODO(), &s3.ListObjectsV2Input{
		Bucket: aws.String(cfg.ExportBucket),
	})
	if err != nil {
		return err
	}

	if len(output.Contents) <= cfg.KeepExports {
		log.Printf("Weniger als %d Exporte vorhanden, keine Rotation nötig.", cfg.KeepExports)
		return nil
	}

	sort.Slice(output.Contents, func(i, j int) bool {
		return output.Contents[i].LastModified.After(*output.Contents[j].LastModified)
	})

	for _, obj := range output.Contents[cfg.KeepExports:] {
		log.Printf("Lösche alten Export: %s", *obj.Key)
		_, err := client.DeleteObject(context.TODO(), &s3.DeleteObjectInput{
			Bucket: aws.String(cfg.ExportBucket),
			Key:    obj.Key,
		})
		if err != nil {
			log.Printf("Fehler beim Löschen von %s: %v", *obj.Key, err)
		}
	}

	return nil
}
