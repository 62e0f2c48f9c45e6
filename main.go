package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pubfuse/config"
	"pubfuse/models"
	"pubfuse/providers"
	"pubfuse/providers/citmeta"
	"pubfuse/providers/graphapi"
	"pubfuse/providers/registry"
	"pubfuse/providers/repoharvest"
	"pubfuse/providers/staffdir"
	"pubfuse/services"
	"pubfuse/storage"
)

var (
	worksCreatedCounter  prometheus.Counter
	worksUpdatedCounter  prometheus.Counter
	recordsLinkedCounter prometheus.Counter
)

func init() {
	worksCreatedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "works_created_total",
		Help: "Total number of canonical works created.",
	})
	worksUpdatedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "works_updated_total",
		Help: "Total number of canonical works updated by fusion.",
	})
	recordsLinkedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "repository_records_linked_total",
		Help: "Total number of repository records linked to works.",
	})
	prometheus.MustRegister(worksCreatedCounter, worksUpdatedCounter, recordsLinkedCounter)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// TranslateError macht Unique-Verletzungen als gorm.ErrDuplicatedKey
	// sichtbar; darauf stützt sich die Kollisionsbehandlung der Fusion.
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to database.")

	logging.Info("Running database auto-migration...")
	db.AutoMigrate(
		&models.Organization{},
		&models.Author{},
		&models.Affiliation{},
		&models.Venue{},
		&models.Deal{},
		&models.Work{},
		&models.WorkLocation{},
		&models.WorkAuthorship{},
		&models.RepositoryRecord{},
		&models.AuditEntry{},
	)

	// Setup Services
	directory := services.NewInstitutionDirectory(db, logging,
		cfg.HomeInstitutionName, cfg.HomeInstitutionROR, cfg.HomeInstitutionCountry, cfg.HomeInstitutionAliases)
	if _, err := directory.EnsureHome(); err != nil {
		logging.Fatal("Failed to seed home institution", zap.Error(err))
	}
	matcher := services.NewNameMatcher()
	resolver := services.NewResolver(db, directory, matcher, logging, cfg.AuthorMatchThreshold)
	policy := services.NewFusionPolicy(logging)
	calculator := services.NewDerivedCalculator(logging, cfg.EmbargoOffsetDays, cfg.OpenLicenses)
	repoLink := services.NewRepoLinkService(db, logging)
	dedup := services.NewDedupService(db, logging)

	// Setup Adapters
	repoFetcher := repoharvest.NewFetcher(cfg, logging)
	enabledNames := strings.Split(cfg.EnabledAdapters, ",")
	var adapters []providers.Adapter
	for _, name := range enabledNames {
		switch strings.TrimSpace(name) {
		case "repoharvest":
			adapters = append(adapters, repoFetcher)
		case "graphapi":
			adapters = append(adapters, graphapi.NewFetcher(cfg, logging))
		case "citmeta":
			adapters = append(adapters, citmeta.NewFetcher(cfg, logging))
		case "registry":
			adapters = append(adapters, registry.NewFetcher(cfg, logging))
		case "staffdir":
			if cfg.StaffDirectoryURL == "" {
				logging.Warn("staffdir enabled but STAFF_DIRECTORY_URL not set, skipping")
				continue
			}
			adapters = append(adapters, staffdir.NewFetcher(cfg, logging))
		default:
			logging.Warn("Unknown adapter in config", zap.String("adapter_name", name))
		}
	}
	if len(adapters) == 0 {
		logging.Fatal("No valid adapters enabled. Check ENABLED_ADAPTERS in .env")
	}
	logging.Info("Active adapters loaded", zap.Strings("adapters", enabledNames))

	fusion := services.NewFusionService(cfg, db, logging, resolver, policy, calculator, adapters)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	setupIngestRoutes(router, fusion, repoFetcher, repoLink, logging)
	setupWorkRoutes(router, db, logging)
	setupRepairRoutes(router, repoLink, dedup, logging)
	setupAuditRoutes(router, db, logging)
	setupExportRoutes(router, cfg, db, logging)

	// Setup Cron: nächtliche Ernte aller Quellen, danach Record-Verknüpfung.
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.HarvestCronSchedule, func() {
		logging.Info("Running scheduled harvest job...")
		stats, err := fusion.RunAll(context.Background())
		if err != nil {
			logging.Error("Cron harvest failed", zap.Error(err))
			return
		}
		worksCreatedCounter.Add(float64(stats.WorksCreated))
		worksUpdatedCounter.Add(float64(stats.WorksUpdated))

		if err := harvestRecords(context.Background(), repoFetcher, repoLink); err != nil {
			logging.Error("Cron record harvest failed", zap.Error(err))
		}
		repairStats, err := repoLink.RunRepair(context.Background())
		if err != nil {
			logging.Error("Cron repair failed", zap.Error(err))
			return
		}
		recordsLinkedCounter.Add(float64(repairStats.Linked))
		logging.Info("Cron job completed",
			zap.Int("works_created", stats.WorksCreated),
			zap.Int("works_updated", stats.WorksUpdated),
			zap.Int("records_linked", repairStats.Linked))
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

// harvestRecords zieht die Repository-Records nach und legt sie für den
// Reparaturlauf ab.
func harvestRecords(ctx context.Context, fetcher *repoharvest.Fetcher, repoLink *services.RepoLinkService) error {
	records, err := fetcher.Records(ctx)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := repoLink.UpsertRecord(rec); err != nil {
			return err
		}
	}
	return nil
}

func setupIngestRoutes(router *gin.Engine, fusion *services.FusionService, repoFetcher *repoharvest.Fetcher, repoLink *services.RepoLinkService, log *zap.Logger) {
	rg := router.Group("/ingest")

	// POST - Einzelnes Dokument synchron fusionieren.
	// ?insert_only=true meldet "already_present", wenn die Work schon existiert.
	rg.POST("/document", func(c *gin.Context) {
		var doc providers.Document
		if err := c.ShouldBindJSON(&doc); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		opts := services.IngestOptions{InsertOnly: c.Query("insert_only") == "true", Audit: true}

		work, stats, err := fusion.Ingest(c.Request.Context(), &doc, opts)
		if err != nil {
			log.Error("Document ingest failed", zap.String("doi", doc.DOI), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ingest failed"})
			return
		}

		status := services.StatusUnchanged
		switch {
		case stats.WorksCreated > 0:
			status = services.StatusCreated
			worksCreatedCounter.Inc()
		case stats.Skipped > 0:
			status = services.StatusAlreadyPresent
		case stats.WorksUpdated > 0:
			status = services.StatusUpdated
			worksUpdatedCounter.Inc()
		}
		c.JSON(http.StatusOK, gin.H{"status": status, "work_id": work.ID})
	})

	// POST - Kompletten Fusionslauf asynchron anstoßen.
	rg.POST("/run", func(c *gin.Context) {
		go func() {
			stats, err := fusion.RunAll(context.Background())
			if err != nil {
				log.Error("Async fusion run failed", zap.Error(err))
				return
			}
			worksCreatedCounter.Add(float64(stats.WorksCreated))
			worksUpdatedCounter.Add(float64(stats.WorksUpdated))
			log.Info("Async fusion run completed",
				zap.Int("works_created", stats.WorksCreated),
				zap.Int("works_updated", stats.WorksUpdated),
				zap.Int("failed", stats.Failed))
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Fusion run for all sources triggered."})
	})

	// POST - Repository-Records nachziehen (ohne Fusionslauf).
	rg.POST("/repository-records", func(c *gin.Context) {
		go func() {
			if err := harvestRecords(context.Background(), repoFetcher, repoLink); err != nil {
				log.Error("Async record harvest failed", zap.Error(err))
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Repository record harvest triggered."})
	})
}

func setupWorkRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/works")

	rg.GET("/:id", func(c *gin.Context) {
		id := c.Param("id")
		var work models.Work
		err := db.Preload("Venue").Preload("Venue.Deal").
			Preload("Authorships", func(q *gorm.DB) *gorm.DB { return q.Order("position asc") }).
			Preload("Authorships.Author").
			Preload("Locations").
			First(&work, id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "work not found"})
				return
			}
			log.Error("DB error fetching work", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, work)
	})

	// Body-gesteuerter Endpunkt für komplexe Abfragen.
	rg.POST("/query", func(c *gin.Context) {
		type WorkQuery struct {
			DOI           string `json:"doi"`
			PolicyKeyword string `json:"policy_keyword"`
			RepoLinked    *bool  `json:"repo_linked"`
			EmbargoBefore string `json:"embargo_before"` // "2006-01-02"
			Year          int    `json:"year"`
			Limit         int    `json:"limit"`
		}

		var req WorkQuery
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		query := db.Model(&models.Work{})

		if req.DOI != "" {
			query = query.Where("doi = ?", services.NormalizeDOI(req.DOI))
		}
		if req.PolicyKeyword != "" {
			query = query.Where("policy_keyword = ?", req.PolicyKeyword)
		}
		if req.RepoLinked != nil {
			query = query.Where("repo_linked = ?", *req.RepoLinked)
		}
		if req.EmbargoBefore != "" {
			t, err := time.Parse("2006-01-02", req.EmbargoBefore)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid embargo_before date"})
				return
			}
			query = query.Where("embargo_date IS NOT NULL AND embargo_date <= ?", t)
		}
		if req.Year > 0 {
			from := time.Date(req.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
			to := from.AddDate(1, 0, 0)
			query = query.Where(
				"(issued_date >= ? AND issued_date < ?) OR (published_date >= ? AND published_date < ?)",
				from, to, from, to)
		}
		if req.Limit > 0 {
			query = query.Limit(req.Limit)
		}

		var works []models.Work
		if err := query.Preload("Venue").Order("created_at desc").Find(&works).Error; err != nil {
			log.Error("Database query for works failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, works)
	})
}

func setupRepairRoutes(router *gin.Engine, repoLink *services.RepoLinkService, dedup *services.DedupService, log *zap.Logger) {
	rg := router.Group("/repair")

	// POST - Verknüpfungslauf über alle ungeprüften Records.
	rg.POST("/repository-records", func(c *gin.Context) {
		stats, err := repoLink.RunRepair(c.Request.Context())
		if err != nil {
			log.Error("Repair run failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "repair failed"})
			return
		}
		recordsLinkedCounter.Add(float64(stats.Linked))
		c.JSON(http.StatusOK, stats)
	})

	// POST - Einzelnen Record explizit zur Neuprüfung freigeben.
	rg.POST("/repository-records/:id/recheck", func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		if err := repoLink.Recheck(uint(id)); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
				return
			}
			log.Error("Recheck failed", zap.Uint64("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "recheck failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "record released for next repair run"})
	})

	// POST - Expliziter Dedup-Lauf; läuft nie automatisch.
	router.POST("/dedup/organizations", func(c *gin.Context) {
		result, err := dedup.DeduplicateOrganizations(c.Request.Context())
		if err != nil {
			log.Error("Organization dedup failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "dedup failed"})
			return
		}
		c.JSON(http.StatusOK, result)
	})

	router.POST("/dedup/works", func(c *gin.Context) {
		result, err := dedup.DeduplicateWorks(c.Request.Context())
		if err != nil {
			log.Error("Work dedup failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "dedup failed"})
			return
		}
		c.JSON(http.StatusOK, result)
	})
}

func setupAuditRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	router.GET("/audit", func(c *gin.Context) {
		limit := 50
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		query := db.Model(&models.AuditEntry{}).Order("created_at desc").Limit(limit)
		if source := c.Query("source"); source != "" {
			query = query.Where("source_tag = ?", source)
		}
		var entries []models.AuditEntry
		if err := query.Find(&entries).Error; err != nil {
			log.Error("Database query for audit entries failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, entries)
	})
}

func setupExportRoutes(router *gin.Engine, cfg *config.Config, db *gorm.DB, log *zap.Logger) {
	if cfg.ExportS3Endpoint == "" {
		log.Info("S3 export disabled (no EXPORT_S3_ENDPOINT configured)")
		return
	}

	router.POST("/export/works", func(c *gin.Context) {
		s3Client, err := storage.NewS3Client(cfg)
		if err != nil {
			log.Error("S3 client creation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "s3 client error"})
			return
		}

		data, count, err := storage.SnapshotWorks(db)
		if err != nil {
			log.Error("Snapshot creation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "snapshot failed"})
			return
		}

		key := "works-" + time.Now().UTC().Format("2006-01-02T15-04-05Z") + ".json.gz"
		link, err := storage.UploadSnapshot(s3Client, cfg.ExportS3Bucket, key, data, cfg)
		if err != nil {
			log.Error("Snapshot upload failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"link": link, "works": count})
	})
}
