package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"safeguard/backend/internal/analysis"
	"safeguard/backend/internal/api/handler"
	"safeguard/backend/internal/config"
	"safeguard/backend/internal/incident"
	"safeguard/backend/internal/logger"
	"safeguard/backend/internal/models"
	"safeguard/backend/internal/patterns"
	"safeguard/backend/internal/safeguarding"
	"safeguard/backend/internal/storage"
)

const usage = `Usage: admin <command> [args]

Commands:
  add-staff <name> <email> <DSL|TEACHER|ADMIN>
  link-telegram <staff_id> <chat_id>
  token <staff_id> [ttl]
  resolve-alert <alert_id> <staff_id>
  escalate-alert <alert_id> <staff_id>
  complete-queue <entry_id> <staff_id>
  queue [PENDING|IN_PROGRESS|DONE] [limit]
  risk <user_id>
  incidents [count]
  check <text> [context] [subject]`

type app struct {
	cfg      *config.Config
	store    *storage.Service
	rdb      *redis.Client
	svc      *safeguarding.Service
	reporter incident.Reporter
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}
	command, args := os.Args[1], os.Args[2:]

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	zl, err := logger.New(logger.Config{
		Environment: cfg.Env,
		LogLevel:    "warn",
		ServiceName: "safeguard",
		Component:   "admin",
	})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx := context.Background()

	// check runs the pure pipeline and needs no database.
	if command == "check" {
		if err := runCheck(cfg, args); err != nil {
			log.Fatalf("check failed: %v", err)
		}
		return
	}

	a, err := newApp(ctx, cfg, zl)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}

	switch command {
	case "add-staff":
		requireArgs(args, 3, "add-staff <name> <email> <DSL|TEACHER|ADMIN>")
		err = a.addStaff(ctx, args[0], args[1], models.StaffRole(args[2]))
	case "link-telegram":
		requireArgs(args, 2, "link-telegram <staff_id> <chat_id>")
		chatID, perr := strconv.ParseInt(args[1], 10, 64)
		if perr != nil {
			fmt.Println("Invalid chat id. Please provide an integer.")
			os.Exit(1)
		}
		err = a.linkTelegram(ctx, args[0], chatID)
	case "token":
		requireArgs(args, 1, "token <staff_id> [ttl]")
		ttl := 12 * time.Hour
		if len(args) > 1 {
			if ttl, err = time.ParseDuration(args[1]); err != nil {
				fmt.Println("Invalid ttl. Please provide a duration such as 8h.")
				os.Exit(1)
			}
		}
		err = a.issueToken(ctx, args[0], ttl)
	case "resolve-alert":
		requireArgs(args, 2, "resolve-alert <alert_id> <staff_id>")
		if err = a.svc.ResolveAlert(ctx, args[0], args[1]); err == nil {
			fmt.Printf("Alert %s has been resolved.\n", args[0])
		}
	case "escalate-alert":
		requireArgs(args, 2, "escalate-alert <alert_id> <staff_id>")
		var report *safeguarding.EscalationReport
		if report, err = a.svc.EscalateAlert(ctx, args[0], args[1]); err == nil {
			fmt.Printf("Alert %s escalated, %d of %d notifications stored.\n", args[0], report.Stored(), len(report.Recipients))
		}
	case "complete-queue":
		requireArgs(args, 2, "complete-queue <entry_id> <staff_id>")
		if err = a.svc.CompleteQueueEntry(ctx, args[0], args[1]); err == nil {
			fmt.Printf("Queue entry %s has been completed.\n", args[0])
		}
	case "queue":
		err = a.listQueue(ctx, args)
	case "risk":
		requireArgs(args, 1, "risk <user_id>")
		var profile *models.UserRiskProfile
		if profile, err = a.svc.GetUserRiskHistory(ctx, args[0]); err == nil {
			err = printJSON(profile)
		}
	case "incidents":
		err = a.listIncidents(ctx, args)
	default:
		fmt.Println("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("%s failed: %v", command, err)
	}
}

func newApp(ctx context.Context, cfg *config.Config, zl *zap.Logger) (*app, error) {
	db, err := storage.Open(cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			zl.Warn("redis unavailable", zap.Error(err))
			rdb = nil
		}
	}
	store := storage.NewStorageService(db, rdb)

	var reporter incident.Reporter = incident.NewLogReporter(zl)
	if rdb != nil {
		reporter = incident.NewRedisReporter(rdb, zl)
	}

	catalogue, err := patterns.LoadFile(cfg.CatalogueFile)
	if err != nil {
		return nil, err
	}
	svc, err := safeguarding.NewService(safeguarding.Dependencies{
		Catalogue: catalogue,
		Store:     store,
		Incidents: reporter,
		Logger:    zl,
	}, safeguarding.OptionsFromConfig(cfg))
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, store: store, rdb: rdb, svc: svc, reporter: reporter}, nil
}

func (a *app) addStaff(ctx context.Context, name, email string, role models.StaffRole) error {
	switch role {
	case models.RoleDSL, models.RoleTeacher, models.RoleAdmin:
	default:
		return fmt.Errorf("unknown role %q", role)
	}
	member := &models.StaffMember{Name: name, Email: email, Role: role, IsActive: true}
	if err := a.store.SaveStaffMember(ctx, member); err != nil {
		return err
	}
	fmt.Printf("Staff member %s added with id %s.\n", name, member.ID)
	return nil
}

func (a *app) linkTelegram(ctx context.Context, staffID string, chatID int64) error {
	member, err := a.store.GetStaffByID(ctx, staffID)
	if err != nil {
		return err
	}
	member.TelegramChatID = &chatID
	if err := a.store.SaveStaffMember(ctx, member); err != nil {
		return err
	}
	fmt.Printf("Staff member %s linked to Telegram chat %d.\n", staffID, chatID)
	return nil
}

func (a *app) issueToken(ctx context.Context, staffID string, ttl time.Duration) error {
	member, err := a.store.GetStaffByID(ctx, staffID)
	if err != nil {
		return err
	}
	if !member.IsActive {
		return fmt.Errorf("staff member %s is inactive", staffID)
	}
	token, err := handler.GenerateStaffToken([]byte(a.cfg.JWTSecret), member.ID, member.Role, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func (a *app) listQueue(ctx context.Context, args []string) error {
	status := models.QueueStatusPending
	limit := 50
	if len(args) > 0 {
		status = models.QueueStatus(args[0])
	}
	if len(args) > 1 {
		v, err := strconv.Atoi(args[1])
		if err != nil || v < 1 {
			return fmt.Errorf("invalid limit %q", args[1])
		}
		limit = v
	}
	entries, err := a.svc.ListReviewQueue(ctx, status, limit)
	if err != nil {
		return err
	}
	return printJSON(entries)
}

func (a *app) listIncidents(ctx context.Context, args []string) error {
	rr, ok := a.reporter.(*incident.RedisReporter)
	if !ok {
		return fmt.Errorf("incident history needs Redis")
	}
	var n int64 = 20
	if len(args) > 0 {
		v, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || v < 1 {
			return fmt.Errorf("invalid count %q", args[0])
		}
		n = v
	}
	incidents, err := rr.Recent(ctx, n)
	if err != nil {
		return err
	}
	return printJSON(incidents)
}

func runCheck(cfg *config.Config, args []string) error {
	requireArgs(args, 1, "check <text> [context] [subject]")
	catalogue, err := patterns.LoadFile(cfg.CatalogueFile)
	if err != nil {
		return err
	}

	var metadata map[string]any
	label := ""
	if len(args) > 1 {
		label = args[1]
	}
	if len(args) > 2 {
		metadata = map[string]any{analysis.SubjectKey: args[2]}
	}

	flags := analysis.NewClassifier(catalogue).Classify(patterns.NewMatcher(catalogue).Match(args[0]))
	flags = analysis.NewDisambiguator(catalogue).Disambiguate(flags, label, metadata)
	result := analysis.BuildResult(flags)
	result.Suggestions = analysis.SuggestionKeys(result)
	return printJSON(result)
}

func requireArgs(args []string, n int, form string) {
	if len(args) < n {
		fmt.Println("Usage: admin " + form)
		os.Exit(1)
	}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
