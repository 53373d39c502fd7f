// Admin tool for bootstrap and operator tasks: creating hubs, mapping
// teams, inviting members, minting tokens and registering webhook
// subscriptions.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dcapri/hubmirror/app/sdk/auth"
	"github.com/dcapri/hubmirror/business/domain/hubbus"
	"github.com/dcapri/hubmirror/business/domain/hubbus/stores/hubdb"
	"github.com/dcapri/hubmirror/business/domain/mappingbus"
	"github.com/dcapri/hubmirror/business/domain/mappingbus/stores/mappingdb"
	"github.com/dcapri/hubmirror/business/domain/memberbus"
	"github.com/dcapri/hubmirror/business/domain/memberbus/stores/memberdb"
	"github.com/dcapri/hubmirror/business/domain/mirrorbus"
	"github.com/dcapri/hubmirror/business/domain/mirrorbus/stores/mirrordb"
	"github.com/dcapri/hubmirror/business/domain/webhookbus"
	"github.com/dcapri/hubmirror/business/domain/webhookbus/stores/webhookdb"
	"github.com/dcapri/hubmirror/business/sdk/sqldb"
	"github.com/dcapri/hubmirror/business/types/role"
	"github.com/dcapri/hubmirror/foundation/keystore"
	"github.com/dcapri/hubmirror/foundation/logger"
	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	DB struct {
		User         string `envconfig:"DB_USER" default:"postgres"`
		Password     string `envconfig:"DB_PASSWORD" default:"postgres"`
		Host         string `envconfig:"DB_HOST" default:"localhost"`
		Name         string `envconfig:"DB_NAME" default:"hubmirror"`
		MaxIdleConns int    `envconfig:"DB_MAX_IDLE_CONNS" default:"0"`
		MaxOpenConns int    `envconfig:"DB_MAX_OPEN_CONNS" default:"0"`
		DisableTLS   bool   `envconfig:"DB_DISABLE_TLS" default:"true"`
	}
	Auth struct {
		KeysFolder string `envconfig:"AUTH_KEYS_FOLDER" default:"zarf/keys"`
		ActiveKID  string `envconfig:"AUTH_ACTIVE_KID" default:"54bb2165-71e1-41a6-af3e-7da4a0e1e2c1"`
		Issuer     string `envconfig:"AUTH_ISSUER" default:"hubmirror"`
	}
	Tracker struct {
		Workspace string `envconfig:"TRACKER_WORKSPACE" default:"default"`
	}
}

func main() {
	log := logger.New(os.Stdout, logger.LevelInfo, "ADMIN-TOOL", nil)
	ctx := context.Background()

	if err := run(ctx, log); err != nil {
		log.Error(ctx, "startup", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logger.Logger) error {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return fmt.Errorf("processing config: %w", err)
	}

	db, err := sqldb.Open(sqldb.Config{
		User:         cfg.DB.User,
		Password:     cfg.DB.Password,
		Host:         cfg.DB.Host,
		Name:         cfg.DB.Name,
		MaxIdleConns: cfg.DB.MaxIdleConns,
		MaxOpenConns: cfg.DB.MaxOpenConns,
		DisableTLS:   cfg.DB.DisableTLS,
	})
	if err != nil {
		return fmt.Errorf("connecting to db: %w", err)
	}
	defer db.Close()

	hubBus := hubbus.NewCore(log, hubdb.NewStore(log, db))
	mappingBus := mappingbus.NewCore(log, mappingdb.NewStore(log, db))
	memberBus := memberbus.NewCore(log, memberdb.NewStore(log, db), nil)
	mirrorBus := mirrorbus.NewCore(log, mirrordb.NewStore(log, db))
	webhookBus := webhookbus.NewCore(log, webhookdb.NewStore(log, db), mappingBus, mirrorBus, cfg.Tracker.Workspace)

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <command> [args]")
		fmt.Println("Commands: create-hub, map-team, invite, mint-token, add-webhook")
		return nil
	}

	switch os.Args[1] {
	case "create-hub":
		return runCreateHub(ctx, hubBus, cfg.Tracker.Workspace, os.Args[2:])
	case "map-team":
		return runMapTeam(ctx, mappingBus, os.Args[2:])
	case "invite":
		return runInvite(ctx, memberBus, os.Args[2:])
	case "mint-token":
		return runMintToken(log, cfg, os.Args[2:])
	case "add-webhook":
		return runAddWebhook(ctx, webhookBus, os.Args[2:])
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

func runCreateHub(ctx context.Context, hb *hubbus.Core, workspace string, args []string) error {
	cmd := flag.NewFlagSet("create-hub", flag.ExitOnError)
	nameStr := cmd.String("name", "", "Hub display name (Required)")
	slugStr := cmd.String("slug", "", "URL slug (derived from name when empty)")
	cmd.Parse(args)

	if *nameStr == "" {
		cmd.PrintDefaults()
		return fmt.Errorf("missing required fields")
	}

	hub, err := hb.Create(ctx, hubbus.NewHub{
		Name:      *nameStr,
		Slug:      *slugStr,
		Workspace: workspace,
	})
	if err != nil {
		return fmt.Errorf("create hub failed: %w", err)
	}

	fmt.Printf("\nSUCCESS: Hub created!\nID: %s\nSlug: %s\nWorkspace: %s\n", hub.ID, hub.Slug, hub.Workspace)
	return nil
}

func runMapTeam(ctx context.Context, mb *mappingbus.Core, args []string) error {
	cmd := flag.NewFlagSet("map-team", flag.ExitOnError)
	hubIDStr := cmd.String("hub-id", "", "Hub UUID (Required)")
	teamIDStr := cmd.String("team-id", "", "Upstream team id (Required)")
	projectsStr := cmd.String("projects", "", "Comma separated project id allow list")
	initiativesStr := cmd.String("initiatives", "", "Comma separated initiative id allow list")
	labelsStr := cmd.String("labels", "", "Comma separated label id allow list")
	deniedStr := cmd.String("denied-labels", "", "Comma separated denied label ids")
	cmd.Parse(args)

	if *hubIDStr == "" || *teamIDStr == "" {
		cmd.PrintDefaults()
		return fmt.Errorf("missing required fields")
	}

	hubID, err := uuid.Parse(*hubIDStr)
	if err != nil {
		return fmt.Errorf("invalid hub uuid: %w", err)
	}

	tm, err := mb.Create(ctx, mappingbus.NewTeamMapping{
		HubID:          hubID,
		TeamID:         *teamIDStr,
		ProjectIDs:     splitList(*projectsStr),
		InitiativeIDs:  splitList(*initiativesStr),
		LabelIDs:       splitList(*labelsStr),
		DeniedLabelIDs: splitList(*deniedStr),
	})
	if err != nil {
		return fmt.Errorf("create mapping failed: %w", err)
	}

	fmt.Printf("\nSUCCESS: Team %s mapped to hub %s\nMapping ID: %s\n", tm.TeamID, tm.HubID, tm.ID)
	return nil
}

func runInvite(ctx context.Context, mb *memberbus.Core, args []string) error {
	cmd := flag.NewFlagSet("invite", flag.ExitOnError)
	hubIDStr := cmd.String("hub-id", "", "Hub UUID (Required)")
	emailStr := cmd.String("email", "", "Member email (Required)")
	roleStr := cmd.String("role", "MEMBER", "Member role (ADMIN, MEMBER, VIEWER)")
	cmd.Parse(args)

	if *hubIDStr == "" || *emailStr == "" {
		cmd.PrintDefaults()
		return fmt.Errorf("missing required fields")
	}

	hubID, err := uuid.Parse(*hubIDStr)
	if err != nil {
		return fmt.Errorf("invalid hub uuid: %w", err)
	}

	r, err := role.Parse(*roleStr)
	if err != nil {
		return fmt.Errorf("invalid role: %w", err)
	}

	mem, err := mb.Invite(ctx, memberbus.NewMembership{
		HubID: hubID,
		Email: *emailStr,
		Role:  r,
	})
	if err != nil {
		return fmt.Errorf("invite failed: %w", err)
	}

	fmt.Printf("\nSUCCESS: %s invited to hub %s as %s\nMembership ID: %s\n", mem.Email, mem.HubID, mem.Role, mem.ID)
	return nil
}

func runMintToken(log *logger.Logger, cfg Config, args []string) error {
	cmd := flag.NewFlagSet("mint-token", flag.ExitOnError)
	identityStr := cmd.String("identity-id", "", "Identity UUID (random when empty)")
	emailStr := cmd.String("email", "", "Email claim (Required)")
	ttlStr := cmd.Duration("ttl", 8760*time.Hour, "Token lifetime")
	cmd.Parse(args)

	if *emailStr == "" {
		cmd.PrintDefaults()
		return fmt.Errorf("missing required fields")
	}

	identityID := uuid.New()
	if *identityStr != "" {
		var err error
		identityID, err = uuid.Parse(*identityStr)
		if err != nil {
			return fmt.Errorf("invalid identity uuid: %w", err)
		}
	}

	ks := keystore.New()
	if _, err := ks.LoadByFileSystem(os.DirFS(cfg.Auth.KeysFolder)); err != nil {
		return fmt.Errorf("loading keys: %w", err)
	}

	a := auth.New(auth.Config{
		Log:       log,
		KeyLookup: ks,
		Issuer:    cfg.Auth.Issuer,
	})

	token, err := a.GenerateToken(cfg.Auth.ActiveKID, identityID, *emailStr, *ttlStr)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Printf("\nIdentity: %s\nToken:\n%s\n", identityID, token)
	return nil
}

func runAddWebhook(ctx context.Context, wb *webhookbus.Core, args []string) error {
	cmd := flag.NewFlagSet("add-webhook", flag.ExitOnError)
	labelStr := cmd.String("label", "", "Subscription label (Required)")
	secretStr := cmd.String("secret", "", "Shared HMAC secret (generated when empty)")
	cmd.Parse(args)

	if *labelStr == "" {
		cmd.PrintDefaults()
		return fmt.Errorf("missing required fields")
	}

	sub, err := wb.Create(ctx, webhookbus.NewSubscription{
		Label:  *labelStr,
		Secret: *secretStr,
	})
	if err != nil {
		return fmt.Errorf("create subscription failed: %w", err)
	}

	fmt.Printf("\nSUCCESS: Subscription created!\nID: %s\nSecret: %s\n", sub.ID, sub.Secret)
	return nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}
