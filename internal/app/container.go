package app

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/you/gatekeeper/domain"
	"github.com/you/gatekeeper/internal/bot"
	"github.com/you/gatekeeper/internal/config"
	httpx "github.com/you/gatekeeper/internal/http"
	"github.com/you/gatekeeper/internal/infrastructure/auth"
	"github.com/you/gatekeeper/internal/infrastructure/database"
	"github.com/you/gatekeeper/internal/infrastructure/gateway"
	"github.com/you/gatekeeper/internal/infrastructure/persistence"
	"github.com/you/gatekeeper/internal/infrastructure/repositories"
	"github.com/you/gatekeeper/internal/services"
)

// Container holds all wired dependencies.
type Container struct {
	Config *config.Config
	Log    zerolog.Logger

	Gateway  *gateway.TelegramGateway
	Redis    *database.RedisClient
	Saver    *persistence.Saver
	Sessions domain.SessionStore
	Registry domain.ApprovalRegistry
	Users    *repositories.UserDirectoryImpl
	Gate     domain.AdminGate

	Verification *services.VerificationService
	Admin        *services.AdminService
	Sweeper      *services.ExpirySweeper
	Router       *bot.Router
	HTTP         *httpx.Server
}

// NewContainer wires every dependency from configuration. State is
// loaded from the snapshot file before anything can mutate it.
func NewContainer(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Log: log}

	if err := c.initState(); err != nil {
		return nil, err
	}
	if err := c.initServices(); err != nil {
		return nil, err
	}
	return c, nil
}

// initState builds the stores. The approval registry lives in Redis
// when an address is configured; otherwise it rides the snapshot
// document together with the user directory.
func (c *Container) initState() error {
	snapshots := persistence.NewFileSnapshotStore(c.Config.DataFile)
	doc, err := snapshots.Load()
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}

	c.Sessions = repositories.NewSessionStore()

	requestSave := func() {
		if c.Saver != nil {
			c.Saver.Request()
		}
	}
	c.Users = repositories.NewUserDirectory(doc.UserData, requestSave)

	var memoryRegistry *repositories.ApprovalRegistryImpl
	if c.Config.RedisAddr != "" {
		c.Redis = database.NewRedis(c.Config.RedisAddr, c.Config.RedisPassword, c.Config.RedisDB)
		if err := c.Redis.Ping(context.Background()); err != nil {
			return fmt.Errorf("redis unreachable: %w", err)
		}
		c.Registry = repositories.NewRedisApprovalRegistry(c.Redis.Client)
	} else {
		memoryRegistry = repositories.NewApprovalRegistry(doc.ApprovedUsers, requestSave)
		c.Registry = memoryRegistry
	}

	c.Saver = persistence.NewSaver(snapshots, func() *domain.SnapshotDocument {
		out := &domain.SnapshotDocument{UserData: map[int64]domain.UserProfile{}}
		if memoryRegistry != nil {
			out.ApprovedUsers, _ = memoryRegistry.Members(context.Background())
		}
		for _, profile := range c.Users.All() {
			out.UserData[profile.ID] = profile
		}
		return out
	}, c.Log)

	return nil
}

func (c *Container) initServices() error {
	cfg := c.Config

	c.Gateway = gateway.NewTelegramGateway(cfg.BotToken, cfg.ChannelID, c.Log)

	gate, err := auth.NewAdminGate(cfg.AdminIDs)
	if err != nil {
		return err
	}
	c.Gate = gate

	var generator domain.ChallengeGenerator
	if cfg.Challenge == "choice" {
		generator = services.NewChoiceGenerator(rand.New(rand.NewSource(time.Now().UnixNano())))
	} else {
		generator = services.NewFreeformGenerator(rand.New(rand.NewSource(time.Now().UnixNano())))
	}

	var admission domain.AdmissionStrategy
	if cfg.Admission == "invite" {
		admission = services.NewInviteAdmission(c.Gateway)
	} else {
		admission = services.NewDirectAdmission(c.Gateway)
	}

	verifyCfg := services.VerificationConfig{Attempts: cfg.Attempts, SessionTTL: cfg.SessionTTL}
	c.Verification = services.NewVerificationService(
		c.Sessions, c.Registry, c.Users, generator, c.Gateway, admission,
		cfg.AdminIDs, verifyCfg, c.Log,
	)

	broadcaster := services.NewBroadcastDispatcher(c.Gateway, services.BroadcastConfig{
		Delay:     cfg.BroadcastDelay,
		BatchSize: cfg.BroadcastBatch,
	}, c.Log)
	c.Admin = services.NewAdminService(c.Gate, c.Sessions, c.Registry, c.Users, broadcaster, verifyCfg, c.Log)

	c.Sweeper = services.NewExpirySweeper(c.Sessions, c.Verification, cfg.SweepInterval, c.Log)
	c.Router = bot.NewRouter(c.Gateway, c.Verification, c.Admin, c.Gate, c.Log)
	c.HTTP = httpx.NewServer(c.Router, httpx.NewOpsHandler(c.Admin), cfg.WebhookSecret, c.Log)
	return nil
}

// Close flushes pending state and releases connections.
func (c *Container) Close() {
	if c.Saver != nil {
		c.Saver.Request()
		c.Saver.Close()
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Log.Warn().Err(err).Msg("redis close failed")
		}
	}
}
