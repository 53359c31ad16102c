package staffapply

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"gorm.io/gorm"
)

var (
	// Version can be set at build time:
	// -ldflags "-X github.com/staffapply/staffapply/staffapply.Version=$$(date +'%Y%m%d')"
	Version   = "dev"
	CommitSHA = "unknown"
	BuildTime = "unknown"

	defaultLogWriter io.Writer = os.Stdout
)

// StaffApply is the bot: it owns the configuration, the database, the
// Discord session, the liveness HTTP server, and the interaction
// dispatch table.
type StaffApply struct {
	config     *Config
	logger     *slog.Logger
	logHandler slog.Handler

	db      *gorm.DB
	writeDB Store

	discord *Discord
	api     *API

	dispatch map[dispatchKey]interactionHandlerFunc

	// cooldown is the parsed submission cooldown; embedColor the parsed
	// accent color. Both fall back to defaults on invalid config.
	cooldown   time.Duration
	embedColor int

	startedAt time.Time

	// runMu prevents concurrent Run calls
	runMu      sync.Mutex
	runContext atomic.Value

	// signalStop triggers a graceful shutdown when signaled
	signalStop chan struct{}

	// signalReady is signaled when the bot has started and is ready to
	// receive interactions
	signalReady chan struct{}

	// eventShutdown is signaled when shutdown has finished
	eventShutdown chan struct{}

	// getInteractionHandlerFunc returns the handler wrapping an incoming
	// interaction, and exists as a seam for tests
	getInteractionHandlerFunc func(
		ctx context.Context,
		i *discordgo.InteractionCreate,
	) InteractionHandler
}

// New creates and initializes a new StaffApply instance from the given
// configuration. Initialization errors are collected and returned
// joined; the database connection is deferred until [StaffApply.Run].
func New(config *Config) (*StaffApply, error) {
	var errs []error

	switch config.DatabaseType {
	case dbTypeSQLite, dbTypePostgres:
		//
	default:
		errs = append(
			errs,
			errors.New("invalid database type (must be 'sqlite' or 'postgres')"),
		)
	}

	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}

	b := &StaffApply{
		config:        config,
		signalReady:   make(chan struct{}, 1),
		eventShutdown: make(chan struct{}, 1),
		cooldown:      parseCooldown(config.Application.Cooldown),
		embedColor:    parseEmbedColor(config.Application.EmbedColor),
	}

	b.logHandler = tint.NewHandler(
		defaultLogWriter, &tint.Options{
			Level:     b.config.LogLevel,
			AddSource: true,
		},
	)
	b.logger = slog.New(b.logHandler)
	slog.SetDefault(b.logger)

	b.config.Discord.httpClient = config.HTTPClient

	disc, err := newDiscord(b.config.Discord)
	if err != nil {
		errs = append(errs, err)
	}

	discordgo.Logger = discordgoLoggerFunc(
		context.Background(),
		tint.NewHandler(
			defaultLogWriter, &tint.Options{
				Level:     b.config.Discord.DiscordGoLogLevel,
				AddSource: true,
			},
		).WithAttrs([]slog.Attr{slog.String(loggerNameKey, "discordgo")}),
	)

	disc.logger = slog.New(
		tint.NewHandler(
			defaultLogWriter, &tint.Options{
				Level:     b.config.Discord.LogLevel,
				AddSource: true,
			},
		),
	).With(loggerNameKey, "discord")

	b.discord = disc
	disc.b = b

	api, err := newAPI(b, config.API)
	errs = append(errs, err)
	b.api = api

	b.dispatch = b.buildDispatchTable()

	return b, errors.Join(errs...)
}

func (b *StaffApply) ValidateConfig() error {
	return structValidator.Struct(b.config)
}

// Stop triggers a graceful shutdown of a running bot.
func (b *StaffApply) Stop() {
	if b.signalStop != nil {
		b.signalStop <- struct{}{}
	}
}

// runCtx returns the bot's runtime context, or context.Background
// before Run has been called.
func (b *StaffApply) runCtx() context.Context {
	if ctx, ok := b.runContext.Load().(context.Context); ok {
		return ctx
	}
	return context.Background()
}

// Run starts the bot and blocks until the given context is canceled or
// [StaffApply.Stop] is called, then shuts down gracefully.
func (b *StaffApply) Run(ctx context.Context) error {
	// prevents concurrent runs
	b.runMu.Lock()
	defer b.runMu.Unlock()

	b.signalStop = make(chan struct{}, 1)
	b.startedAt = time.Now()
	logger := b.logger

	if err := b.ValidateConfig(); err != nil {
		logger.Error("invalid config", tint.Err(err))
		return err
	}

	ctx = WithLogger(ctx, logger)
	logger.LogAttrs(
		ctx,
		slog.LevelInfo,
		"starting",
		slog.Any("config", structToSlogValue(b.config)),
	)
	if b.signalReady == nil {
		b.signalReady = make(chan struct{}, 1)
	}

	// this is the 'runtime' context, which triggers a graceful shutdown
	// when canceled
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	b.runContext.Store(ctx)

	runtimeWG := &sync.WaitGroup{}

	go func() {
		select {
		case <-b.signalStop:
			b.logger.Warn("got stop signal, canceling")
			cancel()
		case <-ctx.Done():
			b.logger.Warn("context canceled, sending stop signal")
			b.signalStop <- struct{}{}
		}
	}()

	go func() {
		httpErr := b.api.Serve(ctx)
		if httpErr != nil && !errors.Is(httpErr, http.ErrServerClosed) {
			b.logger.ErrorContext(ctx, "error serving api HTTP", tint.Err(httpErr))
		}
	}()

	startCtx, startCancel := context.WithTimeout(ctx, b.config.StartupTimeout)
	defer startCancel()

	initErr := make(chan error, 1)
	go func() {
		logger.Debug("initializing run...")
		initErr <- b.initRun(startCtx)
	}()

	select {
	case <-startCtx.Done():
		return fmt.Errorf("startup cancelled or timed out")
	case err := <-initErr:
		if err != nil {
			logger.ErrorContext(ctx, "init error", tint.Err(err))
			if b.api != nil && b.api.listener != nil {
				go func() {
					if e := b.api.listener.Close(); e != nil {
						logger.ErrorContext(
							ctx,
							"error closing listener",
							tint.Err(e),
						)
					}
				}()
			}
			return err
		}
		logger.InfoContext(ctx, "init complete")
	}

	if discErr := b.initDiscordSession(ctx, runtimeWG); discErr != nil {
		b.logger.ErrorContext(
			ctx,
			"error creating discord session",
			tint.Err(discErr),
		)
		return discErr
	}

	if openErr := b.discord.session.Open(); openErr != nil {
		return fmt.Errorf("error opening discord connection: %w", openErr)
	}

	if _, cmdErr := b.discord.registerCommands(); cmdErr != nil {
		return fmt.Errorf("error registering commands: %w", cmdErr)
	}

	b.signalReady <- struct{}{}
	b.logger.InfoContext(ctx, "sent ready signal")

	// block until the runtime context is canceled - generally from an
	// interrupt
	stopCh := make(chan struct{}, 1)
	go func() {
		<-ctx.Done()
		stopCh <- struct{}{}
	}()
	<-stopCh

	return b.shutdown(ctx, runtimeWG)
}

// initRun connects to the database and runs migrations.
func (b *StaffApply) initRun(startCtx context.Context) error {
	b.logger.Debug("initializing DB...")

	dbLogHandler := tint.NewHandler(
		defaultLogWriter, &tint.Options{
			Level:     b.config.DatabaseLogLevel,
			AddSource: true,
		},
	)
	db, err := CreateDB(
		startCtx,
		b.config.DatabaseType,
		b.config.Database,
		dbLogHandler,
		b.config.DatabaseSlowThreshold,
	)
	if err != nil {
		return fmt.Errorf("error initializing database: %w", err)
	}
	b.db = db
	b.writeDB = NewDatabase(
		db,
		slog.New(b.logHandler),
		b.config.DatabaseType == dbTypePostgres,
	)
	b.logger.Debug("finished initializing DB")
	return nil
}

// initDiscordSession creates the gateway session (unless a test has
// already injected one) and wires the event handlers.
func (b *StaffApply) initDiscordSession(
	ctx context.Context,
	runtimeWG *sync.WaitGroup,
) error {
	logger := b.logger.With(loggerNameKey, "discord_session")

	if b.discord.session == nil {
		disc, discErr := b.discord.newSession()
		if discErr != nil {
			return fmt.Errorf("error creating discord session: %w", discErr)
		}
		b.discord.session = disc
	}

	ctx = WithLogger(ctx, logger)

	if len(b.discord.discordgoRemoveHandlerFuncs) > 0 {
		for _, h := range b.discord.discordgoRemoveHandlerFuncs {
			h()
		}
	}

	b.discord.session.SetIdentify(
		discordgo.Identify{
			Intents: b.config.Discord.GatewayIntents,
			Presence: discordgo.GatewayStatusUpdate{
				Status: string(discordgo.StatusOnline),
			},
		},
	)

	b.discord.discordgoRemoveHandlerFuncs = []func(){
		b.discord.session.AddHandler(b.discord.handlerConnect()),
		b.discord.session.AddHandler(b.discord.handlerDisconnect()),
		b.discord.session.AddHandler(b.discord.handlerReady()),
		b.discord.session.AddHandler(
			func(
				_ *discordgo.Session,
				i *discordgo.InteractionCreate,
			) {
				handler := b.getInteractionHandlerFunc(ctx, i)
				runtimeWG.Add(1)
				go func() {
					defer runtimeWG.Done()
					b.handleInteraction(ctx, handler)
				}()
			},
		),
	}

	if b.getInteractionHandlerFunc == nil {
		b.getInteractionHandlerFunc = func(
			_ context.Context,
			i *discordgo.InteractionCreate,
		) InteractionHandler {
			return GatewayHandler{
				session:     b.discord.session,
				interaction: i,
				logger: b.logger.With(
					slog.Group(
						"interaction",
						interactionLogAttrs(*i)...,
					),
				),
			}
		}
	}
	return nil
}

func (b *StaffApply) shutdown(
	ctx context.Context,
	runtimeWG *sync.WaitGroup,
) error {
	b.logger.WarnContext(ctx, "shutting down")
	defer func() {
		if b.eventShutdown != nil {
			go func() {
				b.eventShutdown <- struct{}{}
			}()
		}
	}()

	shutdownStart := time.Now()
	shutdownTimeout := b.config.ShutdownTimeout
	if shutdownTimeout.Seconds() == 0 {
		b.logger.Warn("immediate shutdown")
		if b.discord.session != nil {
			_ = b.discord.session.Close()
		}
		go func() {
			_ = b.api.httpServer.Close()
		}()
		return nil
	}
	shutdownDeadline := shutdownStart.Add(shutdownTimeout)

	announcementTicker := time.NewTicker(10 * time.Second)
	defer announcementTicker.Stop()

	b.logger.InfoContext(
		ctx,
		"exiting!",
		"shutdown_timeout", shutdownTimeout,
		"shutdown_started", shutdownStart,
		"shutdown_deadline", shutdownDeadline,
	)

	closeCtx, closeCancel := context.WithDeadline(
		context.Background(),
		shutdownDeadline,
	)
	defer closeCancel()

	// Graceful shutdown - at least until closeCtx is closed
	gracefulShutdownCh := make(chan struct{}, 1)
	go func() {
		runtimeWG.Wait() // wait for in-flight interaction handlers
		b.logger.InfoContext(
			ctx,
			"finished handling in-flight interactions",
			"duration", time.Since(shutdownStart),
		)

		for _, h := range b.discord.discordgoRemoveHandlerFuncs {
			h()
		}
		b.discord.discordgoRemoveHandlerFuncs = nil

		if b.discord.session != nil {
			if err := b.discord.session.Close(); err != nil {
				b.logger.ErrorContext(
					ctx,
					"error closing discord session",
					tint.Err(err),
				)
			}
		}
		if err := b.api.httpServer.Shutdown(closeCtx); err != nil {
			b.logger.ErrorContext(
				ctx,
				"error shutting down http server",
				tint.Err(err),
			)
		}
		gracefulShutdownCh <- struct{}{}
	}()

	for {
		select {
		case <-gracefulShutdownCh:
			b.logger.InfoContext(
				ctx,
				"graceful shutdown complete",
				"duration", time.Since(shutdownStart),
			)
			return nil
		case <-closeCtx.Done():
			b.logger.WarnContext(ctx, "shutdown deadline exceeded, forcing close")
			if b.discord.session != nil {
				_ = b.discord.session.Close()
			}
			_ = b.api.httpServer.Close()
			return fmt.Errorf("shutdown deadline exceeded")
		case <-announcementTicker.C:
			b.logger.WarnContext(
				ctx,
				"still shutting down...",
				"deadline", shutdownDeadline,
			)
		}
	}
}
