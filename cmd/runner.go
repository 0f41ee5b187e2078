package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodsort/internal/features"
	"github.com/desertthunder/moodsort/internal/models"
	"github.com/desertthunder/moodsort/internal/policy"
	"github.com/desertthunder/moodsort/internal/repositories"
	"github.com/desertthunder/moodsort/internal/services"
	"github.com/desertthunder/moodsort/internal/shared"
	"github.com/desertthunder/moodsort/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The feature store and the ledger are opened per command because the store holds an exclusive lock.
type Runner struct {
	config     *shared.Config
	configPath string
	spotify    *services.SpotifyService
	catalog    services.Catalog
	extractor  services.Extractor
	classifier services.Classifier
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
// Catalog, Extractor and Classifier override the services built from the config.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Spotify    *services.SpotifyService
	Catalog    services.Catalog
	Extractor  services.Extractor
	Classifier services.Classifier
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = "config.toml"
	}
	if opts.Catalog == nil && opts.Spotify != nil {
		opts.Catalog = opts.Spotify
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		spotify:    opts.Spotify,
		catalog:    opts.Catalog,
		extractor:  opts.Extractor,
		classifier: opts.Classifier,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, spotifyCommand, classifyCommand, gatherCommand, storeCommand, playlistsCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// load reads the configuration and builds the services it describes. Dependencies injected
// through [RunnerOpts] are kept.
func (r *Runner) load(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}

	if r.config == nil {
		r.config = shared.DefaultConfig()
		if _, err := os.Stat(r.configPath); err == nil {
			config, err := shared.LoadConfig(r.configPath)
			if err != nil {
				return ctx, err
			}
			r.config = config
		} else {
			r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		}
	}
	shared.SetLogLevel(r.logger, r.config.Log.Level)

	if err := r.config.Validate(); err != nil {
		return ctx, err
	}

	if r.extractor == nil || r.classifier == nil {
		client := &http.Client{Timeout: r.config.Analysis.Timeout.Duration}
		analysis := services.NewAnalysisService(r.config.Analysis.BaseURL, client)
		if r.extractor == nil {
			r.extractor = analysis
		}
		if r.classifier == nil {
			r.classifier = analysis
		}
	}

	if r.spotify == nil && r.catalog == nil {
		r.initSpotify(ctx)
	}
	return ctx, nil
}

// initSpotify builds the Spotify client from the configured credentials and installs any persisted token.
// Missing credentials are not an error here; commands that need the catalog report it.
func (r *Runner) initSpotify(ctx context.Context) {
	creds := r.config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return
	}

	svc, err := services.NewSpotifyService(creds.Map(), services.WithLogger(r.logger))
	if err != nil {
		r.logger.Warn("failed to create Spotify service", "error", err)
		return
	}
	svc.SetTokenRefreshCallback(r.persistToken)
	if token := creds.Token(); token != nil {
		svc.SetToken(ctx, token)
	}

	r.spotify = svc
	r.catalog = svc
}

// persistToken saves a refreshed token so the next invocation starts with it.
func (r *Runner) persistToken(token *oauth2.Token) {
	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		r.logger.Warn("failed to update token", "error", err)
		return
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		r.logger.Warn("failed to persist refreshed token", "error", err)
		return
	}
	r.logger.Debug("refreshed token saved", "path", r.configPath)
}

func (r *Runner) requireCatalog() (services.Catalog, error) {
	if r.catalog == nil {
		return nil, fmt.Errorf("%w: Spotify service not initialized; set credentials and run 'moodsort spotify auth'",
			shared.ErrServiceUnavailable)
	}
	return r.catalog, nil
}

func (r *Runner) schema() models.FeatureSchema {
	return models.NewFeatureSchema(r.config.Store.SchemaVersion, r.config.Store.SoundClasses)
}

func (r *Runner) openStore() (*features.CSVStore, error) {
	return features.Open(r.config.Store.Path, r.schema(), r.logger)
}

func (r *Runner) openLedger() (*sql.DB, error) {
	return shared.OpenLedger(r.config.Database)
}

// session is everything a classification command needs, released together.
type session struct {
	engine      *tasks.ClassifyEngine
	db          *sql.DB
	runs        *repositories.RunRepository
	assignments *repositories.AssignmentRepository
}

func (s *session) Close() error {
	return errors.Join(s.engine.Close(), s.db.Close())
}

// openSession opens the store and ledger and wires a [tasks.ClassifyEngine] over them.
func (r *Runner) openSession() (*session, error) {
	catalog, err := r.requireCatalog()
	if err != nil {
		return nil, err
	}
	pol, err := policy.New(r.config.Classify.Threshold)
	if err != nil {
		return nil, err
	}

	store, err := r.openStore()
	if err != nil {
		return nil, err
	}
	db, err := r.openLedger()
	if err != nil {
		store.Close()
		return nil, err
	}

	runs := repositories.NewRunRepository(db)
	assignments := repositories.NewAssignmentRepository(db)
	engine, err := tasks.NewClassifyEngine(tasks.Deps{
		Catalog:                catalog,
		Extractor:              r.extractor,
		Classifier:             r.classifier,
		Store:                  store,
		Policy:                 pol,
		Runs:                   runs,
		Assignments:            assignments,
		Logger:                 r.logger,
		TrackDelay:             r.config.Classify.TrackDelay.Duration,
		CreateMissingPlaylists: r.config.Classify.CreateMissingPlaylists,
	})
	if err != nil {
		store.Close()
		db.Close()
		return nil, err
	}
	return &session{engine: engine, db: db, runs: runs, assignments: assignments}, nil
}

// logProgress drains progress updates into the logger until the channel is closed.
func (r *Runner) logProgress(progress <-chan tasks.ProgressUpdate, done chan<- struct{}) {
	defer close(done)
	for update := range progress {
		r.logger.Debug(update.Message, "phase", update.Phase.String())
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
