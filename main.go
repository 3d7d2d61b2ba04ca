package main

import (
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/uol/gobol/loader"
	"github.com/uol/logh"
	tlmanager "github.com/uol/timelinemanager"

	"github.com/uol/graphiteproxy/lib/constants"
	"github.com/uol/graphiteproxy/lib/graphite"
	"github.com/uol/graphiteproxy/lib/ledger"
	"github.com/uol/graphiteproxy/lib/rest"
	"github.com/uol/graphiteproxy/lib/stats"
	"github.com/uol/graphiteproxy/lib/structs"
	"github.com/uol/graphiteproxy/lib/telnetsrv"
	"github.com/uol/graphiteproxy/lib/writer"
)

var logger *logh.ContextualLogger

func main() {

	fmt.Println("Starting graphite proxy")

	//Parse of command line arguments.
	confPath := pflag.String("config", "config.toml", "path to the configuration file (toml or yaml)")
	database := pflag.String("database", constants.StringsEmpty, "overrides the database name of the configuration")
	checkBackend := pflag.Bool("check-backend", true, "aborts the start if the backend is not reachable")
	pflag.Parse()

	settings, err := loadSettings(*confPath)
	if err != nil {
		log.Fatalln("error loading config file: ", err)
	} else {
		fmt.Println("config file loaded: ", *confPath)
	}

	if *database != constants.StringsEmpty {
		settings.Database = *database
	}

	logger = configureLogger(&settings.Logs)

	if *checkBackend {
		checkBackendConnection(&settings.Backend)
	}

	timelineManager := createTimelineManager(settings.Stats)
	statsManager := stats.New(timelineManager)

	pendingLedger := ledger.New(&settings.Ledger, statsManager)
	pendingLedger.Start()

	writerClient := createWriterClient(&settings.Backend, pendingLedger, statsManager)
	decoder := graphite.New(settings.Database, writerClient, pendingLedger, statsManager, settings.TelnetServer.SilenceLogs)
	telnetServer := createTelnetServer(&settings.TelnetServer, decoder, statsManager)

	restServer := rest.New(&settings.HTTPserver, telnetServer, pendingLedger, writerClient, statsManager)
	restServer.Start()

	if logh.InfoEnabled {
		logger.Info().Msgf("graphite proxy started successfully, forwarding database %q to %s", settings.Database, writer.Target(&settings.Backend))
	}

	stopChannel := make(chan os.Signal, 1)
	signal.Notify(stopChannel, os.Interrupt, syscall.SIGTERM)

	<-stopChannel

	if logh.InfoEnabled {
		logger.Info().Msg("stopping graphite proxy...")
	}

	if logh.InfoEnabled {
		logger.Info().Msg("stopping telnet server")
	}

	telnetServer.Shutdown()

	if logh.InfoEnabled {
		logger.Info().Msg("stopping writer client")
	}

	writerClient.Close()
	pendingLedger.Shutdown()

	if logh.InfoEnabled {
		logger.Info().Msg("stopping rest server")
	}

	restServer.Stop()

	if timelineManager != nil {

		if logh.InfoEnabled {
			logger.Info().Msg("stopping statistics service")
		}

		timelineManager.Shutdown()
	}

	if logh.InfoEnabled {
		logger.Info().Msg("graphite proxy stopped")
	}

	os.Exit(0)
}

// loadSettings - loads the toml or yaml configuration file
func loadSettings(confPath string) (*structs.Settings, error) {

	settings := new(structs.Settings)

	var err error
	switch filepath.Ext(confPath) {
	case ".yaml", ".yml":
		err = loader.ConfYaml(confPath, settings)
	default:
		err = loader.ConfToml(confPath, settings)
	}

	if err != nil {
		return nil, err
	}

	settings.SetDefaults()

	return settings, nil
}

// configureLogger - configures all loggers
func configureLogger(conf *structs.LoggerSettings) *logh.ContextualLogger {

	logh.ConfigureGlobalLogger(conf.Level, conf.Format)

	cl := logh.CreateContextualLogger(constants.StringsPKG, "main")

	if logh.InfoEnabled {
		cl.Info().Msg("log configured")
	}

	return cl
}

// checkBackendConnection - exits if no tcp connection can be made to the backend
func checkBackendConnection(conf *structs.BackendSettings) {

	address := fmt.Sprintf("%s:%d", conf.Host, conf.Port)

	timeout := conf.DialTimeout.Duration
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		if logh.FatalEnabled {
			logger.Fatal().Err(err).Msgf("backend is not reachable at %s", address)
		}
		os.Exit(1)
	}

	conn.Close()

	if logh.InfoEnabled {
		logger.Info().Msgf("backend is reachable at %s", address)
	}
}

// createTimelineManager - creates and starts the timeline manager, nil if not configured
func createTimelineManager(settings *tlmanager.Configuration) *tlmanager.Instance {

	if settings == nil {
		if logh.InfoEnabled {
			logger.Info().Msg("no statistics backend configured, only the prometheus endpoint is available")
		}
		return nil
	}

	if logh.DebugEnabled {
		logger.Debug().Msgf("%+v", *settings)
	}

	tm, err := tlmanager.New(settings)
	if err != nil {
		if logh.FatalEnabled {
			logger.Fatal().Err(err).Msg("error creating timeline manager")
		}
		os.Exit(1)
	}

	err = tm.Start()
	if err != nil {
		if logh.FatalEnabled {
			logger.Fatal().Err(err).Msg("error starting timeline manager")
		}
		os.Exit(1)
	}

	if logh.InfoEnabled {
		logger.Info().Msg("timeline manager was created")
	}

	return tm
}

// createWriterClient - creates the backend writer client and opens the stream
func createWriterClient(conf *structs.BackendSettings, pendingLedger *ledger.Ledger, statsManager *stats.Manager) *writer.Client {

	client, err := writer.New(conf, pendingLedger, statsManager)
	if err != nil {
		if logh.FatalEnabled {
			logger.Fatal().Err(err).Msg("error creating the writer client")
		}
		os.Exit(1)
	}

	err = client.Start()
	if err != nil {
		if logh.FatalEnabled {
			logger.Fatal().Err(err).Msg("error opening the write stream")
		}
		os.Exit(1)
	}

	return client
}

// createTelnetServer - creates the graphite telnet server and starts to listen
func createTelnetServer(conf *structs.TelnetServerConfiguration, handler telnetsrv.TelnetDataHandler, statsManager *stats.Manager) *telnetsrv.Server {

	server := telnetsrv.New(conf, handler, statsManager)

	err := server.Listen()
	if err != nil {
		if logh.FatalEnabled {
			logger.Fatal().Err(err).Msgf("error listening telnet server %q", conf.ServerName)
		}
		os.Exit(1)
	}

	return server
}
