package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gitlab.com/elixxir/ekv"

	"github.com/gnsocial/peerchat/internal/config"
	"github.com/gnsocial/peerchat/internal/connection"
	"github.com/gnsocial/peerchat/internal/identity"
	"github.com/gnsocial/peerchat/internal/session"
	"github.com/gnsocial/peerchat/internal/social"
	"github.com/gnsocial/peerchat/internal/stats"
	"github.com/gnsocial/peerchat/internal/store"
)

const identityPollInterval = 5 * time.Second

var rootCmd = &cobra.Command{
	Use:   "peerchat",
	Short: "Runs the peerchat realtime client",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()

	flags.StringP("server", "s", "ws://localhost:8080/ws",
		"websocket endpoint of the peerchat server")
	viper.BindPFlag("server", flags.Lookup("server"))

	flags.StringP("state-dir", "d", "peerchat-state",
		"directory holding the encrypted local state")
	viper.BindPFlag("state-dir", flags.Lookup("state-dir"))

	flags.StringP("state-password", "p", "",
		"password unlocking the local state store")
	viper.BindPFlag("state-password", flags.Lookup("state-password"))

	flags.StringP("token", "t", "",
		"auth token attached to the authentication request")
	viper.BindPFlag("token", flags.Lookup("token"))

	flags.StringP("login", "l", "",
		"peer id to log in as, overriding the stored identity")
	viper.BindPFlag("login", flags.Lookup("login"))

	flags.String("debug-addr", "",
		"address for the debug/metrics HTTP listener, empty disables it")
	viper.BindPFlag("debug-addr", flags.Lookup("debug-addr"))

	viper.SetEnvPrefix("peerchat")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func run() error {
	logger := log.New(os.Stderr, "[peerchat] ", log.LstdFlags)

	cfg, err := config.NewConfig(
		viper.GetString("server"),
		viper.GetString("state-dir"),
		viper.GetString("state-password"),
	)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	kv, err := ekv.NewFilestore(cfg.StateDir, cfg.StatePassword)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}

	mux := http.NewServeMux()
	statsUpdater := stats.NewStatsUpdater(mux)
	stats.RegisterClientMetrics(statsUpdater)
	statsUpdater.Run()
	defer statsUpdater.Stop()

	if addr := viper.GetString("debug-addr"); addr != "" {
		go func() {
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Println("debug server:", err)
			}
		}()
	}

	ident := identity.NewStore(kv, logger)
	st := store.New(logger, statsUpdater)

	conn := connection.New(cfg.ServerURL, &connection.Settings{
		ReconnectDelay:   cfg.ReconnectDelay,
		HandshakeTimeout: cfg.HandshakeTimeout,
		WriteTimeout:     cfg.WriteTimeout,
	}, logger, statsUpdater)
	defer conn.Teardown()

	client, err := social.New(conn, ident, st, viper.GetString("token"), logger)
	if err != nil {
		return fmt.Errorf("new client: %w", err)
	}
	defer client.Teardown()

	unsubState := client.Session().Subscribe(func(s session.State) {
		logger.Println("session:", s)
	})
	defer unsubState()

	unsubStore := st.Subscribe(func() {
		logger.Printf("collections: %d posts, %d rooms, %d friends\n",
			len(st.Posts()), len(st.Rooms()), len(st.Friends()))
	})
	defer unsubStore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ident.Watch(ctx, identityPollInterval)

	conn.Connect()

	if peer := viper.GetString("login"); peer != "" {
		if err := client.Login(peer); err != nil {
			return fmt.Errorf("login: %w", err)
		}
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs
	logger.Printf("received signal: %s\n", sig)

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
