package main

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/SentimensRG/sigctx"
	"github.com/namsral/flag"
	"github.com/sirupsen/logrus"

	"github.com/titpetric/cmsmigrate/server/migrations"
)

func main() {
	var (
		config migrations.Config
		scopes string
	)

	fs := flag.NewFlagSetWithEnvPrefix(os.Args[0], "MIGRATE", flag.ExitOnError)
	fs.String(flag.DefaultConfigFlagname, "", "Path to config file")
	fs.StringVar(&config.Listen, "listen", ":8080", "HTTP listen address")
	fs.StringVar(&config.ServiceToken, "service-token", "", "Bearer token for account and binding management")
	fs.StringVar(&config.Management.BaseURL, "management-url", "", "Management API base URL")
	fs.Float64Var(&config.Management.RequestsPerSecond, "management-rps", 5, "Management API request rate limit")
	fs.IntVar(&config.Management.Burst, "management-burst", 5, "Management API request burst")
	fs.StringVar(&config.OAuth.ClientID, "oauth-client-id", "", "OAuth client ID")
	fs.StringVar(&config.OAuth.ClientSecret, "oauth-client-secret", "", "OAuth client secret")
	fs.StringVar(&config.OAuth.AuthURL, "oauth-auth-url", "https://api.supabase.com/v1/oauth/authorize", "OAuth authorization URL")
	fs.StringVar(&config.OAuth.TokenURL, "oauth-token-url", "https://api.supabase.com/v1/oauth/token", "OAuth token URL")
	fs.StringVar(&config.OAuth.RedirectURL, "oauth-redirect-url", "", "OAuth redirect URL")
	fs.StringVar(&scopes, "oauth-scopes", "", "Comma separated OAuth scopes")
	fs.StringVar(&config.RedisAddr, "redis-addr", "", "Redis address for the credential store")
	fs.StringVar(&config.RedisPrefix, "redis-prefix", "cmsmigrate:", "Redis key prefix")
	fs.Parse(os.Args[1:])

	if scopes != "" {
		config.OAuth.Scopes = strings.Split(scopes, ",")
	}

	ctx := sigctx.New()
	server, cleanup, err := migrations.New(ctx, &config)
	if err != nil {
		logrus.Fatalf("An error occured: %+v", err)
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              config.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()

	logrus.WithField("listen", config.Listen).Info("starting migration server")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logrus.Fatalf("An error occured: %+v", err)
	}
}
