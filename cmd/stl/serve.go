package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"stageline/internal/app"
	"stageline/internal/config"
	"stageline/internal/domain"
	"stageline/internal/server"
)

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, c *app.Context) error {
				secret, err := jwtSecret(c.Config)
				if err != nil {
					return err
				}
				if addr == "" {
					addr = c.Config.Server.Addr
				}
				if basePath == "" {
					basePath = c.Config.Server.BasePath
				}
				handler, err := server.New(server.Config{
					Engine:   c.Engine,
					State:    c.StateStore(),
					BasePath: basePath,
					Auth:     server.AuthConfig{JWTSecret: secret, Logger: c.Logger},
					Logger:   c.Logger,
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving Stageline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				c.Logger.Info("server listening", "addr", addr, "base_path", basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (default from config)")
	return cmd
}

func tokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(appOptions())
			if err != nil {
				return err
			}
			secret, err := jwtSecret(cfg)
			if err != nil {
				return err
			}
			token, err := server.SignToken(secret, subject, ttl, time.Now())
			if err != nil {
				return domain.UsageError{Msg: err.Error()}
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "actor id carried by the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime (0 for no expiry)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func jwtSecret(cfg *config.Config) (string, error) {
	env := cfg.Server.JWTSecretEnv
	secret := os.Getenv(env)
	if secret == "" {
		return "", domain.UsageError{Msg: fmt.Sprintf("%s is required for bearer auth", env)}
	}
	return secret, nil
}
