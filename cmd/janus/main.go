// janus es el binario único: servidor HTTP, migraciones y utilidades.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/janus-id/janus/internal/app"
	"github.com/janus-id/janus/internal/config"
)

var configPath string

func main() {
	// .env es opcional: deploys reales pasan todo por entorno.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "janus",
		Short:         "Janus: servidor de identidad (passwords, magic links, passkeys, 2FA)",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("JANUS_CONFIG"), "ruta al YAML de configuración")

	root.AddCommand(serveCmd(), migrateCmd(), keygenCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.New(ctx, cfg)
}

func serveCmd() *cobra.Command {
	var migrateFirst bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Arranca el servidor HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if migrateFirst && a.PG != nil {
				applied, err := a.Migrate(ctx)
				if err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				if len(applied) > 0 {
					fmt.Printf("applied migrations: %v\n", applied)
				}
			}
			return a.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "aplica migraciones pendientes antes de servir")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones pendientes y termina",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			applied, err := a.Migrate(ctx)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Println("no pending migrations")
				return nil
			}
			fmt.Printf("applied migrations: %v\n", applied)
			return nil
		},
	}
}

func keygenCmd() *cobra.Command {
	var nBytes int
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Genera una clave aleatoria en base64 (secretbox, HMAC, remember)",
		RunE: func(_ *cobra.Command, _ []string) error {
			b := make([]byte, nBytes)
			if _, err := rand.Read(b); err != nil {
				return err
			}
			fmt.Println(base64.StdEncoding.EncodeToString(b))
			return nil
		},
	}
	cmd.Flags().IntVar(&nBytes, "bytes", 32, "longitud de la clave en bytes")
	return cmd
}
