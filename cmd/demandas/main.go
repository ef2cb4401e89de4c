package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"demandas/internal/app"
	"demandas/internal/db"
)

var rootCmd = &cobra.Command{
	Use:   "demandas",
	Short: "Demandas CLI",
	Long: `Demandas tracks work items (demandas) with a planned date and reports
weekly adherence: the share of demandas planned for a week that were concluded.

- Workspace: a directory holding demandas.yml and .demandas/demandas.db.
- Demanda: pending until concluded; reopening clears the conclusion.
- Week keys look like 2025-W06 (Monday to Sunday, in the configured timezone).
- Reports compare every week touching a month, most recent first.
- Event log: every change is recorded, view with 'demandas log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("DEMANDAS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier recorded in the event log")
	rootCmd.PersistentFlags().String("timezone", "", "calendar timezone (overrides demandas.yml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("verbose", false, "log to stderr")
	for _, name := range []string{"workspace", "json", "actor-id", "timezone", "log-level", "verbose"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
	_ = viper.BindEnv("jwt-secret", "DEMANDAS_JWT_SECRET")
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(demandaCmd())
	rootCmd.AddCommand(responsavelCmd())
	rootCmd.AddCommand(weekCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func overrides() app.Overrides {
	return app.Overrides{
		Timezone:  viper.GetString("timezone"),
		JWTSecret: viper.GetString("jwt-secret"),
		LogLevel:  viper.GetString("log-level"),
		Quiet:     !viper.GetBool("verbose"),
	}
}

func withEnv(ctx context.Context, fn func(context.Context, *app.Env) error) error {
	env, err := app.Open(ctx, viper.GetString("workspace"), overrides())
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(ctx, env)
}

func actorID() string {
	return viper.GetString("actor-id")
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create demandas.yml and the database in the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := app.Init(cmd.Context(), viper.GetString("workspace"), force)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(res)
			}
			if res.ConfigCreated {
				fmt.Printf("wrote %s\n", res.ConfigPath)
			} else {
				fmt.Printf("kept existing %s\n", res.ConfigPath)
			}
			fmt.Printf("database %s at schema version %d\n", res.DBPath, res.SchemaVersion)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing demandas.yml")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
