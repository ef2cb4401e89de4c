package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"demandas/internal/app"
	"demandas/internal/domain"
	"demandas/internal/filter"
	"demandas/internal/lifecycle"
	"demandas/internal/report"
)

func demandaCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "demanda", Aliases: []string{"d"}, Short: "Manage demandas"}
	cmd.AddCommand(demandaCreateCmd())
	cmd.AddCommand(demandaListCmd())
	cmd.AddCommand(demandaShowCmd())
	cmd.AddCommand(demandaEditCmd())
	cmd.AddCommand(demandaTransitionCmd("conclude", "Mark a pending demanda as concluded now"))
	cmd.AddCommand(demandaTransitionCmd("reopen", "Return a concluded demanda to pending"))
	cmd.AddCommand(demandaDeleteCmd())
	cmd.AddCommand(demandaHistoryCmd())
	return cmd
}

func printDemandaResult(env *app.Env, d domain.Demanda) error {
	if viper.GetBool("json") {
		return printJSON(d)
	}
	printDemanda(d, report.New(env.Engine.Calendar))
	return nil
}

func demandaCreateCmd() *cobra.Command {
	var nome, descricao, prevista string
	var responsavel int64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a demanda",
		RunE: func(cmd *cobra.Command, args []string) error {
			planned, err := lifecycle.ParseDataPrevista(prevista)
			if err != nil {
				return err
			}
			f := lifecycle.Fields{Nome: nome, Descricao: descricao, DataPrevista: planned}
			if responsavel > 0 {
				f.ResponsavelID = &responsavel
			}
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				d, err := env.Engine.CreateDemanda(ctx, f, actorID())
				if err != nil {
					return err
				}
				return printDemandaResult(env, d)
			})
		},
	}
	cmd.Flags().StringVar(&nome, "nome", "", "name")
	cmd.Flags().StringVar(&descricao, "descricao", "", "description")
	cmd.Flags().StringVar(&prevista, "prevista", "", "planned date YYYY-MM-DD")
	cmd.Flags().Int64Var(&responsavel, "responsavel", 0, "responsavel id")
	_ = cmd.MarkFlagRequired("nome")
	return cmd
}

func demandaListCmd() *cobra.Command {
	var status, q string
	var responsavel int64
	var unassigned bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List demandas",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := filter.ParseStatus(status)
			if err != nil {
				return err
			}
			c := filter.Criteria{Status: st, Unassigned: unassigned, Query: q}
			if responsavel > 0 {
				c.ResponsavelID = &responsavel
			}
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				ds, err := env.Engine.ListDemandas(ctx, c)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(ds)
				}
				fmt.Printf("filter: %s\n", c)
				printDemandas(ds, report.New(env.Engine.Calendar))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "pending, completed or blank for all")
	cmd.Flags().Int64Var(&responsavel, "responsavel", 0, "only demandas of this responsavel id")
	cmd.Flags().BoolVar(&unassigned, "unassigned", false, "only demandas without responsavel")
	cmd.Flags().StringVarP(&q, "query", "q", "", "search nome and descricao")
	return cmd
}

func demandaShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a demanda",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				d, err := env.Engine.GetDemanda(ctx, id)
				if err != nil {
					return err
				}
				return printDemandaResult(env, d)
			})
		},
	}
}

func demandaEditCmd() *cobra.Command {
	var nome, descricao, prevista string
	var responsavel int64
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a demanda (use --prevista '' or --responsavel 0 to clear)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var p lifecycle.Patch
			if cmd.Flags().Changed("nome") {
				p.Nome = &nome
			}
			if cmd.Flags().Changed("descricao") {
				p.Descricao = &descricao
			}
			if cmd.Flags().Changed("prevista") {
				p.DataPrevista = &prevista
			}
			if cmd.Flags().Changed("responsavel") {
				p.ResponsavelID = &responsavel
			}
			if p.Empty() {
				return fmt.Errorf("nothing to change; pass --nome, --descricao, --prevista or --responsavel")
			}
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				d, err := env.Engine.UpdateDemanda(ctx, id, p, actorID())
				if err != nil {
					return err
				}
				return printDemandaResult(env, d)
			})
		},
	}
	cmd.Flags().StringVar(&nome, "nome", "", "name")
	cmd.Flags().StringVar(&descricao, "descricao", "", "description")
	cmd.Flags().StringVar(&prevista, "prevista", "", "planned date YYYY-MM-DD")
	cmd.Flags().Int64Var(&responsavel, "responsavel", 0, "responsavel id")
	return cmd
}

func demandaTransitionCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				step := env.Engine.ConcludeDemanda
				if action == "reopen" {
					step = env.Engine.ReopenDemanda
				}
				d, err := step(ctx, id, actorID())
				if err != nil {
					return err
				}
				return printDemandaResult(env, d)
			})
		},
	}
}

func demandaDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a demanda (its history is kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				if err := env.Engine.DeleteDemanda(ctx, id, actorID()); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"deleted": id})
				}
				fmt.Printf("demanda %d deleted\n", id)
				return nil
			})
		},
	}
}

func demandaHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Show the event history of a demanda",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				evts, err := env.Engine.History(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(evts)
				}
				printEvents(evts, env.Engine.Calendar.Location())
				return nil
			})
		},
	}
}
