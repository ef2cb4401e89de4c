package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"demandas/internal/app"
	"demandas/internal/report"
	"demandas/internal/week"
)

func weekCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "week", Short: "Week key arithmetic"}
	cmd.AddCommand(weekKeyCmd())
	cmd.AddCommand(weekRangeCmd())
	cmd.AddCommand(weekMonthCmd())
	return cmd
}

func weekKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "key [YYYY-MM-DD]",
		Short: "Week key of a date (default today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				ref, err := env.Engine.ResolveReference(firstArg(args))
				if err != nil {
					return err
				}
				k := env.Engine.Calendar.Key(ref)
				if viper.GetBool("json") {
					return printJSON(map[string]string{"date": ref.Format("2006-01-02"), "week": k.String()})
				}
				fmt.Println(k)
				return nil
			})
		},
	}
}

func weekRangeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "range <YYYY-Www>",
		Short: "Monday to Sunday range of a week key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := week.ParseKey(args[0])
			if err != nil {
				return err
			}
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				if viper.GetBool("json") {
					r, err := env.Engine.Calendar.Range(k)
					if err != nil {
						return err
					}
					return printJSON(map[string]any{"week": k, "start": r.Start, "end": r.End})
				}
				return printRanges([]week.Key{k}, env.Engine.Calendar)
			})
		},
	}
}

func weekMonthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "month [YYYY-MM-DD]",
		Short: "Weeks touching the month of a date, most recent first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				ref, err := env.Engine.ResolveReference(firstArg(args))
				if err != nil {
					return err
				}
				keys := env.Engine.Calendar.WeeksOfMonth(ref)
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				return printRanges(keys, env.Engine.Calendar)
			})
		},
	}
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "report", Short: "Adherence reports"}
	cmd.AddCommand(reportWeekCmd())
	cmd.AddCommand(reportPeriodCmd())
	cmd.AddCommand(reportExportCmd())
	cmd.AddCommand(reportChartCmd())
	return cmd
}

func reportWeekCmd() *cobra.Command {
	var members bool
	cmd := &cobra.Command{
		Use:   "week [YYYY-Www]",
		Short: "Adherence of one week (default current week)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				k := env.Engine.Calendar.Key(env.Engine.Today())
				if len(args) == 1 {
					var err error
					if k, err = week.ParseKey(args[0]); err != nil {
						return err
					}
				}
				b, err := env.Engine.WeekReport(ctx, k)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(b)
				}
				printBuckets("Semana "+k.String(), []report.WeekBucket{b}, nil)
				if members {
					agg := report.New(env.Engine.Calendar)
					fmt.Println("Pendentes")
					printDemandas(b.PendingMembers, agg)
					fmt.Println("Concluídas")
					printDemandas(b.CompletedMembers, agg)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&members, "members", false, "list pending and completed demandas")
	return cmd
}

func reportPeriodCmd() *cobra.Command {
	var ref, from, to string
	cmd := &cobra.Command{
		Use:   "period",
		Short: "Compare every week touching a month (or --from/--to range)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (from == "") != (to == "") {
				return fmt.Errorf("--from and --to must be given together")
			}
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				var (
					p   report.Period
					err error
				)
				if from != "" {
					f, ferr := env.Engine.ResolveReference(from)
					if ferr != nil {
						return ferr
					}
					t, terr := env.Engine.ResolveReference(to)
					if terr != nil {
						return terr
					}
					p, err = env.Engine.RangeReport(ctx, f, t)
				} else {
					r, rerr := env.Engine.ResolveReference(ref)
					if rerr != nil {
						return rerr
					}
					p, err = env.Engine.PeriodReport(ctx, r)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(p)
				}
				printBuckets("Aderência "+p.Label, p.Weeks, &p.Totals)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&ref, "ref", "", "reference date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&from, "from", "", "range start YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "range end YYYY-MM-DD")
	return cmd
}

func reportExportCmd() *cobra.Command {
	var ref, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the month comparison to an .xlsx workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				r, err := env.Engine.ResolveReference(ref)
				if err != nil {
					return err
				}
				if out == "" {
					out = "aderencia-" + r.Format("2006-01") + ".xlsx"
				}
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				if err := env.Engine.ExportPeriodXLSX(ctx, f, r); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"file": out})
				}
				fmt.Printf("wrote %s\n", out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&ref, "ref", "", "reference date YYYY-MM-DD (default today)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default aderencia-YYYY-MM.xlsx)")
	return cmd
}

func reportChartCmd() *cobra.Command {
	var ref, out string
	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Render the month comparison as an SVG bar chart",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				r, err := env.Engine.ResolveReference(ref)
				if err != nil {
					return err
				}
				svg, err := env.Engine.PeriodChartSVG(ctx, r)
				if err != nil {
					return err
				}
				if out == "" || out == "-" {
					_, err := fmt.Fprintln(os.Stdout, svg)
					return err
				}
				return os.WriteFile(out, []byte(svg), 0o644)
			})
		},
	}
	cmd.Flags().StringVar(&ref, "ref", "", "reference date YYYY-MM-DD (default today)")
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")
	return cmd
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
