package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"configurator/internal/compare"
	"configurator/internal/config"
	"configurator/internal/migrate"
	"configurator/internal/node"
	"configurator/internal/reviver"
	"configurator/internal/schema"
	"configurator/internal/workspace"

	"github.com/spf13/cobra"
)

// options — общие флаги всех команд.
type options struct {
	schemaFile   string
	enumsDir     string
	logLevel     string
	enforceTypes bool
	languages    []string
	asJSON       bool
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "confgraph",
		Short:         "Inspect, migrate and compare study configurations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&o.schemaFile, "schema", "", "Schema YAML (empty = embedded)")
	root.PersistentFlags().StringVar(&o.enumsDir, "enums", "", "Enum catalog directory (empty = embedded)")
	root.PersistentFlags().StringVar(&o.logLevel, "log-level", "warn", "Log level (debug/info/warn/error)")
	root.PersistentFlags().BoolVar(&o.enforceTypes, "enforce-types", false, "Fail on type mismatch")
	root.PersistentFlags().StringSliceVar(&o.languages, "lang", nil, "Preferred label languages")
	root.PersistentFlags().BoolVar(&o.asJSON, "json", false, "Print JSON")

	root.AddCommand(
		newLintCmd(o),
		newPathCmd(o),
		newMigrateCmd(o),
		newGetCmd(o),
		newSearchCmd(o),
		newUsageCmd(o),
		newDiffCmd(o),
	)
	return root
}

func (o *options) logger(cmd *cobra.Command) *slog.Logger {
	level := config.Config{LogLevel: o.logLevel}.SlogLevel()
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func (o *options) store(cmd *cobra.Command) (*workspace.Store, error) {
	reg, _, err := workspace.LoadRegistry(o.schemaFile, o.enumsDir)
	if err != nil {
		return nil, err
	}
	log := o.logger(cmd)
	return workspace.NewStore(workspace.Options{
		Registry: reg,
		Revival:  reviver.Options{EnforceTypes: o.enforceTypes, Logger: log},
		Logger:   log,
	}), nil
}

func importFile(store *workspace.Store, path string) (*workspace.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	snap, err := store.ImportJSON(name, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}

// openNode импортирует файл и находит узел по глобальному id; пустой id — корень.
func (o *options) openNode(cmd *cobra.Command, path, gid string) (*node.Node, error) {
	store, err := o.store(cmd)
	if err != nil {
		return nil, err
	}
	snap, err := importFile(store, path)
	if err != nil {
		return nil, err
	}
	if gid == "" {
		return snap.Root, nil
	}
	return snap.Root.FindNode(gid)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func globalID(n *node.Node) string {
	gid, err := n.GlobalID(nil)
	if err != nil {
		return n.String()
	}
	return gid
}

func newLintCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Load the schema and report inconsistencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, catalog, err := workspace.LoadRegistry(o.schemaFile, o.enumsDir)
			var lintErr *schema.LintError
			if errors.As(err, &lintErr) {
				for _, is := range lintErr.Issues {
					fmt.Fprintf(cmd.OutOrStdout(), "%s [%s]\n", is, is.Code)
				}
				return fmt.Errorf("schema has %d issue(s)", len(lintErr.Issues))
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d entities, %d catalogs\n", len(reg.Entities()), len(catalog))
			return nil
		},
	}
}

func newPathCmd(o *options) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "path SOURCE TARGET",
		Short: "Find a path between two entities of the schema",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, _, err := workspace.LoadRegistry(o.schemaFile, o.enumsDir)
			if err != nil {
				return err
			}
			k, ok := schema.ParseRelationKind(kind)
			if !ok {
				return fmt.Errorf("unknown relation kind %q", kind)
			}
			path, err := reg.FindPath(k, args[0], args[1])
			if err != nil {
				return err
			}
			if len(path) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no %s path from %s to %s\n", k, args[0], args[1])
				return nil
			}
			names := []string{args[0]}
			for _, e := range path {
				names = append(names, e.Name)
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(names, " > "))
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "children", "Graph to search: children or relations")
	return cmd
}

func newMigrateCmd(o *options) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "migrate FILE",
		Short: "Migrate a configuration file to the current version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var raw map[string]any
			if err := json.Unmarshal(data, &raw); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			m := migrate.Default().WithLogger(o.logger(cmd))
			reports, err := m.Migrate(raw)
			if err != nil {
				return err
			}

			if o.asJSON {
				if err := writeJSON(cmd.OutOrStdout(), reports); err != nil {
					return err
				}
			} else if len(reports) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "already at version %d\n", m.CurrentVersion())
			} else {
				for _, r := range reports {
					fmt.Fprintf(cmd.OutOrStdout(), "%d -> %d: %s (%d nodes)\n", r.Version-1, r.Version, r.Description, len(r.Nodes))
					if r.Instructions != "" {
						fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", r.Instructions)
					}
				}
			}

			if out == "" {
				return nil
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			return writeJSON(f, raw)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the migrated configuration to this file")
	return cmd
}

func newGetCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get FILE [GLOBAL_ID]",
		Short: "Print a node of the configuration",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			gid := ""
			if len(args) == 2 {
				gid = args[1]
			}
			n, err := o.openNode(cmd, args[0], gid)
			if err != nil {
				return err
			}
			if o.asJSON {
				return writeJSON(cmd.OutOrStdout(), n.Export())
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s  %s\n", globalID(n), n.Label(o.languages...))
			for _, c := range n.AllChildren() {
				fmt.Fprintf(w, "  %s  %s\n", globalID(c), c.Label(o.languages...))
			}
			return nil
		},
	}
}

func newSearchCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "search FILE TEXT",
		Short: "Find nodes whose id or label contains TEXT",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := o.openNode(cmd, args[0], "")
			if err != nil {
				return err
			}
			found := root.Search(args[1], o.languages)
			if o.asJSON {
				gids := make([]string, 0, len(found))
				for _, n := range found {
					gids = append(gids, globalID(n))
				}
				return writeJSON(cmd.OutOrStdout(), gids)
			}
			for _, n := range found {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", globalID(n), n.Label(o.languages...))
			}
			return nil
		},
	}
}

func newUsageCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "usage FILE GLOBAL_ID",
		Short: "Show which nodes use the given node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := o.openNode(cmd, args[0], args[1])
			if err != nil {
				return err
			}
			usage := n.Usage()
			if o.asJSON {
				out := make(map[string][]string, len(usage))
				for entity, nodes := range usage {
					for _, u := range nodes {
						out[entity] = append(out[entity], globalID(u))
					}
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{"used": n.IsUsed(), "usage": out})
			}
			w := cmd.OutOrStdout()
			if !n.IsUsed() {
				fmt.Fprintf(w, "%s is not used\n", globalID(n))
				return nil
			}
			if len(usage) == 0 {
				fmt.Fprintf(w, "%s is always used\n", globalID(n))
				return nil
			}
			// порядок связей как в схеме
			for _, rel := range n.Entity().Relations {
				for _, u := range usage[rel.Entity] {
					fmt.Fprintf(w, "%s\t%s\n", rel.Entity, globalID(u))
				}
			}
			return nil
		},
	}
}

func newDiffCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "diff SOURCE TARGET",
		Short: "Show what TARGET changes compared to SOURCE",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := o.store(cmd)
			if err != nil {
				return err
			}
			source, err := importFile(store, args[0])
			if err != nil {
				return err
			}
			target, err := importFile(store, args[1])
			if err != nil {
				return err
			}
			diffs, err := store.Diff(source.ID, target.ID)
			if err != nil {
				return err
			}
			entries := compare.Explain(diffs)
			summary := compare.Summarize(entries)
			if o.asJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"summary":     summary,
					"differences": compare.DescribeEntries(entries),
				})
			}
			w := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintln(w, e.Difference.Message())
				for _, r := range e.Results {
					fmt.Fprintf(w, "    %s\n", r.Message())
				}
			}
			fmt.Fprintf(w, "%d modification(s), %d addition(s), %d deletion(s)\n", summary.Modifications, summary.Additions, summary.Deletions)
			return nil
		},
	}
}
