// rulesctl validates triage configuration directories and imports them into
// the SQLite source read by the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/health-triage/internal/snapshot"
	"github.com/joho/godotenv"
)

const usage = `usage:
  rulesctl validate -dir DIR
  rulesctl import   -dir DIR -db PATH`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "validate":
		err = runValidate(ctx, os.Args[2:])
	case "import":
		err = runImport(ctx, os.Args[2:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runValidate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	dir := fs.String("dir", envOr("RULES_DIR", "rules"), "configuration directory")
	_ = fs.Parse(args)

	snap, err := snapshot.Build(ctx, snapshot.NewFileSource(*dir))
	if err != nil {
		return err
	}
	printSummary(snap)
	return nil
}

func runImport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	dir := fs.String("dir", envOr("RULES_DIR", "rules"), "configuration directory")
	dbPath := fs.String("db", envOr("SQLITE_PATH", "triage.db"), "path to the SQLite database")
	_ = fs.Parse(args)

	snap, err := snapshot.Build(ctx, snapshot.NewFileSource(*dir))
	if err != nil {
		return err
	}

	dst, err := snapshot.NewSQLiteSource(*dbPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	rev, err := dst.Import(ctx, snap.Parts())
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	printSummary(snap)
	fmt.Printf("imported into %s at revision %d\n", *dbPath, rev)
	return nil
}

func printSummary(snap *snapshot.Snapshot) {
	parts := snap.Parts()
	fmt.Printf("version:         %s\n", snap.Version())
	fmt.Printf("rules:           %d\n", len(parts.Rules))
	fmt.Printf("diet tags:       %d\n", len(parts.DietTags))
	fmt.Printf("department map:  %d\n", len(parts.DepartmentMap))

	names := make([]string, 0, len(parts.Catalogs))
	for name := range parts.Catalogs {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Printf("catalogs:        %v\n", names)

	if unresolved := snap.UnresolvedDietTags(); len(unresolved) > 0 {
		fmt.Printf("warning: unknown diet tags referenced by rules: %v\n", unresolved)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
