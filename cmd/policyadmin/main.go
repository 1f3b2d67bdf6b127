package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/xiaonanln/liveroute/config"
	"github.com/xiaonanln/liveroute/policy"
	"github.com/xiaonanln/liveroute/util/postgres"
)

const (
	commandInit   = "init"
	commandReset  = "reset"
	commandPut    = "put"
	commandStatus = "status"
	commandPrune  = "prune"
)

// options is everything main collects from flags and the configuration file.
type options struct {
	backend       string
	postgres      postgres.Config
	etcdEndpoints []string
	etcdPrefix    string
}

func main() {
	var (
		configFile  = flag.String("config", "", "Path to YAML configuration file")
		backendName = flag.String("backend", "", "Policy backend: postgres or etcd (default: policy.source from --config, else postgres)")
		host        = flag.String("host", "localhost", "PostgreSQL host")
		port        = flag.Int("port", 5432, "PostgreSQL port")
		user        = flag.String("user", "liveroute", "PostgreSQL user")
		password    = flag.String("password", "liveroute", "PostgreSQL password")
		database    = flag.String("database", "liveroute", "PostgreSQL database")
		sslmode     = flag.String("sslmode", "disable", "PostgreSQL SSL mode")
		etcdAddr    = flag.String("etcd", "localhost:2379", "Comma separated etcd endpoints")
		etcdPrefix  = flag.String("etcd-prefix", config.DefaultEtcdPrefix, "Etcd key prefix")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <command> [args]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Routing policy management tool for liveroute.\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  init                 Create the policy table (postgres)\n")
		fmt.Fprintf(os.Stderr, "  reset                Drop and recreate the policy table (WARNING: deletes all versions)\n")
		fmt.Fprintf(os.Stderr, "  put <kind> <file>    Store a YAML or JSON policy; kind is databases or rules\n")
		fmt.Fprintf(os.Stderr, "  status               Show the newest stored version of every kind\n")
		fmt.Fprintf(os.Stderr, "  prune <kind> <keep>  Delete all but the newest <keep> versions (postgres)\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --config agent.yml init\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --backend etcd --etcd localhost:2379 put rules canary.yml\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --config agent.yml status\n", os.Args[0])
	}

	flag.Parse()

	if err := validateArgs(flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		flag.Usage()
		os.Exit(1)
	}

	opts := options{
		backend: *backendName,
		postgres: postgres.Config{
			Host:     *host,
			Port:     *port,
			User:     *user,
			Password: *password,
			Database: *database,
			SSLMode:  *sslmode,
		},
		etcdEndpoints: strings.Split(*etcdAddr, ","),
		etcdPrefix:    *etcdPrefix,
	}
	if *configFile != "" {
		cfg, err := config.LoadConfig(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config file: %v\n", err)
			os.Exit(1)
		}
		applyConfig(&opts, cfg)
	}
	if opts.backend == "" {
		opts.backend = config.SourcePostgres
	}

	ctx := context.Background()
	if err := executeCommand(ctx, os.Stdout, flag.Args(), opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// validateArgs checks the command name and its argument count.
func validateArgs(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("command required")
	}
	want := map[string]int{
		commandInit:   0,
		commandReset:  0,
		commandPut:    2,
		commandStatus: 0,
		commandPrune:  2,
	}
	n, ok := want[args[0]]
	if !ok {
		return fmt.Errorf("unknown command '%s'", args[0])
	}
	if len(args)-1 != n {
		return fmt.Errorf("%s takes %d arguments, got %d", args[0], n, len(args)-1)
	}
	return nil
}

// applyConfig takes the backend settings from the agent configuration.
func applyConfig(opts *options, cfg *config.Config) {
	if opts.backend == "" && cfg.Policy.Source != config.SourceFile {
		opts.backend = cfg.Policy.Source
	}
	if cfg.Policy.Postgres.Host != "" {
		opts.postgres = cfg.Policy.Postgres
	}
	if len(cfg.Policy.Etcd.Endpoints) > 0 {
		opts.etcdEndpoints = cfg.Policy.Etcd.Endpoints
	}
	opts.etcdPrefix = cfg.Policy.Etcd.Prefix
}

func openBackend(ctx context.Context, opts options) (backend, error) {
	switch opts.backend {
	case config.SourcePostgres:
		return newPostgresBackend(ctx, &opts.postgres)
	case config.SourceEtcd:
		return newEtcdBackend(ctx, opts.etcdEndpoints, opts.etcdPrefix)
	default:
		return nil, fmt.Errorf("unsupported backend: %s (expected postgres or etcd)", opts.backend)
	}
}

func executeCommand(ctx context.Context, out io.Writer, args []string, opts options) error {
	var doc policy.Document
	switch args[0] {
	case commandInit, commandReset, commandPrune:
		if opts.backend != config.SourcePostgres {
			return fmt.Errorf("%s is only supported by the postgres backend", args[0])
		}
	case commandPut:
		// Parsed before connecting so a bad file fails fast.
		var err error
		if doc, err = readDocument(args[1], args[2]); err != nil {
			return err
		}
	}

	b, err := openBackend(ctx, opts)
	if err != nil {
		return err
	}
	defer b.Close()

	switch args[0] {
	case commandInit:
		return initSchema(ctx, out, b.(*postgresBackend).db)
	case commandReset:
		return resetSchema(ctx, out, os.Stdin, b.(*postgresBackend).db)
	case commandPut:
		return putPolicy(ctx, out, b, doc)
	case commandStatus:
		return showStatus(ctx, out, b)
	case commandPrune:
		keep, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid keep count %q: %w", args[2], err)
		}
		return prunePolicies(ctx, out, b.(*postgresBackend).db, args[1], keep)
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

// readDocument parses the policy file and checks that it would publish.
func readDocument(kind, path string) (policy.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return policy.Document{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	doc, err := policy.Encode(kind, data)
	if err != nil {
		return policy.Document{}, fmt.Errorf("%s: %w", path, err)
	}
	if doc.Version <= 0 {
		return policy.Document{}, fmt.Errorf("%s: version must be positive, got %d", path, doc.Version)
	}
	if _, err := policy.Apply(policy.NewStore(), doc); err != nil {
		return policy.Document{}, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

func initSchema(ctx context.Context, out io.Writer, db *postgres.DB) error {
	fmt.Fprintln(out, "Initializing policy schema...")
	if err := db.InitSchema(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "✓ Table 'liveroute_policies' ready")
	return nil
}

func resetSchema(ctx context.Context, out io.Writer, in io.Reader, db *postgres.DB) error {
	fmt.Fprintln(out, "WARNING: This will delete every stored policy version!")
	fmt.Fprint(out, "Are you sure you want to continue? (yes/no): ")

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return fmt.Errorf("failed to read input")
	}
	if strings.ToLower(strings.TrimSpace(scanner.Text())) != "yes" {
		fmt.Fprintln(out, "Operation cancelled.")
		return nil
	}

	if err := db.DropSchema(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "✓ Dropped policy table")
	if err := db.InitSchema(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "✓ Policy table recreated")
	return nil
}

func putPolicy(ctx context.Context, out io.Writer, b backend, doc policy.Document) error {
	if err := b.Put(ctx, doc); err != nil {
		return fmt.Errorf("failed to store %s: %w", doc.Kind, err)
	}
	fmt.Fprintf(out, "✓ Stored %s %q version %d in %s\n", doc.Kind, doc.ID, doc.Version, b.Name())
	return nil
}

func showStatus(ctx context.Context, out io.Writer, b backend) error {
	versions, err := b.Versions(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Policy Status (%s)\n", b.Name())
	fmt.Fprintln(out, "====================")
	kinds := append([]string(nil), policy.Kinds...)
	sort.Strings(kinds)
	for _, kind := range kinds {
		if v, ok := versions[kind]; ok {
			fmt.Fprintf(out, "  %-10s version %d\n", kind, v)
		} else {
			fmt.Fprintf(out, "  %-10s ✗ (not stored)\n", kind)
		}
	}
	return nil
}

func prunePolicies(ctx context.Context, out io.Writer, db *postgres.DB, kind string, keep int) error {
	n, err := db.PrunePolicies(ctx, kind, keep)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Removed %d old %s versions\n", n, kind)
	return nil
}
