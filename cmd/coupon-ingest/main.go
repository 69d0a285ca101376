// Command coupon-ingest bulk-loads coupon rules from gzip-compressed CSV
// files. Each record is code,discount_type,value[,description[,max_uses[,valid_until]]].
// Files are parsed concurrently; a code defined differently in two files
// aborts the import.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/coupon"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/repository"
)

const (
	batchSize     = 1000
	progressEvery = 100_000
)

// fileResult holds the rules parsed from one file, keyed by code.
type fileResult struct {
	path  string
	rules map[string]coupon.Rule
}

func main() {
	var (
		pattern     string
		databaseURL string
		dryRun      bool
	)

	flag.StringVar(&pattern, "files", "data/coupons*.csv.gz", "glob of gzip-compressed coupon CSV files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.BoolVar(&dryRun, "dry-run", false, "parse and validate only")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, pattern, databaseURL, dryRun); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, pattern, databaseURL string, dryRun bool) error {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return errors.Wrapf(err, "glob %s", pattern)
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %s", pattern)
	}

	slog.Info("parsing coupon files", slog.Int("files", len(files)))

	results, err := parseFiles(ctx, files)
	if err != nil {
		return errors.Wrap(err, "parse files")
	}
	rules, err := merge(results)
	if err != nil {
		return err
	}

	slog.Info("coupon rules parsed", slog.Int("count", len(rules)))

	if dryRun || len(rules) == 0 {
		return nil
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if _, err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := repository.NewCouponRepository(pool)
	for start := 0; start < len(rules); start += batchSize {
		batch := rules[start:min(start+batchSize, len(rules))]
		if err := repo.Upsert(ctx, batch); err != nil {
			return errors.Wrapf(err, "write batch at %d", start)
		}
		slog.Info("write progress", slog.Int("written", start+len(batch)), slog.Int("total", len(rules)))
	}

	return nil
}

// parseFiles parses every file concurrently.
func parseFiles(ctx context.Context, files []string) ([]fileResult, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			rules, err := parseFile(ctx, path)
			if err != nil {
				return errors.Wrapf(err, "parse %s", path)
			}
			slog.Info("file parsed", slog.String("path", path), slog.Int("rules", len(rules)))
			results[i] = fileResult{path: path, rules: rules}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// merge combines per-file rules. Identical definitions in several files are
// allowed; differing ones are an error. The result is sorted by code.
func merge(results []fileResult) ([]coupon.Rule, error) {
	merged := make(map[string]coupon.Rule)
	origin := make(map[string]string)
	for _, res := range results {
		for code, rule := range res.rules {
			prev, seen := merged[code]
			if seen && !sameRule(prev, rule) {
				return nil, errors.Errorf("coupon %s: conflicting definitions in %s and %s", code, origin[code], res.path)
			}
			merged[code] = rule
			origin[code] = res.path
		}
	}

	rules := make([]coupon.Rule, 0, len(merged))
	for _, r := range merged {
		rules = append(rules, r)
	}
	slices.SortFunc(rules, func(a, b coupon.Rule) int { return strings.Compare(a.Code, b.Code) })
	return rules, nil
}

func sameRule(a, b coupon.Rule) bool {
	return a.Code == b.Code &&
		a.DiscountType == b.DiscountType &&
		a.Value.Equal(b.Value) &&
		a.Description == b.Description &&
		a.MaxUses == b.MaxUses &&
		equalTime(a.ValidUntil, b.ValidUntil)
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// parseFile opens a gzip-compressed CSV file and parses every record.
func parseFile(ctx context.Context, path string) (map[string]coupon.Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	return parseRecords(ctx, gz)
}

func parseRecords(ctx context.Context, r io.Reader) (map[string]coupon.Rule, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	rules := make(map[string]coupon.Rule)
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rules, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "record %d", n)
		}
		if n == 1 && strings.EqualFold(rec[0], "code") {
			continue
		}
		rule, err := parseRecord(rec)
		if err != nil {
			return nil, errors.Wrapf(err, "record %d", n)
		}
		if prev, seen := rules[rule.Code]; seen && !sameRule(prev, rule) {
			return nil, errors.Errorf("record %d: coupon %s defined twice", n, rule.Code)
		}
		rules[rule.Code] = rule
		if n%progressEvery == 0 {
			slog.Info("parse progress", slog.Int("records", n))
		}
	}
}

func parseRecord(rec []string) (coupon.Rule, error) {
	if len(rec) < 3 {
		return coupon.Rule{}, errors.Errorf("want at least 3 fields, got %d", len(rec))
	}
	rule := coupon.Rule{
		Code:         coupon.NormalizeCode(rec[0]),
		DiscountType: coupon.DiscountType(strings.ToLower(strings.TrimSpace(rec[1]))),
	}
	if rule.Code == "" {
		return coupon.Rule{}, errors.New("empty code")
	}
	if !rule.DiscountType.Valid() {
		return coupon.Rule{}, errors.Errorf("coupon %s: unknown discount type %q", rule.Code, rec[1])
	}
	value, err := decimal.NewFromString(strings.TrimSpace(rec[2]))
	if err != nil {
		return coupon.Rule{}, errors.Wrapf(err, "coupon %s: parse value", rule.Code)
	}
	if value.IsNegative() {
		return coupon.Rule{}, errors.Errorf("coupon %s: negative value", rule.Code)
	}
	if rule.DiscountType == coupon.DiscountPercentage && value.GreaterThan(decimal.NewFromInt(100)) {
		return coupon.Rule{}, errors.Errorf("coupon %s: percentage above 100", rule.Code)
	}
	rule.Value = value

	if len(rec) > 3 {
		rule.Description = strings.TrimSpace(rec[3])
	}
	if len(rec) > 4 && strings.TrimSpace(rec[4]) != "" {
		if rule.MaxUses, err = strconv.Atoi(strings.TrimSpace(rec[4])); err != nil || rule.MaxUses < 0 {
			return coupon.Rule{}, errors.Errorf("coupon %s: invalid max uses %q", rule.Code, rec[4])
		}
	}
	if len(rec) > 5 && strings.TrimSpace(rec[5]) != "" {
		until, err := time.Parse(time.RFC3339, strings.TrimSpace(rec[5]))
		if err != nil {
			return coupon.Rule{}, errors.Wrapf(err, "coupon %s: parse valid_until", rule.Code)
		}
		rule.ValidUntil = &until
	}
	return rule, nil
}
