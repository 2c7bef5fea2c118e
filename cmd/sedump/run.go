package main

import (
	"context"
	"fmt"
	"log"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"sedump/internal/config"
	"sedump/internal/filter"
	"sedump/internal/load"
	"sedump/internal/parser/dumpxml"
	"sedump/internal/progress"
	"sedump/internal/schema"
	"sedump/internal/storage"
)

// run executes one job: discover the dump files, create the destination
// tables, load Sites.xml, then each site's Users.xml and Posts.xml with the
// site id stamped on. Load order follows the foreign keys.
func run(ctx context.Context, job config.Job, verbose bool) error {
	disc, err := discover(job.Dump.Dir, job.Dump.Sites)
	if err != nil {
		return err
	}
	if len(disc.Sites) == 0 {
		log.Printf("run: no site directories found under %s; loading sites only", job.Dump.Dir)
	}

	totals := countAll(ctx, disc)
	if verbose {
		var sum int64
		for _, n := range totals {
			sum += n
		}
		log.Printf("run: discovered %d files, ~%s records", len(totals), humanize.Comma(sum))
	}

	// One repository per destination table. Tables are created up front in
	// dependency order so foreign keys resolve.
	repos := make(map[string]storage.Repository, len(schema.Tables))
	defer func() {
		for _, r := range repos {
			r.Close()
		}
	}()
	for _, t := range schema.Tables {
		repo, err := storage.New(ctx, storage.Config{
			Kind:    job.Storage.Kind,
			DSN:     job.Storage.DSN,
			Table:   t.Name,
			Columns: t.ColumnNames(),
			ExistOK: job.Runtime.ExistOK,
		})
		if err != nil {
			return err
		}
		repos[t.Name] = repo
		if err := load.EnsureTable(ctx, repo, t); err != nil {
			return err
		}
	}

	rend := progress.New()
	var grand load.Result

	// Sites pass. Restricts to the requested tiny-names and harvests the
	// tiny-name -> id mapping needed to stamp per-site rows.
	siteIDs, res, err := loadSites(ctx, repos[schema.Sites.Name], disc, job, rend, totals)
	if err != nil {
		return err
	}
	addResult(&grand, res)

	for _, site := range disc.Sites {
		id, ok := siteIDs[site.TinyName]
		if !ok {
			log.Printf("run: skip %s: no matching row in Sites.xml", site.TinyName)
			continue
		}
		for _, pass := range []struct {
			table *schema.Table
			path  string
		}{
			{schema.Users, site.UsersFile},
			{schema.Posts, site.PostsFile},
		} {
			if pass.path == "" {
				continue
			}
			res, err := loadSiteFile(ctx, repos[pass.table.Name], pass.table, pass.path, id, site.TinyName, job, rend, totals)
			if err != nil {
				return err
			}
			addResult(&grand, res)
		}
	}

	log.Printf("run: done: sites=%d read=%s inserted=%s skipped=%s filtered=%s",
		len(siteIDs),
		humanize.Comma(grand.Read),
		humanize.Comma(grand.Inserted),
		humanize.Comma(grand.Skipped),
		humanize.Comma(grand.Filtered))
	return nil
}

func loadSites(ctx context.Context, repo storage.Repository, disc *Discovery, job config.Job, rend *progress.Renderer, totals map[string]int64) (map[string]int64, load.Result, error) {
	siteIDs := make(map[string]int64)
	tinyCol := schema.Sites.Col("tiny_name")
	idCol := schema.Sites.Col("id")

	var fns []filter.Func
	if len(job.Dump.Sites) > 0 {
		want := make(map[string]struct{}, len(job.Dump.Sites))
		for _, s := range job.Dump.Sites {
			want[s] = struct{}{}
		}
		fns = append(fns, filter.Keep(schema.Sites, "tiny_name", func(v any) bool {
			s, _ := v.(string)
			_, ok := want[s]
			return ok
		}))
	}
	if job.Dump.Normalize {
		fns = append(fns, filter.NormalizeText(schema.Sites))
	}
	fns = append(fns, filter.Tap(func(row schema.Row) {
		tiny, ok := row[tinyCol].(string)
		if !ok {
			return
		}
		if id, ok := row[idCol].(int64); ok {
			siteIDs[tiny] = id
		}
	}))

	res, err := load.Load(ctx, repo, schema.Sites, disc.SitesFile, load.Options{
		BatchSize: job.Runtime.BatchSize,
		Filter:    filter.Chain(fns...),
		Progress:  rend.Hook(),
		Label:     "sites",
	})
	if err != nil {
		return nil, res, err
	}
	rend.Done(res.Read, totals[disc.SitesFile], "sites")
	return siteIDs, res, nil
}

func loadSiteFile(ctx context.Context, repo storage.Repository, t *schema.Table, path string, siteID int64, tiny string, job config.Job, rend *progress.Renderer, totals map[string]int64) (load.Result, error) {
	fns := []filter.Func{filter.Stamp(t, "site_id", siteID)}
	if job.Dump.Normalize {
		fns = append(fns, filter.NormalizeText(t))
	}
	if job.Runtime.ExistOK {
		// Re-merged dump files can repeat records within one file; dropping
		// them client-side spares the store's duplicate path.
		fns = append(fns, filter.Dedup(t, "id", "site_id"))
	}

	label := fmt.Sprintf("%s/%s", tiny, t.Name)
	res, err := load.Load(ctx, repo, t, path, load.Options{
		BatchSize: job.Runtime.BatchSize,
		Filter:    filter.Chain(fns...),
		Progress:  rend.Hook(),
		Label:     label,
	})
	if err != nil {
		return res, err
	}
	rend.Done(res.Read, totals[path], label)
	return res, nil
}

// countAll pre-counts records in every discovered file for progress totals.
// Counting is line-based and cheap but still I/O, so files are scanned
// concurrently. Failures leave a zero total; the counts are advisory only.
func countAll(ctx context.Context, disc *Discovery) map[string]int64 {
	paths := disc.Files()
	counts := make([]int64, len(paths))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, p := range paths {
		g.Go(func() error {
			if n, err := dumpxml.CountRecords(p); err == nil {
				counts[i] = n
			}
			return nil
		})
	}
	g.Wait()

	totals := make(map[string]int64, len(paths))
	for i, p := range paths {
		totals[p] = counts[i]
	}
	return totals
}

func addResult(dst *load.Result, r load.Result) {
	dst.Read += r.Read
	dst.Inserted += r.Inserted
	dst.Skipped += r.Skipped
	dst.Filtered += r.Filtered
}
