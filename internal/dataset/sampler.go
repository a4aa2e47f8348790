package dataset

import (
	"context"
	"math/rand"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"k8s.io/klog/v2"
)

// ShardOptions configures LoadShards.
type ShardOptions struct {
	Seed       int64
	NumWorkers int
	PendingCap int

	// Width and Height of the gray grid every image is sampled on.
	Width  int
	Height int
	// Classes is the number of distinct labels.
	Classes int
}

// LoadShards reads every shard of every root into one Set. Shards are read
// concurrently by NumWorkers workers, but the result order only depends on
// the roots and Seed: shards are interleaved round-robin across roots, each
// root's shards shuffled by Seed, and records keep their in-shard order.
// Records whose image can not be decoded are skipped.
func LoadShards(ctx context.Context, roots map[string][]string, opts ShardOptions) (*Set, error) {
	if len(roots) == 0 {
		return nil, errors.New("shards: no dataset roots provided")
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, errors.Errorf("shards: invalid image grid %dx%d", opts.Width, opts.Height)
	}
	if opts.Classes <= 0 {
		return nil, errors.Errorf("shards: classes must be > 0 (got %d)", opts.Classes)
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 1
	}
	if opts.PendingCap <= 0 {
		opts.PendingCap = defaultPendingCap
	}
	if opts.Seed == 0 {
		opts.Seed = 42
	}

	order := buildRoundRobinOrder(roots, rand.New(rand.NewSource(opts.Seed)))
	if len(order) == 0 {
		return nil, errors.New("shards: no shards discovered")
	}

	type shardResult struct {
		inputs []*mat.VecDense
		labels []int
	}
	results := make([]shardResult, len(order))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.NumWorkers)
	for i, entry := range order {
		g.Go(func() error {
			records, err := ReadShard(gctx, entry.path, opts.PendingCap)
			if err != nil {
				return errors.Wrapf(err, "shards: root %s", entry.root)
			}
			res := shardResult{
				inputs: make([]*mat.VecDense, 0, len(records)),
				labels: make([]int, 0, len(records)),
			}
			for _, rec := range records {
				x, err := DecodeImage(rec.Image, opts.Width, opts.Height)
				if err != nil {
					klog.Warningf("shards: skipping %s in %s: %v", rec.Key, entry.path, err)
					continue
				}
				res.inputs = append(res.inputs, x)
				res.labels = append(res.labels, rec.Label)
			}
			results[i] = res
			klog.V(2).Infof("shards: read %s (%d records)", entry.path, len(res.inputs))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	set := &Set{Classes: opts.Classes}
	for _, res := range results {
		set.Inputs = append(set.Inputs, res.inputs...)
		set.Labels = append(set.Labels, res.labels...)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	klog.V(1).Infof("shards: loaded %s records from %d shards", humanize.Comma(int64(set.Len())), len(order))
	return set, nil
}

type orderEntry struct {
	root string
	path string
}

// buildRoundRobinOrder interleaves the shards of each root, taking one shard
// per root in turn. Roots are visited in name order; rng, when set, shuffles
// each root's shards first.
func buildRoundRobinOrder(roots map[string][]string, rng *rand.Rand) []orderEntry {
	rootNames := make([]string, 0, len(roots))
	copied := make(map[string][]string, len(roots))
	for root, shards := range roots {
		if len(shards) == 0 {
			continue
		}
		rootNames = append(rootNames, root)
		copied[root] = append([]string(nil), shards...)
	}
	sort.Strings(rootNames)
	if rng != nil {
		for _, root := range rootNames {
			shards := copied[root]
			rng.Shuffle(len(shards), func(i, j int) {
				shards[i], shards[j] = shards[j], shards[i]
			})
		}
	}
	var order []orderEntry
	for {
		advanced := false
		for _, root := range rootNames {
			shards := copied[root]
			if len(shards) == 0 {
				continue
			}
			order = append(order, orderEntry{root: root, path: shards[0]})
			copied[root] = shards[1:]
			advanced = true
		}
		if !advanced {
			break
		}
	}
	return order
}
