package snapshot

import (
	"context"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
)

// Change is one classified key. Source is nil for invalidations, Current is nil for inserts. At is the valid_from of
// the new version, or the valid_to of the closed one for invalidations.
type Change struct {
	Key     Key
	Source  *SourceRow
	Current *SnapshotRow
	At      time.Time
}

type Classification struct {
	Inserts       []Change
	Updates       []Change
	Invalidations []Change
	Unchanged     int
}

// Empty reports whether the classification requires no writes.
func (c *Classification) Empty() bool {
	return len(c.Inserts) == 0 && len(c.Updates) == 0 && len(c.Invalidations) == 0
}

// Closes is the number of history rows the classification closes.
func (c *Classification) Closes() int {
	return len(c.Updates) + len(c.Invalidations)
}

type ClassifyInput struct {
	Snapshot              string
	Source                []SourceRow
	Current               []SnapshotRow
	Strategy              Strategy
	RunAt                 time.Time
	InvalidateHardDeletes bool
	// ClosedUntil holds the latest valid_to of every key whose history has only closed versions.
	ClosedUntil map[Key]time.Time
	// Partitions is the number of goroutines the keys are split across, at least one.
	Partitions int
}

// Classify splits the source and current rows into inserts, updates, unchanged rows and invalidations. It is pure:
// the same input always produces the same output, sorted by key.
func Classify(ctx context.Context, in ClassifyInput) (*Classification, error) {
	source, err := indexSource(in.Snapshot, in.Source)
	if err != nil {
		return nil, err
	}
	current, err := indexCurrent(in.Snapshot, in.Current)
	if err != nil {
		return nil, err
	}

	keys := lo.Keys(source)
	if in.InvalidateHardDeletes {
		for k := range current {
			if _, ok := source[k]; !ok {
				keys = append(keys, k)
			}
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	partitions := in.Partitions
	if partitions < 1 {
		partitions = 1
	}
	size := (len(keys) + partitions - 1) / partitions
	if size == 0 {
		return &Classification{}, nil
	}

	chunks := lo.Chunk(keys, size)
	results := make([]Classification, len(chunks))
	p := pool.New().WithMaxGoroutines(partitions)
	for i, chunk := range chunks {
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			results[i] = classifyKeys(chunk, source, current, in)
		})
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Classification{}
	for _, r := range results {
		out.Inserts = append(out.Inserts, r.Inserts...)
		out.Updates = append(out.Updates, r.Updates...)
		out.Invalidations = append(out.Invalidations, r.Invalidations...)
		out.Unchanged += r.Unchanged
	}

	return out, nil
}

func classifyKeys(keys []Key, source map[Key]*SourceRow, current map[Key]*SnapshotRow, in ClassifyInput) Classification {
	var out Classification
	for _, key := range keys {
		src, inSource := source[key]
		cur, inCurrent := current[key]

		switch {
		case inSource && !inCurrent:
			at := in.Strategy.ValidFrom(*src, in.RunAt)
			if closedAt, revived := in.ClosedUntil[key]; revived {
				at = notBefore(in.RunAt, closedAt)
			}
			out.Inserts = append(out.Inserts, Change{Key: key, Source: src, At: at})
		case inSource && inCurrent:
			if !in.Strategy.HasChanged(*src, *cur) {
				out.Unchanged++
				continue
			}
			out.Updates = append(out.Updates, Change{
				Key:     key,
				Source:  src,
				Current: cur,
				At:      nextVersionAt(in.Strategy.ValidFrom(*src, in.RunAt), in.RunAt, cur.ValidFrom),
			})
		case inCurrent:
			out.Invalidations = append(out.Invalidations, Change{Key: key, Current: cur, At: notBefore(in.RunAt, cur.ValidFrom)})
		}
	}

	return out
}

// notBefore keeps a closing timestamp from preceding the start of the version it closes.
func notBefore(t, floor time.Time) time.Time {
	if t.Before(floor) {
		return floor
	}
	return t
}

// nextVersionAt returns the valid_from of a version replacing one that started at previous. A derived timestamp that
// does not move past previous falls back to the run timestamp.
func nextVersionAt(derived, runAt, previous time.Time) time.Time {
	if derived.After(previous) {
		return derived
	}
	return notBefore(runAt, previous)
}

func indexSource(snapshot string, rows []SourceRow) (map[Key]*SourceRow, error) {
	index := make(map[Key]*SourceRow, len(rows))
	var duplicates []Key
	for i := range rows {
		if _, ok := index[rows[i].Key]; ok {
			duplicates = append(duplicates, rows[i].Key)
			continue
		}
		index[rows[i].Key] = &rows[i]
	}

	if len(duplicates) > 0 {
		return nil, &AmbiguousKeyError{Snapshot: snapshot, Relation: "source", Keys: sortedUnique(duplicates)}
	}

	return index, nil
}

func indexCurrent(snapshot string, rows []SnapshotRow) (map[Key]*SnapshotRow, error) {
	index := make(map[Key]*SnapshotRow, len(rows))
	var duplicates []Key
	for i := range rows {
		if rows[i].ValidTo != nil {
			continue
		}
		if _, ok := index[rows[i].Key]; ok {
			duplicates = append(duplicates, rows[i].Key)
			continue
		}
		index[rows[i].Key] = &rows[i]
	}

	if len(duplicates) > 0 {
		return nil, &AmbiguousKeyError{Snapshot: snapshot, Relation: "history table", Keys: sortedUnique(duplicates)}
	}

	return index, nil
}

func sortedUnique(keys []Key) []Key {
	keys = lo.Uniq(keys)
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
