// Package workspace keeps named volumes, metrics and dense matrices in a
// single bolt database so that CLI invocations can chain operations.
package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"

	"wbcore/internal/models"
)

// DatabaseFile is the file name of the store inside its directory
const DatabaseFile = "workspace.db"

// Store is a bolthold database of workspace records
type Store struct {
	db *bolthold.Store
}

// Item summarizes one stored record
type Item struct {
	Kind    Kind
	Name    string
	Detail  string
	Updated time.Time
}

// Open opens or creates the store in dir
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "error creating workspace directory")
	}
	db, err := bolthold.Open(filepath.Join(dir, DatabaseFile), 0o644, &bolthold.Options{
		Encoder: json.Marshal,
		Decoder: json.Unmarshal,
		Options: &bbolt.Options{
			Timeout:      5 * time.Second,
			NoGrowSync:   bbolt.DefaultOptions.NoGrowSync,
			FreelistType: bbolt.DefaultOptions.FreelistType,
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "error opening workspace in %s", dir)
	}
	return &Store{db: db}, nil
}

// Close releases the database file
func (s *Store) Close() error {
	return s.db.Close()
}

func notFound(err error, kind Kind, name string) error {
	if errors.Is(err, bolthold.ErrNotFound) {
		return models.NotFoundf("no %s named %q in workspace", kind, name)
	}
	return errors.Wrapf(err, "error reading %s %q", kind, name)
}

// PutVolume stores a volume under name, replacing any previous one
func (s *Store) PutVolume(name string, v *models.Volume) error {
	rec := newVolumeRecord(name, v)
	rec.UpdatedAt = time.Now().Unix()
	return errors.Wrapf(s.db.Upsert(name, rec), "error storing volume %q", name)
}

// GetVolume loads a volume
func (s *Store) GetVolume(name string) (*models.Volume, error) {
	rec := &VolumeRecord{}
	if err := s.db.Get(name, rec); err != nil {
		return nil, notFound(err, KindVolume, name)
	}
	return rec.volume()
}

// PutMetric stores a metric under name
func (s *Store) PutMetric(name string, m *models.Metric) error {
	rec := newMetricRecord(name, m)
	rec.UpdatedAt = time.Now().Unix()
	return errors.Wrapf(s.db.Upsert(name, rec), "error storing metric %q", name)
}

// GetMetric loads a metric
func (s *Store) GetMetric(name string) (*models.Metric, error) {
	rec := &MetricRecord{}
	if err := s.db.Get(name, rec); err != nil {
		return nil, notFound(err, KindMetric, name)
	}
	return rec.metric()
}

// PutDense stores a dense matrix and its mapping under name
func (s *Store) PutDense(name string, d *Dense) error {
	rec := newDenseRecord(name, d)
	rec.UpdatedAt = time.Now().Unix()
	return errors.Wrapf(s.db.Upsert(name, rec), "error storing dense matrix %q", name)
}

// GetDense loads a dense matrix and its mapping
func (s *Store) GetDense(name string) (*Dense, error) {
	rec := &DenseRecord{}
	if err := s.db.Get(name, rec); err != nil {
		return nil, notFound(err, KindDense, name)
	}
	return rec.dense()
}

// Delete removes a record of the given kind
func (s *Store) Delete(kind Kind, name string) error {
	var err error
	switch kind {
	case KindVolume:
		err = s.db.Delete(name, &VolumeRecord{})
	case KindMetric:
		err = s.db.Delete(name, &MetricRecord{})
	case KindDense:
		err = s.db.Delete(name, &DenseRecord{})
	default:
		return errors.Errorf("unknown record kind %q", kind)
	}
	if err != nil {
		return notFound(err, kind, name)
	}
	return nil
}

// List summarizes every stored record, ordered by kind then name
func (s *Store) List() ([]Item, error) {
	var items []Item

	var volumes []VolumeRecord
	if err := s.db.Find(&volumes, nil); err != nil {
		return nil, errors.Wrap(err, "error listing volumes")
	}
	for _, r := range volumes {
		items = append(items, Item{
			Kind:    KindVolume,
			Name:    r.Name,
			Detail:  volumeDetail(r),
			Updated: time.Unix(r.UpdatedAt, 0),
		})
	}

	var metrics []MetricRecord
	if err := s.db.Find(&metrics, nil); err != nil {
		return nil, errors.Wrap(err, "error listing metrics")
	}
	for _, r := range metrics {
		items = append(items, Item{
			Kind:    KindMetric,
			Name:    r.Name,
			Detail:  r.Structure + " " + plural(r.NumVertices, "vertex", "vertices") + ", " + plural(len(r.MapNames), "map", "maps"),
			Updated: time.Unix(r.UpdatedAt, 0),
		})
	}

	var denses []DenseRecord
	if err := s.db.Find(&denses, nil); err != nil {
		return nil, errors.Wrap(err, "error listing dense matrices")
	}
	for _, r := range denses {
		items = append(items, Item{
			Kind:    KindDense,
			Name:    r.Name,
			Detail:  r.Direction + " " + plural(len(r.Entries), "entry", "entries") + ", " + plural(len(r.MapNames), "map", "maps"),
			Updated: time.Unix(r.UpdatedAt, 0),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Kind != items[j].Kind {
			return items[i].Kind < items[j].Kind
		}
		return items[i].Name < items[j].Name
	})
	return items, nil
}

func volumeDetail(r VolumeRecord) string {
	return fmt.Sprintf("%s %dx%dx%d, %s", r.Type, r.Dims[0], r.Dims[1], r.Dims[2], plural(r.Dims[3], "map", "maps"))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
