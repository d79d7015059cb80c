package backend

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"entcal/internal/model"
)

// Dir serves recorded RPC responses from disk, laid out as
//
//	<root>/<kind>/<entity id>/<YYYY-MM>.json
//
// A missing file is an empty month. It backs demos and offline snapshots.
type Dir struct {
	root string
	loc  *time.Location
}

func NewDir(root string, loc *time.Location) *Dir {
	if loc == nil {
		loc = time.Local
	}
	return &Dir{root: root, loc: loc}
}

// FetchMonth implements Source.
func (d *Dir) FetchMonth(ctx context.Context, key model.Key) (model.DayMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.root == "" {
		return nil, errors.New("backend: fixture dir is empty")
	}

	name := fmt.Sprintf("%04d-%02d.json", key.Year, int(key.Month))
	path := filepath.Join(d.root, string(key.Kind), filepath.Base(key.EntityID), name)

	body, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.DayMap{}, nil
		}
		return nil, err
	}
	return Decode(body, key.Window(d.loc))
}
