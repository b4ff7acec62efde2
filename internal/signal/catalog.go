package signal

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"vibration-diag/internal/common"
)

// Class is one operating mode: a name and its ordered signal locations.
type Class struct {
	Name  string
	Paths []string
}

// Discover lists every sub-directory of root as a class, in name order, and
// the signal files inside it ordered by numeric suffix. The first offset
// files of each class are skipped.
func Discover(root string, offset int) ([]Class, error) {
	if offset < 0 {
		return nil, fmt.Errorf("discover: %w: negative offset %d", common.ErrInvalidArgument, offset)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w: %v", root, common.ErrNotFound, err)
	}

	var classes []Class
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		paths, err := ListSignalFiles(filepath.Join(root, e.Name()))
		if err != nil {
			return nil, err
		}
		if offset >= len(paths) {
			paths = nil
		} else {
			paths = paths[offset:]
		}
		classes = append(classes, Class{Name: e.Name(), Paths: paths})
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].Name < classes[j].Name })

	if len(classes) == 0 {
		return nil, fmt.Errorf("discover %s: %w: no class directories", root, common.ErrEmptyDataset)
	}
	return classes, nil
}

// ListSignalFiles returns the signal files of dir ordered by the number
// embedded in their name (acc_00007.csv before acc_00010.csv). Files without
// a numeric suffix come last, in name order.
func ListSignalFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w: %v", dir, common.ErrNotFound, err)
	}

	type named struct {
		name  string
		index int
		ok    bool
	}
	var files []named
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), common.SignalFileSuffix) {
			continue
		}
		idx, ok := numericSuffix(e.Name())
		files = append(files, named{e.Name(), idx, ok})
	}

	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		if a.ok != b.ok {
			return a.ok
		}
		if a.ok && a.index != b.index {
			return a.index < b.index
		}
		return a.name < b.name
	})

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = filepath.Join(dir, f.name)
	}
	return paths, nil
}

// FileName formats the canonical name of the index-th signal of a class.
func FileName(index int) string {
	return fmt.Sprintf("acc_%05d%s", index, common.SignalFileSuffix)
}

func numericSuffix(name string) (int, bool) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	end := len(base)
	start := end
	for start > 0 && base[start-1] >= '0' && base[start-1] <= '9' {
		start--
	}
	if start == end {
		return 0, false
	}
	n, err := strconv.Atoi(base[start:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
