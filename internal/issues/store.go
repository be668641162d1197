package issues

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/wballard/swissarmyhammer/internal/config"
	"github.com/wballard/swissarmyhammer/internal/errs"
	"github.com/wballard/swissarmyhammer/internal/fileutil"
)

// Store is a two-directory filesystem issue store: root/ holds pending
// issues, root/complete/ holds completed ones.
type Store struct {
	mu   sync.Mutex
	root string
}

// New creates a Store rooted at cfg.Issues.RootDir, ensuring both directories
// exist.
func New(cfg *config.Config) (*Store, error) {
	s := &Store{root: cfg.Issues.RootDir}
	if err := fileutil.EnsureDir(s.root); err != nil {
		return nil, errs.Wrap(errs.KindIoFailure, s.root, err)
	}
	if err := fileutil.EnsureDir(s.completeDir()); err != nil {
		return nil, errs.Wrap(errs.KindIoFailure, s.completeDir(), err)
	}
	return s, nil
}

func (s *Store) completeDir() string { return filepath.Join(s.root, "complete") }

// Create computes the next issue number (max existing + 1 across both
// directories, tolerating gaps from out-of-band deletion), sanitizes name
// (deriving one from content's first heading if empty), and writes the file.
func (s *Store) Create(name, content string) (*Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		name = deriveNameFromContent(content)
	}
	safe, err := sanitizeName(name)
	if err != nil {
		return nil, err
	}

	next, err := s.nextNumber()
	if err != nil {
		return nil, err
	}

	path := filepath.Join(s.root, fmt.Sprintf("%06d_%s.md", next, safe))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, errs.Wrap(errs.KindIoFailure, path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindIoFailure, path, err)
	}

	return &Issue{
		Number:    next,
		Name:      safe,
		Content:   content,
		Completed: false,
		Path:      path,
		CreatedAt: fileCreatedAt(info),
	}, nil
}

// nextNumber scans both directories for the highest existing issue number.
func (s *Store) nextNumber() (int, error) {
	max := 0
	for _, dir := range []string{s.root, s.completeDir()} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return 0, errs.Wrap(errs.KindIoFailure, dir, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if n, _, ok := parseFilename(e.Name()); ok && n > max {
				max = n
			}
		}
	}
	return max + 1, nil
}

// validateNumber checks the §7 InvalidIssueNumber boundary.
func validateNumber(number int) error {
	if number < 1 || number > MaxIssueNumber {
		return errs.InvalidInput(fmt.Sprintf("%d", number), "issue number out of range")
	}
	return nil
}

// find locates the file backing number in either directory.
func (s *Store) find(number int) (path string, completed bool, err error) {
	if err := validateNumber(number); err != nil {
		return "", false, err
	}
	for _, d := range []struct {
		dir       string
		completed bool
	}{{s.root, false}, {s.completeDir(), true}} {
		entries, rerr := os.ReadDir(d.dir)
		if rerr != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if n, _, ok := parseFilename(e.Name()); ok && n == number {
				return filepath.Join(d.dir, e.Name()), d.completed, nil
			}
		}
	}
	return "", false, errs.NotFound(fmt.Sprintf("%d", number))
}

// Get searches both directories; NotFound if neither holds number.
func (s *Store) Get(number int) (*Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(number)
}

func (s *Store) get(number int) (*Issue, error) {
	path, completed, err := s.find(number)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindIoFailure, path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindIoFailure, path, err)
	}
	_, name, _ := parseFilename(filepath.Base(path))
	return &Issue{
		Number:    number,
		Name:      name,
		Content:   string(data),
		Completed: completed,
		Path:      path,
		CreatedAt: fileCreatedAt(info),
	}, nil
}

// List returns the union of both directories, sorted by number.
func (s *Store) List() ([]*Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*Issue
	for _, d := range []struct {
		dir       string
		completed bool
	}{{s.root, false}, {s.completeDir(), true}} {
		entries, err := os.ReadDir(d.dir)
		if err != nil {
			return nil, errs.Wrap(errs.KindIoFailure, d.dir, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			n, name, ok := parseFilename(e.Name())
			if !ok {
				continue
			}
			path := filepath.Join(d.dir, e.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			all = append(all, &Issue{
				Number: n, Name: name, Content: string(data),
				Completed: d.completed, Path: path, CreatedAt: fileCreatedAt(info),
			})
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Number < all[j].Number })
	return all, nil
}

// Update atomically rewrites an issue's content (write-to-temp-then-rename).
func (s *Store) Update(number int, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(number, content)
}

func (s *Store) update(number int, content string) error {
	path, _, err := s.find(number)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return errs.Wrap(errs.KindIoFailure, tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errs.Wrap(errs.KindIoFailure, path, err)
	}
	return nil
}

// MarkComplete renames the file from pending to complete; idempotent.
func (s *Store) MarkComplete(number int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markComplete(number)
}

func (s *Store) markComplete(number int) error {
	path, completed, err := s.find(number)
	if err != nil {
		return err
	}
	if completed {
		return nil
	}
	dest := filepath.Join(s.completeDir(), filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		return errs.Wrap(errs.KindIoFailure, path, err)
	}
	return nil
}

// AllComplete reports true iff no issues remain in the pending directory.
func (s *Store) AllComplete() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return false, errs.Wrap(errs.KindIoFailure, s.root, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, _, ok := parseFilename(e.Name()); ok {
			return false, nil
		}
	}
	return true, nil
}
