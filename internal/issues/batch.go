package issues

// Batch variants pre-validate every input before performing any mutation;
// failure of one aborts the whole batch and leaves prior successful writes in
// place (best-effort — there is no multi-file transaction, spec.md §4.3).

// CreateBatch creates every (name, content) pair in order. Every name is
// sanitized up front, so a rejected name aborts the batch before any file is
// written; a write failure still aborts the remaining items.
func (s *Store) CreateBatch(items []struct{ Name, Content string }) ([]*Issue, error) {
	for _, it := range items {
		name := it.Name
		if name == "" {
			name = deriveNameFromContent(it.Content)
		}
		if _, err := sanitizeName(name); err != nil {
			return nil, err
		}
	}

	out := make([]*Issue, 0, len(items))
	for _, it := range items {
		issue, err := s.Create(it.Name, it.Content)
		if err != nil {
			return out, err
		}
		out = append(out, issue)
	}
	return out, nil
}

// GetBatch checks every number exists before fetching any.
func (s *Store) GetBatch(numbers []int) ([]*Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range numbers {
		if _, _, err := s.find(n); err != nil {
			return nil, err
		}
	}

	out := make([]*Issue, 0, len(numbers))
	for _, n := range numbers {
		issue, err := s.get(n)
		if err != nil {
			return out, err
		}
		out = append(out, issue)
	}
	return out, nil
}

// UpdateBatch validates every target exists before writing any.
func (s *Store) UpdateBatch(updates []struct {
	Number  int
	Content string
}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range updates {
		if _, _, err := s.find(u.Number); err != nil {
			return err
		}
	}
	for _, u := range updates {
		if err := s.update(u.Number, u.Content); err != nil {
			return err
		}
	}
	return nil
}

// MarkCompleteBatch validates every number exists before marking any
// complete.
func (s *Store) MarkCompleteBatch(numbers []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range numbers {
		if _, _, err := s.find(n); err != nil {
			return err
		}
	}
	for _, n := range numbers {
		if err := s.markComplete(n); err != nil {
			return err
		}
	}
	return nil
}
