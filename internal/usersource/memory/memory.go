// Package memory is a fixed-list usersource.Source for tests.
package memory

import "context"

// Source is a fixed list of usernames.
type Source struct {
	Usernames []string
}

// New returns a Source seeded with usernames.
func New(usernames []string) *Source {
	return &Source{Usernames: usernames}
}

// ListUsernames returns the seeded usernames.
func (s *Source) ListUsernames(_ context.Context) ([]string, error) {
	return append([]string(nil), s.Usernames...), nil
}
