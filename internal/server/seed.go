package server

import (
	"context"
	"fmt"
)

// SeedUser describes an account to provision.
type SeedUser struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
	Director  bool
}

// DemoUsers is the default local-development roster: one shared
// director inbox pair and two parent accounts.
func DemoUsers() []SeedUser {
	return []SeedUser{
		{Username: "mdyrektor", Password: "director", FirstName: "Maria", LastName: "Dyrektor", Director: true},
		{Username: "jwice", Password: "director", FirstName: "Jan", LastName: "Wicedyrektor", Director: true},
		{Username: "akowalska", Password: "parent", FirstName: "Anna", LastName: "Kowalska"},
		{Username: "pnowak", Password: "parent", FirstName: "Piotr", LastName: "Nowak"},
	}
}

// Seed provisions accounts that do not exist yet. Existing usernames
// are left untouched, so seeding is idempotent.
func (s *Store) Seed(ctx context.Context, users []SeedUser) error {
	for _, su := range users {
		if _, err := s.UserByUsername(ctx, su.Username); err == nil {
			continue
		}
		hashed, err := HashPassword(su.Password)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", su.Username, err)
		}
		_, err = s.CreateUser(ctx, User{
			Username:       su.Username,
			FirstName:      su.FirstName,
			LastName:       su.LastName,
			HashedPassword: hashed,
			Director:       su.Director,
		})
		if err != nil {
			return fmt.Errorf("seed user %s: %w", su.Username, err)
		}
	}
	return nil
}
