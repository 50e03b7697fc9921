// Package directory reads the JSON record files the portal renders from.
// Records are re-read on every call and never written.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ashureev/assist-portal/internal/domain"
)

const (
	usersFile        = "users.json"
	informationsFile = "informations.json"
	companyFile      = "company.json"
)

// ErrUserNotFound is returned by FindByEmail when no record matches.
var ErrUserNotFound = errors.New("directory: user not found")

// Directory is a file-backed, read-only record store rooted at a data directory.
type Directory struct {
	dir string
}

// New returns a Directory reading files from dir.
func New(dir string) *Directory {
	return &Directory{dir: dir}
}

// Users returns every user record.
func (d *Directory) Users(ctx context.Context) ([]domain.UserRecord, error) {
	var users []domain.UserRecord
	if err := d.readJSON(ctx, usersFile, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// FindByEmail returns the first user whose email matches exactly.
func (d *Directory) FindByEmail(ctx context.Context, email string) (*domain.UserRecord, error) {
	users, err := d.Users(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Email == email {
			return &users[i], nil
		}
	}
	return nil, ErrUserNotFound
}

// Informations returns the informational posts shown on the home page.
func (d *Directory) Informations(ctx context.Context) ([]domain.Information, error) {
	var infos []domain.Information
	if err := d.readJSON(ctx, informationsFile, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// Company returns the company profile.
func (d *Directory) Company(ctx context.Context) (*domain.Company, error) {
	var company domain.Company
	if err := d.readJSON(ctx, companyFile, &company); err != nil {
		return nil, err
	}
	return &company, nil
}

// readJSON decodes a whole file into v. A partially valid file is an error.
func (d *Directory) readJSON(ctx context.Context, name string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(d.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}
