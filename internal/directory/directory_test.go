package directory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestUsersAndFindByEmail(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, usersFile, `[
		{"email":"a@x.com","password":"p","first_name":"Jane","last_name":"Doe","phone":"01","rank":"Lead","all_perm":true},
		{"email":"b@x.com","password":"q","first_name":"Bob","last_name":"Roe","all_perm":false,"photo":"https://img/b.png"}
	]`)
	d := New(dir)
	ctx := context.Background()

	users, err := d.Users(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.True(t, users[0].AllPerm)
	assert.Equal(t, "https://img/b.png", users[1].Photo)

	u, err := d.FindByEmail(ctx, "b@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Roe", u.LastName)

	_, err = d.FindByEmail(ctx, "B@x.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMissingFileIsError(t *testing.T) {
	d := New(t.TempDir())
	_, err := d.Users(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMalformedFileIsError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, informationsFile, `[{"title":"one"},`)
	_, err := New(dir).Informations(context.Background())
	require.Error(t, err)
}

func TestCompanyAndInformations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, companyFile, `{"name":"Acme","description":"Widgets"}`)
	writeFile(t, dir, informationsFile, `[{"title":"Welcome","body":"Hi","pinned":true}]`)
	d := New(dir)

	company, err := d.Company(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Acme", company.Name)
	assert.Equal(t, "Widgets", company.Description)

	infos, err := d.Informations(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "Welcome", infos[0]["title"])
	assert.Equal(t, true, infos[0]["pinned"])
}

func TestReadsAreFresh(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, companyFile, `{"name":"Old"}`)
	d := New(dir)
	first, err := d.Company(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Old", first.Name)

	writeFile(t, dir, companyFile, `{"name":"New"}`)
	second, err := d.Company(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "New", second.Name)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(t.TempDir()).Users(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
