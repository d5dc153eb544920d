package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReaperChildArgs(t *testing.T) {
	args := reaperChildArgs("/usr/local/bin/superbackup", []string{"superbackup", "-debug", "/etc/backup.prog"})

	assert.Equal(t, []string{"/usr/local/bin/superbackup", "-no-reap", "-debug", "/etc/backup.prog"}, args)
}

func TestReaperChildArgsWithoutArguments(t *testing.T) {
	assert.Equal(t, []string{"/bin/x", "-no-reap"}, reaperChildArgs("/bin/x", []string{"x"}))
	assert.Equal(t, []string{"/bin/x", "-no-reap"}, reaperChildArgs("/bin/x", nil))
}

func TestReadProgramAtPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.prog")
	err := os.WriteFile(path, []byte("backup a to b\nbackup c to d : every 5 minutes\n"), 0o644)
	if !assert.Nil(t, err) {
		return
	}

	prog, err := readProgramAtPath(path)
	if assert.Nil(t, err) {
		assert.Len(t, prog.Instructions, 2)
		assert.Len(t, prog.Conditional(), 1)
	}

	_, err = readProgramAtPath(filepath.Join(t.TempDir(), "missing.prog"))
	assert.NotNil(t, err)

	assert.Nil(t, tryReload(filepath.Join(t.TempDir(), "missing.prog")))
}
