// Package relocation owns the filesystem side of the print-package review:
// the stage folder layout under a job directory and moving files between
// stage folders. Callers treat failures here as reportable, not fatal; the
// database stays the source of truth.
package relocation

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const printPackagesSubdir = "4. Drafting/PP-Print Packages"

var (
	EnsureStageDirsFunc = EnsureStageDirs
	MoveFileFunc        = MoveFile
)

// PrintPackagesDir is the root folder holding one subfolder per review stage.
func PrintPackagesDir(jobDirectory string) string {
	return filepath.Join(jobDirectory, filepath.FromSlash(printPackagesSubdir))
}

func StageDir(jobDirectory string, stageIndex int, stageName string) string {
	return filepath.Join(PrintPackagesDir(jobDirectory), fmt.Sprintf("%d-%s", stageIndex, stageName))
}

// EnsureStageDirs creates the full stage folder tree for a job. Existing
// folders are left alone.
func EnsureStageDirs(jobDirectory string, stageNames []string) error {
	for i, name := range stageNames {
		if err := os.MkdirAll(StageDir(jobDirectory, i, name), 0755); err != nil {
			return err
		}
	}
	return nil
}

// MoveFile relocates src into destDir, keeping the base name, and returns the
// new path. Rename is tried first; a copy-then-remove fallback covers moves
// across filesystems.
func MoveFile(src string, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", err
	}
	dest := filepath.Join(destDir, filepath.Base(src))
	if err := os.Rename(src, dest); err == nil {
		return dest, nil
	}
	if err := copyFile(src, dest); err != nil {
		return "", err
	}
	if err := os.Remove(src); err != nil {
		return "", err
	}
	return dest, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
