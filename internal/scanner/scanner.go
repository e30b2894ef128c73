package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var audioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".m4a":  true,
	".aac":  true,
	".ogg":  true,
	".opus": true,
	".wav":  true,
	".wma":  true,
	".ape":  true,
	".wv":   true,
}

// AudioFile is an audio file found by Scan.
type AudioFile struct {
	Path    string
	RelPath string
}

// IsAudio reports whether path has a known audio extension.
func IsAudio(path string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(path))]
}

// Scan returns the audio files at rootPath, which may be a single file or a
// directory walked recursively. Results are sorted by path.
func Scan(rootPath string) ([]AudioFile, error) {
	absRoot, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if !IsAudio(absRoot) {
			return nil, nil
		}
		return []AudioFile{{
			Path:    absRoot,
			RelPath: filepath.Base(absRoot),
		}}, nil
	}

	var files []AudioFile
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsAudio(path) {
			return nil
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}
		files = append(files, AudioFile{
			Path:    path,
			RelPath: relPath,
		})
		return nil
	})

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, err
}
